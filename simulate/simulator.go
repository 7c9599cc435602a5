// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cartertinney/envmonitor/internal"
	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/mqtt"
)

const DefaultInterval = 2 * time.Second

type (
	// Publisher sends one message. *mqtt.Session implements it.
	Publisher interface {
		Publish(ctx context.Context, topic string, payload []byte, qos byte) error
	}

	// Simulator publishes every sample on the temperature and humidity topics
	// as bare numbers and on the combined topic as a JSON document.
	Simulator struct {
		pub      Publisher
		gen      *Generator
		topics   mqtt.Topics
		sensorID string
		interval time.Duration
		qos      byte
		limit    uint64
		log      log.Logger
		sent     atomic.Uint64
	}

	// Option represents a single simulator option.
	Option interface{ simulator(*Options) }

	// Options are the resolved simulator options.
	Options struct {
		Interval time.Duration
		Topics   mqtt.Topics
		SensorID string
		QoS      byte

		// Limit stops Run after this many samples. Zero is unlimited.
		Limit  uint64
		Logger *slog.Logger
	}

	// WithInterval sets the publishing interval.
	WithInterval time.Duration

	// WithTopics sets the published topics. None may contain wildcards.
	WithTopics mqtt.Topics

	// WithSensorID sets the sensor_id field of the combined document.
	WithSensorID string

	// WithQoS sets the publish QoS.
	WithQoS byte

	// WithLimit stops Run after the given number of samples.
	WithLimit uint64

	withLogger struct{ *slog.Logger }

	combined struct {
		Temperature float64 `json:"temperature"`
		Humidity    float64 `json:"humidity"`
		Timestamp   string  `json:"timestamp"`
		SensorID    string  `json:"sensor_id"`
	}
)

// New creates a simulator publishing samples from gen through pub.
func New(pub Publisher, gen *Generator, opt ...Option) (*Simulator, error) {
	var opts Options
	opts.Apply(opt)

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Topics == (mqtt.Topics{}) {
		opts.Topics = mqtt.DefaultTopics
	}
	for _, topic := range []string{
		opts.Topics.Temperature,
		opts.Topics.Humidity,
		opts.Topics.Combined,
	} {
		if strings.ContainsAny(topic, "+#") {
			return nil, fmt.Errorf("cannot publish to topic filter %q", topic)
		}
	}
	if opts.SensorID == "" {
		opts.SensorID = mqtt.RandomClientID()
	}

	return &Simulator{
		pub:      pub,
		gen:      gen,
		topics:   opts.Topics,
		sensorID: opts.SensorID,
		interval: opts.Interval,
		qos:      opts.QoS,
		limit:    opts.Limit,
		log:      log.Wrap(opts.Logger),
	}, nil
}

// Publish generates one sample and publishes it. Empty topics are skipped.
func (s *Simulator) Publish(ctx context.Context) (Sample, error) {
	sample := s.gen.Next()

	doc, err := json.Marshal(combined{
		Temperature: sample.Temperature,
		Humidity:    sample.Humidity,
		Timestamp:   wallclock.Instance.Now().Format(time.RFC3339Nano),
		SensorID:    s.sensorID,
	})
	if err != nil {
		return sample, err
	}

	for _, m := range []struct {
		topic   string
		payload []byte
	}{
		{s.topics.Temperature, formatFloat(sample.Temperature)},
		{s.topics.Humidity, formatFloat(sample.Humidity)},
		{s.topics.Combined, doc},
	} {
		if m.topic == "" {
			continue
		}
		if err := s.pub.Publish(ctx, m.topic, m.payload, s.qos); err != nil {
			return sample, err
		}
	}

	attrs := []slog.Attr{
		slog.Uint64("count", s.sent.Add(1)),
		slog.Float64("temperature", sample.Temperature),
		slog.Float64("humidity", sample.Humidity),
	}
	if sample.Anomaly != None {
		s.log.Warn(ctx, "anomaly injected",
			append(attrs, slog.String("kind", string(sample.Anomaly)))...)
	} else {
		s.log.Info(ctx, "sample published", attrs...)
	}
	return sample, nil
}

// Run publishes one sample immediately and then one per interval until the
// context is cancelled, the limit is reached or a publish fails.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := wallclock.Instance.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil || (s.limit > 0 && s.sent.Load() >= s.limit) {
			s.log.Info(ctx, "simulator stopped", slog.Uint64("count", s.sent.Load()))
			return nil
		}
		if _, err := s.Publish(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-ticker.C():
		}
	}
}

// Sent returns the number of samples published so far.
func (s *Simulator) Sent() uint64 {
	return s.sent.Load()
}

func formatFloat(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'f', -1, 64)
}

// Apply resolves the provided list of options.
func (o *Options) Apply(opts []Option, rest ...Option) {
	for opt := range internal.Apply[Option](opts, rest...) {
		opt.simulator(o)
	}
}

func (o *Options) simulator(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithInterval) simulator(opt *Options) {
	opt.Interval = time.Duration(o)
}

func (o WithTopics) simulator(opt *Options) {
	opt.Topics = mqtt.Topics(o)
}

func (o WithSensorID) simulator(opt *Options) {
	opt.SensorID = string(o)
}

func (o WithQoS) simulator(opt *Options) {
	opt.QoS = byte(o)
}

func (o WithLimit) simulator(opt *Options) {
	opt.Limit = uint64(o)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return withLogger{logger}
}

func (o withLogger) simulator(opt *Options) {
	opt.Logger = o.Logger
}
