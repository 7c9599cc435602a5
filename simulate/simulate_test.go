// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package simulate_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/broker"
	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/cartertinney/envmonitor/normalize"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/cartertinney/envmonitor/simulate"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type recorder struct {
	mu    sync.Mutex
	msgs  []published
	err   error
	after func(n int)
}

func (r *recorder) Publish(_ context.Context, topic string, payload []byte, _ byte) error {
	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return r.err
	}
	r.msgs = append(r.msgs, published{topic, payload})
	n := len(r.msgs)
	r.mu.Unlock()

	if r.after != nil {
		r.after(n)
	}
	return nil
}

func twoDecimals(t *testing.T, v float64) {
	t.Helper()
	require.InDelta(t, math.Round(v*100), v*100, 1e-6)
}

func TestGeneratorNormal(t *testing.T) {
	gen := simulate.NewGenerator(0, rand.NewPCG(1, 2))
	for range 1000 {
		s := gen.Next()
		require.Equal(t, simulate.None, s.Anomaly)
		require.GreaterOrEqual(t, s.Temperature, 19.0)
		require.LessOrEqual(t, s.Temperature, 31.0)
		require.GreaterOrEqual(t, s.Humidity, 43.0)
		require.LessOrEqual(t, s.Humidity, 77.0)
		twoDecimals(t, s.Temperature)
		twoDecimals(t, s.Humidity)
	}
}

func TestGeneratorAnomalies(t *testing.T) {
	bands := map[simulate.Anomaly][4]float64{
		simulate.HighTemp:     {35, 40, 60, 70},
		simulate.LowTemp:      {5, 10, 40, 50},
		simulate.HighHumidity: {28, 32, 85, 95},
		simulate.LowHumidity:  {22, 28, 15, 25},
	}
	seen := map[simulate.Anomaly]int{}

	gen := simulate.NewGenerator(1, rand.NewPCG(3, 4))
	for range 400 {
		s := gen.Next()
		b, ok := bands[s.Anomaly]
		require.True(t, ok, "unexpected kind %q", s.Anomaly)
		require.GreaterOrEqual(t, s.Temperature, b[0])
		require.LessOrEqual(t, s.Temperature, b[1])
		require.GreaterOrEqual(t, s.Humidity, b[2])
		require.LessOrEqual(t, s.Humidity, b[3])
		seen[s.Anomaly]++
	}
	require.Len(t, seen, len(bands))
}

func TestGeneratorRate(t *testing.T) {
	gen := simulate.NewGenerator(simulate.DefaultAnomalyRate, rand.NewPCG(5, 6))
	var injected int
	for range 10000 {
		if gen.Next().Anomaly != simulate.None {
			injected++
		}
	}
	require.InDelta(t, 1000, injected, 150)
}

func TestPublish(t *testing.T) {
	rec := &recorder{}
	sim, err := simulate.New(rec,
		simulate.NewGenerator(0, rand.NewPCG(7, 8)),
		simulate.WithSensorID("sensor_042"),
	)
	require.NoError(t, err)

	sample, err := sim.Publish(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, sim.Sent())

	require.Len(t, rec.msgs, 3)
	require.Equal(t, mqtt.DefaultTopics.Temperature, rec.msgs[0].topic)
	require.Equal(t, mqtt.DefaultTopics.Humidity, rec.msgs[1].topic)
	require.Equal(t, mqtt.DefaultTopics.Combined, rec.msgs[2].topic)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.msgs[2].payload, &doc))
	require.Equal(t, sample.Temperature, doc["temperature"])
	require.Equal(t, sample.Humidity, doc["humidity"])
	require.Equal(t, "sensor_042", doc["sensor_id"])
	_, err = time.Parse(time.RFC3339Nano, doc["timestamp"].(string))
	require.NoError(t, err)

	// Every payload is understood by the live normalizer.
	norm := normalize.NewLive()
	channels := []sensor.Channel{sensor.Temperature, sensor.Humidity, sensor.Combined}
	var reading sensor.Reading
	for i, m := range rec.msgs {
		r, ok, err := norm.Normalize(sensor.Message{Channel: channels[i], Payload: m.payload})
		require.NoError(t, err)
		if ok {
			reading = r
		}
	}
	require.Equal(t, sample.Temperature, reading.Temperature)
	require.Equal(t, sample.Humidity, reading.Humidity)
}

func TestRejectsTopicFilters(t *testing.T) {
	_, err := simulate.New(&recorder{}, simulate.NewGenerator(0, nil),
		simulate.WithTopics(mqtt.Topics{Combined: "iot/+/data"}),
	)
	require.Error(t, err)
}

func TestPublishError(t *testing.T) {
	failure := errors.New("session closed")
	sim, err := simulate.New(&recorder{err: failure}, simulate.NewGenerator(0, nil))
	require.NoError(t, err)

	require.ErrorIs(t, sim.Run(context.Background()), failure)
	require.Zero(t, sim.Sent())
}

func TestRunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{after: func(n int) {
		if n == 9 {
			cancel()
		}
	}}
	sim, err := simulate.New(rec, simulate.NewGenerator(0, nil),
		simulate.WithInterval(time.Millisecond),
	)
	require.NoError(t, err)

	require.NoError(t, sim.Run(ctx))
	require.EqualValues(t, 3, sim.Sent())
}

func TestWithMochi(t *testing.T) {
	const port = 18851
	b, err := broker.New(broker.WithAddress(fmt.Sprintf("localhost:%d", port)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	connStr := fmt.Sprintf("HostName=localhost;TcpPort=%d", port)

	sub, err := mqtt.NewClientFromConnectionString(connStr)
	require.NoError(t, err)
	stream, err := sub.Connect(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	pubClient, err := mqtt.NewClientFromConnectionString(connStr)
	require.NoError(t, err)
	session, err := pubClient.Dial(context.Background())
	require.NoError(t, err)
	defer session.Close()

	sim, err := simulate.New(session, simulate.NewGenerator(0, nil))
	require.NoError(t, err)
	sample, err := sim.Publish(context.Background())
	require.NoError(t, err)

	norm := normalize.NewLive()
	var got []sensor.Channel
	for len(got) < 3 {
		select {
		case msg := <-stream.Messages():
			got = append(got, msg.Channel)
			r, ok, err := norm.Normalize(msg)
			require.NoError(t, err)
			if ok {
				require.Equal(t, sample.Temperature, r.Temperature)
				require.Equal(t, sample.Humidity, r.Humidity)
			}
		case <-time.After(5 * time.Second):
			require.FailNow(t, "simulated messages not received")
		}
	}
	require.ElementsMatch(t,
		[]sensor.Channel{sensor.Temperature, sensor.Humidity, sensor.Combined}, got)
}

func TestRunLimit(t *testing.T) {
	rec := &recorder{}
	sim, err := simulate.New(rec, simulate.NewGenerator(0, nil),
		simulate.WithInterval(time.Millisecond),
		simulate.WithLimit(4),
	)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	require.EqualValues(t, 4, sim.Sent())
	require.Len(t, rec.msgs, 12)
}
