// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package mqtt connects the monitor to an MQTT server using paho.golang and
// delivers the sensor topics as logical channel messages.
package mqtt

import (
	"context"
	"log/slog"

	"github.com/cartertinney/envmonitor/internal"
	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Client is a sensor.Transport over MQTT. Each Connect opens a fresh
	// network connection and MQTT session.
	Client struct {
		settings *ConnectionSettings
		provider ConnectionProvider
		topics   Topics
		qos      byte
		buffer   int
		log      logger
	}

	// ClientOption represents a single client option.
	ClientOption interface{ client(*ClientOptions) }

	// ClientOptions are the resolved client options.
	ClientOptions struct {
		Topics Topics
		QoS    byte

		// Buffer is the capacity of the inbound message channel.
		Buffer int

		// ConnectionProvider overrides the network connection described by
		// the settings.
		ConnectionProvider ConnectionProvider

		Logger *slog.Logger
	}

	// WithTopics overrides the subscribed topics.
	WithTopics Topics

	// WithQoS sets the subscription QoS.
	WithQoS byte

	// WithBuffer sets the capacity of the inbound message channel.
	WithBuffer int

	// WithConnectionProvider overrides the network connection.
	WithConnectionProvider ConnectionProvider

	withLogger struct{ *slog.Logger }
)

// NewClient creates an MQTT transport from connection settings.
func NewClient(
	settings *ConnectionSettings,
	opt ...ClientOption,
) (*Client, error) {
	if settings == nil {
		return nil, &InvalidArgumentError{message: "settings must not be nil"}
	}

	opts := ClientOptions{Topics: DefaultTopics, Buffer: 64}
	opts.Apply(opt)

	if opts.QoS > 2 {
		return nil, &InvalidArgumentError{message: "invalid QoS"}
	}

	provider := opts.ConnectionProvider
	if provider == nil {
		var err error
		if provider, err = settings.ConnectionProvider(); err != nil {
			return nil, err
		}
	}

	return &Client{
		settings: settings,
		provider: provider,
		topics:   opts.Topics,
		qos:      opts.QoS,
		buffer:   max(opts.Buffer, 0),
		log:      logger{log.Wrap(opts.Logger)},
	}, nil
}

// NewClientFromConnectionString is a shorthand for ParseConnectionString and
// NewClient.
func NewClientFromConnectionString(
	connStr string,
	opt ...ClientOption,
) (*Client, error) {
	settings, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	return NewClient(settings, opt...)
}

// Connect opens a session and subscribes to the sensor topics. It implements
// sensor.Transport.
func (c *Client) Connect(ctx context.Context) (sensor.Stream, error) {
	s, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Subscribe(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Topics returns the configured topics.
func (c *Client) Topics() Topics {
	return c.topics
}

// Apply resolves the provided list of options.
func (o *ClientOptions) Apply(opts []ClientOption, rest ...ClientOption) {
	for opt := range internal.Apply[ClientOption](opts, rest...) {
		opt.client(o)
	}
}

func (o *ClientOptions) client(opt *ClientOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithTopics) client(opt *ClientOptions) {
	opt.Topics = Topics(o)
}

func (o WithQoS) client(opt *ClientOptions) {
	opt.QoS = byte(o)
}

func (o WithBuffer) client(opt *ClientOptions) {
	opt.Buffer = int(o)
}

func (o WithConnectionProvider) client(opt *ClientOptions) {
	opt.ConnectionProvider = ConnectionProvider(o)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return withLogger{logger}
}

func (o withLogger) client(opt *ClientOptions) {
	opt.Logger = o.Logger
}
