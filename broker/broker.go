// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package broker runs an in-process MQTT broker for local development and
// tests.
package broker

import (
	"context"
	"io"
	"log/slog"

	"github.com/cartertinney/envmonitor/internal"
	"github.com/cartertinney/envmonitor/internal/log"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// DefaultAddress is the listen address used when none is configured.
const DefaultAddress = "localhost:1883"

type (
	// Broker wraps a mochi MQTT server with a single TCP listener.
	Broker struct {
		server  *mochi.Server
		address string
		log     log.Logger
	}

	// Option represents a single broker option.
	Option interface{ broker(*Options) }

	// Options are the resolved broker options.
	Options struct {
		Address  string
		Username string
		Password string
		Logger   *slog.Logger
	}

	// WithAddress sets the TCP listen address.
	WithAddress string

	// WithCredentials restricts the broker to a single username and
	// password. Without it every client is allowed.
	WithCredentials struct{ Username, Password string }

	withLogger struct{ *slog.Logger }
)

// New creates and starts a broker. Serving happens in the background.
func New(opt ...Option) (*Broker, error) {
	opts := Options{Address: DefaultAddress}
	opts.Apply(opt)

	logger := opts.Logger
	if logger == nil {
		// mochi logs to stdout by default.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       logger,
	})

	var err error
	if opts.Username != "" {
		err = server.AddHook(new(auth.Hook), &auth.Options{
			Ledger: &auth.Ledger{
				// Auth disallows all by default.
				Auth: auth.AuthRules{{
					Username: auth.RString(opts.Username),
					Password: auth.RString(opts.Password),
					Allow:    true,
				}},
			},
		})
	} else {
		err = server.AddHook(new(auth.AllowHook), nil)
	}
	if err != nil {
		return nil, err
	}

	if err := server.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "envmonitor",
		Type:    "tcp",
		Address: opts.Address,
	})); err != nil {
		return nil, err
	}

	if err := server.Serve(); err != nil {
		return nil, err
	}

	b := &Broker{server: server, address: opts.Address, log: log.Wrap(opts.Logger)}
	b.log.Info(context.Background(), "embedded broker listening",
		slog.String("address", opts.Address))
	return b, nil
}

// Address returns the listen address.
func (b *Broker) Address() string {
	return b.address
}

// Publish injects a message as if it had been sent by a client.
func (b *Broker) Publish(topic string, payload []byte, retain bool) error {
	return b.server.Publish(topic, payload, retain, 0)
}

// Close stops the broker and disconnects its clients.
func (b *Broker) Close() error {
	return b.server.Close()
}

// Apply resolves the provided list of options.
func (o *Options) Apply(opts []Option, rest ...Option) {
	for opt := range internal.Apply[Option](opts, rest...) {
		opt.broker(o)
	}
}

func (o *Options) broker(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithAddress) broker(opt *Options) {
	if o != "" {
		opt.Address = string(o)
	}
}

func (o WithCredentials) broker(opt *Options) {
	opt.Username = o.Username
	opt.Password = o.Password
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return withLogger{logger}
}

func (o withLogger) broker(opt *Options) {
	opt.Logger = o.Logger
}
