// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package ingest

import (
	"log/slog"
	"time"

	"github.com/cartertinney/envmonitor/internal"
	"github.com/cartertinney/envmonitor/metrics"
)

type (
	// Option represents a single ingestion loop option.
	Option interface{ loop(*Options) }

	// Options are the resolved ingestion loop options.
	Options struct {
		HandshakeTimeout time.Duration
		Metrics          *metrics.Metrics
		Logger           *slog.Logger
	}

	// WithHandshakeTimeout bounds each connection attempt.
	WithHandshakeTimeout time.Duration

	// WithMetrics records ingestion metrics.
	WithMetrics struct{ *metrics.Metrics }

	withLogger struct{ *slog.Logger }
)

// DefaultHandshakeTimeout is used when no handshake timeout is configured.
const DefaultHandshakeTimeout = 10 * time.Second

// Apply resolves the provided list of options.
func (o *Options) Apply(opts []Option, rest ...Option) {
	for opt := range internal.Apply[Option](opts, rest...) {
		opt.loop(o)
	}
}

func (o *Options) loop(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithHandshakeTimeout) loop(opt *Options) {
	opt.HandshakeTimeout = time.Duration(o)
}

func (o WithMetrics) loop(opt *Options) {
	opt.Metrics = o.Metrics
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return withLogger{logger}
}

func (o withLogger) loop(opt *Options) {
	opt.Logger = o.Logger
}
