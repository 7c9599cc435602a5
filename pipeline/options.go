// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package pipeline

import (
	"log/slog"

	"github.com/cartertinney/envmonitor/classify"
	"github.com/cartertinney/envmonitor/internal"
	"github.com/cartertinney/envmonitor/metrics"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Option represents a single pipeline option.
	Option interface{ pipeline(*Options) }

	// Options are the resolved pipeline options.
	Options struct {
		Capacity  int
		Scorer    *classify.Scorer
		Metrics   *metrics.Metrics
		Observers []Observer
		Logger    *slog.Logger
	}

	// Observer is notified of every applied reading, after the pipeline lock
	// has been released. Observers must not block.
	Observer func(sensor.Derived)

	// WithCapacity sets the history buffer capacity.
	WithCapacity int

	// WithScorer overrides the confidence scorer.
	WithScorer struct{ *classify.Scorer }

	// WithMetrics records pipeline metrics.
	WithMetrics struct{ *metrics.Metrics }

	// WithObserver adds an observer of applied readings.
	WithObserver Observer

	withLogger struct{ *slog.Logger }
)

// Apply resolves the provided list of options.
func (o *Options) Apply(opts []Option, rest ...Option) {
	for opt := range internal.Apply[Option](opts, rest...) {
		opt.pipeline(o)
	}
}

func (o *Options) pipeline(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithCapacity) pipeline(opt *Options) {
	opt.Capacity = int(o)
}

func (o WithScorer) pipeline(opt *Options) {
	opt.Scorer = o.Scorer
}

func (o WithMetrics) pipeline(opt *Options) {
	opt.Metrics = o.Metrics
}

func (o WithObserver) pipeline(opt *Options) {
	if o != nil {
		opt.Observers = append(opt.Observers, Observer(o))
	}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return withLogger{logger}
}

func (o withLogger) pipeline(opt *Options) {
	opt.Logger = o.Logger
}
