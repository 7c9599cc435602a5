// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package pipeline owns the history buffer and alert tracker of a running
// instance and applies classified readings to them atomically.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cartertinney/envmonitor/alert"
	"github.com/cartertinney/envmonitor/classify"
	"github.com/cartertinney/envmonitor/history"
	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/metrics"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Pipeline classifies readings and folds them into the buffer and
	// tracker. All mutation and every snapshot copy happens under one lock.
	Pipeline struct {
		mu      sync.Mutex
		buf     *history.Buffer[sensor.Derived]
		tracker *alert.Tracker

		scorer    *classify.Scorer
		metrics   *metrics.Metrics
		observers []Observer
		log       log.Logger
	}

	// View is a consistent copy of the pipeline contents.
	View struct {
		Readings []sensor.Derived
		State    alert.State
		Capacity int
	}
)

// New creates an empty pipeline.
func New(opt ...Option) *Pipeline {
	var opts Options
	opts.Apply(opt)

	return &Pipeline{
		buf:       history.New[sensor.Derived](opts.Capacity),
		tracker:   alert.NewTracker(),
		scorer:    opts.Scorer,
		metrics:   opts.Metrics,
		observers: opts.Observers,
		log:       log.Wrap(opts.Logger),
	}
}

// Apply classifies a reading and, unless paused, records it in the tracker
// and appends it to the buffer as one step. It returns the derived reading
// and whether it was applied.
func (p *Pipeline) Apply(r sensor.Reading) (sensor.Derived, bool) {
	// Classification is pure and runs outside the lock.
	d := classify.Derive(r, p.scorer)

	p.mu.Lock()
	accepted, alerted := p.tracker.Record(d.Anomaly, d.AnomalyReason, d.Timestamp)
	if accepted {
		d.AlertTriggered = alerted
		p.buf.Append(d)
	}
	length := p.buf.Len()
	p.mu.Unlock()

	if !accepted {
		p.metrics.Skipped()
		return d, false
	}

	p.metrics.Applied(d, length)
	if alerted {
		p.log.Warn(context.Background(), "anomaly detected",
			slog.Float64("temperature", d.Temperature),
			slog.Float64("humidity", d.Humidity),
			slog.String("reason", d.AnomalyReason),
		)
	}
	for _, o := range p.observers {
		o(d)
	}
	return d, true
}

// Pause stops readings from being applied until Resume.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Pause()
}

// Paused reports whether readings are currently being skipped.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.State().Paused
}

func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Resume()
}

func (p *Pipeline) SetAlertsEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.SetAlertsEnabled(enabled)
}

// Clear empties the buffer and resets the counters together. The pause and
// alert switches are kept.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.buf.Clear()
	p.tracker.Reset()
	p.mu.Unlock()

	p.metrics.Cleared()
	p.log.Info(context.Background(), "history cleared")
}

// Snapshot copies the buffer and tracker state under the lock.
func (p *Pipeline) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{
		Readings: p.buf.Snapshot(),
		State:    p.tracker.State(),
		Capacity: p.buf.Cap(),
	}
}

// State copies only the tracker state.
func (p *Pipeline) State() alert.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.State()
}
