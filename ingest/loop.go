// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package ingest drives inbound messages from a transport through the
// normalizer into the pipeline.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/metrics"
	"github.com/cartertinney/envmonitor/normalize"
	"github.com/cartertinney/envmonitor/pipeline"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// ConnState is the connectivity state of the loop.
	ConnState int32

	// Loop owns the connection to a transport and the single worker that
	// applies its messages. Reconnection only happens on request.
	Loop struct {
		transport sensor.Transport
		norm      normalize.Normalizer
		pipe      *pipeline.Pipeline

		timeout time.Duration
		metrics *metrics.Metrics
		log     log.Logger

		// mu serializes Start, Stop and Reconnect.
		mu    sync.Mutex
		run   *run
		state atomic.Int32

		// gate serializes message handling with Pause, Resume and Clear.
		gate sync.Mutex
	}

	run struct {
		stream sensor.Stream
		stop   chan struct{}
		done   chan struct{}
	}

	// Positioner is implemented by normalizers that track a dataset cursor.
	// They are not consulted while paused, so no row is consumed without
	// being applied.
	Positioner interface {
		Position() (cursor, total int)
	}
)

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// ErrHandshakeTimeout is the cause of a connection attempt that did not
// complete within the handshake timeout.
var ErrHandshakeTimeout = errors.New("connection handshake timed out")

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// New creates a disconnected ingestion loop.
func New(
	transport sensor.Transport,
	norm normalize.Normalizer,
	pipe *pipeline.Pipeline,
	opt ...Option,
) *Loop {
	var opts Options
	opts.Apply(opt)

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}

	l := &Loop{
		transport: transport,
		norm:      norm,
		pipe:      pipe,
		timeout:   opts.HandshakeTimeout,
		metrics:   opts.Metrics,
		log:       log.Wrap(opts.Logger),
	}
	l.metrics.ConnectionState(Disconnected.String())
	return l
}

// Start connects the transport and starts the worker. A failed attempt
// leaves the loop disconnected and is not retried. Starting a loop that is
// already connected does nothing.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.start(ctx)
}

// Stop cancels the worker and closes the link. It is idempotent and safe to
// call on a loop that never connected.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop()
}

// Reconnect stops any current link and starts a new one.
func (l *Loop) Reconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop()
	return l.start(ctx)
}

// State returns the current connectivity state.
func (l *Loop) State() ConnState {
	return ConnState(l.state.Load())
}

// Pause stops readings from being applied. Live messages keep being
// normalized; a replay cursor stays where it is until Resume.
func (l *Loop) Pause() {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.pipe.Pause()
	l.log.Info(context.Background(), "ingestion paused")
}

func (l *Loop) Resume() {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.pipe.Resume()
	l.log.Info(context.Background(), "ingestion resumed")
}

func (l *Loop) SetAlertsEnabled(enabled bool) {
	l.pipe.SetAlertsEnabled(enabled)
	l.log.Info(context.Background(), "alerts toggled",
		slog.Bool("enabled", enabled))
}

// Clear rewinds the normalizer if it supports it and empties the pipeline.
// No message is handled in between, so the first reading after a clear is
// the first dataset row.
func (l *Loop) Clear() {
	l.gate.Lock()
	defer l.gate.Unlock()
	if r, ok := l.norm.(normalize.Rewinder); ok {
		r.Rewind()
	}
	l.pipe.Clear()
}

// Position reports the replay cursor, if the normalizer has one.
func (l *Loop) Position() (cursor, total int, ok bool) {
	p, ok := l.norm.(Positioner)
	if !ok {
		return 0, 0, false
	}
	cursor, total = p.Position()
	return cursor, total, true
}

func (l *Loop) start(ctx context.Context) error {
	if l.run != nil {
		select {
		case <-l.run.done:
			// The link was lost; release it before connecting again.
			l.stop()
		default:
			return nil
		}
	}

	l.setState(Connecting)
	l.log.Info(ctx, "connecting", slog.Duration("timeout", l.timeout))

	hctx, cancel := wallclock.Instance.WithTimeoutCause(
		ctx,
		l.timeout,
		ErrHandshakeTimeout,
	)
	stream, err := l.transport.Connect(hctx)
	if err == nil && hctx.Err() != nil {
		// Connected just as the deadline passed; treat it as a failure.
		err = context.Cause(hctx)
		_ = stream.Close()
	}
	if err != nil && errors.Is(context.Cause(hctx), ErrHandshakeTimeout) &&
		!errors.Is(err, ErrHandshakeTimeout) {
		err = errors.Join(ErrHandshakeTimeout, err)
	}
	cancel()

	if err != nil {
		l.setState(Disconnected)
		l.log.Err(ctx, err)
		return err
	}

	r := &run{
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	l.run = r
	l.setState(Connected)
	l.log.Info(ctx, "connected")

	go l.work(r)
	return nil
}

func (l *Loop) stop() {
	r := l.run
	if r == nil {
		return
	}
	l.run = nil

	close(r.stop)
	if err := r.stream.Close(); err != nil {
		l.log.Warn(context.Background(), "error closing link",
			slog.String("error", err.Error()))
	}
	<-r.done
	l.setState(Disconnected)
}

// work is the single consumer of a link's messages.
func (l *Loop) work(r *run) {
	defer close(r.done)
	defer l.setState(Disconnected)

	ctx := context.Background()
	for {
		select {
		case <-r.stop:
			return

		case <-r.stream.Done():
			if err := r.stream.Err(); err != nil {
				l.log.Warn(ctx, "link lost", slog.String("error", err.Error()))
			} else {
				l.log.Info(ctx, "link closed")
			}
			return

		case msg, ok := <-r.stream.Messages():
			if !ok {
				return
			}
			l.handle(ctx, msg)
		}
	}
}

// handle applies one message end to end.
func (l *Loop) handle(ctx context.Context, msg sensor.Message) {
	l.metrics.Received(msg.Channel)

	l.gate.Lock()
	defer l.gate.Unlock()

	if _, ok := l.norm.(Positioner); ok && l.pipe.Paused() {
		l.metrics.Skipped()
		return
	}

	reading, ok, err := l.norm.Normalize(msg)
	if err != nil {
		l.metrics.Malformed(msg.Channel)
		attrs := []slog.Attr{slog.String("error", err.Error())}
		var malformed *normalize.MalformedError
		if errors.As(err, &malformed) {
			attrs = append(attrs, malformed.Attrs()...)
		}
		l.log.Debug(ctx, "discarded inbound message", attrs...)
		return
	}
	if !ok {
		return
	}

	l.pipe.Apply(reading)
}

func (l *Loop) setState(s ConnState) {
	if ConnState(l.state.Swap(int32(s))) != s {
		l.metrics.ConnectionState(s.String())
	}
}
