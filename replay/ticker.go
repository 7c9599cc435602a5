// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/cartertinney/envmonitor/internal/background"
	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/sensor"
)

// DefaultInterval is the replay period used when none is given.
const DefaultInterval = 2 * time.Second

type (
	// Ticker is a transport that emits one tick message per interval. Paired
	// with a replay normalizer it plays a dataset back as a live stream.
	Ticker struct {
		interval time.Duration
		log      log.Logger
	}

	tickStream struct {
		*background.Background
		msgs chan sensor.Message
	}
)

// NewTicker creates a tick transport. A non-positive interval uses
// DefaultInterval.
func NewTicker(interval time.Duration, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{interval: interval, log: log.Wrap(logger)}
}

// Connect starts ticking. It never fails unless ctx is already done.
func (t *Ticker) Connect(ctx context.Context) (sensor.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	s := &tickStream{
		Background: background.New(),
		msgs:       make(chan sensor.Message),
	}
	go s.run(t.interval)

	t.log.Debug(ctx, "replay ticker started",
		slog.Duration("interval", t.interval))
	return s, nil
}

func (s *tickStream) run(interval time.Duration) {
	ticker := wallclock.Instance.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Done():
			return
		case now := <-ticker.C():
			select {
			case s.msgs <- sensor.Message{Channel: sensor.Tick, Received: now}:
			case <-s.Done():
				return
			}
		}
	}
}

func (s *tickStream) Messages() <-chan sensor.Message {
	return s.msgs
}

// Close stops the ticker.
func (s *tickStream) Close() error {
	s.Background.Close(nil)
	return nil
}
