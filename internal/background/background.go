// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package background

import (
	"context"
	"sync"
)

// Background is an abstraction of a long-running background process that
// contexts and consumers may need to tie to. It is closed exactly once; the
// error passed to the first Close is retained as the reason.
type Background struct {
	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

func New() *Background {
	return &Background{done: make(chan struct{})}
}

// With derives a context that is cancelled when the background closes.
func (b *Background) With(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-b.done:
			cause := b.Err()
			if cause == nil {
				cause = context.Canceled
			}
			cancel(cause)
		case <-c.Done():
		}
	}()
	return c, func() { cancel(context.Canceled) }
}

// Close stops the background with the given reason. Only the first call has
// any effect.
func (b *Background) Close(err error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		close(b.done)
	})
}

func (b *Background) Done() <-chan struct{} {
	return b.done
}

// Err returns the reason passed to Close, or nil if still running or closed
// without a reason.
func (b *Background) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
