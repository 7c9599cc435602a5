// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package history provides a fixed-capacity FIFO ring buffer. It is not safe
// for concurrent use; callers serialize access.
package history

import "fmt"

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Buffer holds at most Cap items in insertion order, evicting the oldest.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New creates an empty buffer with the given capacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append adds an item to the tail, evicting the head item if the buffer is
// full. It reports whether an item was evicted.
func (b *Buffer[T]) Append(item T) (evicted bool) {
	c := len(b.items)
	b.items[(b.head+b.size)%c] = item
	if b.size == c {
		b.head = (b.head + 1) % c
		evicted = true
	} else {
		b.size++
	}

	if b.size > c {
		panic(fmt.Sprintf("history: length %d exceeds capacity %d", b.size, c))
	}
	return evicted
}

// Snapshot returns an independent copy of the contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	c := len(b.items)
	n := copy(out, b.items[b.head:min(b.head+b.size, c)])
	copy(out[n:], b.items[:b.size-n])
	return out
}

// Clear empties the buffer.
func (b *Buffer[T]) Clear() {
	clear(b.items)
	b.head, b.size = 0, 0
}

func (b *Buffer[T]) Len() int {
	return b.size
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
