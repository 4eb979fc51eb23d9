// Package queue defines the background collection job queue contract.
package queue

import (
	"context"
	"errors"
)

// Item describes one background collection job: the URL to collect,
// normalized by the worker before storage.
type Item struct {
	URL string
}

// ErrFull is returned by TryEnqueue when the queue has no capacity left.
var ErrFull = errors.New("background queue is full")

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("background queue is closed")

// Enqueuer is the producer half of the queue, used by the read path to
// schedule fire-and-forget collection.
type Enqueuer interface {
	// TryEnqueue schedules a job without blocking, returning ErrFull when
	// the queue is at capacity.
	TryEnqueue(item Item) error
}

// Queue is the full job queue contract consumed by the worker pool.
type Queue interface {
	Enqueuer

	// Dequeue pops the next job, respecting context cancellation.
	Dequeue(ctx context.Context) (Item, error)

	// Close shuts the queue down for process exit.
	Close()
}
