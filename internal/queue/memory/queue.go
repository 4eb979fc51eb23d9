// Package memory provides the bounded in-memory job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/urlmeta/inventory/internal/metrics"
	"github.com/urlmeta/inventory/internal/queue"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan queue.Item
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch: make(chan queue.Item, capacity),
	}
}

// TryEnqueue pushes a job without blocking, returning queue.ErrFull when
// the buffer is at capacity.
func (q *Queue) TryEnqueue(item queue.Item) error {
	select {
	case q.ch <- item:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	default:
		return queue.ErrFull
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item queue.Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (queue.Item, error) {
	select {
	case <-ctx.Done():
		return queue.Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return queue.Item{}, queue.ErrClosed
		}
		metrics.SetQueueDepth(len(q.ch))
		return item, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
