// Package worker implements the background collection loop. Jobs are
// fire-and-forget: failures are logged and counted, never retried or
// surfaced to any client.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/urlmeta/inventory/internal/metrics"
	"github.com/urlmeta/inventory/internal/queue"
	"github.com/urlmeta/inventory/internal/service"
)

// Collector runs the full fetch-and-upsert sequence for one URL.
type Collector interface {
	Collect(ctx context.Context, rawURL string) (service.CollectResult, error)
}

// Worker consumes queue items and executes background collections.
type Worker struct {
	queue     queue.Queue
	collector Collector
	logger    *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, collector Collector, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     q,
		collector: collector,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed. The worker's context, not the originating request's,
// bounds each job, so background jobs outlive the requests that spawned
// them.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	w.logger.Info("background collection started", zap.String("url", item.URL))

	if _, err := w.collector.Collect(ctx, item.URL); err != nil {
		metrics.ObserveBackgroundJob("failed")
		w.logger.Error("background collection failed",
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return
	}

	metrics.ObserveBackgroundJob("completed")
	w.logger.Info("background collection complete", zap.String("url", item.URL))
}
