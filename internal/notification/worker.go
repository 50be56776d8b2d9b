package notification

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"court-watch-backend/internal/metrics"
)

// SentMarker records delivered alerts in the dedup ledger.
type SentMarker interface {
	MarkSent(ctx context.Context, recordIDs []int64) error
}

// WorkerPool manages a pool of workers for sending alerts.
type WorkerPool struct {
	size     int
	jobs     chan Alert
	notifier Notifier
	marker   SentMarker
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. marker may be nil.
func NewWorkerPool(size int, notifier Notifier, marker SentMarker, log *zap.SugaredLogger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Alert, size*8),
		notifier: notifier,
		marker:   marker,
		log:      log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go func(id int) {
			defer wp.wg.Done()
			wp.worker(ctx, id)
		}(i)
	}
}

// Wait blocks until the workers have returned or ctx is done. An alert being
// delivered when the pool stops is finished first.
func (wp *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debugw("notification worker started", "worker", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.deliver(ctx, alert)
		case <-ctx.Done():
			wp.log.Debugw("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues an alert, blocking while the queue is full.
func (wp *WorkerPool) Dispatch(ctx context.Context, alert Alert) error {
	select {
	case wp.jobs <- alert:
		metrics.AlertsTotal.WithLabelValues("dispatched").Inc()
		return nil
	case <-ctx.Done():
		metrics.AlertsTotal.WithLabelValues("dropped").Inc()
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, alert Alert) {
	if err := wp.notifier.Notify(ctx, alert); err != nil {
		if errors.Is(err, ErrNoSubscribers) {
			metrics.AlertsTotal.WithLabelValues("dropped").Inc()
			wp.log.Debugw("no subscribers for alert", "saved_search_id", alert.SavedSearchID, "user_id", alert.UserID)
			return
		}
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		wp.log.Warnw("failed to deliver alert", "saved_search_id", alert.SavedSearchID, "user_id", alert.UserID, "error", err)
		return
	}
	metrics.AlertsTotal.WithLabelValues("delivered").Inc()

	if wp.marker != nil && len(alert.RecordIDs) > 0 {
		if err := wp.marker.MarkSent(ctx, alert.RecordIDs); err != nil {
			wp.log.Warnw("failed to mark alert sent", "saved_search_id", alert.SavedSearchID, "error", err)
		}
	}
}
