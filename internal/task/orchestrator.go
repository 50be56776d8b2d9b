// Package task runs on-demand multi-location searches in the background.
//
// A task moves pending -> running -> completed | failed | cancelled. Terminal
// states never change. Workers take task ids from a bounded queue; progress is
// persisted after every location so callers can poll it.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"court-watch-backend/config"
	"court-watch-backend/internal/availability"
	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/match"
	"court-watch-backend/internal/metrics"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
)

const (
	progressStarted   = 5
	progressFetched   = 85
	progressCompleted = 100
)

// ErrQueueFull is returned by Submit when no worker can take the task.
var ErrQueueFull = errs.New("search queue is full")

// LocationSyncer refreshes the canonical slots of one location and date.
type LocationSyncer interface {
	SyncLocation(ctx context.Context, locationID int64, date, sport string, force bool) (availability.Outcome, error)
}

// ResultMatcher produces the grouped result of a search.
type ResultMatcher interface {
	Match(ctx context.Context, c *match.Criteria) (*model.SearchResult, error)
}

type Orchestrator struct {
	store   store.Store
	syncer  LocationSyncer
	matcher ResultMatcher
	cfg     config.TaskConfig
	sport   string
	queue   chan string
	now     func() time.Time
	log     *zap.SugaredLogger
	wg      sync.WaitGroup
}

func NewOrchestrator(st store.Store, syncer LocationSyncer, matcher ResultMatcher, cfg config.TaskConfig, sport string, log *zap.SugaredLogger) *Orchestrator {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Orchestrator{
		store:   st,
		syncer:  syncer,
		matcher: matcher,
		cfg:     cfg,
		sport:   sport,
		queue:   make(chan string, size),
		now:     time.Now,
		log:     log,
	}
}

// Start fails tasks orphaned by a previous process, then launches the
// workers and the retention sweep. Everything stops when ctx is done.
func (o *Orchestrator) Start(ctx context.Context) {
	if n, err := o.store.FailOrphanedTasks(ctx, "search interrupted by a restart", o.now()); err != nil {
		o.log.Errorw("failed to fail orphaned tasks", "error", err)
	} else if n > 0 {
		o.log.Warnw("failed orphaned tasks", "count", n)
	}

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go func(id int) {
			defer o.wg.Done()
			o.worker(ctx, id)
		}(i)
	}
	if o.cfg.SweepInterval > 0 && o.cfg.Retention > 0 {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.janitor(ctx)
		}()
	}
}

// Wait blocks until every goroutine launched by Start has returned, or until
// ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates params, stores a pending task and queues it. An empty
// location list means every known location.
func (o *Orchestrator) Submit(ctx context.Context, userID string, params model.SearchParams) (*model.SearchTask, error) {
	c := match.FromParams(params)
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	params.Date, params.StartTime, params.EndTime = c.Date, c.StartTime, c.EndTime
	params.DurationMinutes, params.CourtType, params.CourtConfig = c.DurationMinutes, c.CourtType, c.CourtConfig
	if params.Sport == "" {
		params.Sport = o.sport
	}
	if len(params.LocationIDs) == 0 {
		ids, err := o.store.LocationIDs(ctx)
		if err != nil {
			return nil, err
		}
		params.LocationIDs = ids
	}

	task := &model.SearchTask{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      model.TaskPending,
		CurrentStep: "Task created",
		Params:      params,
	}
	if err := o.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(model.TaskPending)).Inc()

	select {
	case o.queue <- task.ID:
	default:
		o.fail(ctx, task.ID, "search queue is full")
		return nil, ErrQueueFull
	}

	o.log.Infow("search task submitted", "task_id", task.ID, "user_id", userID, "locations", len(params.LocationIDs))
	return task, nil
}

// GetStatus returns the task if it belongs to userID.
func (o *Orchestrator) GetStatus(ctx context.Context, userID, id string) (*model.SearchTask, error) {
	task, err := o.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, errs.Forbiddenf("task %s belongs to another user", id)
	}
	return task, nil
}

// Cancel stops a pending or running task. The worker notices between
// locations. Cancelling a terminal task is ErrConflict.
func (o *Orchestrator) Cancel(ctx context.Context, userID, id string) error {
	task, err := o.GetStatus(ctx, userID, id)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return errs.Conflictf("task %s is already %s", id, task.Status)
	}
	ok, err := o.store.CancelTask(ctx, id, o.now())
	if err != nil {
		return err
	}
	if !ok {
		return errs.Conflictf("task %s finished before it could be cancelled", id)
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(model.TaskCancelled)).Inc()
	o.log.Infow("search task cancelled", "task_id", id, "user_id", userID)
	return nil
}

// Sweep deletes tasks older than the retention period.
func (o *Orchestrator) Sweep(ctx context.Context) (int64, error) {
	n, err := o.store.DeleteTasksBefore(ctx, o.now().Add(-o.cfg.Retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.log.Infow("deleted old search tasks", "count", n)
	}
	return n, nil
}

func (o *Orchestrator) worker(ctx context.Context, id int) {
	o.log.Debugw("search worker started", "worker", id)
	for {
		select {
		case taskID := <-o.queue:
			o.run(ctx, taskID)
		case <-ctx.Done():
			o.log.Debugw("search worker shutting down", "worker", id)
			return
		}
	}
}

func (o *Orchestrator) janitor(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := o.Sweep(ctx); err != nil {
				o.log.Errorw("task sweep failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// run executes one task. Failures of single locations are logged and
// skipped; only failures to read or write the task itself fail it.
func (o *Orchestrator) run(ctx context.Context, id string) {
	task, err := o.store.GetTask(ctx, id)
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("cannot load task: %v", err))
		return
	}
	params := task.Params
	total := len(params.LocationIDs)

	ok, err := o.store.StartTask(ctx, id, total, "Initializing search", o.now())
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("cannot start task: %v", err))
		return
	}
	if !ok {
		o.log.Infow("search task no longer pending, skipping", "task_id", id)
		return
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(model.TaskRunning)).Inc()

	if !o.progress(ctx, id, progressStarted, 0, fmt.Sprintf("Found %d locations to search", total)) {
		return
	}

	for i, locationID := range params.LocationIDs {
		if ctx.Err() != nil {
			o.fail(ctx, id, "search interrupted by shutdown")
			return
		}
		if o.cancelled(ctx, id) {
			o.log.Infow("search task cancelled, stopping", "task_id", id, "processed", i, "total", total)
			return
		}

		out, err := o.syncer.SyncLocation(ctx, locationID, params.Date, params.Sport, params.ForceLive)
		if err != nil {
			o.log.Warnw("location search failed, skipping", "task_id", id, "location_id", locationID, "error", err)
		} else {
			o.log.Debugw("location searched", "task_id", id, "location_id", locationID, "live", out.Live,
				"added", out.Counts.Added, "updated", out.Counts.Updated)
		}

		processed := i + 1
		step := fmt.Sprintf("Searched %d of %d locations", processed, total)
		if !o.progress(ctx, id, progressStarted+processed*(progressFetched-progressStarted)/total, processed, step) {
			return
		}
	}

	if !o.progress(ctx, id, progressFetched, total, "Compiling search results...") {
		return
	}

	c := match.FromParams(params)
	result, err := o.matcher.Match(ctx, &c)
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("cannot compile results: %v", err))
		return
	}

	ok, err = o.store.CompleteTask(ctx, id, result, o.now())
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("cannot store results: %v", err))
		return
	}
	if ok {
		metrics.TaskTransitionsTotal.WithLabelValues(string(model.TaskCompleted)).Inc()
		o.log.Infow("search task completed", "task_id", id, "slots", result.TotalSlots)
	}
}

// progress reports whether the task is still running.
func (o *Orchestrator) progress(ctx context.Context, id string, pct, processed int, step string) bool {
	ok, err := o.store.UpdateTaskProgress(ctx, id, pct, processed, step)
	if err != nil {
		o.fail(ctx, id, fmt.Sprintf("cannot update progress: %v", err))
		return false
	}
	return ok
}

func (o *Orchestrator) cancelled(ctx context.Context, id string) bool {
	task, err := o.store.GetTask(ctx, id)
	if err != nil {
		o.log.Warnw("cannot check task status", "task_id", id, "error", err)
		return false
	}
	return task.Status == model.TaskCancelled
}

// fail runs detached from ctx so shutdown still leaves the task terminal.
func (o *Orchestrator) fail(ctx context.Context, id, message string) {
	ok, err := o.store.FailTask(context.WithoutCancel(ctx), id, message, o.now())
	if err != nil {
		o.log.Errorw("failed to mark task failed", "task_id", id, "error", err)
		return
	}
	if ok {
		metrics.TaskTransitionsTotal.WithLabelValues(string(model.TaskFailed)).Inc()
		o.log.Warnw("search task failed", "task_id", id, "reason", message)
	}
}
