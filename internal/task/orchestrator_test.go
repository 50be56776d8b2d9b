package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"court-watch-backend/config"
	"court-watch-backend/internal/availability"
	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/match"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/testutil"
)

type fakeSyncer struct {
	mu      sync.Mutex
	calls   []int64
	fail    map[int64]error
	block   chan struct{}
	started chan int64
}

func (f *fakeSyncer) SyncLocation(ctx context.Context, locationID int64, date, sport string, force bool) (availability.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, locationID)
	err := f.fail[locationID]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- locationID
	}
	if f.block != nil {
		<-f.block
	}
	return availability.Outcome{Live: true}, err
}

func (f *fakeSyncer) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type failingMatcher struct{}

func (failingMatcher) Match(context.Context, *match.Criteria) (*model.SearchResult, error) {
	return nil, errors.New("database is gone")
}

// progressStore records every accepted progress value.
type progressStore struct {
	store.Store
	mu     sync.Mutex
	values []int
}

func (p *progressStore) UpdateTaskProgress(ctx context.Context, id string, progress, processed int, step string) (bool, error) {
	ok, err := p.Store.UpdateTaskProgress(ctx, id, progress, processed, step)
	if ok {
		p.mu.Lock()
		p.values = append(p.values, progress)
		p.mu.Unlock()
	}
	return ok, err
}

func (p *progressStore) CompleteTask(ctx context.Context, id string, result *model.SearchResult, at time.Time) (bool, error) {
	ok, err := p.Store.CompleteTask(ctx, id, result, at)
	if ok {
		p.mu.Lock()
		p.values = append(p.values, 100)
		p.mu.Unlock()
	}
	return ok, err
}

func (p *progressStore) Values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

var taskCfg = config.TaskConfig{Workers: 1, QueueSize: 4, Retention: 24 * time.Hour}

type fixture struct {
	gdb  *gorm.DB
	st   *progressStore
	locs []*model.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	st := &progressStore{Store: store.NewGormStore(gdb)}

	f := &fixture{gdb: gdb, st: st}
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		loc := &model.Location{Provider: "fake", TenantRef: "t-" + name, Name: name, Slug: name}
		require.NoError(t, st.UpsertLocation(ctx, loc))
		f.locs = append(f.locs, loc)

		court := model.Court{LocationID: loc.ID, Name: "Court 1"}
		require.NoError(t, gdb.Create(&court).Error)
		require.NoError(t, gdb.Create(&model.Slot{CourtID: court.ID, Date: "2025-11-20", StartTime: "18:00", EndTime: "19:30", Duration: 90, Available: true}).Error)
	}
	return f
}

func (f *fixture) start(t *testing.T, syncer LocationSyncer, matcher ResultMatcher) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(f.st, syncer, matcher, taskCfg, "PADEL", zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(ctx)
	return o
}

func waitTerminal(t *testing.T, o *Orchestrator, userID, id string) *model.SearchTask {
	t.Helper()
	var task *model.SearchTask
	require.Eventually(t, func() bool {
		var err error
		task, err = o.GetStatus(context.Background(), userID, id)
		return err == nil && task.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func params() model.SearchParams {
	return model.SearchParams{Date: "2025-11-20", StartTime: "17:00", EndTime: "20:00"}
}

func TestOrchestrator_CompletesDespiteLocationFailure(t *testing.T) {
	f := newFixture(t)
	syncer := &fakeSyncer{fail: map[int64]error{f.locs[1].ID: errors.New("upstream timeout")}}
	o := f.start(t, syncer, match.New(f.st, nil, zaptest.NewLogger(t).Sugar()))

	submitted, err := o.Submit(context.Background(), "u1", params())
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, submitted.Status)
	assert.Equal(t, 90, submitted.Params.DurationMinutes)
	assert.Equal(t, "PADEL", submitted.Params.Sport)
	assert.Len(t, submitted.Params.LocationIDs, 3, "empty location list means all locations")

	task := waitTerminal(t, o, "u1", submitted.ID)
	assert.Equal(t, model.TaskCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, 3, task.ProcessedLocations)
	assert.Equal(t, 3, task.TotalLocations)
	assert.Equal(t, "Search completed", task.CurrentStep)
	require.NotNil(t, task.Result)
	assert.Equal(t, 3, task.Result.TotalSlots)
	assert.NotNil(t, task.StartedAt)
	assert.NotNil(t, task.CompletedAt)
	assert.Len(t, syncer.Calls(), 3)

	values := f.st.Values()
	assert.True(t, sort.IntsAreSorted(values), "progress went backwards: %v", values)
	assert.Equal(t, 5, values[0])
	assert.Equal(t, 100, values[len(values)-1])
}

func TestOrchestrator_CancelStopsBetweenLocations(t *testing.T) {
	f := newFixture(t)
	syncer := &fakeSyncer{block: make(chan struct{}), started: make(chan int64, 3)}
	o := f.start(t, syncer, match.New(f.st, nil, zaptest.NewLogger(t).Sugar()))
	ctx := context.Background()

	submitted, err := o.Submit(ctx, "u1", params())
	require.NoError(t, err)

	select {
	case <-syncer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first location was never searched")
	}

	assert.True(t, errs.Is(o.Cancel(ctx, "u2", submitted.ID), errs.ErrForbidden))
	require.NoError(t, o.Cancel(ctx, "u1", submitted.ID))
	close(syncer.block)

	task := waitTerminal(t, o, "u1", submitted.ID)
	assert.Equal(t, model.TaskCancelled, task.Status)
	assert.Equal(t, "Search cancelled", task.CurrentStep)

	// The worker must not touch the cancelled task again.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, syncer.Calls(), 1)
	again, err := o.GetStatus(ctx, "u1", submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, again.Status)

	assert.True(t, errs.Is(o.Cancel(ctx, "u1", submitted.ID), errs.ErrConflict))
}

func TestOrchestrator_FailsWhenResultsCannotBeCompiled(t *testing.T) {
	f := newFixture(t)
	o := f.start(t, &fakeSyncer{}, failingMatcher{})

	submitted, err := o.Submit(context.Background(), "u1", params())
	require.NoError(t, err)

	task := waitTerminal(t, o, "u1", submitted.ID)
	assert.Equal(t, model.TaskFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "database is gone")
	assert.Nil(t, task.Result)
}

func TestOrchestrator_GetStatusOwnership(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.st, &fakeSyncer{}, failingMatcher{}, taskCfg, "PADEL", zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	submitted, err := o.Submit(ctx, "u1", params())
	require.NoError(t, err)

	_, err = o.GetStatus(ctx, "u2", submitted.ID)
	assert.True(t, errs.Is(err, errs.ErrForbidden))

	_, err = o.GetStatus(ctx, "u1", "no-such-task")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestOrchestrator_SubmitRejectsInvalidParams(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.st, &fakeSyncer{}, failingMatcher{}, taskCfg, "PADEL", zaptest.NewLogger(t).Sugar())

	p := params()
	p.StartTime, p.EndTime = "21:00", "20:00"
	_, err := o.Submit(context.Background(), "u1", p)
	assert.True(t, errs.Is(err, errs.ErrInvalid))
}

func TestOrchestrator_QueueFull(t *testing.T) {
	f := newFixture(t)
	cfg := taskCfg
	cfg.QueueSize = 1
	o := NewOrchestrator(f.st, &fakeSyncer{}, failingMatcher{}, cfg, "PADEL", zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	_, err := o.Submit(ctx, "u1", params())
	require.NoError(t, err)
	_, err = o.Submit(ctx, "u1", params())
	assert.True(t, errs.Is(err, ErrQueueFull))

	var failed int64
	require.NoError(t, f.gdb.Model(&model.SearchTask{}).Where("status = ?", model.TaskFailed).Count(&failed).Error)
	assert.Equal(t, int64(1), failed)
}

func TestOrchestrator_StartFailsOrphanedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orphan := &model.SearchTask{ID: "orphan", UserID: "u1", Status: model.TaskRunning, Progress: 40}
	require.NoError(t, f.st.CreateTask(ctx, orphan))

	o := f.start(t, &fakeSyncer{}, failingMatcher{})

	task, err := o.GetStatus(ctx, "u1", "orphan")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailed, task.Status)
	assert.Equal(t, "search interrupted by a restart", task.ErrorMessage)
}

func TestOrchestrator_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := NewOrchestrator(f.st, &fakeSyncer{}, failingMatcher{}, taskCfg, "PADEL", zaptest.NewLogger(t).Sugar())

	old := &model.SearchTask{ID: "old", UserID: "u1", Status: model.TaskCompleted, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &model.SearchTask{ID: "fresh", UserID: "u1", Status: model.TaskCompleted}
	require.NoError(t, f.st.CreateTask(ctx, old))
	require.NoError(t, f.st.CreateTask(ctx, fresh))

	n, err := o.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.st.GetTask(ctx, "old")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
	_, err = f.st.GetTask(ctx, "fresh")
	assert.NoError(t, err)
}

func TestOrchestrator_WaitDrainsWorkersOnShutdown(t *testing.T) {
	f := newFixture(t)
	syncer := &fakeSyncer{block: make(chan struct{}), started: make(chan int64, 3)}
	o := NewOrchestrator(f.st, syncer, match.New(f.st, nil, zaptest.NewLogger(t).Sugar()), taskCfg, "PADEL", zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	submitted, err := o.Submit(ctx, "u1", params())
	require.NoError(t, err)
	select {
	case <-syncer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first location was never searched")
	}
	cancel()

	short, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	assert.ErrorIs(t, o.Wait(short), context.DeadlineExceeded, "a worker is still searching")

	close(syncer.block)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, o.Wait(waitCtx))

	task, err := o.GetStatus(context.Background(), "u1", submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailed, task.Status, "shutdown leaves the task terminal")
	assert.Len(t, syncer.Calls(), 1)
}
