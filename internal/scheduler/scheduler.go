// Package scheduler re-checks every active saved search on a fixed interval
// and hands new matches to the alert pipeline.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"court-watch-backend/config"
	"court-watch-backend/internal/availability"
	"court-watch-backend/internal/ledger"
	"court-watch-backend/internal/match"
	"court-watch-backend/internal/metrics"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/notification"
	"court-watch-backend/internal/parse"
	"court-watch-backend/internal/store"
)

// LocationSyncer refreshes the canonical slots of one location and date.
type LocationSyncer interface {
	SyncLocation(ctx context.Context, locationID int64, date, sport string, force bool) (availability.Outcome, error)
}

// SlotFinder reads matching slots and builds booking links for them.
type SlotFinder interface {
	Find(ctx context.Context, c *match.Criteria) ([]model.SlotMatch, error)
	BookingURL(s model.SlotMatch) string
}

// Dispatcher accepts alerts for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert notification.Alert) error
}

// TickReport summarizes one tick.
type TickReport struct {
	Skipped     bool
	Deactivated int64
	Searches    int
	Failed      int
	Alerts      int
}

type syncKey struct {
	date       string
	locationID int64
}

// Service drives the re-check loop.
type Service struct {
	cfg        config.SchedulerConfig
	sport      string
	maxSlots   int
	store      store.Store
	syncer     LocationSyncer
	finder     SlotFinder
	ledger     *ledger.Ledger
	dispatcher Dispatcher
	tz         *time.Location
	now        func() time.Time
	running    atomic.Bool
	log        *zap.SugaredLogger
}

func NewService(cfg config.SchedulerConfig, sport string, maxSlots int, st store.Store, syncer LocationSyncer,
	finder SlotFinder, l *ledger.Ledger, dispatcher Dispatcher, log *zap.SugaredLogger) *Service {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnw("invalid scheduler timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		tz = time.UTC
	}
	return &Service{
		cfg:        cfg,
		sport:      sport,
		maxSlots:   maxSlots,
		store:      st,
		syncer:     syncer,
		finder:     finder,
		ledger:     l,
		dispatcher: dispatcher,
		tz:         tz,
		now:        time.Now,
		log:        log,
	}
}

// Run ticks once immediately and then every cfg.Interval until ctx is done.
// A tick that comes due while the previous one still runs is skipped. Run
// returns only after the tick in flight has finished.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("scheduler is disabled, not starting")
		return
	}
	s.log.Infow("starting scheduler", "interval", s.cfg.Interval)

	var wg sync.WaitGroup
	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Tick(ctx)
		}()
	}
	tick()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutting down, waiting for the running tick")
			wg.Wait()
			return
		case <-ticker.C:
			tick()
		}
	}
}

// Tick re-checks every active saved search dated today or later. Each search
// is isolated: its failure is logged and counted, and the tick moves on.
func (s *Service) Tick(ctx context.Context) TickReport {
	var report TickReport
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerTicksTotal.WithLabelValues("skipped").Inc()
		s.log.Warn("previous re-check tick still running, skipping")
		report.Skipped = true
		return report
	}
	defer s.running.Store(false)

	started := s.now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(started).Seconds())
	}()
	metrics.SchedulerTicksTotal.WithLabelValues("run").Inc()

	today := started.In(s.tz).Format(parse.DateLayout)
	n, err := s.store.DeactivateSavedSearchesBefore(ctx, today)
	if err != nil {
		s.log.Errorw("failed to deactivate past searches", "error", err)
	}
	report.Deactivated = n

	searches, err := s.store.ActiveSavedSearches(ctx, today)
	if err != nil {
		s.log.Errorw("failed to load active searches", "error", err)
		return report
	}

	synced := make(map[syncKey]bool)
	for i := range searches {
		if ctx.Err() != nil {
			break
		}
		search := &searches[i]
		report.Searches++
		alerted, err := s.checkSearch(ctx, search, synced)
		if err != nil {
			report.Failed++
			s.log.Warnw("re-check of saved search failed", "saved_search_id", search.ID, "user_id", search.UserID, "error", err)
			continue
		}
		if alerted {
			report.Alerts++
		}
	}

	s.log.Infow("re-check tick finished", "searches", report.Searches, "failed", report.Failed,
		"alerts", report.Alerts, "deactivated", report.Deactivated, "took", time.Since(started))
	return report
}

// checkSearch forces a live fetch for each location of the search (once per
// tick and location), then surfaces slots the search has not seen before.
func (s *Service) checkSearch(ctx context.Context, search *model.SavedSearch, synced map[syncKey]bool) (bool, error) {
	c := match.FromSavedSearch(search)
	if err := c.Normalize(); err != nil {
		return false, err
	}

	if len(c.LocationIDs) == 0 {
		s.log.Warnw("saved search watches no locations, skipping", "saved_search_id", search.ID)
		return false, nil
	}
	for _, id := range c.LocationIDs {
		key := syncKey{date: c.Date, locationID: id}
		if synced[key] {
			continue
		}
		synced[key] = true
		if _, err := s.syncer.SyncLocation(ctx, id, c.Date, s.sport, true); err != nil {
			s.log.Warnw("location fetch failed during re-check", "saved_search_id", search.ID, "location_id", id, "error", err)
		}
	}

	rows, err := s.finder.Find(ctx, &c)
	if err != nil {
		return false, err
	}
	fresh, err := s.ledger.NewMatches(ctx, search.ID, rows)
	if err != nil {
		return false, err
	}
	if err := s.store.TouchSavedSearch(ctx, search.ID, s.now()); err != nil {
		return false, err
	}
	if len(fresh) == 0 {
		return false, nil
	}

	recordIDs, err := s.ledger.RecordAll(ctx, search.ID, fresh)
	if err != nil {
		return false, err
	}
	alert := notification.NewAlert(search, fresh, s.maxSlots, s.finder.BookingURL)
	alert.RecordIDs = recordIDs
	if err := s.dispatcher.Dispatch(ctx, alert); err != nil {
		return false, err
	}
	s.log.Infow("new slots for saved search", "saved_search_id", search.ID, "user_id", search.UserID, "count", len(fresh))
	return true, nil
}
