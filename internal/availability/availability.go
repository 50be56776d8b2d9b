// Package availability runs the per-location pipeline shared by search tasks
// and the re-check scheduler: freshness check, provider fetch, reconcile.
package availability

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/freshness"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/reconcile"
	"court-watch-backend/internal/store"
)

// Outcome describes one SyncLocation call.
type Outcome struct {
	// Live is false when a recent fetch made the call a no-op.
	Live   bool
	Shared bool
	Counts reconcile.Counts
}

type Syncer struct {
	store     store.Store
	fresh     *freshness.Cache
	providers *provider.Registry
	rec       *reconcile.Reconciler
	group     singleflight.Group
	log       *zap.SugaredLogger
}

func NewSyncer(st store.Store, fresh *freshness.Cache, providers *provider.Registry, rec *reconcile.Reconciler, log *zap.SugaredLogger) *Syncer {
	return &Syncer{store: st, fresh: fresh, providers: providers, rec: rec, log: log}
}

// SyncLocation brings the canonical slots of one location and date up to
// date. force bypasses the freshness check. Concurrent calls for the same
// pair share a single upstream fetch.
func (s *Syncer) SyncLocation(ctx context.Context, locationID int64, date, sport string, force bool) (Outcome, error) {
	live, err := s.fresh.ShouldFetchLive(ctx, date, locationID, 0, force)
	if err != nil {
		s.log.Warnw("freshness lookup failed, fetching live", "location_id", locationID, "date", date, "error", err)
		live = true
	}
	if !live {
		return Outcome{}, nil
	}

	key := freshness.Key(date, locationID) + "/" + sport
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, locationID, date, sport)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Live: true, Shared: shared, Counts: v.(reconcile.Counts)}, nil
}

func (s *Syncer) fetch(ctx context.Context, locationID int64, date, sport string) (reconcile.Counts, error) {
	loc, err := s.store.GetLocation(ctx, locationID)
	if err != nil {
		return reconcile.Counts{}, err
	}
	p, err := s.providers.Get(loc.Provider)
	if err != nil {
		return reconcile.Counts{}, err
	}

	raw, err := p.FetchAvailability(ctx, loc.TenantRef, date, sport)
	if err != nil {
		return reconcile.Counts{}, errs.Wrapf(err, "fetch availability of %s on %s", loc.Name, date)
	}

	counts, err := s.rec.ReconcileDay(ctx, loc.ID, date, raw)
	if err != nil {
		return counts, err
	}
	if err := s.fresh.RecordFetch(ctx, date, loc.ID, counts.Added+counts.Updated); err != nil {
		s.log.Warnw("failed to record fetch", "location_id", loc.ID, "date", date, "error", err)
	}

	s.log.Infow("synced location", "location_id", loc.ID, "location", loc.Name, "date", date,
		"raw", len(raw), "added", counts.Added, "updated", counts.Updated, "skipped", counts.Skipped,
		"released", counts.Released)
	return counts, nil
}
