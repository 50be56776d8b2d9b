// Package reconcile turns upstream provider data into canonical locations,
// courts and slots.
//
// Ingest is two-phase. Reconcile stores slots under whatever court identity
// the availability feed offers, creating placeholder courts for unknown
// resource ids. RefreshLocation later applies club metadata, renaming
// placeholders or merging them into the properly named court.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/metrics"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/parse"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/store"
)

// Counts reports how a batch of raw slots landed.
type Counts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	// Released counts stored slots missing from a full day listing.
	Released int `json:"released"`
}

type Reconciler struct {
	store store.Store
	log   *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{store: st, log: log}
}

// Reconcile upserts raw slots for a location by natural key. Slot times are
// converted from UTC to the location's time zone. Slots without a resource,
// with a non-positive duration or with unparseable times are skipped.
func (r *Reconciler) Reconcile(ctx context.Context, locationID int64, raw []provider.RawSlot) (Counts, error) {
	counts, _, err := r.reconcile(ctx, locationID, raw)
	return counts, err
}

// ReconcileDay is Reconcile for raw holding everything upstream lists for
// date. Stored slots of that date it no longer lists are marked unavailable.
func (r *Reconciler) ReconcileDay(ctx context.Context, locationID int64, date string, raw []provider.RawSlot) (Counts, error) {
	counts, written, err := r.reconcile(ctx, locationID, raw)
	if err != nil {
		return counts, err
	}
	released, err := r.store.ReleaseMissingSlots(ctx, locationID, date, written)
	if err != nil {
		return counts, err
	}
	counts.Released = released
	metrics.SlotsReconciledTotal.WithLabelValues("released").Add(float64(released))
	if released > 0 {
		r.log.Debugw("released vanished slots", "location_id", locationID, "date", date, "released", released)
	}
	return counts, nil
}

func (r *Reconciler) reconcile(ctx context.Context, locationID int64, raw []provider.RawSlot) (Counts, []model.Slot, error) {
	var counts Counts
	loc, err := r.store.GetLocation(ctx, locationID)
	if err != nil {
		return counts, nil, err
	}
	tz := loc.TZ()

	type pending struct {
		ref  string
		slot model.Slot
	}
	var batch []pending
	var seeds []store.CourtSeed
	for _, rs := range raw {
		if rs.ResourceRef == "" {
			counts.Skipped++
			continue
		}
		lt, err := parse.LocalSlot(rs.Date, rs.StartTime, rs.Duration, tz)
		if err != nil {
			r.log.Debugw("skipping raw slot", "location_id", locationID, "resource", rs.ResourceRef, "error", err)
			counts.Skipped++
			continue
		}
		seeds = append(seeds, store.CourtSeed{ResourceRef: rs.ResourceRef})
		batch = append(batch, pending{ref: rs.ResourceRef, slot: model.Slot{
			Date:      lt.Date,
			StartTime: lt.Start,
			EndTime:   lt.End,
			Duration:  rs.Duration,
			Price:     rs.Price,
			Available: true,
		}})
	}
	defer func() {
		metrics.SlotsReconciledTotal.WithLabelValues("added").Add(float64(counts.Added))
		metrics.SlotsReconciledTotal.WithLabelValues("updated").Add(float64(counts.Updated))
		metrics.SlotsReconciledTotal.WithLabelValues("skipped").Add(float64(counts.Skipped))
	}()
	if len(batch) == 0 {
		return counts, nil, nil
	}

	courtIDs, err := r.store.EnsureCourts(ctx, locationID, seeds)
	if err != nil {
		return counts, nil, err
	}

	slots := make([]model.Slot, 0, len(batch))
	for _, p := range batch {
		id, ok := courtIDs[p.ref]
		if !ok {
			counts.Skipped++
			continue
		}
		p.slot.CourtID = id
		slots = append(slots, p.slot)
	}

	written, err := r.store.UpsertSlots(ctx, slots)
	if err != nil {
		return counts, nil, err
	}
	counts.Added = written.Added
	counts.Updated = written.Updated

	r.log.Debugw("reconciled slots", "location_id", locationID,
		"added", counts.Added, "updated", counts.Updated, "skipped", counts.Skipped)
	return counts, slots, nil
}

// RefreshLocation resolves slug on p, upserts the location and promotes its
// courts with the club's metadata. An unknown slug is ErrNotFound.
func (r *Reconciler) RefreshLocation(ctx context.Context, p provider.Provider, slug string) (*model.Location, store.PromoteStats, error) {
	var stats store.PromoteStats

	info, err := p.FetchClubInfo(ctx, slug)
	if err != nil {
		return nil, stats, errs.Wrapf(err, "fetch club %s from %s", slug, p.Name())
	}
	if info == nil {
		return nil, stats, errs.NotFoundf("club %q not found on %s", slug, p.Name())
	}

	loc := &model.Location{
		Provider:     p.Name(),
		TenantRef:    info.TenantRef,
		Name:         info.Name,
		Slug:         slug,
		Address:      info.Address,
		Timezone:     info.Timezone,
		SportIDs:     info.SportIDs,
		OpeningHours: info.OpeningHours,
	}
	if err := r.store.UpsertLocation(ctx, loc); err != nil {
		return nil, stats, err
	}

	courts := make([]store.CourtInfo, 0, len(info.Courts))
	for _, c := range info.Courts {
		indoor, doubles := parse.Features(c.Features)
		courts = append(courts, store.CourtInfo{
			Name:        c.Name,
			ResourceRef: c.ResourceRef,
			Sport:       c.Sport,
			Indoor:      indoor,
			Doubles:     doubles,
		})
	}

	stats, err = r.store.PromoteCourts(ctx, loc.ID, courts)
	if err != nil {
		return nil, stats, err
	}
	for action, n := range map[string]int{
		"created":              stats.Created,
		"updated":              stats.Updated,
		"renamed":              stats.Renamed,
		"merged":               stats.Merged,
		"placeholders_deleted": stats.PlaceholdersDeleted,
	} {
		metrics.CourtsPromotedTotal.WithLabelValues(action).Add(float64(n))
	}

	r.log.Infow("refreshed location", "location_id", loc.ID, "slug", slug, "provider", p.Name(),
		"courts", len(courts), "merged", stats.Merged, "renamed", stats.Renamed, "created", stats.Created)
	return loc, stats, nil
}
