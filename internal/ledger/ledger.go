// Package ledger tracks which (saved search, slot) pairs have already been
// surfaced, so a standing watch reports each slot at most once.
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
)

type Ledger struct {
	store store.Store
	now   func() time.Time
	log   *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Ledger {
	return &Ledger{store: st, now: time.Now, log: log}
}

// NewMatches returns the matches not yet recorded for the search, in the
// order given. It does not record anything.
func (l *Ledger) NewMatches(ctx context.Context, searchID int64, matches []model.SlotMatch) ([]model.SlotMatch, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.SlotID
	}
	seen, err := l.store.NotifiedSlotIDs(ctx, searchID, ids)
	if err != nil {
		return nil, err
	}

	var fresh []model.SlotMatch
	for _, m := range matches {
		if seen[m.SlotID] {
			continue
		}
		seen[m.SlotID] = true
		fresh = append(fresh, m)
	}
	return fresh, nil
}

// RecordNotified records that the slot was surfaced for the search. It is
// idempotent; the stored record is returned either way.
func (l *Ledger) RecordNotified(ctx context.Context, searchID, courtID, slotID int64) (*model.NotificationRecord, bool, error) {
	rec := &model.NotificationRecord{SavedSearchID: searchID, CourtID: courtID, SlotID: slotID}
	created, err := l.store.RecordNotification(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// RecordAll records every match and returns the ids of the records written
// by this call.
func (l *Ledger) RecordAll(ctx context.Context, searchID int64, matches []model.SlotMatch) ([]int64, error) {
	var ids []int64
	for _, m := range matches {
		rec, created, err := l.RecordNotified(ctx, searchID, m.CourtID, m.SlotID)
		if err != nil {
			return ids, err
		}
		if created {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

// MarkSent flags records whose alert was delivered.
func (l *Ledger) MarkSent(ctx context.Context, recordIDs []int64) error {
	if err := l.store.MarkNotificationsSent(ctx, recordIDs, l.now()); err != nil {
		return err
	}
	l.log.Debugw("marked notifications sent", "count", len(recordIDs))
	return nil
}
