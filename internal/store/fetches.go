package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"court-watch-backend/internal/model"
)

// LatestFetch returns the fetch record for key, or nil when none exists.
func (s *gormStore) LatestFetch(ctx context.Context, key string) (*model.FetchRecord, error) {
	var rec model.FetchRecord
	err := s.db.WithContext(ctx).Where(&model.FetchRecord{Key: key}).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fetch record %s: %w", key, err)
	}
	return &rec, nil
}

// UpsertFetch records a fetch; a racing insert for the same key keeps the
// latest timestamp and count instead of failing.
func (s *gormStore) UpsertFetch(ctx context.Context, rec *model.FetchRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"performed_at", "live", "slots_found"}),
		}).Create(rec).Error; err != nil {
			return fmt.Errorf("upsert fetch record %s failed: %w", rec.Key, err)
		}
		return nil
	})
}

// PurgeFetches deletes records performed before the cutoff. A zero cutoff
// clears everything.
func (s *gormStore) PurgeFetches(ctx context.Context, before time.Time) (int64, error) {
	db := s.db.WithContext(ctx)
	if before.IsZero() {
		db = db.Where("1 = 1")
	} else {
		db = db.Where("performed_at < ?", before)
	}
	res := db.Delete(&model.FetchRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge fetch records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
