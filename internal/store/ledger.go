package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"court-watch-backend/internal/model"
)

// NotifiedSlotIDs reports which of slotIDs already have a record for searchID.
func (s *gormStore) NotifiedSlotIDs(ctx context.Context, searchID int64, slotIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if len(slotIDs) == 0 {
		return out, nil
	}
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&model.NotificationRecord{}).
		Where("saved_search_id = ? AND slot_id IN ?", searchID, slotIDs).
		Pluck("slot_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load notifications of search %d: %w", searchID, err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// RecordNotification stores rec unless (saved_search_id, slot_id) is already
// recorded. It reports whether a new row was written; rec is loaded with the
// stored row either way.
func (s *gormStore) RecordNotification(ctx context.Context, rec *model.NotificationRecord) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "saved_search_id"}, {Name: "slot_id"}},
			DoNothing: true,
		}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		var stored model.NotificationRecord
		if err := tx.Where("saved_search_id = ? AND slot_id = ?", rec.SavedSearchID, rec.SlotID).Take(&stored).Error; err != nil {
			return err
		}
		*rec = stored
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record notification of slot %d for search %d: %w", rec.SlotID, rec.SavedSearchID, err)
	}
	return created, nil
}

// MarkNotificationsSent flips the given records to sent.
func (s *gormStore) MarkNotificationsSent(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&model.NotificationRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"sent": true, "sent_at": at}).Error; err != nil {
		return fmt.Errorf("failed to mark %d notifications sent: %w", len(ids), err)
	}
	return nil
}
