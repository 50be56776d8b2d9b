package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"court-watch-backend/internal/model"
)

// UpsertSlots writes slots by natural key. Existing keys are counted as
// updated and get their end time, price and availability refreshed; new keys
// are inserted. Duplicate keys inside one batch collapse to the last one.
func (s *gormStore) UpsertSlots(ctx context.Context, slots []model.Slot) (SlotCounts, error) {
	var counts SlotCounts
	if len(slots) == 0 {
		return counts, nil
	}

	type courtKey struct {
		courtID int64
		key     model.SlotKey
	}
	index := make(map[courtKey]int, len(slots))
	batch := make([]model.Slot, 0, len(slots))
	courtIDs := make([]int64, 0)
	dates := make([]string, 0)
	seenCourt := make(map[int64]bool)
	seenDate := make(map[string]bool)
	for _, slot := range slots {
		ck := courtKey{slot.CourtID, slot.Key()}
		if i, dup := index[ck]; dup {
			batch[i] = slot
			continue
		}
		index[ck] = len(batch)
		batch = append(batch, slot)
		if !seenCourt[slot.CourtID] {
			seenCourt[slot.CourtID] = true
			courtIDs = append(courtIDs, slot.CourtID)
		}
		if !seenDate[slot.Date] {
			seenDate[slot.Date] = true
			dates = append(dates, slot.Date)
		}
	}
	counts.Updated = len(slots) - len(batch)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.Slot
		if err := tx.Select("court_id", "slot_date", "start_time", "duration").
			Where("court_id IN ? AND slot_date IN ?", courtIDs, dates).
			Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to pre-fetch slots: %w", err)
		}
		known := make(map[courtKey]bool, len(existing))
		for _, slot := range existing {
			known[courtKey{slot.CourtID, slot.Key()}] = true
		}
		for _, slot := range batch {
			if known[courtKey{slot.CourtID, slot.Key()}] {
				counts.Updated++
			} else {
				counts.Added++
			}
		}

		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "court_id"}, {Name: "slot_date"}, {Name: "start_time"}, {Name: "duration"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"end_time", "price", "available", "updated_at"}),
		}).CreateInBatches(&batch, 200).Error
	})
	if err != nil {
		return SlotCounts{}, fmt.Errorf("batch upsert slots failed: %w", err)
	}
	return counts, nil
}

// SlotsForMatching returns every slot on date at the given locations, joined
// with court and location data, ordered by location name, court name and start.
func (s *gormStore) SlotsForMatching(ctx context.Context, date string, locationIDs []int64) ([]model.SlotMatch, error) {
	var rows []model.SlotMatch
	if len(locationIDs) == 0 {
		return rows, nil
	}

	err := s.db.WithContext(ctx).
		Table("slots").
		Select(`slots.id AS slot_id, slots.court_id, courts.location_id,
			slots.slot_date, slots.start_time, slots.end_time, slots.duration, slots.price, slots.available,
			courts.name AS court_name, courts.resource_ref, courts.indoor, courts.doubles,
			locations.name AS location_name, locations.address, locations.slug,
			locations.provider, locations.tenant_ref, locations.timezone`).
		Joins("JOIN courts ON courts.id = slots.court_id").
		Joins("JOIN locations ON locations.id = courts.location_id").
		Where("slots.slot_date = ? AND courts.location_id IN ?", date, locationIDs).
		Order("locations.name ASC").
		Order("locations.id ASC").
		Order("courts.name ASC").
		Order("courts.id ASC").
		Order("slots.start_time ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load slots for %s: %w", date, err)
	}
	return rows, nil
}

// ReleaseMissingSlots marks the available slots of a location on date that
// are not in present as unavailable. present is the full upstream listing of
// that day; slots on other dates are ignored. It returns how many were released.
func (s *gormStore) ReleaseMissingSlots(ctx context.Context, locationID int64, date string, present []model.Slot) (int, error) {
	type courtKey struct {
		courtID int64
		key     model.SlotKey
	}
	keep := make(map[courtKey]bool, len(present))
	for i := range present {
		keep[courtKey{present[i].CourtID, present[i].Key()}] = true
	}

	var released int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []model.Slot
		if err := tx.Model(&model.Slot{}).
			Select("slots.id", "slots.court_id", "slots.slot_date", "slots.start_time", "slots.duration").
			Joins("JOIN courts ON courts.id = slots.court_id").
			Where("courts.location_id = ? AND slots.slot_date = ? AND slots.available = ?", locationID, date, true).
			Find(&candidates).Error; err != nil {
			return fmt.Errorf("failed to load slots: %w", err)
		}

		var stale []int64
		for i := range candidates {
			if !keep[courtKey{candidates[i].CourtID, candidates[i].Key()}] {
				stale = append(stale, candidates[i].ID)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		result := tx.Model(&model.Slot{}).Where("id IN ?", stale).Update("available", false)
		if result.Error != nil {
			return fmt.Errorf("failed to release slots: %w", result.Error)
		}
		released = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("release missing slots of location %d on %s failed: %w", locationID, date, err)
	}
	return released, nil
}
