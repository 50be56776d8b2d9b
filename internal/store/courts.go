package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"court-watch-backend/internal/model"
)

// EnsureCourts makes sure a court exists for every seed and returns the court
// id per resource ref. Unknown refs are stored as placeholders named after the
// ref itself; concurrent inserts of the same ref collapse on the unique index.
func (s *gormStore) EnsureCourts(ctx context.Context, locationID int64, seeds []CourtSeed) (map[string]int64, error) {
	ids := make(map[string]int64, len(seeds))
	if len(seeds) == 0 {
		return ids, nil
	}

	refs := make([]string, 0, len(seeds))
	sports := make(map[string]string, len(seeds))
	for _, seed := range seeds {
		if _, seen := sports[seed.ResourceRef]; seen {
			continue
		}
		sports[seed.ResourceRef] = seed.Sport
		refs = append(refs, seed.ResourceRef)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := courtsByRef(tx, refs)
		if err != nil {
			return err
		}

		var missing []model.Court
		for _, ref := range refs {
			if _, ok := existing[ref]; ok {
				continue
			}
			ref := ref
			missing = append(missing, model.Court{
				LocationID:  locationID,
				Name:        ref,
				ResourceRef: &ref,
				Placeholder: true,
				Sport:       sports[ref],
			})
		}

		if len(missing) > 0 {
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "resource_ref"}},
				DoNothing: true,
			}).Create(&missing).Error; err != nil {
				return fmt.Errorf("failed to create placeholder courts: %w", err)
			}
			if existing, err = courtsByRef(tx, refs); err != nil {
				return err
			}
		}

		for ref, court := range existing {
			ids[ref] = court.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func courtsByRef(tx *gorm.DB, refs []string) (map[string]model.Court, error) {
	var courts []model.Court
	if err := tx.Where("resource_ref IN ?", refs).Find(&courts).Error; err != nil {
		return nil, fmt.Errorf("failed to load courts by resource ref: %w", err)
	}
	out := make(map[string]model.Court, len(courts))
	for _, c := range courts {
		out[*c.ResourceRef] = c
	}
	return out, nil
}

// PromoteCourts applies club metadata to the courts of a location in one
// transaction:
//
//   - a placeholder whose ref is named after an existing court is merged into
//     that court and deleted;
//   - a placeholder with no named counterpart is renamed in place;
//   - a named court without a ref adopts it; a named court holding another
//     ref is a different court and is left alone;
//   - an unknown court is created;
//   - a leftover placeholder with no slots is deleted.
//
// Courts are updated in place, never recreated, so slot references survive.
func (s *gormStore) PromoteCourts(ctx context.Context, locationID int64, infos []CourtInfo) (PromoteStats, error) {
	var stats PromoteStats

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		named := make(map[string]bool, len(infos))
		for _, info := range infos {
			if info.ResourceRef == "" || info.Name == "" {
				continue
			}
			named[info.ResourceRef] = true
			if err := promoteOne(tx, locationID, info, &stats); err != nil {
				return err
			}
		}

		var leftovers []model.Court
		if err := tx.Where("location_id = ? AND placeholder = ?", locationID, true).Find(&leftovers).Error; err != nil {
			return fmt.Errorf("failed to load placeholder courts: %w", err)
		}
		for _, court := range leftovers {
			if court.ResourceRef != nil && named[*court.ResourceRef] {
				continue
			}
			var slots int64
			if err := tx.Model(&model.Slot{}).Where("court_id = ?", court.ID).Count(&slots).Error; err != nil {
				return fmt.Errorf("failed to count slots of court %d: %w", court.ID, err)
			}
			if slots > 0 {
				continue
			}
			if err := tx.Delete(&model.Court{}, court.ID).Error; err != nil {
				return fmt.Errorf("failed to delete empty placeholder court %d: %w", court.ID, err)
			}
			stats.PlaceholdersDeleted++
		}
		return nil
	})
	return stats, err
}

func promoteOne(tx *gorm.DB, locationID int64, info CourtInfo, stats *PromoteStats) error {
	var holder *model.Court
	var byRef model.Court
	err := tx.Where("resource_ref = ?", info.ResourceRef).Take(&byRef).Error
	switch {
	case err == nil:
		holder = &byRef
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to load court %s: %w", info.ResourceRef, err)
	}

	// A same-named court only counts as the counterpart when it has no ref yet
	// or already carries this one. Courts with another ref are distinct.
	q := tx.Where("location_id = ? AND name = ?", locationID, info.Name).
		Where("(resource_ref IS NULL OR resource_ref = ?)", info.ResourceRef)
	if holder != nil {
		q = q.Where("id <> ?", holder.ID)
	}
	var target *model.Court
	var byName model.Court
	err = q.Order("placeholder ASC").Order("id ASC").Take(&byName).Error
	switch {
	case err == nil:
		target = &byName
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to load court %q: %w", info.Name, err)
	}

	switch {
	case holder != nil && target != nil:
		if err := mergeCourt(tx, holder.ID, target.ID, stats); err != nil {
			return err
		}
		stats.Merged++
		return applyInfo(tx, target.ID, info)

	case holder != nil:
		if holder.Name != info.Name {
			stats.Renamed++
		} else {
			stats.Updated++
		}
		return applyInfo(tx, holder.ID, info)

	case target != nil:
		stats.Updated++
		return applyInfo(tx, target.ID, info)

	default:
		ref := info.ResourceRef
		court := model.Court{
			LocationID:  locationID,
			Name:        info.Name,
			ResourceRef: &ref,
			Sport:       info.Sport,
			Indoor:      info.Indoor,
			Doubles:     info.Doubles,
		}
		if err := tx.Omit(clause.Associations).Create(&court).Error; err != nil {
			return fmt.Errorf("failed to create court %q: %w", info.Name, err)
		}
		stats.Created++
		return nil
	}
}

func applyInfo(tx *gorm.DB, courtID int64, info CourtInfo) error {
	return tx.Model(&model.Court{}).Where("id = ?", courtID).Updates(map[string]any{
		"name":         info.Name,
		"resource_ref": info.ResourceRef,
		"placeholder":  false,
		"sport":        info.Sport,
		"indoor":       info.Indoor,
		"doubles":      info.Doubles,
	}).Error
}

// mergeCourt moves every slot of from onto to and deletes from. A slot whose
// natural key already exists on to is dropped and its notification records
// are re-pointed at the surviving slot.
func mergeCourt(tx *gorm.DB, fromID, toID int64, stats *PromoteStats) error {
	var moving []model.Slot
	if err := tx.Where("court_id = ?", fromID).Find(&moving).Error; err != nil {
		return fmt.Errorf("failed to load slots of court %d: %w", fromID, err)
	}

	var resident []model.Slot
	if err := tx.Where("court_id = ?", toID).Find(&resident).Error; err != nil {
		return fmt.Errorf("failed to load slots of court %d: %w", toID, err)
	}
	survivors := make(map[model.SlotKey]int64, len(resident))
	for _, slot := range resident {
		survivors[slot.Key()] = slot.ID
	}

	for _, slot := range moving {
		survivorID, dup := survivors[slot.Key()]
		if !dup {
			if err := tx.Model(&model.Slot{}).Where("id = ?", slot.ID).Update("court_id", toID).Error; err != nil {
				return fmt.Errorf("failed to move slot %d: %w", slot.ID, err)
			}
			if err := tx.Model(&model.NotificationRecord{}).Where("slot_id = ?", slot.ID).Update("court_id", toID).Error; err != nil {
				return fmt.Errorf("failed to move notifications of slot %d: %w", slot.ID, err)
			}
			survivors[slot.Key()] = slot.ID
			stats.SlotsMoved++
			continue
		}

		if err := repointNotifications(tx, slot.ID, survivorID, toID); err != nil {
			return err
		}
		if err := tx.Delete(&model.Slot{}, slot.ID).Error; err != nil {
			return fmt.Errorf("failed to delete duplicate slot %d: %w", slot.ID, err)
		}
		stats.SlotsDeduplicated++
	}

	if err := tx.Delete(&model.Court{}, fromID).Error; err != nil {
		return fmt.Errorf("failed to delete merged court %d: %w", fromID, err)
	}
	return nil
}

func repointNotifications(tx *gorm.DB, fromSlot, toSlot, toCourt int64) error {
	var records []model.NotificationRecord
	if err := tx.Where("slot_id = ?", fromSlot).Find(&records).Error; err != nil {
		return fmt.Errorf("failed to load notifications of slot %d: %w", fromSlot, err)
	}
	for _, rec := range records {
		var existing int64
		if err := tx.Model(&model.NotificationRecord{}).
			Where("saved_search_id = ? AND slot_id = ?", rec.SavedSearchID, toSlot).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check notification of search %d: %w", rec.SavedSearchID, err)
		}
		if existing > 0 {
			if err := tx.Delete(&model.NotificationRecord{}, rec.ID).Error; err != nil {
				return fmt.Errorf("failed to drop notification %d: %w", rec.ID, err)
			}
			continue
		}
		if err := tx.Model(&model.NotificationRecord{}).Where("id = ?", rec.ID).
			Updates(map[string]any{"slot_id": toSlot, "court_id": toCourt}).Error; err != nil {
			return fmt.Errorf("failed to re-point notification %d: %w", rec.ID, err)
		}
	}
	return nil
}
