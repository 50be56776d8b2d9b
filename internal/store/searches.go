package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"court-watch-backend/internal/model"
)

func (s *gormStore) CreateSavedSearch(ctx context.Context, search *model.SavedSearch) error {
	if err := s.db.WithContext(ctx).Create(search).Error; err != nil {
		return fmt.Errorf("failed to create saved search: %w", err)
	}
	return nil
}

func (s *gormStore) GetSavedSearch(ctx context.Context, id int64) (*model.SavedSearch, error) {
	var search model.SavedSearch
	if err := s.db.WithContext(ctx).First(&search, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("saved search %d", id))
	}
	return &search, nil
}

func (s *gormStore) ListSavedSearches(ctx context.Context, userID string) ([]model.SavedSearch, error) {
	var searches []model.SavedSearch
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("search_date ASC").Order("id ASC").Find(&searches).Error; err != nil {
		return nil, fmt.Errorf("failed to list saved searches of %s: %w", userID, err)
	}
	return searches, nil
}

// UpdateSavedSearch replaces the criteria of an existing search.
func (s *gormStore) UpdateSavedSearch(ctx context.Context, search *model.SavedSearch) error {
	res := s.db.WithContext(ctx).Model(search).
		Select("location_ids", "search_date", "start_time", "end_time", "duration_minutes", "court_type", "court_config", "active", "updated_at").
		Updates(search)
	if res.Error != nil {
		return fmt.Errorf("failed to update saved search %d: %w", search.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, fmt.Sprintf("saved search %d", search.ID))
	}
	return nil
}

// DeleteSavedSearch removes a search together with its notification records.
func (s *gormStore) DeleteSavedSearch(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("saved_search_id = ?", id).Delete(&model.NotificationRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications of search %d: %w", id, err)
		}
		res := tx.Delete(&model.SavedSearch{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete saved search %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, fmt.Sprintf("saved search %d", id))
		}
		return nil
	})
}

// ActiveSavedSearches returns active searches dated fromDate or later.
func (s *gormStore) ActiveSavedSearches(ctx context.Context, fromDate string) ([]model.SavedSearch, error) {
	var searches []model.SavedSearch
	if err := s.db.WithContext(ctx).
		Where("active = ? AND search_date >= ?", true, fromDate).
		Order("search_date ASC").Order("id ASC").
		Find(&searches).Error; err != nil {
		return nil, fmt.Errorf("failed to load active saved searches: %w", err)
	}
	return searches, nil
}

func (s *gormStore) TouchSavedSearch(ctx context.Context, id int64, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(&model.SavedSearch{}).Where("id = ?", id).
		Update("last_checked_at", at).Error; err != nil {
		return fmt.Errorf("failed to touch saved search %d: %w", id, err)
	}
	return nil
}

// DeactivateSavedSearchesBefore switches off active searches whose date has passed.
func (s *gormStore) DeactivateSavedSearchesBefore(ctx context.Context, date string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.SavedSearch{}).
		Where("active = ? AND search_date < ?", true, date).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate past searches: %w", res.Error)
	}
	return res.RowsAffected, nil
}
