package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"court-watch-backend/internal/model"
)

// UpsertLocation inserts or refreshes a location keyed by (provider, tenant_ref)
// and loads the stored row back into loc.
func (s *gormStore) UpsertLocation(ctx context.Context, loc *model.Location) error {
	if loc.Timezone == "" {
		loc.Timezone = model.DefaultTimezone
	}

	db := s.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "tenant_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "slug", "address", "timezone", "sport_ids", "opening_hours", "updated_at"}),
	}).Create(loc).Error; err != nil {
		return fmt.Errorf("upsert location %s/%s failed: %w", loc.Provider, loc.TenantRef, err)
	}

	var stored model.Location
	if err := db.Where("provider = ? AND tenant_ref = ?", loc.Provider, loc.TenantRef).First(&stored).Error; err != nil {
		return fmt.Errorf("failed to reload location %s/%s: %w", loc.Provider, loc.TenantRef, err)
	}
	*loc = stored
	return nil
}

func (s *gormStore) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	var loc model.Location
	if err := s.db.WithContext(ctx).First(&loc, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("location %d", id))
	}
	return &loc, nil
}

func (s *gormStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	var locs []model.Location
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&locs).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locs, nil
}

// LocationIDs returns every known location id in ascending order.
func (s *gormStore) LocationIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&model.Location{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list location ids: %w", err)
	}
	return ids, nil
}

func (s *gormStore) ListCourts(ctx context.Context, locationID int64) ([]model.Court, error) {
	var courts []model.Court
	if err := s.db.WithContext(ctx).Where("location_id = ?", locationID).Order("name ASC").Find(&courts).Error; err != nil {
		return nil, fmt.Errorf("failed to list courts for location %d: %w", locationID, err)
	}
	return courts, nil
}
