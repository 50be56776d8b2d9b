package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Locations and courts.
	UpsertLocation(ctx context.Context, loc *model.Location) error
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
	LocationIDs(ctx context.Context) ([]int64, error)
	ListCourts(ctx context.Context, locationID int64) ([]model.Court, error)
	EnsureCourts(ctx context.Context, locationID int64, seeds []CourtSeed) (map[string]int64, error)
	PromoteCourts(ctx context.Context, locationID int64, courts []CourtInfo) (PromoteStats, error)

	// Slots.
	UpsertSlots(ctx context.Context, slots []model.Slot) (SlotCounts, error)
	SlotsForMatching(ctx context.Context, date string, locationIDs []int64) ([]model.SlotMatch, error)
	ReleaseMissingSlots(ctx context.Context, locationID int64, date string, present []model.Slot) (int, error)

	// Freshness log.
	LatestFetch(ctx context.Context, key string) (*model.FetchRecord, error)
	UpsertFetch(ctx context.Context, rec *model.FetchRecord) error
	PurgeFetches(ctx context.Context, before time.Time) (int64, error)

	// Saved searches.
	CreateSavedSearch(ctx context.Context, search *model.SavedSearch) error
	GetSavedSearch(ctx context.Context, id int64) (*model.SavedSearch, error)
	ListSavedSearches(ctx context.Context, userID string) ([]model.SavedSearch, error)
	UpdateSavedSearch(ctx context.Context, search *model.SavedSearch) error
	DeleteSavedSearch(ctx context.Context, id int64) error
	ActiveSavedSearches(ctx context.Context, fromDate string) ([]model.SavedSearch, error)
	TouchSavedSearch(ctx context.Context, id int64, at time.Time) error
	DeactivateSavedSearchesBefore(ctx context.Context, date string) (int64, error)

	// Notification ledger.
	NotifiedSlotIDs(ctx context.Context, searchID int64, slotIDs []int64) (map[int64]bool, error)
	RecordNotification(ctx context.Context, rec *model.NotificationRecord) (bool, error)
	MarkNotificationsSent(ctx context.Context, ids []int64, at time.Time) error

	// Search tasks.
	CreateTask(ctx context.Context, task *model.SearchTask) error
	GetTask(ctx context.Context, id string) (*model.SearchTask, error)
	StartTask(ctx context.Context, id string, total int, step string, at time.Time) (bool, error)
	UpdateTaskProgress(ctx context.Context, id string, progress, processed int, step string) (bool, error)
	CompleteTask(ctx context.Context, id string, result *model.SearchResult, at time.Time) (bool, error)
	FailTask(ctx context.Context, id string, message string, at time.Time) (bool, error)
	CancelTask(ctx context.Context, id string, at time.Time) (bool, error)
	FailOrphanedTasks(ctx context.Context, message string, at time.Time) (int64, error)
	DeleteTasksBefore(ctx context.Context, before time.Time) (int64, error)

	// Push subscriptions.
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// notFound converts gorm's missing-row error into errs.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Mark(fmt.Errorf("%s: %w", what, err), errs.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
