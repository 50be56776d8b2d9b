// Package watch manages users' saved searches.
package watch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/match"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/parse"
	"court-watch-backend/internal/store"
)

// Input is the user-editable part of a saved search.
type Input struct {
	LocationIDs     []int64 `json:"location_ids"`
	Date            string  `json:"date" binding:"required"`
	StartTime       string  `json:"start_time" binding:"required"`
	EndTime         string  `json:"end_time" binding:"required"`
	DurationMinutes int     `json:"duration_minutes"`
	CourtType       string  `json:"court_type"`
	CourtConfig     string  `json:"court_config"`
	Active          *bool   `json:"active"`
}

type Service struct {
	store store.Store
	tz    *time.Location
	now   func() time.Time
	log   *zap.SugaredLogger
}

// NewService creates a Service. tz decides what "today" is when rejecting
// searches for past dates.
func NewService(st store.Store, tz *time.Location, log *zap.SugaredLogger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{store: st, tz: tz, now: time.Now, log: log}
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.SavedSearch, error) {
	search := &model.SavedSearch{UserID: userID, Active: true}
	if err := s.apply(ctx, search, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateSavedSearch(ctx, search); err != nil {
		return nil, err
	}
	s.log.Infow("saved search created", "saved_search_id", search.ID, "user_id", userID, "date", search.Date)
	return search, nil
}

// Get returns the search if userID owns it.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*model.SavedSearch, error) {
	search, err := s.store.GetSavedSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	if search.UserID != userID {
		return nil, errs.Forbiddenf("saved search %d belongs to another user", id)
	}
	return search, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]model.SavedSearch, error) {
	return s.store.ListSavedSearches(ctx, userID)
}

// Update replaces the criteria of a search. Active is kept unless given.
func (s *Service) Update(ctx context.Context, userID string, id int64, in Input) (*model.SavedSearch, error) {
	search, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, search, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSavedSearch(ctx, search); err != nil {
		return nil, err
	}
	return search, nil
}

func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteSavedSearch(ctx, id); err != nil {
		return err
	}
	s.log.Infow("saved search deleted", "saved_search_id", id, "user_id", userID)
	return nil
}

func (s *Service) apply(ctx context.Context, search *model.SavedSearch, in Input) error {
	c := match.Criteria{
		Date:            in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationMinutes: in.DurationMinutes,
		CourtType:       in.CourtType,
		CourtConfig:     in.CourtConfig,
	}
	if err := c.Normalize(); err != nil {
		return err
	}
	if today := s.now().In(s.tz).Format(parse.DateLayout); c.Date < today {
		return errs.Invalidf("date %s is in the past", c.Date)
	}

	known, err := s.store.LocationIDs(ctx)
	if err != nil {
		return err
	}
	locationIDs := in.LocationIDs
	if len(locationIDs) == 0 {
		if len(known) == 0 {
			return errs.Invalidf("no locations to watch")
		}
		locationIDs = append([]int64(nil), known...)
	} else {
		set := make(map[int64]bool, len(known))
		for _, id := range known {
			set[id] = true
		}
		for _, id := range locationIDs {
			if !set[id] {
				return errs.Invalidf("unknown location %d", id)
			}
		}
	}

	search.LocationIDs = locationIDs
	search.Date = c.Date
	search.StartTime = c.StartTime
	search.EndTime = c.EndTime
	search.DurationMinutes = c.DurationMinutes
	search.CourtType = c.CourtType
	search.CourtConfig = c.CourtConfig
	if in.Active != nil {
		search.Active = *in.Active
	}
	return nil
}
