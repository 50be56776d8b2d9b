// Package match selects reconciled slots that satisfy search criteria and
// groups them for presentation. It only reads canonical state.
package match

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"court-watch-backend/internal/model"
	"court-watch-backend/internal/parse"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/store"
)

// Matches reports whether one slot satisfies normalized criteria. A slot
// starting inside the window qualifies even when it ends after EndTime.
func Matches(c Criteria, s model.SlotMatch) bool {
	if !s.Available || s.Date != c.Date || s.Duration != c.DurationMinutes {
		return false
	}
	if s.StartTime < c.StartTime || s.StartTime > c.EndTime {
		return false
	}
	if len(c.LocationIDs) > 0 && !slices.Contains(c.LocationIDs, s.LocationID) {
		return false
	}

	switch c.CourtType {
	case CourtTypeIndoor:
		if s.Indoor == nil || !*s.Indoor {
			return false
		}
	case CourtTypeOutdoor:
		if s.Indoor == nil || *s.Indoor {
			return false
		}
	}
	switch c.CourtConfig {
	case CourtConfigDouble:
		if s.Doubles == nil || !*s.Doubles {
			return false
		}
	case CourtConfigSingle:
		if s.Doubles == nil || *s.Doubles {
			return false
		}
	}
	return true
}

type Matcher struct {
	store     store.Store
	providers *provider.Registry
	log       *zap.SugaredLogger
}

func New(st store.Store, providers *provider.Registry, log *zap.SugaredLogger) *Matcher {
	return &Matcher{store: st, providers: providers, log: log}
}

// Find returns matching slots in presentation order: location name, court
// name, start time. Criteria are normalized in place. Only the listed
// locations are searched; callers resolve "all locations" themselves.
func (m *Matcher) Find(ctx context.Context, c *Criteria) ([]model.SlotMatch, error) {
	if err := c.Normalize(); err != nil {
		return nil, err
	}

	rows, err := m.store.SlotsForMatching(ctx, c.Date, c.LocationIDs)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if Matches(*c, row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Match is Find grouped by location and court, with booking links.
func (m *Matcher) Match(ctx context.Context, c *Criteria) (*model.SearchResult, error) {
	rows, err := m.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	return Group(rows, m.BookingURL), nil
}

// BookingURL asks the slot's provider for a deep link. It returns "" when the
// provider is unknown or cannot build one.
func (m *Matcher) BookingURL(s model.SlotMatch) string {
	if m.providers == nil || s.ResourceRef == nil {
		return ""
	}
	p, err := m.providers.Get(s.Provider)
	if err != nil {
		return ""
	}
	loc := model.Location{Timezone: s.Timezone}
	start, err := parse.ToUTC(s.Date, s.StartTime, loc.TZ())
	if err != nil {
		m.log.Debugw("cannot convert slot start to UTC", "slot_id", s.SlotID, "error", err)
		return ""
	}
	link, ok := p.BookingURL(s.TenantRef, *s.ResourceRef, start.Format(parse.DateLayout), start.Format(parse.ClockLayout), s.Duration)
	if !ok {
		return ""
	}
	return link
}

// Group folds ordered rows into locations and courts. Rows must already be
// sorted the way Find returns them; link may be nil.
func Group(rows []model.SlotMatch, link func(model.SlotMatch) string) *model.SearchResult {
	result := &model.SearchResult{Locations: []model.LocationResult{}}
	for _, row := range rows {
		n := len(result.Locations)
		if n == 0 || result.Locations[n-1].LocationID != row.LocationID {
			result.Locations = append(result.Locations, model.LocationResult{
				LocationID: row.LocationID,
				Name:       row.LocationName,
				Address:    row.Address,
				Slug:       row.Slug,
			})
			n++
		}
		loc := &result.Locations[n-1]

		k := len(loc.Courts)
		if k == 0 || loc.Courts[k-1].CourtID != row.CourtID {
			loc.Courts = append(loc.Courts, model.CourtResult{
				CourtID: row.CourtID,
				Name:    row.CourtName,
				Indoor:  row.Indoor,
				Doubles: row.Doubles,
			})
			k++
		}
		court := &loc.Courts[k-1]

		slot := model.SlotResult{
			SlotID:    row.SlotID,
			Date:      row.Date,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Duration:  row.Duration,
			Price:     row.Price,
		}
		if link != nil {
			slot.BookingURL = link(row)
		}
		court.Slots = append(court.Slots, slot)
		result.TotalSlots++
	}
	return result
}
