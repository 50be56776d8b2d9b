package notification

import (
	"fmt"
	"strings"

	"court-watch-backend/internal/model"
)

// Alert tells one user about new slots for one saved search.
type Alert struct {
	SavedSearchID   int64       `json:"saved_search_id"`
	UserID          string      `json:"user_id"`
	Date            string      `json:"date"`
	StartTime       string      `json:"start_time"`
	EndTime         string      `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	TotalMatches    int         `json:"total_matches"`
	Slots           []AlertSlot `json:"slots"`

	// RecordIDs are the ledger records to mark sent once delivered.
	RecordIDs []int64 `json:"-"`
}

type AlertSlot struct {
	SlotID       int64  `json:"slot_id"`
	LocationName string `json:"location_name"`
	CourtName    string `json:"court_name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Price        string `json:"price,omitempty"`
	BookingURL   string `json:"booking_url,omitempty"`
}

// NewAlert builds an alert carrying at most maxSlots of the matches. link
// may be nil.
func NewAlert(search *model.SavedSearch, matches []model.SlotMatch, maxSlots int, link func(model.SlotMatch) string) Alert {
	a := Alert{
		SavedSearchID:   search.ID,
		UserID:          search.UserID,
		Date:            search.Date,
		StartTime:       search.StartTime,
		EndTime:         search.EndTime,
		DurationMinutes: search.DurationMinutes,
		TotalMatches:    len(matches),
	}
	for i, m := range matches {
		if maxSlots > 0 && i >= maxSlots {
			break
		}
		slot := AlertSlot{
			SlotID:       m.SlotID,
			LocationName: m.LocationName,
			CourtName:    m.CourtName,
			StartTime:    m.StartTime,
			EndTime:      m.EndTime,
			Price:        m.Price,
		}
		if link != nil {
			slot.BookingURL = link(m)
		}
		a.Slots = append(a.Slots, slot)
	}
	return a
}

// Title is a one-line summary.
func (a Alert) Title() string {
	if a.TotalMatches == 1 {
		return fmt.Sprintf("1 court available on %s", a.Date)
	}
	return fmt.Sprintf("%d courts available on %s", a.TotalMatches, a.Date)
}

// Body lists the carried slots, one per line.
func (a Alert) Body() string {
	var b strings.Builder
	for _, s := range a.Slots {
		fmt.Fprintf(&b, "%s, %s: %s-%s", s.LocationName, s.CourtName, s.StartTime, s.EndTime)
		if s.Price != "" {
			fmt.Fprintf(&b, " (%s)", s.Price)
		}
		b.WriteByte('\n')
	}
	if more := a.TotalMatches - len(a.Slots); more > 0 {
		fmt.Fprintf(&b, "and %d more\n", more)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
