package model

import "time"

// Slot is one bookable interval on a court. Date and times are local to the
// owning location. (CourtID, Date, StartTime, Duration) is the natural key.
type Slot struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CourtID   int64     `gorm:"not null;uniqueIndex:idx_slot_natural_key,priority:1" json:"court_id"`
	Date      string    `gorm:"column:slot_date;size:10;not null;index;uniqueIndex:idx_slot_natural_key,priority:2" json:"date"`
	StartTime string    `gorm:"size:5;not null;uniqueIndex:idx_slot_natural_key,priority:3" json:"start_time"`
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`
	Duration  int       `gorm:"not null;uniqueIndex:idx_slot_natural_key,priority:4" json:"duration"`
	Price     string    `gorm:"size:32" json:"price"`
	Available bool      `gorm:"not null" json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Court Court `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// SlotKey is the natural key of a slot within one court.
type SlotKey struct {
	Date      string
	StartTime string
	Duration  int
}

// Key returns the slot's natural key without the court.
func (s *Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, StartTime: s.StartTime, Duration: s.Duration}
}

// SlotMatch is a slot joined with its court and location, as read by the matcher.
type SlotMatch struct {
	SlotID       int64
	CourtID      int64
	LocationID   int64
	Date         string `gorm:"column:slot_date"`
	StartTime    string
	EndTime      string
	Duration     int
	Price        string
	Available    bool
	CourtName    string
	ResourceRef  *string
	Indoor       *bool
	Doubles      *bool
	LocationName string
	Address      string
	Slug         string
	Provider     string
	TenantRef    string
	Timezone     string
}
