package model

import "time"

// SavedSearch is a user's standing watch over a set of locations.
type SavedSearch struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"size:64;not null;index" json:"user_id"`
	LocationIDs     []int64    `gorm:"serializer:json;not null" json:"location_ids"`
	Date            string     `gorm:"column:search_date;size:10;not null;index" json:"date"`
	StartTime       string     `gorm:"size:5;not null" json:"start_time"`
	EndTime         string     `gorm:"size:5;not null" json:"end_time"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	CourtType       string     `gorm:"size:16;not null" json:"court_type"`
	CourtConfig     string     `gorm:"size:16;not null" json:"court_config"`
	Active          bool       `gorm:"not null;index" json:"active"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NotificationRecord notes that a saved search has already been told about a slot.
type NotificationRecord struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	SavedSearchID int64      `gorm:"not null;uniqueIndex:idx_notification_search_slot,priority:1" json:"saved_search_id"`
	CourtID       int64      `gorm:"not null;index" json:"court_id"`
	SlotID        int64      `gorm:"not null;index;uniqueIndex:idx_notification_search_slot,priority:2" json:"slot_id"`
	Sent          bool       `gorm:"not null" json:"sent"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `json:"created_at"`

	// Associations
	SavedSearch SavedSearch `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
