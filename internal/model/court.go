package model

import "time"

// Court represents a bookable surface within a location.
//
// A court first seen only through an opaque provider resource id is stored as
// a placeholder named after that id. A later metadata refresh renames it or
// merges it into the properly named court.
type Court struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	LocationID  int64     `gorm:"index;not null" json:"location_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	ResourceRef *string   `gorm:"size:128;uniqueIndex" json:"resource_ref,omitempty"`
	Placeholder bool      `gorm:"not null" json:"placeholder"`
	Sport       string    `gorm:"size:32" json:"sport,omitempty"`
	Indoor      *bool     `json:"indoor,omitempty"`
	Doubles     *bool     `json:"doubles,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Associations
	Location Location `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
