package model

import "time"

// FetchRecord remembers the last live fetch of one (date, location) pair.
// Key is a hash of the pair only, so searches with different windows share it.
type FetchRecord struct {
	Key         string    `gorm:"primaryKey;size:32"`
	Date        string    `gorm:"column:fetch_date;size:10;not null"`
	LocationID  int64     `gorm:"not null;index"`
	PerformedAt time.Time `gorm:"not null;index"`
	Live        bool      `gorm:"not null"`
	SlotsFound  int       `gorm:"not null"`
}
