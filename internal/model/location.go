package model

import "time"

// DefaultTimezone is used for locations whose provider does not report one.
const DefaultTimezone = "Europe/Amsterdam"

// OpeningHours is one day's opening window as reported by the provider.
type OpeningHours struct {
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
}

// Location represents a bookable venue on a provider platform.
type Location struct {
	ID           int64                   `gorm:"primaryKey" json:"id"`
	Provider     string                  `gorm:"size:32;not null;uniqueIndex:idx_provider_tenant,priority:1" json:"provider"`
	TenantRef    string                  `gorm:"size:128;not null;uniqueIndex:idx_provider_tenant,priority:2" json:"tenant_ref"`
	Name         string                  `gorm:"size:256;not null" json:"name"`
	Slug         string                  `gorm:"size:256;not null;uniqueIndex" json:"slug"`
	Address      string                  `gorm:"size:512" json:"address"`
	Timezone     string                  `gorm:"size:64;not null" json:"timezone"`
	SportIDs     []string                `gorm:"serializer:json" json:"sport_ids"`
	OpeningHours map[string]OpeningHours `gorm:"serializer:json" json:"opening_hours,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`

	// Associations
	Courts []Court `gorm:"foreignKey:LocationID" json:"-"`
}

// TZ returns the location's time zone, falling back to DefaultTimezone.
func (l *Location) TZ() *time.Location {
	for _, name := range []string{l.Timezone, DefaultTimezone} {
		if name == "" {
			continue
		}
		if tz, err := time.LoadLocation(name); err == nil {
			return tz
		}
	}
	return time.UTC
}
