package model

// SearchResult is the grouped output of a match: locations by name, courts by
// name, slots by start time.
type SearchResult struct {
	Locations  []LocationResult `json:"locations"`
	TotalSlots int              `json:"total_slots"`
}

type LocationResult struct {
	LocationID int64         `json:"location_id"`
	Name       string        `json:"name"`
	Address    string        `json:"address,omitempty"`
	Slug       string        `json:"slug"`
	Courts     []CourtResult `json:"courts"`
}

type CourtResult struct {
	CourtID int64        `json:"court_id"`
	Name    string       `json:"name"`
	Indoor  *bool        `json:"indoor,omitempty"`
	Doubles *bool        `json:"doubles,omitempty"`
	Slots   []SlotResult `json:"slots"`
}

type SlotResult struct {
	SlotID     int64  `json:"slot_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Duration   int    `json:"duration"`
	Price      string `json:"price"`
	BookingURL string `json:"booking_url,omitempty"`
}
