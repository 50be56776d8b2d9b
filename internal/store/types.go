package store

// CourtSeed identifies a court only by its provider resource id, as seen in
// availability data before club metadata is known.
type CourtSeed struct {
	ResourceRef string
	Sport       string
}

// CourtInfo is court metadata from a club refresh.
type CourtInfo struct {
	Name        string
	ResourceRef string
	Sport       string
	Indoor      *bool
	Doubles     *bool
}

// PromoteStats accounts for every change made by PromoteCourts.
type PromoteStats struct {
	Created             int `json:"created"`
	Updated             int `json:"updated"`
	Renamed             int `json:"renamed"`
	Merged              int `json:"merged"`
	SlotsMoved          int `json:"slots_moved"`
	SlotsDeduplicated   int `json:"slots_deduplicated"`
	PlaceholdersDeleted int `json:"placeholders_deleted"`
}

// SlotCounts reports how an upsert batch landed.
type SlotCounts struct {
	Added   int
	Updated int
}
