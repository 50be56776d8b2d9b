package model

import "time"

// TaskStatus is the lifecycle state of a SearchTask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// SearchParams are the inputs of an on-demand search, captured on the task.
type SearchParams struct {
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationMinutes int     `json:"duration_minutes"`
	CourtType       string  `json:"court_type"`
	CourtConfig     string  `json:"court_config"`
	LocationIDs     []int64 `json:"location_ids"`
	ForceLive       bool    `json:"force_live_search"`
	Sport           string  `json:"sport"`
}

// SearchTask is one asynchronous multi-location search.
type SearchTask struct {
	ID                 string        `gorm:"primaryKey;size:36" json:"task_id"`
	UserID             string        `gorm:"size:64;not null;index" json:"user_id"`
	Status             TaskStatus    `gorm:"size:16;not null;index" json:"status"`
	Progress           int           `gorm:"not null" json:"progress"`
	CurrentStep        string        `gorm:"size:256" json:"current_step"`
	TotalLocations     int           `gorm:"not null" json:"total_locations"`
	ProcessedLocations int           `gorm:"not null" json:"processed_locations"`
	Params             SearchParams  `gorm:"serializer:json" json:"params"`
	Result             *SearchResult `gorm:"serializer:json" json:"result,omitempty"`
	ErrorMessage       string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt          time.Time     `gorm:"index" json:"created_at"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
