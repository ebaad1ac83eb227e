package models

import "time"

// RecomputeRun records one "recompute all" invocation
type RecomputeRun struct {
	ID int64 `json:"id" db:"id"`

	Status       string `json:"status" db:"status"` // running, completed, failed
	Clusters     int    `json:"clusters" db:"clusters"`
	Sightings    int    `json:"sightings" db:"sightings"`
	DurationMS   int64  `json:"durationMs" db:"duration_ms"`
	ErrorMessage string `json:"errorMessage,omitempty" db:"error_message"`
	TriggeredBy  string `json:"triggeredBy,omitempty" db:"triggered_by"`

	StartedAt   time.Time  `json:"startedAt" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

// RecomputeStatus constants
const (
	RecomputeStatusRunning   = "running"
	RecomputeStatusCompleted = "completed"
	RecomputeStatusFailed    = "failed"
)
