// Package checkpoint persists harvest progress so interrupted runs resume
// where they left off.
package checkpoint

import (
	"time"
)

// Status of a harvest checkpoint.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Checkpoint is the durable progress marker for one (category, location)
// harvest query. LastIndex only moves forward while the checkpoint is
// running; resume picks up at LastIndex.
type Checkpoint struct {
	Category       string    `json:"category"`
	Location       string    `json:"location"`
	TotalFound     int       `json:"total_found"`
	TotalProcessed int       `json:"total_processed"`
	TotalSaved     int       `json:"total_saved"`
	LastIndex      int       `json:"last_index"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
