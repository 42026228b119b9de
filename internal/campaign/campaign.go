// Package campaign persists dispatch campaigns and their per-send log.
package campaign

import (
	"time"
)

// Status of a campaign.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Campaign is one dispatch run against a recipient set.
type Campaign struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Template    string        `json:"template"`
	TargetCount int           `json:"target_count"`
	SentCount   int           `json:"sent_count"`
	FailedCount int           `json:"failed_count"`
	LastIndex   int           `json:"last_index"`
	Status      Status        `json:"status"`
	Delay       time.Duration `json:"delay"`
	Filter      string        `json:"filter,omitempty"` // opaque recipient-filter description
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SendOutcome classifies one delivery attempt.
type SendOutcome string

const (
	SendSuccess       SendOutcome = "success"
	SendFailure       SendOutcome = "failure"
	SendInvalidNumber SendOutcome = "invalid_number"
)

// SendLog is one append-only delivery record. A success row for
// (campaign, recipient) is the sole source of truth for "already sent in
// this campaign".
type SendLog struct {
	ID            int64       `json:"id"`
	CampaignID    string      `json:"campaign_id"`
	RecipientID   int64       `json:"recipient_id"`
	RecipientName string      `json:"recipient_name"`
	Phone         string      `json:"phone"`
	Message       string      `json:"message"`
	Outcome       SendOutcome `json:"outcome"`
	Error         string      `json:"error,omitempty"`
	SentAt        time.Time   `json:"sent_at"`
}
