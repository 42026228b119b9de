// Package events carries job progress from the controllers to whoever is
// watching, decoupling job logic from any transport.
package events

import (
	"time"
)

// Kind discriminates event payloads.
type Kind string

const (
	KindHarvestStarted    Kind = "harvest_started"
	KindHarvestProgress   Kind = "harvest_progress"
	KindHarvestCompleted  Kind = "harvest_completed"
	KindHarvestError      Kind = "harvest_error"
	KindDispatchProgress  Kind = "dispatch_progress"
	KindDispatchPaused    Kind = "dispatch_paused"
	KindDispatchCompleted Kind = "dispatch_completed"
	KindDispatchError     Kind = "dispatch_error"
)

// Event is one progress or terminal notification. Exactly one payload field
// is set, matching Kind.
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	HarvestProgress  *HarvestProgress  `json:"harvest_progress,omitempty"`
	DispatchProgress *DispatchProgress `json:"dispatch_progress,omitempty"`
	DispatchPaused   *DispatchPaused   `json:"dispatch_paused,omitempty"`
	DispatchSummary  *DispatchSummary  `json:"dispatch_summary,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// HarvestProgress is emitted after each harvested item's checkpoint write.
type HarvestProgress struct {
	Processed    int    `json:"processed"`
	Total        int    `json:"total"`
	Saved        int    `json:"saved"`
	Updated      int    `json:"updated"`
	Skipped      int    `json:"skipped"`
	CurrentLabel string `json:"current_label"`
	Outcome      string `json:"outcome"`
}

// DispatchProgress is emitted after each recipient's send-log write.
type DispatchProgress struct {
	Current        int    `json:"current"`
	Total          int    `json:"total"`
	SuccessCount   int    `json:"success_count"`
	FailedCount    int    `json:"failed_count"`
	RecipientLabel string `json:"recipient_label"`
	Phone          string `json:"phone"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
}

// DispatchPaused reports how many recipients remain when a campaign pauses.
type DispatchPaused struct {
	CampaignID string `json:"campaign_id"`
	Remaining  int    `json:"remaining"`
}

// DispatchSummary reports final counts when a campaign completes.
type DispatchSummary struct {
	CampaignID string `json:"campaign_id"`
	Total      int    `json:"total"`
	Success    int    `json:"success"`
	Failed     int    `json:"failed"`
}
