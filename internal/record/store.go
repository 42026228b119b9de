package record

import (
	"context"
)

// Filter specifies criteria for listing business records.
type Filter struct {
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
	IDs      []int64
	Limit    int `json:"limit,omitempty"`
	Offset   int `json:"offset,omitempty"`
}

// Store persists deduplicated business records.
//
// Upsert applies merge semantics: an unseen identity inserts (saved), a known
// identity gains only its missing fields (updated) or nothing (skipped).
// Implementations must tolerate a concurrent insert of the same identity by
// falling back to the update path instead of surfacing the constraint error.
type Store interface {
	Upsert(ctx context.Context, candidate *Business) (Outcome, *Business, error)
	Get(ctx context.Context, id int64) (*Business, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Business, error)
	List(ctx context.Context, filter Filter) ([]Business, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}
