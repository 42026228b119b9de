// Package extractor discovers business listings in external directories
// and pulls the contact details for each one.
package extractor

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/record"
)

// Query selects a slice of a directory: one category in one location.
type Query struct {
	Category string
	Location string
}

// Handle identifies a single listing inside a directory. Label is a
// human-readable name used in logs and progress events before the full
// record is fetched.
type Handle struct {
	ID    string
	Label string
	URL   string
}

// Directory is a source of business listings. List enumerates candidate
// handles for a query; Fetch resolves one handle into a partial record
// holding whatever fields the source exposes.
type Directory interface {
	List(ctx context.Context, q Query, limit int) ([]Handle, error)
	Fetch(ctx context.Context, h Handle) (*record.Business, error)
}
