// Package suppress maintains the durable set of phone numbers excluded from
// all outbound dispatch.
package suppress

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/record"
)

// Entry is one suppressed phone number.
type Entry struct {
	Phone     string    `json:"phone"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reasons recorded by the dispatch path.
const (
	ReasonInvalidNumber = "invalid_number"
	ReasonManual        = "manual"
)

// Store persists the suppression list, unique on normalized phone.
type Store struct {
	db *sql.DB
}

// NewStore creates a suppression store on the given SQLite handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const migration = `
CREATE TABLE IF NOT EXISTS suppressed_numbers (
	phone      TEXT PRIMARY KEY,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "suppress: migrate")
}

// IsSuppressed reports whether a phone number is on the list. The input is
// normalized before lookup.
func (s *Store) IsSuppressed(ctx context.Context, phone string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppressed_numbers WHERE phone = ?`,
		record.NormalizePhone(phone),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "suppress: lookup")
	}
	return n > 0, nil
}

// Suppress adds a phone number to the list. It is idempotent: the return
// value reports whether the number was newly added.
func (s *Store) Suppress(ctx context.Context, phone, reason string) (bool, error) {
	normalized := record.NormalizePhone(phone)
	if normalized == "" {
		return false, eris.New("suppress: empty phone")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO suppressed_numbers (phone, reason, created_at) VALUES (?, ?, ?)`,
		normalized, reason, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "suppress: add %s", normalized)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "suppress: rows affected")
	}
	return n > 0, nil
}

// Unsuppress removes a phone number from the list.
func (s *Store) Unsuppress(ctx context.Context, phone string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM suppressed_numbers WHERE phone = ?`,
		record.NormalizePhone(phone),
	)
	return eris.Wrapf(err, "suppress: remove %s", phone)
}

// List returns all suppressed numbers, most recent first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phone, reason, created_at FROM suppressed_numbers ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "suppress: list")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Phone, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "suppress: scan")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "suppress: iterate")
}
