package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
)

// Store provides read/write access to the harvest checkpoint table.
type Store struct {
	db *sql.DB
}

// NewStore creates a checkpoint store on the given SQLite handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const migration = `
CREATE TABLE IF NOT EXISTS harvest_checkpoints (
	category        TEXT NOT NULL,
	location        TEXT NOT NULL,
	total_found     INTEGER NOT NULL DEFAULT 0,
	total_processed INTEGER NOT NULL DEFAULT 0,
	total_saved     INTEGER NOT NULL DEFAULT 0,
	last_index      INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'running',
	error           TEXT NOT NULL DEFAULT '',
	started_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	PRIMARY KEY (category, location)
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "checkpoint: migrate")
}

const columns = `category, location, total_found, total_processed, total_saved,
	last_index, status, error, started_at, updated_at`

// Get returns the checkpoint for a (category, location) key, or nil when the
// key has never been harvested.
func (s *Store) Get(ctx context.Context, category, location string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM harvest_checkpoints WHERE category = ? AND location = ?`,
		category, location,
	)
	var cp Checkpoint
	err := row.Scan(
		&cp.Category, &cp.Location, &cp.TotalFound, &cp.TotalProcessed, &cp.TotalSaved,
		&cp.LastIndex, &cp.Status, &cp.Error, &cp.StartedAt, &cp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: get %s/%s", category, location)
	}
	return &cp, nil
}

// Start creates the checkpoint for a key, or flips an existing one back to
// running (preserving its counters) when a run resumes.
func (s *Store) Start(ctx context.Context, category, location string, totalFound int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvest_checkpoints (category, location, total_found, status, error, started_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT(category, location) DO UPDATE SET
			total_found = excluded.total_found,
			status = excluded.status,
			error = '',
			updated_at = excluded.updated_at`,
		category, location, totalFound, StatusRunning, now, now,
	)
	return eris.Wrapf(err, "checkpoint: start %s/%s", category, location)
}

// Advance records one processed item. It must be durable before the next
// item begins; a crash then loses at most the in-flight item. The index is
// guarded against moving backwards.
func (s *Store) Advance(ctx context.Context, category, location string, processedDelta, savedDelta, lastIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE harvest_checkpoints SET
			total_processed = total_processed + ?,
			total_saved = total_saved + ?,
			last_index = MAX(last_index, ?),
			updated_at = ?
		 WHERE category = ? AND location = ?`,
		processedDelta, savedDelta, lastIndex, time.Now().UTC(), category, location,
	)
	return eris.Wrapf(err, "checkpoint: advance %s/%s", category, location)
}

// MarkDone marks the harvest for a key as exhausted or complete.
func (s *Store) MarkDone(ctx context.Context, category, location string) error {
	return s.setStatus(ctx, category, location, StatusDone, "")
}

// MarkError records an unrecoverable failure, leaving progress intact for a
// later resume.
func (s *Store) MarkError(ctx context.Context, category, location, errMsg string) error {
	return s.setStatus(ctx, category, location, StatusError, errMsg)
}

func (s *Store) setStatus(ctx context.Context, category, location string, status Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE harvest_checkpoints SET status = ?, error = ?, updated_at = ?
		 WHERE category = ? AND location = ?`,
		status, errMsg, time.Now().UTC(), category, location,
	)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: set status %s/%s", category, location)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "checkpoint: rows affected")
	}
	if n == 0 {
		return eris.Errorf("checkpoint: not found: %s/%s", category, location)
	}
	return nil
}

// Reset hard-deletes the checkpoint for a key. This is the only destructive
// operation and is always explicit.
func (s *Store) Reset(ctx context.Context, category, location string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM harvest_checkpoints WHERE category = ? AND location = ?`,
		category, location,
	)
	return eris.Wrapf(err, "checkpoint: reset %s/%s", category, location)
}

// List returns all checkpoints ordered by most recently updated.
func (s *Store) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM harvest_checkpoints ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: list")
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(
			&cp.Category, &cp.Location, &cp.TotalFound, &cp.TotalProcessed, &cp.TotalSaved,
			&cp.LastIndex, &cp.Status, &cp.Error, &cp.StartedAt, &cp.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan")
		}
		out = append(out, cp)
	}
	return out, eris.Wrap(rows.Err(), "checkpoint: iterate")
}
