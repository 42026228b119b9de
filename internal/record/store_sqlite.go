package record

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SQLiteStore implements Store on a shared SQLite handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a record store backed by the given SQLite handle.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	address_key  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL,
	location     TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	whatsapp     TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	instagram    TEXT NOT NULL DEFAULT '',
	facebook     TEXT NOT NULL DEFAULT '',
	linkedin     TEXT NOT NULL DEFAULT '',
	twitter      TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	rating       REAL,
	review_count INTEGER,
	hours        TEXT NOT NULL DEFAULT '',
	latitude     REAL,
	longitude    REAL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	UNIQUE(name_key, address_key)
);

CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category);
CREATE INDEX IF NOT EXISTS idx_businesses_location ON businesses(location);
CREATE INDEX IF NOT EXISTS idx_businesses_whatsapp ON businesses(whatsapp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "record: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const businessColumns = `id, name, category, location, address,
	phone, whatsapp, email, website,
	instagram, facebook, linkedin, twitter,
	source_url, rating, review_count, hours, latitude, longitude,
	created_at, updated_at`

// Upsert inserts the candidate or merges it into the existing record for the
// same identity. The insert is attempted first; a unique-constraint failure
// means a concurrent writer created the identity, so the update path is
// retried against the fresh row.
func (s *SQLiteStore) Upsert(ctx context.Context, candidate *Business) (Outcome, *Business, error) {
	nameKey, addressKey := IdentityKey(candidate)
	if nameKey == "" {
		return OutcomeSkipped, nil, eris.New("record: upsert: name is required")
	}

	existing, err := s.lookup(ctx, nameKey, addressKey)
	if err != nil {
		return OutcomeSkipped, nil, err
	}
	if existing == nil {
		inserted, insErr := s.insert(ctx, candidate, nameKey, addressKey)
		if insErr == nil {
			return OutcomeSaved, inserted, nil
		}
		if !isUniqueViolation(insErr) {
			return OutcomeSkipped, nil, insErr
		}
		// Lost the insert race; the row exists now.
		existing, err = s.lookup(ctx, nameKey, addressKey)
		if err != nil {
			return OutcomeSkipped, nil, err
		}
		if existing == nil {
			return OutcomeSkipped, nil, insErr
		}
	}

	if !Merge(existing, candidate) {
		return OutcomeSkipped, existing, nil
	}
	if err := s.update(ctx, existing); err != nil {
		return OutcomeSkipped, nil, err
	}
	return OutcomeUpdated, existing, nil
}

func (s *SQLiteStore) lookup(ctx context.Context, nameKey, addressKey string) (*Business, error) {
	var row *sql.Row
	if addressKey != "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+businessColumns+` FROM businesses WHERE name_key = ? AND address_key = ?`,
			nameKey, addressKey,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+businessColumns+` FROM businesses WHERE name_key = ? ORDER BY id LIMIT 1`,
			nameKey,
		)
	}
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "record: lookup")
	}
	return b, nil
}

func (s *SQLiteStore) insert(ctx context.Context, b *Business, nameKey, addressKey string) (*Business, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO businesses (
			name, name_key, address_key, category, location, address,
			phone, whatsapp, email, website,
			instagram, facebook, linkedin, twitter,
			source_url, rating, review_count, hours, latitude, longitude,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, nameKey, addressKey, b.Category, b.Location, b.Address,
		b.Phone, b.WhatsApp, b.Email, b.Website,
		b.Instagram, b.Facebook, b.LinkedIn, b.Twitter,
		b.SourceURL, b.Rating, b.ReviewCount, b.Hours, b.Latitude, b.Longitude,
		now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "record: insert %s", b.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "record: last insert id")
	}
	saved := *b
	saved.ID = id
	saved.CreatedAt = now
	saved.UpdatedAt = now
	return &saved, nil
}

func (s *SQLiteStore) update(ctx context.Context, b *Business) error {
	b.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET
			address = ?, phone = ?, whatsapp = ?, email = ?, website = ?,
			instagram = ?, facebook = ?, linkedin = ?, twitter = ?,
			source_url = ?, rating = ?, review_count = ?, hours = ?,
			latitude = ?, longitude = ?, updated_at = ?
		WHERE id = ?`,
		b.Address, b.Phone, b.WhatsApp, b.Email, b.Website,
		b.Instagram, b.Facebook, b.LinkedIn, b.Twitter,
		b.SourceURL, b.Rating, b.ReviewCount, b.Hours,
		b.Latitude, b.Longitude, b.UpdatedAt,
		b.ID,
	)
	return eris.Wrapf(err, "record: update %d", b.ID)
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Business, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id,
	)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("record: not found: %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "record: get %d", id)
	}
	return b, nil
}

func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []int64) ([]Business, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "record: get by ids")
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE 1=1`
	query, args := applyFilter(query, nil, filter)
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "record: list")
	}
	defer rows.Close()
	return collectBusinesses(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	query := `SELECT COUNT(*) FROM businesses WHERE 1=1`
	query, args := applyFilter(query, nil, filter)

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "record: count")
	}
	return n, nil
}

func applyFilter(query string, args []any, filter Filter) (string, []any) {
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, filter.Location)
	}
	if len(filter.IDs) > 0 {
		query += ` AND id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(filter.IDs)), ",") + `)`
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	return query, args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*Business, error) {
	var b Business
	err := row.Scan(
		&b.ID, &b.Name, &b.Category, &b.Location, &b.Address,
		&b.Phone, &b.WhatsApp, &b.Email, &b.Website,
		&b.Instagram, &b.Facebook, &b.LinkedIn, &b.Twitter,
		&b.SourceURL, &b.Rating, &b.ReviewCount, &b.Hours, &b.Latitude, &b.Longitude,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBusinesses(rows *sql.Rows) ([]Business, error) {
	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "record: scan")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "record: iterate")
}
