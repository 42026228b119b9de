package record

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a record store backed by a pgx pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id           BIGSERIAL PRIMARY KEY,
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
	rating       DOUBLE PRECISION,
	review_count INTEGER,
	hours        TEXT NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(name_key, address_key)
);

CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category);
CREATE INDEX IF NOT EXISTS idx_businesses_location ON businesses(location);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "record: migrate postgres")
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const pgBusinessColumns = `id, name, category, location, address,
	phone, whatsapp, email, website,
	instagram, facebook, linkedin, twitter,
	source_url, rating, review_count, hours, latitude, longitude,
	created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, candidate *Business) (Outcome, *Business, error) {
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
		if !isPgUniqueViolation(insErr) {
			return OutcomeSkipped, nil, insErr
		}
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

func (s *PostgresStore) lookup(ctx context.Context, nameKey, addressKey string) (*Business, error) {
	var row pgx.Row
	if addressKey != "" {
		row = s.pool.QueryRow(ctx,
			`SELECT `+pgBusinessColumns+` FROM businesses WHERE name_key = $1 AND address_key = $2`,
			nameKey, addressKey,
		)
	} else {
		row = s.pool.QueryRow(ctx,
			`SELECT `+pgBusinessColumns+` FROM businesses WHERE name_key = $1 ORDER BY id LIMIT 1`,
			nameKey,
		)
	}
	b, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "record: lookup")
	}
	return b, nil
}

func (s *PostgresStore) insert(ctx context.Context, b *Business, nameKey, addressKey string) (*Business, error) {
	saved := *b
	err := s.pool.QueryRow(ctx,
		`INSERT INTO businesses (
			name, name_key, address_key, category, location, address,
			phone, whatsapp, email, website,
			instagram, facebook, linkedin, twitter,
			source_url, rating, review_count, hours, latitude, longitude
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20
		) RETURNING id, created_at, updated_at`,
		b.Name, nameKey, addressKey, b.Category, b.Location, b.Address,
		b.Phone, b.WhatsApp, b.Email, b.Website,
		b.Instagram, b.Facebook, b.LinkedIn, b.Twitter,
		b.SourceURL, b.Rating, b.ReviewCount, b.Hours, b.Latitude, b.Longitude,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "record: insert %s", b.Name)
	}
	return &saved, nil
}

func (s *PostgresStore) update(ctx context.Context, b *Business) error {
	b.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`UPDATE businesses SET
			address=$2, phone=$3, whatsapp=$4, email=$5, website=$6,
			instagram=$7, facebook=$8, linkedin=$9, twitter=$10,
			source_url=$11, rating=$12, review_count=$13, hours=$14,
			latitude=$15, longitude=$16, updated_at=now()
		WHERE id=$1`,
		b.ID,
		b.Address, b.Phone, b.WhatsApp, b.Email, b.Website,
		b.Instagram, b.Facebook, b.LinkedIn, b.Twitter,
		b.SourceURL, b.Rating, b.ReviewCount, b.Hours,
		b.Latitude, b.Longitude,
	)
	return eris.Wrapf(err, "record: update %d", b.ID)
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Business, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgBusinessColumns+` FROM businesses WHERE id = $1`, id,
	)
	b, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("record: not found: %d", id)
		}
		return nil, eris.Wrapf(err, "record: get %d", id)
	}
	return b, nil
}

func (s *PostgresStore) GetByIDs(ctx context.Context, ids []int64) ([]Business, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgBusinessColumns+` FROM businesses WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "record: get by ids")
	}
	defer rows.Close()
	return collectPgBusinesses(rows)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Business, error) {
	query := `SELECT ` + pgBusinessColumns + ` FROM businesses WHERE 1=1`
	query, args := applyPgFilter(query, nil, filter)
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "record: list")
	}
	defer rows.Close()
	return collectPgBusinesses(rows)
}

func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int, error) {
	query := `SELECT COUNT(*) FROM businesses WHERE 1=1`
	query, args := applyPgFilter(query, nil, filter)

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "record: count")
	}
	return n, nil
}

func applyPgFilter(query string, args []any, filter Filter) (string, []any) {
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		query += ` AND location = $` + strconv.Itoa(len(args))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		query += ` AND id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	return query, args
}

func collectPgBusinesses(rows pgx.Rows) ([]Business, error) {
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

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

