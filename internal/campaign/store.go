package campaign

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Store persists campaigns and their send log.
type Store struct {
	db *sql.DB
}

// NewStore creates a campaign store on the given SQLite handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const migration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	template     TEXT NOT NULL,
	target_count INTEGER NOT NULL DEFAULT 0,
	sent_count   INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	last_index   INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'running',
	delay_ms     INTEGER NOT NULL DEFAULT 0,
	filter       TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	ended_at     DATETIME,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS send_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id    TEXT NOT NULL REFERENCES campaigns(id),
	recipient_id   INTEGER NOT NULL,
	recipient_name TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL,
	message        TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	sent_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_send_log_campaign_recipient ON send_log(campaign_id, recipient_id);
CREATE INDEX IF NOT EXISTS idx_send_log_campaign ON send_log(campaign_id);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "campaign: migrate")
}

// Create inserts a new running campaign and assigns its ID.
func (s *Store) Create(ctx context.Context, c *Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.Status = StatusRunning
	c.StartedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, template, target_count, sent_count, failed_count,
			last_index, status, delay_ms, filter, started_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Template, c.TargetCount, c.Status,
		c.Delay.Milliseconds(), c.Filter, c.StartedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "campaign: create %s", c.Name)
}

const campaignColumns = `id, name, template, target_count, sent_count, failed_count,
	last_index, status, delay_ms, filter, started_at, ended_at, updated_at`

// Get returns a campaign by ID.
func (s *Store) Get(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id,
	)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("campaign: not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "campaign: get %s", id)
	}
	return c, nil
}

// List returns all campaigns, most recently started first.
func (s *Store) List(ctx context.Context) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "campaign: list")
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "campaign: scan")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "campaign: iterate")
}

// SetStatus updates a campaign's status; completion also stamps ended_at.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	var endedAt any
	if status == StatusCompleted {
		endedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, ended_at = COALESCE(?, ended_at), updated_at = ? WHERE id = ?`,
		status, endedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "campaign: set status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "campaign: rows affected")
	}
	if n == 0 {
		return eris.Errorf("campaign: not found: %s", id)
	}
	return nil
}

// SetTargetCount refreshes a campaign's recipient count. Resume re-resolves
// the recipient set, which may have grown since the campaign started.
func (s *Store) SetTargetCount(ctx context.Context, id string, n int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET target_count = ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "campaign: set target count %s", id)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "campaign: rows affected")
	}
	if rows == 0 {
		return eris.Errorf("campaign: not found: %s", id)
	}
	return nil
}

// RecordSend appends a send-log entry and advances the campaign counters in
// one transaction, so a crash cannot separate the log from the counts.
func (s *Store) RecordSend(ctx context.Context, entry *SendLog, lastIndex int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "campaign: begin record send")
	}
	defer tx.Rollback()

	entry.SentAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO send_log (campaign_id, recipient_id, recipient_name, phone, message, outcome, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CampaignID, entry.RecipientID, entry.RecipientName, entry.Phone,
		entry.Message, entry.Outcome, entry.Error, entry.SentAt,
	)
	if err != nil {
		return eris.Wrapf(err, "campaign: append send log %s", entry.CampaignID)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		entry.ID = id
	}

	sentDelta, failedDelta := 0, 0
	if entry.Outcome == SendSuccess {
		sentDelta = 1
	} else {
		failedDelta = 1
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE campaigns SET
			sent_count = sent_count + ?,
			failed_count = failed_count + ?,
			last_index = MAX(last_index, ?),
			updated_at = ?
		 WHERE id = ?`,
		sentDelta, failedDelta, lastIndex, time.Now().UTC(), entry.CampaignID,
	)
	if err != nil {
		return eris.Wrapf(err, "campaign: advance %s", entry.CampaignID)
	}

	return eris.Wrap(tx.Commit(), "campaign: commit record send")
}

// HasSuccess reports whether a success entry exists for (campaign, recipient).
func (s *Store) HasSuccess(ctx context.Context, campaignID string, recipientID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM send_log WHERE campaign_id = ? AND recipient_id = ? AND outcome = ?`,
		campaignID, recipientID, SendSuccess,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "campaign: has success %s/%d", campaignID, recipientID)
	}
	return n > 0, nil
}

// SentRecipientIDs returns the recipients with a success entry in the
// campaign, the batch form of HasSuccess used to build a resume list.
func (s *Store) SentRecipientIDs(ctx context.Context, campaignID string) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT recipient_id FROM send_log WHERE campaign_id = ? AND outcome = ?`,
		campaignID, SendSuccess,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "campaign: sent recipients %s", campaignID)
	}
	defer rows.Close()

	sent := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "campaign: scan recipient id")
		}
		sent[id] = true
	}
	return sent, eris.Wrap(rows.Err(), "campaign: iterate recipients")
}

// Logs returns the send log for a campaign in send order.
func (s *Store) Logs(ctx context.Context, campaignID string) ([]SendLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, recipient_id, recipient_name, phone, message, outcome, error, sent_at
		 FROM send_log WHERE campaign_id = ? ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "campaign: logs %s", campaignID)
	}
	defer rows.Close()

	var out []SendLog
	for rows.Next() {
		var e SendLog
		if err := rows.Scan(
			&e.ID, &e.CampaignID, &e.RecipientID, &e.RecipientName,
			&e.Phone, &e.Message, &e.Outcome, &e.Error, &e.SentAt,
		); err != nil {
			return nil, eris.Wrap(err, "campaign: scan log")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "campaign: iterate logs")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCampaign(row scannable) (*Campaign, error) {
	var c Campaign
	var delayMS int64
	var endedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.Name, &c.Template, &c.TargetCount, &c.SentCount, &c.FailedCount,
		&c.LastIndex, &c.Status, &delayMS, &c.Filter, &c.StartedAt, &endedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Delay = time.Duration(delayMS) * time.Millisecond
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return &c, nil
}
