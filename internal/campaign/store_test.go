package campaign

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "campaigns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	s := NewStore(sqlDB)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newCampaign(t *testing.T, s *Store) *Campaign {
	t.Helper()
	c := &Campaign{
		Name:        "spring promo",
		Template:    "Hi {name}!",
		TargetCount: 3,
		Delay:       2 * time.Second,
	}
	require.NoError(t, s.Create(context.Background(), c))
	return c
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	s := newStore(t)
	c := newCampaign(t, s)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, StatusRunning, c.Status)
	assert.False(t, c.StartedAt.IsZero())

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "spring promo", got.Name)
	assert.Equal(t, 2*time.Second, got.Delay)
	assert.Equal(t, 3, got.TargetCount)
	assert.Nil(t, got.EndedAt)
}

func TestGetMissingCampaign(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRecordSendAdvancesCounters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.RecordSend(ctx, &SendLog{
		CampaignID: c.ID, RecipientID: 1, RecipientName: "Shop A",
		Phone: "15550100", Message: "Hi Shop A!", Outcome: SendSuccess,
	}, 1))
	require.NoError(t, s.RecordSend(ctx, &SendLog{
		CampaignID: c.ID, RecipientID: 2, RecipientName: "Shop B",
		Phone: "15550101", Message: "Hi Shop B!", Outcome: SendInvalidNumber,
	}, 2))
	require.NoError(t, s.RecordSend(ctx, &SendLog{
		CampaignID: c.ID, RecipientID: 3, RecipientName: "Shop C",
		Phone: "15550102", Message: "Hi Shop C!", Outcome: SendFailure, Error: "timeout",
	}, 3))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 2, got.FailedCount)
	assert.Equal(t, 3, got.LastIndex)

	logs, err := s.Logs(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, SendSuccess, logs[0].Outcome)
	assert.Equal(t, "timeout", logs[2].Error)
	assert.NotZero(t, logs[0].ID)
	assert.False(t, logs[0].SentAt.IsZero())
}

func TestRecordSendLastIndexIsMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 1, Outcome: SendSuccess}, 5))
	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 2, Outcome: SendSuccess}, 3))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.LastIndex)
}

func TestHasSuccessOnlyCountsSuccessRows(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 1, Outcome: SendFailure}, 1))
	ok, err := s.HasSuccess(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 1, Outcome: SendSuccess}, 2))
	ok, err = s.HasSuccess(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSentRecipientIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 1, Outcome: SendSuccess}, 1))
	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 2, Outcome: SendFailure}, 2))
	require.NoError(t, s.RecordSend(ctx, &SendLog{CampaignID: c.ID, RecipientID: 3, Outcome: SendSuccess}, 3))

	sent, err := s.SentRecipientIDs(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, sent)
}

func TestSetStatusStampsEndedAtOnCompletion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.SetStatus(ctx, c.ID, StatusPaused))
	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Nil(t, got.EndedAt)

	require.NoError(t, s.SetStatus(ctx, c.ID, StatusCompleted))
	got, err = s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.WithinDuration(t, time.Now(), *got.EndedAt, time.Minute)
}

func TestSetTargetCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := newCampaign(t, s)

	require.NoError(t, s.SetTargetCount(ctx, c.ID, 7))
	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.TargetCount)

	err = s.SetTargetCount(ctx, "no-such-id", 7)
	require.Error(t, err)
}

func TestSetStatusMissingCampaign(t *testing.T) {
	s := newStore(t)
	err := s.SetStatus(context.Background(), "no-such-id", StatusPaused)
	require.Error(t, err)
}

func TestListOrdersByStart(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := newCampaign(t, s)
	second := newCampaign(t, s)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
