package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	s := NewStore(sqlDB)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestGetMissingCheckpointReturnsNil(t *testing.T) {
	s := newStore(t)
	cp, err := s.Get(context.Background(), "dentist", "austin")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestStartCreatesRunningCheckpoint(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "dentist", "austin", 40))
	cp, err := s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, StatusRunning, cp.Status)
	assert.Equal(t, 40, cp.TotalFound)
	assert.Zero(t, cp.TotalProcessed)
	assert.False(t, cp.StartedAt.IsZero())
}

func TestStartAgainPreservesCounters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "dentist", "austin", 40))
	require.NoError(t, s.Advance(ctx, "dentist", "austin", 5, 3, 5))
	require.NoError(t, s.MarkError(ctx, "dentist", "austin", "directory down"))

	// A rerun flips back to running but keeps accumulated progress.
	require.NoError(t, s.Start(ctx, "dentist", "austin", 42))
	cp, err := s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, cp.Status)
	assert.Empty(t, cp.Error)
	assert.Equal(t, 42, cp.TotalFound)
	assert.Equal(t, 5, cp.TotalProcessed)
	assert.Equal(t, 3, cp.TotalSaved)
	assert.Equal(t, 5, cp.LastIndex)
}

func TestAdvanceAccumulatesAndLastIndexIsMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "dentist", "austin", 10))

	require.NoError(t, s.Advance(ctx, "dentist", "austin", 1, 1, 1))
	require.NoError(t, s.Advance(ctx, "dentist", "austin", 1, 0, 2))
	// A stale writer cannot move the resume point backwards.
	require.NoError(t, s.Advance(ctx, "dentist", "austin", 1, 1, 1))

	cp, err := s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.TotalProcessed)
	assert.Equal(t, 2, cp.TotalSaved)
	assert.Equal(t, 2, cp.LastIndex)
}

func TestMarkDoneAndMarkError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "dentist", "austin", 10))

	require.NoError(t, s.MarkDone(ctx, "dentist", "austin"))
	cp, err := s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, cp.Status)

	require.NoError(t, s.MarkError(ctx, "dentist", "austin", "boom"))
	cp, err = s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	assert.Equal(t, StatusError, cp.Status)
	assert.Equal(t, "boom", cp.Error)
}

func TestMarkDoneOnMissingCheckpoint(t *testing.T) {
	s := newStore(t)
	err := s.MarkDone(context.Background(), "nope", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResetDeletesCheckpoint(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "dentist", "austin", 10))
	require.NoError(t, s.Reset(ctx, "dentist", "austin"))

	cp, err := s.Get(ctx, "dentist", "austin")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestListReturnsAllCheckpoints(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "dentist", "austin", 10))
	require.NoError(t, s.Start(ctx, "bakery", "lisbon", 20))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
