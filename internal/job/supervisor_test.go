package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRejectsSecondJobOfSameKind(t *testing.T) {
	s := NewSupervisor()
	release := make(chan struct{})

	h, err := s.Start(context.Background(), KindHarvest, "first", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	_, err = s.Start(context.Background(), KindHarvest, "second", func(ctx context.Context) error {
		t.Fatal("second job must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, h.Wait())

	// Slot is free again once the first job finishes.
	h, err = s.Start(context.Background(), KindHarvest, "third", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, h.Wait())
}

func TestDifferentKindsRunConcurrently(t *testing.T) {
	s := NewSupervisor()
	release := make(chan struct{})

	h1, err := s.Start(context.Background(), KindHarvest, "", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	h2, err := s.Start(context.Background(), KindDispatch, "", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	close(release)
	require.NoError(t, h1.Wait())
	require.NoError(t, h2.Wait())
}

func TestStopCancelsJobContext(t *testing.T) {
	s := NewSupervisor()
	started := make(chan struct{})

	h, err := s.Start(context.Background(), KindDispatch, "", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	assert.True(t, s.Stop(KindDispatch))
	err = h.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Running(KindDispatch))
}

func TestStopWithoutRunningJob(t *testing.T) {
	s := NewSupervisor()
	assert.False(t, s.Stop(KindHarvest))
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	s := NewSupervisor()
	release := make(chan struct{})
	var admitted atomic.Int32
	var handles []*Handle
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Start(context.Background(), KindHarvest, "", func(ctx context.Context) error {
				<-release
				return nil
			})
			if err == nil {
				admitted.Add(1)
				mu.Lock()
				handles = append(handles, h)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrBusy)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())

	close(release)
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
}

func TestRunReturnsJobError(t *testing.T) {
	s := NewSupervisor()
	boom := errors.New("boom")
	err := s.Run(context.Background(), KindHarvest, "", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStatusReportsRunningJobs(t *testing.T) {
	s := NewSupervisor()
	release := make(chan struct{})

	h, err := s.Start(context.Background(), KindHarvest, "dentists in austin", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	infos := s.Status()
	require.Len(t, infos, 1)
	assert.Equal(t, KindHarvest, infos[0].Kind)
	assert.Equal(t, "dentists in austin", infos[0].Description)
	assert.WithinDuration(t, time.Now(), infos[0].StartedAt, time.Minute)

	close(release)
	require.NoError(t, h.Wait())
	assert.Empty(t, s.Status())
}
