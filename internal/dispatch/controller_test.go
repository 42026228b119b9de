package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/events"
	"github.com/sells-group/outreach-cli/internal/messenger"
	"github.com/sells-group/outreach-cli/internal/record"
	"github.com/sells-group/outreach-cli/internal/suppress"
)

// fakeMessenger records sends and answers from a per-phone script.
type fakeMessenger struct {
	mu       sync.Mutex
	sends    []string // phones in send order
	invalid  map[string]bool
	failWith map[string]error
	onSend   func(phone string)
}

func (m *fakeMessenger) Send(ctx context.Context, phone, message string) (messenger.Result, error) {
	m.mu.Lock()
	m.sends = append(m.sends, phone)
	m.mu.Unlock()
	if m.onSend != nil {
		m.onSend(phone)
	}
	if err := ctx.Err(); err != nil {
		return messenger.Result{}, err
	}
	if err, ok := m.failWith[phone]; ok {
		return messenger.Result{}, err
	}
	if m.invalid[phone] {
		return messenger.Result{InvalidRecipient: true}, nil
	}
	return messenger.Result{Delivered: true}, nil
}

func (m *fakeMessenger) sentPhones() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sends...)
}

type fixture struct {
	ctrl      *Controller
	campaigns *campaign.Store
	records   record.Store
	supp      *suppress.Store
	sender    *fakeMessenger
	bus       *events.Bus
}

// newFixture seeds the record store with one business per phone number.
func newFixture(t *testing.T, phones ...string) *fixture {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	records := record.NewSQLite(sqlDB)
	require.NoError(t, records.Migrate(context.Background()))
	campaigns := campaign.NewStore(sqlDB)
	require.NoError(t, campaigns.Migrate(context.Background()))
	supp := suppress.NewStore(sqlDB)
	require.NoError(t, supp.Migrate(context.Background()))

	for i, phone := range phones {
		b := &record.Business{
			Name:    "Shop " + string(rune('A'+i)),
			Address: "1 Main St " + string(rune('A'+i)),
			Phone:   phone,
		}
		_, _, err := records.Upsert(context.Background(), b)
		require.NoError(t, err)
	}

	sender := &fakeMessenger{invalid: map[string]bool{}, failWith: map[string]error{}}
	bus := events.NewBus()
	return &fixture{
		ctrl:      NewController(campaigns, records, supp, sender, bus),
		campaigns: campaigns,
		records:   records,
		supp:      supp,
		sender:    sender,
		bus:       bus,
	}
}

func startParams() StartParams {
	return StartParams{Name: "spring promo", Template: "Hi {name}!"}
}

func TestStartSendsToAllRecipients(t *testing.T) {
	f := newFixture(t, "15550100", "15550101", "15550102")

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"15550100", "15550101", "15550102"}, f.sender.sentPhones())

	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, camp.Status)
	assert.Equal(t, 3, camp.TargetCount)
	assert.Equal(t, 3, camp.SentCount)
	assert.Equal(t, 0, camp.FailedCount)
	assert.NotNil(t, camp.EndedAt)

	logs, err := f.campaigns.Logs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "Hi Shop A!", logs[0].Message)
	assert.Equal(t, campaign.SendSuccess, logs[0].Outcome)
}

func TestStartSuppressesInvalidNumber(t *testing.T) {
	f := newFixture(t, "15550100", "15550101", "15550102")
	f.sender.invalid["15550101"] = true

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	logs, err := f.campaigns.Logs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, campaign.SendSuccess, logs[0].Outcome)
	assert.Equal(t, campaign.SendInvalidNumber, logs[1].Outcome)
	assert.Equal(t, campaign.SendSuccess, logs[2].Outcome)

	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, camp.Status)
	assert.Equal(t, 2, camp.SentCount)
	assert.Equal(t, 1, camp.FailedCount)

	suppressed, err := f.supp.IsSuppressed(context.Background(), "15550101")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestStartSkipsSuppressedRecipients(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	_, err := f.supp.Suppress(context.Background(), "15550101", suppress.ReasonManual)
	require.NoError(t, err)

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"15550100"}, f.sender.sentPhones())
	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, camp.TargetCount)
}

func TestPauseAndResumeSendsEachRecipientOnce(t *testing.T) {
	f := newFixture(t, "15550100", "15550101", "15550102")

	ctx, cancel := context.WithCancel(context.Background())
	f.sender.onSend = func(phone string) {
		if phone == "15550101" {
			cancel()
		}
	}
	id, err := f.ctrl.Start(ctx, startParams())
	require.NoError(t, err)

	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPaused, camp.Status)

	logs, err := f.campaigns.Logs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, campaign.SendSuccess, logs[0].Outcome)

	f.sender.onSend = nil
	require.NoError(t, f.ctrl.Resume(context.Background(), id))

	// Recipient A got exactly one message across both runs.
	phones := f.sender.sentPhones()
	count := 0
	for _, p := range phones {
		if p == "15550100" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	camp, err = f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, camp.Status)
	assert.Equal(t, 3, camp.SentCount)
}

func TestResumeCompletedCampaignIsNoOp(t *testing.T) {
	f := newFixture(t, "15550100")

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Resume(context.Background(), id))
	assert.Len(t, f.sender.sentPhones(), 1)
}

func TestResumeRetriesFailedRecipients(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	f.sender.failWith["15550101"] = errors.New("gateway hiccup")

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, camp.Status)
	assert.Equal(t, 1, camp.FailedCount)

	// A later resume only re-attempts the failed recipient.
	delete(f.sender.failWith, "15550101")
	require.NoError(t, f.campaigns.SetStatus(context.Background(), id, campaign.StatusPaused))
	require.NoError(t, f.ctrl.Resume(context.Background(), id))

	assert.Equal(t, []string{"15550100", "15550101", "15550101"}, f.sender.sentPhones())
}

func TestFatalMessengerErrorPausesCampaign(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	f.sender.failWith["15550100"] = messenger.Fatal(errors.New("session expired"))

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.Error(t, err)

	camp, getErr := f.campaigns.Get(context.Background(), id)
	require.NoError(t, getErr)
	assert.Equal(t, campaign.StatusPaused, camp.Status)
	// Nothing past the fatal failure was attempted.
	assert.Equal(t, []string{"15550100"}, f.sender.sentPhones())
}

func TestPlainSendFailureContinues(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	f.sender.failWith["15550100"] = errors.New("timeout downstream")

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	logs, err := f.campaigns.Logs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, campaign.SendFailure, logs[0].Outcome)
	assert.Contains(t, logs[0].Error, "timeout downstream")
	assert.Equal(t, campaign.SendSuccess, logs[1].Outcome)
}

func TestDelaySkippedAfterLastRecipient(t *testing.T) {
	f := newFixture(t, "15550100")
	params := startParams()
	params.Delay = time.Hour

	done := make(chan struct{})
	go func() {
		_, err := f.ctrl.Start(context.Background(), params)
		assert.NoError(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("single-recipient campaign should not wait out the pacing delay")
	}
}

func TestResumeCountsNewlyMatchedRecipients(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	f.sender.failWith["15550101"] = errors.New("temporarily unreachable")

	id, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)
	require.NoError(t, f.campaigns.SetStatus(context.Background(), id, campaign.StatusPaused))
	delete(f.sender.failWith, "15550101")

	// A record harvested after the campaign started joins the target set
	// on resume; the stored target count follows it.
	_, _, err = f.records.Upsert(context.Background(), &record.Business{
		Name:    "Shop C",
		Address: "1 Main St C",
		Phone:   "15550102",
	})
	require.NoError(t, err)

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	require.NoError(t, f.ctrl.Resume(context.Background(), id))

	camp, err := f.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, camp.Status)
	assert.Equal(t, 3, camp.TargetCount)
	assert.Equal(t, 3, camp.SentCount)

	var progress []events.DispatchProgress
	for done := false; !done; {
		e := <-ch
		switch e.Kind {
		case events.KindDispatchProgress:
			progress = append(progress, *e.DispatchProgress)
		case events.KindDispatchCompleted:
			done = true
		}
	}
	// One recipient was already sent, so the resumed run reports 2 of 3
	// and 3 of 3, never a stale or negative position.
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[0].Current)
	assert.Equal(t, 3, progress[0].Total)
	assert.Equal(t, 3, progress[1].Current)
	assert.Equal(t, 3, progress[1].Total)
}

func TestProgressEventsFollowLogWrites(t *testing.T) {
	f := newFixture(t, "15550100", "15550101")
	ch, cancel := f.bus.Subscribe()
	defer cancel()

	_, err := f.ctrl.Start(context.Background(), startParams())
	require.NoError(t, err)

	var progress []events.DispatchProgress
	var summary *events.DispatchSummary
	for summary == nil {
		e := <-ch
		switch e.Kind {
		case events.KindDispatchProgress:
			progress = append(progress, *e.DispatchProgress)
		case events.KindDispatchCompleted:
			summary = e.DispatchSummary
		}
	}
	require.Len(t, progress, 2)
	assert.Equal(t, 1, progress[0].Current)
	assert.Equal(t, 2, progress[0].Total)
	assert.Equal(t, 2, progress[1].SuccessCount)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 0, summary.Failed)
}
