// Package dispatch runs messaging campaigns over harvested records,
// logging every attempt so an interrupted campaign resumes without a
// single duplicate send.
package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/events"
	"github.com/sells-group/outreach-cli/internal/messenger"
	"github.com/sells-group/outreach-cli/internal/record"
	"github.com/sells-group/outreach-cli/internal/suppress"
)

// StartParams configures a new campaign.
type StartParams struct {
	Name     string
	Template string
	Filter   record.Filter
	Delay    time.Duration
}

// Controller runs dispatch campaigns. The send log is the source of
// truth: a recipient with a success row is never messaged again, and
// the log row lands before the progress event goes out.
type Controller struct {
	campaigns  *campaign.Store
	records    record.Store
	suppressed *suppress.Store
	sender     messenger.Messenger
	bus        *events.Bus
	log        *zap.Logger
}

func NewController(campaigns *campaign.Store, records record.Store, suppressed *suppress.Store, sender messenger.Messenger, bus *events.Bus) *Controller {
	return &Controller{
		campaigns:  campaigns,
		records:    records,
		suppressed: suppressed,
		sender:     sender,
		bus:        bus,
		log:        zap.L().With(zap.String("component", "dispatch")),
	}
}

// Start creates a campaign over the records matching p.Filter and sends
// to every eligible recipient. Suppressed numbers and records without a
// phone are excluded up front. Returns the campaign ID.
func (c *Controller) Start(ctx context.Context, p StartParams) (string, error) {
	targets, err := c.resolveTargets(ctx, p.Filter)
	if err != nil {
		return "", err
	}

	filterJSON, err := json.Marshal(p.Filter)
	if err != nil {
		return "", eris.Wrap(err, "dispatch: encode filter")
	}
	camp := &campaign.Campaign{
		Name:        p.Name,
		Template:    p.Template,
		TargetCount: len(targets),
		Delay:       p.Delay,
		Filter:      string(filterJSON),
	}
	if err := c.campaigns.Create(ctx, camp); err != nil {
		return "", eris.Wrap(err, "dispatch: create campaign")
	}
	c.log.Info("campaign started",
		zap.String("campaign_id", camp.ID),
		zap.String("name", camp.Name),
		zap.Int("targets", len(targets)))
	return camp.ID, c.run(ctx, camp, targets)
}

// Resume continues a paused campaign, re-resolving its recipient set and
// skipping everyone who already has a success log row. Resuming a
// completed campaign is a no-op.
func (c *Controller) Resume(ctx context.Context, campaignID string) error {
	camp, err := c.campaigns.Get(ctx, campaignID)
	if err != nil {
		return eris.Wrap(err, "dispatch: load campaign")
	}
	if camp.Status == campaign.StatusCompleted {
		c.log.Info("campaign already completed, nothing to resume", zap.String("campaign_id", campaignID))
		return nil
	}

	var filter record.Filter
	if camp.Filter != "" {
		if err := json.Unmarshal([]byte(camp.Filter), &filter); err != nil {
			return eris.Wrap(err, "dispatch: decode campaign filter")
		}
	}
	targets, err := c.resolveTargets(ctx, filter)
	if err != nil {
		return err
	}

	sent, err := c.campaigns.SentRecipientIDs(ctx, campaignID)
	if err != nil {
		return eris.Wrap(err, "dispatch: load sent recipients")
	}
	pending := targets[:0:0]
	for _, t := range targets {
		if !sent[t.ID] {
			pending = append(pending, t)
		}
	}

	// The matching set can have grown since the campaign started; keep
	// the stored count in step so progress reporting stays accurate.
	if len(targets) != camp.TargetCount {
		if err := c.campaigns.SetTargetCount(ctx, campaignID, len(targets)); err != nil {
			return eris.Wrap(err, "dispatch: refresh target count")
		}
		camp.TargetCount = len(targets)
	}

	if err := c.campaigns.SetStatus(ctx, campaignID, campaign.StatusRunning); err != nil {
		return eris.Wrap(err, "dispatch: mark campaign running")
	}
	c.log.Info("campaign resumed",
		zap.String("campaign_id", campaignID),
		zap.Int("remaining", len(pending)))
	return c.run(ctx, camp, pending)
}

// resolveTargets pages through all matching records and drops those
// without a phone or with a suppressed one. Filter.Limit caps the number
// of recipients, not the page size. Targets come back ordered by ID so a
// resume walks the same sequence the original run did.
func (c *Controller) resolveTargets(ctx context.Context, filter record.Filter) ([]record.Business, error) {
	const pageSize = 500

	page := filter
	page.Limit = pageSize
	var targets []record.Business
	for {
		batch, err := c.records.List(ctx, page)
		if err != nil {
			return nil, eris.Wrap(err, "dispatch: list recipients")
		}
		for _, b := range batch {
			phone := recipientPhone(&b)
			if phone == "" {
				continue
			}
			suppressed, err := c.suppressed.IsSuppressed(ctx, phone)
			if err != nil {
				return nil, eris.Wrap(err, "dispatch: check suppression")
			}
			if suppressed {
				continue
			}
			targets = append(targets, b)
			if filter.Limit > 0 && len(targets) >= filter.Limit {
				sortTargets(targets)
				return targets, nil
			}
		}
		if len(batch) < pageSize {
			break
		}
		page.Offset += pageSize
	}
	sortTargets(targets)
	return targets, nil
}

func sortTargets(targets []record.Business) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
}

func (c *Controller) run(ctx context.Context, camp *campaign.Campaign, pending []record.Business) error {
	log := c.log.With(zap.String("campaign_id", camp.ID))
	attempted := camp.TargetCount - len(pending)

	for i := range pending {
		if ctx.Err() != nil {
			return c.pause(ctx, camp, log, len(pending)-i)
		}
		r := &pending[i]

		// The log row is the truth, re-check even though pending was
		// already filtered: a concurrent or crashed run may have sent.
		already, err := c.campaigns.HasSuccess(ctx, camp.ID, r.ID)
		if err != nil {
			return eris.Wrap(err, "dispatch: check send log")
		}
		if already {
			continue
		}

		phone := record.NormalizePhone(recipientPhone(r))
		message := campaign.Render(camp.Template, r)

		res, sendErr := c.sender.Send(ctx, phone, message)
		if sendErr != nil && ctx.Err() != nil {
			return c.pause(ctx, camp, log, len(pending)-i)
		}

		entry := &campaign.SendLog{
			CampaignID:    camp.ID,
			RecipientID:   r.ID,
			RecipientName: r.Name,
			Phone:         phone,
			Message:       message,
		}
		switch {
		case sendErr != nil && messenger.IsFatal(sendErr):
			log.Error("messenger failed fatally, pausing campaign", zap.Error(sendErr))
			if err := c.pause(ctx, camp, log, len(pending)-i); err != nil {
				return err
			}
			return eris.Wrap(sendErr, "dispatch: messenger failure")
		case sendErr != nil:
			entry.Outcome = campaign.SendFailure
			entry.Error = sendErr.Error()
		case res.InvalidRecipient:
			entry.Outcome = campaign.SendInvalidNumber
			if _, err := c.suppressed.Suppress(ctx, phone, suppress.ReasonInvalidNumber); err != nil {
				return eris.Wrap(err, "dispatch: suppress invalid number")
			}
			log.Info("invalid number suppressed",
				zap.String("recipient", r.Name),
				zap.String("phone", phone))
		default:
			entry.Outcome = campaign.SendSuccess
		}

		attempted++
		if err := c.campaigns.RecordSend(ctx, entry, attempted); err != nil {
			return eris.Wrap(err, "dispatch: record send")
		}

		fresh, err := c.campaigns.Get(ctx, camp.ID)
		if err != nil {
			return eris.Wrap(err, "dispatch: reload campaign")
		}
		c.bus.Publish(events.Event{
			Kind: events.KindDispatchProgress,
			At:   time.Now(),
			DispatchProgress: &events.DispatchProgress{
				Current:        attempted,
				Total:          camp.TargetCount,
				SuccessCount:   fresh.SentCount,
				FailedCount:    fresh.FailedCount,
				RecipientLabel: r.Name,
				Phone:          phone,
				Outcome:        string(entry.Outcome),
				Error:          entry.Error,
			},
		})

		// Pace between recipients, never after the last one.
		if camp.Delay > 0 && i < len(pending)-1 {
			select {
			case <-ctx.Done():
				return c.pause(ctx, camp, log, len(pending)-i-1)
			case <-time.After(camp.Delay):
			}
		}
	}

	if err := c.campaigns.SetStatus(ctx, camp.ID, campaign.StatusCompleted); err != nil {
		return eris.Wrap(err, "dispatch: mark campaign completed")
	}
	fresh, err := c.campaigns.Get(ctx, camp.ID)
	if err != nil {
		return eris.Wrap(err, "dispatch: reload campaign")
	}
	c.bus.Publish(events.Event{
		Kind: events.KindDispatchCompleted,
		At:   time.Now(),
		DispatchSummary: &events.DispatchSummary{
			CampaignID: camp.ID,
			Total:      fresh.TargetCount,
			Success:    fresh.SentCount,
			Failed:     fresh.FailedCount,
		},
	})
	log.Info("campaign completed",
		zap.Int("success", fresh.SentCount),
		zap.Int("failed", fresh.FailedCount))
	return nil
}

// pause marks the campaign paused and reports how much is left. The
// original context may already be canceled, so the status write uses a
// fresh one.
func (c *Controller) pause(ctx context.Context, camp *campaign.Campaign, log *zap.Logger, remaining int) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.campaigns.SetStatus(stopCtx, camp.ID, campaign.StatusPaused); err != nil {
		return eris.Wrap(err, "dispatch: mark campaign paused")
	}
	c.bus.Publish(events.Event{
		Kind: events.KindDispatchPaused,
		At:   time.Now(),
		DispatchPaused: &events.DispatchPaused{
			CampaignID: camp.ID,
			Remaining:  remaining,
		},
	})
	log.Info("campaign paused", zap.Int("remaining", remaining))
	return nil
}

// recipientPhone prefers the dedicated messaging number over the main
// phone line.
func recipientPhone(b *record.Business) string {
	if b.WhatsApp != "" {
		return b.WhatsApp
	}
	return b.Phone
}
