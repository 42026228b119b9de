// Package harvest walks directory listings for a query and folds them
// into the record store, checkpointing after every item.
package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/events"
	"github.com/sells-group/outreach-cli/internal/extractor"
	"github.com/sells-group/outreach-cli/internal/record"
)

// Params configures one harvest run.
type Params struct {
	Category    string
	Location    string
	MaxResults  int
	Resume      bool
	Requirement record.ContactRequirement
}

// Controller runs harvest jobs. Progress is durable before it is
// visible: the checkpoint row advances first, then the event goes out.
type Controller struct {
	dir         extractor.Directory
	records     record.Store
	checkpoints *checkpoint.Store
	bus         *events.Bus
	log         *zap.Logger
}

func NewController(dir extractor.Directory, records record.Store, checkpoints *checkpoint.Store, bus *events.Bus) *Controller {
	return &Controller{
		dir:         dir,
		records:     records,
		checkpoints: checkpoints,
		bus:         bus,
		log:         zap.L().With(zap.String("component", "harvest")),
	}
}

// Run executes a harvest for p. With Resume set it picks up at the
// checkpoint's last index; a checkpoint already marked done makes the
// run a no-op. A context cancellation stops cleanly and leaves the
// checkpoint running so a later resume continues from the same spot.
func (c *Controller) Run(ctx context.Context, p Params) error {
	log := c.log.With(zap.String("category", p.Category), zap.String("location", p.Location))

	startIndex := 0
	cp, err := c.checkpoints.Get(ctx, p.Category, p.Location)
	if err != nil {
		return eris.Wrap(err, "harvest: load checkpoint")
	}
	if p.Resume && cp != nil {
		if cp.Status == checkpoint.StatusDone {
			log.Info("query already harvested, nothing to resume")
			return nil
		}
		startIndex = cp.LastIndex
	}

	// The checkpoint row exists before anything can fail, so an error
	// status always has somewhere to land. The prior total carries over
	// until the new listing replaces it.
	prevTotal := 0
	if cp != nil {
		prevTotal = cp.TotalFound
	}
	if err := c.checkpoints.Start(ctx, p.Category, p.Location, prevTotal); err != nil {
		return eris.Wrap(err, "harvest: start checkpoint")
	}

	handles, err := c.dir.List(ctx, extractor.Query{Category: p.Category, Location: p.Location}, p.MaxResults)
	if err != nil {
		err = eris.Wrap(err, "harvest: list candidates")
		if markErr := c.checkpoints.MarkError(ctx, p.Category, p.Location, err.Error()); markErr != nil {
			log.Error("failed to record checkpoint error", zap.Error(markErr))
		}
		c.bus.Publish(events.Event{Kind: events.KindHarvestError, At: time.Now(), Message: err.Error()})
		return err
	}
	total := len(handles)

	if err := c.checkpoints.Start(ctx, p.Category, p.Location, total); err != nil {
		return eris.Wrap(err, "harvest: start checkpoint")
	}
	c.bus.Publish(events.Event{Kind: events.KindHarvestStarted, At: time.Now()})
	log.Info("harvest started", zap.Int("total", total), zap.Int("start_index", startIndex))

	if startIndex >= total {
		return c.finish(ctx, p, log)
	}

	var saved, updated, skipped int
	for i := startIndex; i < total; i++ {
		if err := ctx.Err(); err != nil {
			log.Info("harvest interrupted", zap.Int("last_index", i))
			return err
		}

		h := handles[i]
		outcome := record.OutcomeSkipped
		b, err := c.dir.Fetch(ctx, h)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				log.Info("harvest interrupted", zap.Int("last_index", i))
				return ctx.Err()
			}
			log.Warn("fetch failed, skipping item", zap.String("item", h.Label), zap.Error(err))
		case !b.HasContact(p.Requirement):
			log.Debug("no qualifying contact, skipping item", zap.String("item", h.Label))
		default:
			b.Category = p.Category
			b.Location = p.Location
			outcome, _, err = c.records.Upsert(ctx, b)
			if err != nil {
				outcome = record.OutcomeSkipped
				log.Warn("upsert failed, skipping item", zap.String("item", h.Label), zap.Error(err))
			}
		}

		savedDelta := 0
		switch outcome {
		case record.OutcomeSaved:
			saved++
			savedDelta = 1
		case record.OutcomeUpdated:
			updated++
		default:
			skipped++
		}

		if err := c.checkpoints.Advance(ctx, p.Category, p.Location, 1, savedDelta, i+1); err != nil {
			return eris.Wrap(err, "harvest: advance checkpoint")
		}
		c.bus.Publish(events.Event{
			Kind: events.KindHarvestProgress,
			At:   time.Now(),
			HarvestProgress: &events.HarvestProgress{
				Processed:    i + 1,
				Total:        total,
				Saved:        saved,
				Updated:      updated,
				Skipped:      skipped,
				CurrentLabel: h.Label,
				Outcome:      string(outcome),
			},
		})
	}

	log.Info("harvest finished",
		zap.Int("saved", saved),
		zap.Int("updated", updated),
		zap.Int("skipped", skipped))
	return c.finish(ctx, p, log)
}

func (c *Controller) finish(ctx context.Context, p Params, log *zap.Logger) error {
	if err := c.checkpoints.MarkDone(ctx, p.Category, p.Location); err != nil {
		return eris.Wrap(err, "harvest: mark checkpoint done")
	}
	c.bus.Publish(events.Event{Kind: events.KindHarvestCompleted, At: time.Now()})
	return nil
}
