package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/events"
	"github.com/sells-group/outreach-cli/internal/extractor"
	"github.com/sells-group/outreach-cli/internal/harvest"
	"github.com/sells-group/outreach-cli/internal/job"
	"github.com/sells-group/outreach-cli/internal/messenger"
	"github.com/sells-group/outreach-cli/internal/record"
	"github.com/sells-group/outreach-cli/internal/suppress"
)

// outreachEnv holds the initialized stores, clients and controllers the
// commands share.
type outreachEnv struct {
	DB          *sql.DB
	pgClose     func()
	Records     record.Store
	Checkpoints *checkpoint.Store
	Campaigns   *campaign.Store
	Suppressed  *suppress.Store
	Bus         *events.Bus
	Jobs        *job.Supervisor
	Harvester   *harvest.Controller
	Dispatcher  *dispatch.Controller
}

// Close releases resources held by the environment.
func (e *outreachEnv) Close() {
	if e.Records != nil {
		_ = e.Records.Close()
	}
	if e.pgClose != nil {
		e.pgClose()
	}
	if e.DB != nil {
		_ = e.DB.Close()
	}
}

// initEnv opens the databases, runs migrations, and wires the
// controllers. Callers should defer env.Close().
func initEnv(ctx context.Context) (*outreachEnv, error) {
	sqlDB, err := db.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	records, pgClose, err := initRecordStore(ctx, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	checkpoints := checkpoint.NewStore(sqlDB)
	campaigns := campaign.NewStore(sqlDB)
	suppressed := suppress.NewStore(sqlDB)
	for name, migrate := range map[string]func(context.Context) error{
		"records":     records.Migrate,
		"checkpoints": checkpoints.Migrate,
		"campaigns":   campaigns.Migrate,
		"suppressed":  suppressed.Migrate,
	} {
		if err := migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "migrate %s", name)
		}
	}

	bus := events.NewBus()
	directory := initDirectory()
	sender := messenger.NewGateway(messenger.GatewayConfig{
		BaseURL: cfg.Messenger.BaseURL,
		Token:   cfg.Messenger.Token,
		Timeout: time.Duration(cfg.Messenger.TimeoutSecs) * time.Second,
	})

	return &outreachEnv{
		DB:          sqlDB,
		pgClose:     pgClose,
		Records:     records,
		Checkpoints: checkpoints,
		Campaigns:   campaigns,
		Suppressed:  suppressed,
		Bus:         bus,
		Jobs:        job.NewSupervisor(),
		Harvester:   harvest.NewController(directory, records, checkpoints, bus),
		Dispatcher:  dispatch.NewController(campaigns, records, suppressed, sender, bus),
	}, nil
}

// initRecordStore picks the record backend. Job state always lives in
// SQLite; the record store alone can move to Postgres.
func initRecordStore(ctx context.Context, sqlDB *sql.DB) (record.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, nil, eris.New("store.database_url is required for the postgres driver")
		}
		pool, err := db.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return record.NewPostgres(pool), pool.Close, nil
	case "", "sqlite":
		return record.NewSQLite(sqlDB), nil, nil
	default:
		return nil, nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func initDirectory() extractor.Directory {
	timeout := time.Duration(cfg.Directory.TimeoutSecs) * time.Second
	if cfg.Directory.Kind == "html" {
		return extractor.NewHTMLClient(extractor.HTMLConfig{
			SearchURL: cfg.Directory.SearchURL,
			Selectors: cfg.Directory.Selectors,
			RateLimit: cfg.Directory.RateLimit,
			Timeout:   timeout,
		})
	}
	return extractor.NewClient(extractor.Config{
		BaseURL:   cfg.Directory.BaseURL,
		APIKey:    cfg.Directory.APIKey,
		PageSize:  cfg.Directory.PageSize,
		RateLimit: cfg.Directory.RateLimit,
		Timeout:   timeout,
	})
}
