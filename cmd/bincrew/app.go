package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/bin-crew/internal/assignment"
	"github.com/jonathan/bin-crew/internal/audit"
	"github.com/jonathan/bin-crew/internal/certification"
	"github.com/jonathan/bin-crew/internal/config"
	"github.com/jonathan/bin-crew/internal/coverage"
	"github.com/jonathan/bin-crew/internal/db"
	"github.com/jonathan/bin-crew/internal/earnings"
	"github.com/jonathan/bin-crew/internal/fieldwork"
	"github.com/jonathan/bin-crew/internal/geocode"
	"github.com/jonathan/bin-crew/internal/notify"
	"github.com/jonathan/bin-crew/internal/observability"
	"github.com/jonathan/bin-crew/internal/outbox"
	"github.com/jonathan/bin-crew/internal/routing"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/store/memory"
	"go.uber.org/zap"
)

const serviceName = "bincrew"

// backend is everything a store implementation must provide.
type backend interface {
	store.Jobs
	store.Employees
	store.Training
	store.Audit
}

// app holds the wired services shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	location *time.Location

	store      backend
	database   *db.DB // nil on the in-memory store
	redis      *geocode.RedisCache
	dispatcher *outbox.Dispatcher

	coverage   *coverage.Table
	geocoder   *geocode.Geocoder
	gate       *certification.Gate
	engine     *assignment.Engine
	planner    *routing.Planner
	aggregator *earnings.Aggregator
	fieldwork  *fieldwork.Service
}

// loadConfig resolves configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects storage and wires every service. The outbox is running when
// newApp returns; Close drains it.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, location: loc}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.coverage = coverage.DefaultTable()
	if cfg.ZonesFile != "" {
		a.coverage, err = coverage.LoadFile(cfg.ZonesFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("loaded coverage zones", zap.String("file", cfg.ZonesFile), zap.Int("zones", len(a.coverage.Zones())))
	}

	a.dispatcher = outbox.New(outbox.Config{
		Workers:     cfg.OutboxWorkers,
		QueueSize:   cfg.OutboxQueueSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}, logger)
	if err := a.dispatcher.Start(context.WithoutCancel(ctx)); err != nil {
		a.Close()
		return nil, err
	}

	a.geocoder = geocode.New(
		a.geocodeCache(ctx),
		geocode.NewNominatimProvider(cfg.GeocoderURL, cfg.GeocoderUserAgent),
		geocode.NewLimiter(cfg.GeocodeInterval()),
		logger,
	)

	var mailer notify.Mailer = notify.LogMailer{Logger: logger}
	if cfg.EmailAPIURL != "" {
		mailer = notify.NewHTTPMailer(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, logger)
	}
	notifier := notify.NewNotifier(mailer, a.dispatcher, logger)
	recorder := audit.NewRecorder(a.store, a.dispatcher, logger)

	a.gate = certification.NewGate(a.store, a.store,
		certification.WithNotifier(notifier),
		certification.WithAudit(recorder),
		certification.WithLogger(logger),
	)
	a.engine = assignment.NewEngine(a.store, a.store, a.gate,
		assignment.WithCoverage(a.coverage),
		assignment.WithNotifier(notifier),
		assignment.WithAudit(recorder),
		assignment.WithLocation(loc),
		assignment.WithLogger(logger),
	)
	a.planner = routing.NewPlanner(a.store, a.store, a.geocoder, logger)
	a.aggregator = earnings.NewAggregator(a.store, a.store)
	a.fieldwork = fieldwork.NewService(a.store,
		fieldwork.WithCertifier(a.gate),
		fieldwork.WithAudit(recorder),
		fieldwork.WithLogger(logger),
	)
	return a, nil
}

// openStore picks PostgreSQL when DATABASE_URL is set and the in-memory store
// otherwise.
func (a *app) openStore(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		mem := memory.New()
		if seedPath != "" {
			counts, err := loadSeed(ctx, mem, seedPath)
			if err != nil {
				return err
			}
			a.logger.Info("seeded in-memory store",
				zap.String("file", seedPath),
				zap.Int("employees", counts.Employees),
				zap.Int("jobs", counts.Jobs),
				zap.Int("training_records", counts.Training))
		} else {
			a.logger.Warn("DATABASE_URL not set, using an empty in-memory store")
		}
		a.store = mem
		return nil
	}

	database, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.database = database
	a.store = database
	return nil
}

// geocodeCache prefers Redis, then the database table, then process memory.
func (a *app) geocodeCache(ctx context.Context) geocode.Cache {
	if a.cfg.RedisURL != "" {
		rc, err := geocode.NewRedisCache(a.cfg.RedisURL)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = rc.Ping(pingCtx)
			cancel()
			if err == nil {
				a.redis = rc
				return rc
			}
			_ = rc.Close()
		}
		a.logger.Warn("redis geocode cache unavailable, falling back", zap.Error(err))
	}
	if a.database != nil {
		return a.database.GeocodeCache()
	}
	return geocode.NewMemoryCache()
}

// Close drains the outbox and releases connections.
func (a *app) Close() {
	if a.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.dispatcher.Stop(ctx); err != nil {
			a.logger.Warn("outbox did not drain", zap.Error(err))
		}
		cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
	_ = a.logger.Sync()
}

// today is the current date in the configured time zone.
func (a *app) today() string {
	return time.Now().In(a.location).Format("2006-01-02")
}
