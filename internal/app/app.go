package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FeedAggregator/internal/config"
	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/infrastructure/parser"
	"FeedAggregator/internal/infrastructure/registry"
	"FeedAggregator/internal/infrastructure/scheduler"
	"FeedAggregator/internal/infrastructure/storage"
	"FeedAggregator/internal/infrastructure/webhook"
	"FeedAggregator/internal/logging"
	"FeedAggregator/internal/metrics"
	"FeedAggregator/internal/ports"
	"FeedAggregator/internal/scanner"
	"FeedAggregator/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	feeds      ports.FeedStore
	aggregator *usecase.Aggregator
	recorder   *metrics.Recorder
}

// New builds the stores, parsers and aggregator described by cfg and seeds
// the configured feeds.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger, recorder: metrics.NewRecorder()}

	var updates ports.UpdateStore
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.feeds = storage.NewPostgresFeedStore(db)
		updates = storage.NewPostgresUpdateStore(db)
	default:
		baseLogger.Warn("using in-memory stores, nothing survives a restart")
		a.feeds = storage.NewMemoryFeedStore()
		updates = storage.NewMemoryUpdateStore()
	}

	if err := a.seedFeeds(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	fetcher := parser.NewFetcher(nil, parser.FetchOptions{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		HostInterval: cfg.Fetch.HostInterval,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, baseLogger.With("component", "fetcher"))

	var notifier ports.TouchNotifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout)
	}

	a.aggregator = usecase.NewAggregator(usecase.AggregatorDeps{
		Feeds:       a.feeds,
		Updates:     updates,
		Registry:    newRegistry(cfg.Registry, baseLogger),
		Parsers:     scanner.NewSelector(parser.NewFactory(fetcher)),
		Transformer: usecase.NewTransformer(nil),
		Notifier:    notifier,
		Recorder:    a.recorder,
		Logger:      baseLogger.With("component", "aggregator"),
		Options: usecase.AggregatorOptions{
			Threshold:          cfg.Matching.Threshold,
			MaxRelated:         cfg.Matching.MaxRelated,
			Workers:            cfg.Aggregator.Workers,
			SeenCapacity:       cfg.Aggregator.SeenCapacity,
			ErrorWarnThreshold: cfg.Aggregator.ErrorWarnThreshold,
		},
	})

	return a, nil
}

func newRegistry(cfg config.RegistryConfig, logger *slog.Logger) ports.EntityRegistry {
	switch {
	case cfg.URL != "":
		return registry.NewHTTPRegistry(cfg.URL, nil)
	case cfg.Path != "":
		return registry.NewFileRegistry(cfg.Path)
	default:
		logger.Warn("no entity registry configured, updates will only carry feed hints")
		return nil
	}
}

func (a *Application) seedFeeds(ctx context.Context) error {
	for _, feed := range a.cfg.Feeds {
		src, err := a.feeds.Upsert(ctx, feed.Source())
		if err != nil {
			return fmt.Errorf("seed feed %s: %w", feed.URL, err)
		}
		a.logger.Debug("feed seeded", "feed", src.URL, "id", src.ID, "transport", src.TransportType, "enabled", src.Enabled)
	}
	return nil
}

// RunOnce syncs every enabled feed once.
func (a *Application) RunOnce(ctx context.Context) domain.RunResult {
	return a.aggregator.SyncAll(ctx)
}

// Serve runs the aggregator on the configured schedule and exposes metrics
// until ctx is cancelled.
func (a *Application) Serve(ctx context.Context, runOnStart bool) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, scheduler.Options{
		Location:   a.cfg.Scheduler.Location(),
		RunOnStart: runOnStart,
		Logger:     a.logger.With("component", "scheduler"),
	})
	runs := usecase.NewScheduler(driver, a.aggregator, func(trigger time.Time, result domain.RunResult) {
		a.logger.Info("scheduled run finished",
			"trigger", trigger,
			"created", result.Created,
			"updated", result.Updated,
			"failed_sources", result.FailedSources)
	})

	if err := runs.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if next, err := driver.Next(time.Now()); err == nil {
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "next_run", next)
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.recorder.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("metrics listening", "addr", a.cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	if err := runs.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}

	return runErr
}

// Close releases the database pool when one is open.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Migrate applies the Postgres schema without building the rest of the application.
func Migrate(ctx context.Context, cfg config.Config) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs database.driver %q, got %q", config.DriverPostgres, cfg.Database.Driver)
	}
	db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.Migrate(ctx, db)
}
