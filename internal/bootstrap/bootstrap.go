// Package bootstrap assembles the subscription sync engine from configuration. The HTTP
// server and the syncctl command share it so both run the same services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	"github.com/eo-nwanze/lavish-sub000/internal/application/billing"
	syncapp "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/application/webhook"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/auth"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/cache"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/commerce"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/scheduler"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/storage"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/handler"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/eo-nwanze/lavish-sub000"

// App holds every long-lived component of the engine
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers
	Database  *persistence.Database
	Metrics   *telemetry.SyncMetrics
	Tokens    *auth.TokenService
	Verifier  *commerce.SignatureVerifier
	Delivery  shared.IdempotencyStore

	Pusher        *syncapp.PushSynchronizer
	Billing       *billing.Scheduler
	Reconciler    *webhook.Reconciler
	Subscriptions *syncapp.SubscriptionService
	Plans         *syncapp.SellingPlanService
	SyncLogs      *audit.QueryService
	Archiver      *audit.Archiver
	Scheduler     *scheduler.Scheduler

	closers []func(context.Context) error
}

// New loads nothing itself: cfg must come from config.Load. On error every component
// started so far is released.
func New(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	if err = app.initTelemetry(ctx); err != nil {
		return nil, err
	}
	if err = app.initDatabase(); err != nil {
		return nil, err
	}
	if err = app.initServices(ctx); err != nil {
		return nil, err
	}
	if err = app.initScheduler(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	cfg := a.Config
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		_ = bootLog.Sync()
		return fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = providers
	a.closers = append(a.closers, providers.Shutdown)

	if !providers.Logs.IsEnabled() {
		a.Logger = bootLog
	} else {
		// Re-create the logger with the OTLP core attached
		_ = bootLog.Sync()
		log, err := logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		}, providers.Logs.Core(instrumentationName, zapLevel(cfg.Log.Level)))
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		a.Logger = log
	}
	a.closers = append(a.closers, func(context.Context) error {
		_ = a.Logger.Sync()
		return nil
	})
	return nil
}

func (a *App) initDatabase() error {
	cfg := a.Config
	gormLog := logger.NewGormLogger(a.Logger, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	a.Database = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	if err := telemetry.InstrumentDB(db.DB, telemetry.DBConfig{
		Tracing:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:           "postgresql",
	}, a.Logger); err != nil {
		return fmt.Errorf("instrument database: %w", err)
	}
	meter := a.Telemetry.Meter.Meter(instrumentationName)
	if err := telemetry.RegisterDBPoolMetrics(db.DB, meter); err != nil {
		a.Logger.Warn("DB pool metrics unavailable", zap.Error(err))
	}

	a.Logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger
	gdb := a.Database.DB

	plans := persistence.NewGormSellingPlanRepository(gdb)
	subs := persistence.NewGormSubscriptionRepository(gdb)
	attempts := persistence.NewGormBillingAttemptRepository(gdb)
	customers := persistence.NewGormCustomerRepository(gdb)
	syncLogs := persistence.NewGormSyncLogRepository(gdb)
	txManager := a.Database.TxManager()
	recorder := audit.NewRecorder(syncLogs, log)

	gateway, err := commerce.NewGateway(&commerce.Config{
		Endpoint:    cfg.Commerce.Endpoint,
		AccessToken: cfg.Commerce.AccessToken,
		Timeout:     cfg.Commerce.Timeout,
	}, &http.Client{Timeout: cfg.Commerce.Timeout}, log)
	if err != nil {
		return fmt.Errorf("commerce gateway: %w", err)
	}

	a.Pusher = syncapp.NewPushSynchronizer(syncapp.PushSynchronizerConfig{
		Plans:         plans,
		Subscriptions: subs,
		Customers:     customers,
		Gateway:       gateway,
		TxManager:     txManager,
		Recorder:      recorder,
		Logger:        log,
		BatchSize:     cfg.Sync.BatchSize,
	})

	policy := billing.Policy{
		MaxFailures:    cfg.Billing.MaxFailures,
		FailureWindow:  cfg.Billing.FailureWindow,
		PendingTimeout: cfg.Billing.PendingTimeout,
	}
	a.Billing = billing.NewScheduler(billing.SchedulerConfig{
		Subscriptions: subs,
		Attempts:      attempts,
		Customers:     customers,
		Gateway:       gateway,
		TxManager:     txManager,
		Recorder:      recorder,
		Policy:        policy,
		BatchSize:     cfg.Billing.BatchLimit,
		Logger:        log,
	})

	a.Delivery, err = cache.NewDeliveryStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	)
	if err != nil {
		return fmt.Errorf("delivery store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Delivery.Close() })

	var validator webhook.PayloadValidator
	if cfg.Webhook.ValidateSchema {
		v, err := commerce.NewPayloadValidator()
		if err != nil {
			return fmt.Errorf("payload schemas: %w", err)
		}
		validator = v
	}

	a.Reconciler = webhook.NewReconciler(webhook.ReconcilerConfig{
		Subscriptions: subs,
		Plans:         plans,
		Attempts:      attempts,
		Customers:     customers,
		CustomerSync:  syncapp.NewCustomerSyncService(customers, gateway, recorder, log),
		TxManager:     txManager,
		Recorder:      recorder,
		Validator:     validator,
		Idempotency:   a.Delivery,
		DedupTTL:      cfg.Webhook.DedupTTL,
		Policy:        policy,
		Logger:        log,
	})
	a.Verifier = commerce.NewSignatureVerifier(cfg.Webhook.Secret)

	a.Subscriptions = syncapp.NewSubscriptionService(syncapp.SubscriptionServiceConfig{
		Subscriptions: subs,
		Plans:         plans,
		Customers:     customers,
		Pusher:        a.Pusher,
		PushOnSave:    cfg.Sync.PushOnSave,
		Logger:        log,
	})
	a.Plans = syncapp.NewSellingPlanService(plans, a.Pusher, cfg.Sync.PushOnSave, log)
	a.SyncLogs = audit.NewQueryService(syncLogs, audit.NewResolver(plans, subs, attempts, customers))

	var store audit.ArchiveStore
	if cfg.Archive.Enabled {
		s3Store, err := storage.NewS3ArchiveStore(ctx, cfg.Archive, storage.WithLogger(log))
		if err != nil {
			return fmt.Errorf("archive store: %w", err)
		}
		store = s3Store
	} else {
		store = storage.NewMemoryArchiveStore()
	}
	a.Archiver = audit.NewArchiver(syncLogs, store, audit.ArchiverConfig{
		Prefix:    cfg.Archive.Prefix,
		Retention: cfg.Archive.Retention,
	}, log)

	if a.Tokens, err = auth.NewTokenService(cfg.JWT); err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	metrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:           a.Telemetry.Meter.Meter(instrumentationName),
		Logger:          log,
		BacklogProvider: telemetry.NewGormSyncBacklogProvider(gdb),
	})
	if err != nil {
		log.Warn("Sync metrics unavailable", zap.Error(err))
		return nil
	}
	a.Metrics = metrics
	a.Pusher.SetMetrics(metrics)
	a.Billing.SetMetrics(metrics)
	a.Reconciler.SetMetrics(metrics)
	a.closers = append(a.closers, func(context.Context) error {
		metrics.Stop()
		return nil
	})
	return nil
}

// initScheduler registers every job. Jobs exist even when the trigger loop is disabled so
// manual runs share the same overlap guard.
func (a *App) initScheduler() error {
	cfg := a.Config.Scheduler
	a.Scheduler = scheduler.New(scheduler.Config{
		CheckInterval: cfg.CheckInterval,
		JobTimeout:    cfg.JobTimeout,
	}, a.Logger)

	billingAt, err := daily(cfg.BillingTime)
	if err != nil {
		return err
	}
	retryAt, err := daily(cfg.RetryTime)
	if err != nil {
		return err
	}

	jobs := []scheduler.Job{
		{
			Name:     scheduler.JobBillingRun,
			Schedule: billingAt,
			Run: func(ctx context.Context) error {
				_, err := a.Billing.Run(ctx, billing.RunOptions{})
				return err
			},
		},
		{
			Name:     scheduler.JobRetrySweep,
			Schedule: retryAt,
			Run: func(ctx context.Context) error {
				_, err := a.Billing.RetrySweep(ctx, billing.RunOptions{})
				return err
			},
		},
		{
			Name:     scheduler.JobPushPending,
			Schedule: scheduler.Every(cfg.PushInterval),
			Run: func(ctx context.Context) error {
				_, err := handler.PushPending(ctx, a.Pusher)
				return err
			},
		},
	}
	if a.Config.Archive.Enabled {
		archiveAt, err := daily(cfg.ArchiveTime)
		if err != nil {
			return err
		}
		jobs = append(jobs, scheduler.Job{
			Name:     scheduler.JobArchiveLogs,
			Schedule: archiveAt,
			Run: func(ctx context.Context) error {
				_, err := a.Archiver.Archive(ctx)
				return err
			},
		})
	}

	for _, job := range jobs {
		if err := a.Scheduler.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// Start begins periodic metric collection and, when enabled, the job trigger loop
func (a *App) Start(ctx context.Context) error {
	if a.Metrics != nil {
		a.Metrics.StartPeriodicCollection(ctx, a.Config.Scheduler.CheckInterval)
	}
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info("Sync scheduler disabled; jobs run only on demand")
		return nil
	}
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, func(ctx context.Context) error {
		if err := a.Scheduler.Stop(ctx); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			return err
		}
		return nil
	})
	return nil
}

// Close releases components in reverse start order, returning the joined errors
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func daily(clock string) (scheduler.Daily, error) {
	hour, minute := config.ClockTime(clock)
	return scheduler.DailyAt(hour, minute)
}

func zapLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
