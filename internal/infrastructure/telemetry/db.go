package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig holds database instrumentation settings
type DBConfig struct {
	Tracing bool
	// LogFullSQL includes bound query variables in spans
	LogFullSQL bool
	// SlowQueryThreshold logs statements slower than this; zero disables the log
	SlowQueryThreshold time.Duration
	DBSystem           string
}

type dbContextKey struct{}

const slowQueryCallback = "subsync:slow_query"

// InstrumentDB registers the otelgorm plugin and the slow query log on db
func InstrumentDB(db *gorm.DB, cfg DBConfig, logger *zap.Logger) error {
	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	if cfg.SlowQueryThreshold <= 0 {
		return nil
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, dbContextKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		if tx.Statement.Context == nil {
			return
		}
		start, ok := tx.Statement.Context.Value(dbContextKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed >= cfg.SlowQueryThreshold {
			logger.Warn("Slow query",
				zap.String("table", tx.Statement.Table),
				zap.Duration("duration", elapsed),
				zap.Int64("rows", tx.RowsAffected),
				zap.String("trace_id", GetTraceID(tx.Statement.Context)),
			)
		}
	}

	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register(slowQueryCallback+":before_create", before),
		cb.Query().Before("gorm:query").Register(slowQueryCallback+":before_query", before),
		cb.Update().Before("gorm:update").Register(slowQueryCallback+":before_update", before),
		cb.Delete().Before("gorm:delete").Register(slowQueryCallback+":before_delete", before),
		cb.Raw().Before("gorm:raw").Register(slowQueryCallback+":before_raw", before),
		cb.Create().After("gorm:create").Register(slowQueryCallback+":after_create", after),
		cb.Query().After("gorm:query").Register(slowQueryCallback+":after_query", after),
		cb.Update().After("gorm:update").Register(slowQueryCallback+":after_update", after),
		cb.Delete().After("gorm:delete").Register(slowQueryCallback+":after_delete", after),
		cb.Raw().After("gorm:raw").Register(slowQueryCallback+":after_raw", after),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// RegisterDBPoolMetrics observes connection pool stats on each collection
func RegisterDBPoolMetrics(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	connections, err := meter.Int64ObservableGauge("subsync_db_connections",
		metric.WithDescription("Database connections by pool state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("subsync_db_connection_waits_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(AttrDBPoolState.String("in_use")))
		o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(AttrDBPoolState.String("idle")))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, connections, waits)
	return err
}
