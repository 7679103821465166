package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the PostgreSQL connection pool behind the sync state store
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects with a silent GORM logger
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return NewDatabaseWithLogger(cfg, gormlogger.Default.LogMode(gormlogger.Silent))
}

// NewDatabaseWithLogger connects, sizes the pool from cfg and verifies the connection.
// Timestamps are written in UTC so billing dates compare at date granularity.
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, l gormlogger.Interface) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 l,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	d := &Database{DB: db}
	sqlDB, err := d.sql()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return d, nil
}

func (d *Database) sql() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.sql()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PingContext backs the readiness probe
func (d *Database) PingContext(ctx context.Context) error {
	sqlDB, err := d.sql()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// TxManager returns a shared.TxManager over this connection
func (d *Database) TxManager() *GormTxManager {
	return NewGormTxManager(d.DB)
}
