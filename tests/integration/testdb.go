// Package integration runs the sync engine against a real PostgreSQL started with
// testcontainers. Schema comes from the embedded migrations.
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/migration"
	"github.com/eo-nwanze/lavish-sub000/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// One container serves the whole package; it is migrated once on first use.
var pg struct {
	sync.Mutex
	container testcontainers.Container
	dsn       string
}

// TestDB is a connection to the package container
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

// NewSharedTestDB opens a connection to the package container, starting it when needed.
// Tests sharing it call CleanTables first.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests need docker; skipped with -short")
	}

	dsn := containerDSN(t)
	db := open(t, dsn)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, t: t}
}

func containerDSN(t *testing.T) string {
	t.Helper()
	pg.Lock()
	defer pg.Unlock()
	if pg.container != nil {
		return pg.dsn
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("subsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("subsync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		require.NoError(t, err, "postgres connection string")
	}

	db := open(t, dsn)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "create migrator")
	require.NoError(t, m.Up(), "apply migrations")

	pg.container, pg.dsn = container, dsn
	return dsn
}

func open(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "connect to postgres")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db
}

// CleanTables empties every table except the migration bookkeeping
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	require.NoError(tdb.t, tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))).Error)
}

// CleanupSharedContainer stops the package container. Call it from TestMain.
func CleanupSharedContainer() {
	pg.Lock()
	defer pg.Unlock()
	if pg.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = pg.container.Terminate(ctx)
	pg.container, pg.dsn = nil, ""
}
