// Package testutil provides common test utilities for the subscription sync service.
// It contains helpers for setting up databases, gin contexts and fixtures.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewSQLiteDB opens a private in-memory SQLite database with every table migrated.
// The shared cache lets the pool's connections see the same database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "Failed to open SQLite database")

	err = db.AutoMigrate(
		&models.SellingPlanModel{},
		&models.SubscriptionModel{},
		&models.BillingAttemptModel{},
		&models.CustomerModel{},
		&models.SyncLogModel{},
	)
	require.NoError(t, err, "Failed to migrate SQLite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// MockDB wraps a GORM database with sqlmock for testing.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a new mock database for testing.
// The caller is responsible for calling Close() when done.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{
		DB:    gormDB,
		Mock:  mock,
		SqlDB: mockDB,
	}
}

// Close closes the mock database connection.
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet verifies that all expectations were met.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// TestContext wraps a Gin test context with HTTP recorder.
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
	Engine   *gin.Engine
}

// NewTestContext creates a new Gin test context.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	return &TestContext{
		Context:  c,
		Recorder: w,
		Engine:   engine,
	}
}

// ContextWithTimeout creates a context with a timeout for tests.
func ContextWithTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// Date returns midnight UTC of the given day
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewCustomer builds a customer, synced when remoteID is non-empty
func NewCustomer(t *testing.T, remoteID string) *subscription.Customer {
	t.Helper()
	c, err := subscription.NewCustomer(uuid.NewString()[:8]+"@example.com", "Ada", "Obi")
	require.NoError(t, err)
	if remoteID != "" {
		c.RemoteID = &remoteID
	}
	return c
}

// SubscriptionOption tweaks a fixture subscription
type SubscriptionOption func(*subscription.CustomerSubscription)

// WithRemoteID sets the subscription's remote identity
func WithRemoteID(remoteID string) SubscriptionOption {
	return func(s *subscription.CustomerSubscription) {
		s.RemoteID = &remoteID
	}
}

// WithoutPaymentMethod clears the payment method
func WithoutPaymentMethod() SubscriptionOption {
	return func(s *subscription.CustomerSubscription) {
		s.PaymentMethodRef = nil
	}
}

// WithNextBillingDate sets the next billing date
func WithNextBillingDate(d time.Time) SubscriptionOption {
	return func(s *subscription.CustomerSubscription) {
		s.SetNextBillingDate(d)
	}
}

// WithBillingInterval sets the billing cadence
func WithBillingInterval(unit subscription.IntervalUnit, count int) SubscriptionOption {
	return func(s *subscription.CustomerSubscription) {
		s.BillingInterval = subscription.Interval{Unit: unit, Count: count}
	}
}

// Clean marks the fixture as in sync with the remote side
func Clean() SubscriptionOption {
	return func(s *subscription.CustomerSubscription) {
		s.NeedsPush = false
	}
}

// NewSubscription builds an ACTIVE monthly subscription with a payment method,
// due 2025-01-31, owned by customerID
func NewSubscription(t *testing.T, customerID uuid.UUID, opts ...SubscriptionOption) *subscription.CustomerSubscription {
	t.Helper()
	pm := "gid://commerce/CustomerPaymentMethod/" + uuid.NewString()[:8]
	sub, err := subscription.NewCustomerSubscription(subscription.NewSubscriptionParams{
		CustomerID:       customerID,
		NextBillingDate:  Date(2025, 1, 31),
		BillingInterval:  subscription.Interval{Unit: subscription.IntervalMonth, Count: 1},
		DeliveryInterval: subscription.Interval{Unit: subscription.IntervalMonth, Count: 1},
		LineItems: []subscription.LineItem{
			{VariantRef: "gid://commerce/ProductVariant/1", Quantity: 2, UnitPrice: decimal.RequireFromString("14.50")},
		},
		Currency:         "USD",
		PaymentMethodRef: &pm,
	})
	require.NoError(t, err)
	for _, opt := range opts {
		opt(sub)
	}
	return sub
}
