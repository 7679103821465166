package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	gateway   *testutil.MockGateway
	subs      subscription.SubscriptionRepository
	plans     *persistence.GormSellingPlanRepository
	customers *persistence.GormCustomerRepository
	logs      *persistence.GormSyncLogRepository
	recorder  *audit.Recorder
	pusher    *PushSynchronizer
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		db:        db,
		gateway:   new(testutil.MockGateway),
		subs:      persistence.NewGormSubscriptionRepository(db),
		plans:     persistence.NewGormSellingPlanRepository(db),
		customers: persistence.NewGormCustomerRepository(db),
		logs:      persistence.NewGormSyncLogRepository(db),
		now:       time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
	}
	f.recorder = audit.NewRecorder(f.logs, zap.NewNop())
	f.buildPusher()
	return f
}

func (f *fixture) buildPusher() {
	f.pusher = NewPushSynchronizer(PushSynchronizerConfig{
		Plans:         f.plans,
		Subscriptions: f.subs,
		Customers:     f.customers,
		Gateway:       f.gateway,
		TxManager:     persistence.NewGormTxManager(f.db),
		Recorder:      f.recorder,
	})
	f.pusher.SetClock(func() time.Time { return f.now })
}

func (f *fixture) syncedCustomer(t *testing.T, remoteID string) *subscription.Customer {
	t.Helper()
	c := testutil.NewCustomer(t, remoteID)
	require.NoError(t, f.customers.Save(context.Background(), c))
	return c
}

func (f *fixture) savedSubscription(t *testing.T, customerID uuid.UUID, opts ...testutil.SubscriptionOption) *subscription.CustomerSubscription {
	t.Helper()
	sub := testutil.NewSubscription(t, customerID, opts...)
	require.NoError(t, f.subs.Save(context.Background(), sub))
	return sub
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *subscription.CustomerSubscription {
	t.Helper()
	sub, err := f.subs.FindByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) logsOf(t *testing.T, op integration.SyncOperation) []*integration.SyncLog {
	t.Helper()
	logs, _, err := f.logs.List(context.Background(), integration.SyncLogFilter{Operation: op})
	require.NoError(t, err)
	return logs
}

// failingSaveRepo fails Save for one subscription, standing in for a local persistence error
type failingSaveRepo struct {
	subscription.SubscriptionRepository
	failID uuid.UUID
}

func (r *failingSaveRepo) Save(ctx context.Context, sub *subscription.CustomerSubscription) error {
	if sub.ID == r.failID {
		return errors.New("disk I/O error")
	}
	return r.SubscriptionRepository.Save(ctx, sub)
}
