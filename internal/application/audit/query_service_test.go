package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
)

type queryFixture struct {
	svc       *QueryService
	rec       *Recorder
	subs      *persistence.GormSubscriptionRepository
	customers *persistence.GormCustomerRepository
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	logs := persistence.NewGormSyncLogRepository(db)
	subs := persistence.NewGormSubscriptionRepository(db)
	customers := persistence.NewGormCustomerRepository(db)
	resolver := NewResolver(
		persistence.NewGormSellingPlanRepository(db),
		subs,
		persistence.NewGormBillingAttemptRepository(db),
		customers,
	)
	return &queryFixture{
		svc:       NewQueryService(logs, resolver),
		rec:       NewRecorder(logs, zap.NewNop()),
		subs:      subs,
		customers: customers,
	}
}

func TestQueryService_List(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	for _, op := range []integration.SyncOperation{
		integration.OperationBillingRun,
		integration.OperationPushBatch,
		integration.OperationBillingRun,
	} {
		c, log, err := f.rec.Begin(ctx, op, false)
		require.NoError(t, err)
		require.NoError(t, f.rec.Finish(c, log))
	}

	logs, total, err := f.svc.List(ctx, integration.SyncLogFilter{Operation: integration.OperationBillingRun})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	_, _, err = f.svc.List(ctx, integration.SyncLogFilter{Operation: "NOPE"})
	assert.Error(t, err)
	_, _, err = f.svc.List(ctx, integration.SyncLogFilter{Status: "DONE"})
	assert.Error(t, err)
}

func TestQueryService_Get(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, log, err := f.rec.Begin(ctx, integration.OperationCustomerSync, false)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationCustomerSync, got.Operation)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
}

func TestQueryService_Resolve(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	customer := testutil.NewCustomer(t, "gid://commerce/Customer/1")
	require.NoError(t, f.customers.Save(ctx, customer))
	sub := testutil.NewSubscription(t, customer.ID)
	require.NoError(t, f.subs.Save(ctx, sub))

	entity, err := f.svc.Resolve(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	resolved, ok := entity.(*subscription.CustomerSubscription)
	require.True(t, ok)
	assert.Equal(t, sub.ID, resolved.ID)

	entity, err = f.svc.Resolve(ctx, shared.CustomerRef(customer.ID))
	require.NoError(t, err)
	assert.IsType(t, &subscription.Customer{}, entity)

	_, err = f.svc.Resolve(ctx, shared.BillingAttemptRef(uuid.New()))
	assert.True(t, shared.IsNotFound(err))

	_, err = f.svc.Resolve(ctx, shared.EntityRef{Kind: "ORDER", ID: uuid.New()})
	assert.Error(t, err)
}
