package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func subWithID(id uuid.UUID) any {
	return mock.MatchedBy(func(s *subscription.CustomerSubscription) bool { return s.ID == id })
}

func TestPush_CreatesRemoteSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	sub := f.savedSubscription(t, customer.ID)

	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), integration.SubscriptionContext{
		CustomerRemoteID: "gid://commerce/Customer/1",
		IdempotencyKey:   sub.ID.String(),
	}).Return("gid://commerce/SubscriptionContract/10", nil).Once()

	result, err := f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "gid://commerce/SubscriptionContract/10", result.RemoteID)

	stored := f.reload(t, sub.ID)
	assert.Equal(t, "gid://commerce/SubscriptionContract/10", stored.RemoteIDValue())
	assert.False(t, stored.NeedsPush)
	assert.Empty(t, stored.LastPushError)
	require.NotNil(t, stored.LastPushedAt)
	assert.True(t, f.now.Equal(*stored.LastPushedAt))

	logs := f.logsOf(t, integration.OperationPushEntity)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].Succeeded)
	f.gateway.AssertExpectations(t)
}

func TestPush_UpdateAndCancelUseRemoteIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	plan, err := subscription.NewSellingPlanFromRemote("gid://commerce/SellingPlanGroup/3", subscription.SellingPlanParams{
		Name:             "Monthly",
		BillingInterval:  subscription.Interval{Unit: subscription.IntervalMonth, Count: 1},
		DeliveryInterval: subscription.Interval{Unit: subscription.IntervalMonth, Count: 1},
		Adjustment:       subscription.PriceAdjustment{Kind: subscription.AdjustmentPercentage, Value: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	require.NoError(t, f.plans.Save(ctx, plan))

	sub := testutil.NewSubscription(t, customer.ID, testutil.WithRemoteID("gid://commerce/SubscriptionContract/20"))
	sub.SellingPlanID = &plan.ID
	require.NoError(t, f.subs.Save(ctx, sub))

	f.gateway.On("UpdateSubscription", mock.Anything, subWithID(sub.ID), integration.SubscriptionContext{
		CustomerRemoteID:    "gid://commerce/Customer/1",
		SellingPlanRemoteID: "gid://commerce/SellingPlanGroup/3",
	}).Return(nil).Once()

	result, err := f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := f.reload(t, sub.ID)
	require.NoError(t, stored.Cancel(f.now))
	stored.MarkDirty()
	require.NoError(t, f.subs.Save(ctx, stored))

	f.gateway.On("CancelSubscription", mock.Anything, "gid://commerce/SubscriptionContract/20").Return(nil).Once()

	result, err = f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, f.reload(t, sub.ID).NeedsPush)
	f.gateway.AssertExpectations(t)
}

func TestPush_ValidationFailureBlocksEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	sub := f.savedSubscription(t, customer.ID)

	verr := integration.NewRemoteValidationError("subscriptionContractAtomicCreate", integration.FieldError{
		Field:   []string{"lines", "0", "productVariantId"},
		Message: "Product variant does not exist",
	})
	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), mock.Anything).Return("", verr).Once()

	result, err := f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Blocked)
	assert.Equal(t, CodeRemoteValidation, result.Code)
	require.Len(t, result.Errors, 1)

	stored := f.reload(t, sub.ID)
	assert.True(t, stored.NeedsPush)
	assert.True(t, stored.PushBlocked)
	assert.Contains(t, stored.LastPushError, "Product variant does not exist")

	summary, err := f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	f.gateway.AssertNumberOfCalls(t, "CreateSubscription", 1)
}

func TestPush_TransientFailureIsRetriedByNextBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	sub := f.savedSubscription(t, customer.ID)

	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), mock.Anything).
		Return("", fmt.Errorf("%w: context deadline exceeded", integration.ErrRemoteUnavailable)).Once()

	summary, err := f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	stored := f.reload(t, sub.ID)
	assert.True(t, stored.NeedsPush)
	assert.False(t, stored.PushBlocked)
	assert.Contains(t, stored.LastPushError, "deadline")
	assert.False(t, stored.HasRemoteID())

	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), mock.Anything).
		Return("gid://commerce/SubscriptionContract/11", nil).Once()

	summary, err = f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.False(t, f.reload(t, sub.ID).NeedsPush)
}

func TestPush_CustomerNotSynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "")
	sub := f.savedSubscription(t, customer.ID)

	result, err := f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeCustomerNotSynced, result.Code)

	stored := f.reload(t, sub.ID)
	assert.True(t, stored.NeedsPush)
	assert.False(t, stored.PushBlocked)
	f.gateway.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestPush_ConcurrentEditKeepsEntityDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	sub := f.savedSubscription(t, customer.ID)

	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), mock.Anything).
		Run(func(args mock.Arguments) {
			edited := f.reload(t, sub.ID)
			edited.DeliveryAddress.City = "Abuja"
			edited.MarkDirty()
			require.NoError(t, f.subs.Save(ctx, edited))
		}).
		Return("gid://commerce/SubscriptionContract/12", nil).Once()

	result, err := f.pusher.Push(ctx, shared.SubscriptionRef(sub.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored := f.reload(t, sub.ID)
	assert.Equal(t, "gid://commerce/SubscriptionContract/12", stored.RemoteIDValue())
	assert.Equal(t, "Abuja", stored.DeliveryAddress.City)
	assert.True(t, stored.NeedsPush)
}

func TestSyncPending_IsolatesItemFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")

	subs := make([]*subscription.CustomerSubscription, 5)
	for i := range subs {
		subs[i] = f.savedSubscription(t, customer.ID)
		f.gateway.On("CreateSubscription", mock.Anything, subWithID(subs[i].ID), mock.Anything).
			Return(fmt.Sprintf("gid://commerce/SubscriptionContract/%d", 100+i), nil).Once()
	}

	f.subs = &failingSaveRepo{SubscriptionRepository: f.subs, failID: subs[2].ID}
	f.buildPusher()

	summary, err := f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	for i, sub := range subs {
		stored := f.reload(t, sub.ID)
		if i == 2 {
			assert.True(t, stored.NeedsPush)
			assert.False(t, stored.HasRemoteID())
			continue
		}
		assert.False(t, stored.NeedsPush, "item %d", i+1)
		assert.Equal(t, fmt.Sprintf("gid://commerce/SubscriptionContract/%d", 100+i), stored.RemoteIDValue())
	}

	logs := f.logsOf(t, integration.OperationPushBatch)
	require.Len(t, logs, 1)
	assert.Equal(t, 4, logs[0].Succeeded)
	assert.Equal(t, 1, logs[0].Failed)
	require.Len(t, logs[0].Errors, 1)
	assert.Equal(t, shared.SubscriptionRef(subs[2].ID), logs[0].Errors[0].Ref)
	assert.Equal(t, CodeLocalError, logs[0].Errors[0].Code)
}

func TestSyncPending_LostCreateIsReplayedWithSameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t, "gid://commerce/Customer/1")
	sub := f.savedSubscription(t, customer.ID)

	var keys []string
	f.gateway.On("CreateSubscription", mock.Anything, subWithID(sub.ID), mock.Anything).
		Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(2).(integration.SubscriptionContext).IdempotencyKey)
		}).
		Return("gid://commerce/SubscriptionContract/55", nil).Twice()

	realSubs := f.subs
	f.subs = &failingSaveRepo{SubscriptionRepository: realSubs, failID: sub.ID}
	f.buildPusher()

	summary, err := f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, f.reload(t, sub.ID).HasRemoteID())

	logs := f.logsOf(t, integration.OperationPushBatch)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Errors, 1)
	assert.Contains(t, logs[0].Errors[0].Message, "gid://commerce/SubscriptionContract/55")

	f.subs = realSubs
	f.buildPusher()

	summary, err = f.pusher.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, "gid://commerce/SubscriptionContract/55", f.reload(t, sub.ID).RemoteIDValue())

	assert.Equal(t, []string{sub.ID.String(), sub.ID.String()}, keys)
	f.gateway.AssertExpectations(t)
}

func TestSyncPendingPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan, err := subscription.NewSellingPlan(subscription.SellingPlanParams{
		Name:             "Every two weeks",
		BillingInterval:  subscription.Interval{Unit: subscription.IntervalWeek, Count: 2},
		DeliveryInterval: subscription.Interval{Unit: subscription.IntervalWeek, Count: 2},
		Adjustment:       subscription.PriceAdjustment{Kind: subscription.AdjustmentFixedAmount, Value: decimal.NewFromInt(2)},
	})
	require.NoError(t, err)
	require.NoError(t, f.plans.Save(ctx, plan))

	f.gateway.On("CreateSellingPlan", mock.Anything, mock.AnythingOfType("*subscription.SellingPlan")).
		Return("gid://commerce/SellingPlanGroup/7", nil).Once()

	summary, err := f.pusher.SyncPendingPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)

	stored, err := f.plans.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "gid://commerce/SellingPlanGroup/7", stored.RemoteIDValue())
	assert.False(t, stored.NeedsPush)
}

func TestPush_UnknownEntity(t *testing.T) {
	f := newFixture(t)

	_, err := f.pusher.Push(context.Background(), shared.SubscriptionRef(uuid.New()))
	assert.True(t, shared.IsNotFound(err))

	_, err = f.pusher.Push(context.Background(), shared.CustomerRef(uuid.New()))
	assert.Error(t, err)

	logs := f.logsOf(t, integration.OperationPushEntity)
	require.Len(t, logs, 2)
	assert.Equal(t, 1, logs[0].Failed)
}
