package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	appsync "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/cache"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/commerce"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	contractID = "gid://commerce/SubscriptionContract/100"
	customerID = "gid://commerce/Customer/7"
)

type fixture struct {
	gateway    *testutil.MockGateway
	subs       *persistence.GormSubscriptionRepository
	attempts   *persistence.GormBillingAttemptRepository
	customers  *persistence.GormCustomerRepository
	logs       *persistence.GormSyncLogRepository
	reconciler *Reconciler
	now        time.Time
	deliveries int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		gateway:   new(testutil.MockGateway),
		subs:      persistence.NewGormSubscriptionRepository(db),
		attempts:  persistence.NewGormBillingAttemptRepository(db),
		customers: persistence.NewGormCustomerRepository(db),
		logs:      persistence.NewGormSyncLogRepository(db),
		now:       time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	recorder := audit.NewRecorder(f.logs, zap.NewNop())
	validator, err := commerce.NewPayloadValidator()
	require.NoError(t, err)
	dedup := cache.NewMemoryDeliveryStore()
	t.Cleanup(func() { _ = dedup.Close() })

	f.reconciler = NewReconciler(ReconcilerConfig{
		Subscriptions: f.subs,
		Plans:         persistence.NewGormSellingPlanRepository(db),
		Attempts:      f.attempts,
		Customers:     f.customers,
		CustomerSync:  appsync.NewCustomerSyncService(f.customers, f.gateway, recorder, zap.NewNop()),
		TxManager:     persistence.NewGormTxManager(db),
		Recorder:      recorder,
		Validator:     validator,
		Idempotency:   dedup,
	})
	f.reconciler.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) deliver(t *testing.T, topic integration.Topic, payload any) (*Result, error) {
	t.Helper()
	f.deliveries++
	return f.deliverAs(t, topic, fmt.Sprintf("delivery-%d", f.deliveries), payload)
}

func (f *fixture) deliverAs(t *testing.T, topic integration.Topic, deliveryID string, payload any) (*Result, error) {
	t.Helper()
	body, ok := payload.([]byte)
	if !ok {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return f.reconciler.Handle(context.Background(), Delivery{Topic: topic, DeliveryID: deliveryID, Body: body})
}

func (f *fixture) syncedCustomer(t *testing.T) *subscription.Customer {
	t.Helper()
	c := testutil.NewCustomer(t, customerID)
	require.NoError(t, f.customers.Save(context.Background(), c))
	return c
}

func (f *fixture) webhookLogs(t *testing.T) []*integration.SyncLog {
	t.Helper()
	logs, _, err := f.logs.List(context.Background(), integration.SyncLogFilter{Operation: integration.OperationWebhook, Limit: 50})
	require.NoError(t, err)
	return logs
}

func (f *fixture) byRemoteID(t *testing.T, remoteID string) *subscription.CustomerSubscription {
	t.Helper()
	sub, err := f.subs.FindByRemoteID(context.Background(), remoteID)
	require.NoError(t, err)
	return sub
}

func contractEvent(updatedAt time.Time) integration.SubscriptionContractEvent {
	return integration.SubscriptionContractEvent{
		ID:              contractID,
		CustomerID:      customerID,
		Status:          "active",
		NextBillingDate: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		BillingPolicy:   integration.ContractPolicy{Interval: "month", IntervalCount: 1},
		DeliveryPolicy:  integration.ContractPolicy{Interval: "month", IntervalCount: 1},
		CurrencyCode:    "usd",
		Lines: []integration.ContractLine{
			{VariantID: "gid://commerce/ProductVariant/1", Title: "Coffee", Quantity: 3, UnitPrice: decimal.RequireFromString("9.99")},
		},
		PaymentMethodID: "gid://commerce/CustomerPaymentMethod/1",
		UpdatedAt:       updatedAt,
	}
}

func TestReconciler_SubscriptionCreated(t *testing.T) {
	f := newFixture(t)
	customer := f.syncedCustomer(t)

	res, err := f.deliver(t, integration.TopicSubscriptionCreated, contractEvent(f.now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	sub := f.byRemoteID(t, contractID)
	assert.Equal(t, customer.ID, sub.CustomerID)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, "USD", sub.Currency)
	assert.True(t, sub.TotalPrice.Equal(decimal.RequireFromString("29.97")))
	assert.False(t, sub.NeedsPush, "remote-originated state is already in sync")
	require.NotNil(t, sub.LastPulledAt)
	assert.True(t, f.now.Equal(*sub.LastPulledAt))

	logs := f.webhookLogs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, res.SyncLogID, logs[0].ID)
	assert.Equal(t, 1, logs[0].Succeeded)
	assert.Equal(t, integration.SyncLogCompleted, logs[0].Status)
}

func TestReconciler_ContractRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.syncedCustomer(t)
	ev := contractEvent(f.now.Add(-time.Minute))

	_, err := f.deliver(t, integration.TopicSubscriptionCreated, ev)
	require.NoError(t, err)
	first := f.byRemoteID(t, contractID)

	f.now = f.now.Add(time.Hour)

	// same payload under a new delivery ID reaches the handler
	res, err := f.deliver(t, integration.TopicSubscriptionUpdated, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	second := f.byRemoteID(t, contractID)
	assert.Equal(t, first.Version, second.Version)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	assert.True(t, first.LastPulledAt.Equal(*second.LastPulledAt))

	// same delivery ID never reaches it
	res, err = f.deliverAs(t, integration.TopicSubscriptionCreated, "delivery-1", ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Len(t, f.webhookLogs(t), 2)
}

func TestReconciler_SubscriptionUpdated(t *testing.T) {
	f := newFixture(t)
	f.syncedCustomer(t)
	_, err := f.deliver(t, integration.TopicSubscriptionCreated, contractEvent(f.now.Add(-time.Hour)))
	require.NoError(t, err)

	ev := contractEvent(f.now.Add(-time.Minute))
	ev.Status = "paused"
	ev.Lines[0].Quantity = 1
	res, err := f.deliver(t, integration.TopicSubscriptionUpdated, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	sub := f.byRemoteID(t, contractID)
	assert.Equal(t, subscription.StatusPaused, sub.Status)
	assert.True(t, sub.TotalPrice.Equal(decimal.RequireFromString("9.99")))
	assert.False(t, sub.NeedsPush)

	// an older snapshot arriving late is ignored
	stale := contractEvent(f.now.Add(-30 * time.Minute))
	res, err = f.deliver(t, integration.TopicSubscriptionUpdated, stale)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, subscription.StatusPaused, f.byRemoteID(t, contractID).Status)
}

func TestReconciler_UpdateForUnknownContractCreates(t *testing.T) {
	f := newFixture(t)
	f.syncedCustomer(t)

	res, err := f.deliver(t, integration.TopicSubscriptionUpdated, contractEvent(f.now))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, "subscription created", res.Message)
	f.byRemoteID(t, contractID)
}

func TestReconciler_SyncsMissingCustomerFirst(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("FetchCustomer", mock.Anything, customerID).Return(&integration.RemoteCustomer{
		RemoteID:  customerID,
		Email:     "grace@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
	}, nil).Once()

	res, err := f.deliver(t, integration.TopicSubscriptionCreated, contractEvent(f.now))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	customer, err := f.customers.FindByRemoteID(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", customer.Email)
	assert.Equal(t, customer.ID, f.byRemoteID(t, contractID).CustomerID)
	f.gateway.AssertExpectations(t)
}

func TestReconciler_CustomerSyncFailureIsRetriedOnRedelivery(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("FetchCustomer", mock.Anything, customerID).
		Return(nil, fmt.Errorf("%w: 503", integration.ErrRemoteUnavailable)).Once()

	res, err := f.deliverAs(t, integration.TopicSubscriptionCreated, "delivery-x", contractEvent(f.now))
	require.Error(t, err)
	assert.True(t, errors.Is(err, integration.ErrCustomerSyncDeferred))
	assert.Equal(t, OutcomeFailed, res.Outcome)

	_, err = f.subs.FindByRemoteID(context.Background(), contractID)
	assert.Error(t, err)

	log, err := f.logs.FindByID(context.Background(), res.SyncLogID)
	require.NoError(t, err)
	assert.Equal(t, 1, log.Failed)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, CodeCustomerSyncDeferred, log.Errors[0].Code)

	f.gateway.On("FetchCustomer", mock.Anything, customerID).Return(&integration.RemoteCustomer{
		RemoteID: customerID,
		Email:    "grace@example.com",
	}, nil).Once()

	res, err = f.deliverAs(t, integration.TopicSubscriptionCreated, "delivery-x", contractEvent(f.now))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	f.byRemoteID(t, contractID)
}

func TestReconciler_InvalidPayloadIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"admin_graphql_api_id":"gid://commerce/SubscriptionContract/1","status":"sleeping"}`)
	res, err := f.deliverAs(t, integration.TopicSubscriptionCreated, "bad-1", body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)

	log, err := f.logs.FindByID(context.Background(), res.SyncLogID)
	require.NoError(t, err)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, CodeInvalidPayload, log.Errors[0].Code)

	res, err = f.deliverAs(t, integration.TopicSubscriptionCreated, "bad-1", body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	f.gateway.AssertNotCalled(t, "FetchCustomer", mock.Anything, mock.Anything)
}

func TestReconciler_UnknownTopic(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconciler.Handle(context.Background(), Delivery{Topic: "orders/create", Body: []byte(`{}`)})
	assert.ErrorIs(t, err, integration.ErrUnknownTopic)
	assert.Empty(t, f.webhookLogs(t))
}

// billedSubscription saves a synced subscription with a PENDING attempt as the scheduler leaves it
func (f *fixture) billedSubscription(t *testing.T) (*subscription.CustomerSubscription, *subscription.BillingAttempt) {
	t.Helper()
	ctx := context.Background()
	customer := f.syncedCustomer(t)
	sub := testutil.NewSubscription(t, customer.ID, testutil.WithRemoteID(contractID), testutil.Clean())
	require.NoError(t, f.subs.Save(ctx, sub))
	attempt, err := subscription.NewBillingAttempt(sub.ID, sub.TotalPrice, sub.Currency, subscription.IdempotencyKeyFor(sub), f.now)
	require.NoError(t, err)
	require.NoError(t, f.attempts.Save(ctx, attempt))
	return sub, attempt
}

func TestReconciler_BillingSuccessAdvancesOnce(t *testing.T) {
	f := newFixture(t)
	sub, attempt := f.billedSubscription(t)

	ev := integration.BillingAttemptEvent{
		ID:                     "gid://commerce/SubscriptionBillingAttempt/1",
		SubscriptionContractID: contractID,
		OrderID:                "gid://commerce/Order/1",
		IdempotencyKey:         attempt.IdempotencyKey,
		Ready:                  true,
	}
	res, err := f.deliver(t, integration.TopicBillingSuccess, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	stored, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.AttemptSuccess, stored.Status)
	require.NotNil(t, stored.RemoteID)
	assert.Equal(t, ev.ID, *stored.RemoteID)

	billed := f.byRemoteID(t, contractID)
	assert.Equal(t, 1, billed.BillingCycleCount)
	assert.True(t, testutil.Date(2025, 2, 28).Equal(billed.NextBillingDate))

	res, err = f.deliver(t, integration.TopicBillingSuccess, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, 1, f.byRemoteID(t, contractID).BillingCycleCount)

	attempts, err := f.attempts.ListBySubscription(context.Background(), sub.ID, 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestReconciler_BillingSuccessForUnseenAttempt(t *testing.T) {
	f := newFixture(t)
	customer := f.syncedCustomer(t)
	sub := testutil.NewSubscription(t, customer.ID, testutil.WithRemoteID(contractID), testutil.Clean())
	require.NoError(t, f.subs.Save(context.Background(), sub))

	res, err := f.deliver(t, integration.TopicBillingSuccess, integration.BillingAttemptEvent{
		ID:                     "gid://commerce/SubscriptionBillingAttempt/9",
		SubscriptionContractID: contractID,
		OrderID:                "gid://commerce/Order/9",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	attempt, err := f.attempts.FindByRemoteID(context.Background(), "gid://commerce/SubscriptionBillingAttempt/9")
	require.NoError(t, err)
	assert.Equal(t, subscription.AttemptSuccess, attempt.Status)
	assert.Equal(t, sub.ID, attempt.SubscriptionID)
	assert.Equal(t, 1, f.byRemoteID(t, contractID).BillingCycleCount)
}

func TestReconciler_BillingForUnknownSubscription(t *testing.T) {
	f := newFixture(t)

	res, err := f.deliver(t, integration.TopicBillingSuccess, integration.BillingAttemptEvent{
		ID:                     "gid://commerce/SubscriptionBillingAttempt/1",
		SubscriptionContractID: "gid://commerce/SubscriptionContract/404",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)

	log, err := f.logs.FindByID(context.Background(), res.SyncLogID)
	require.NoError(t, err)
	assert.Equal(t, 1, log.Skipped)
}

func TestReconciler_BillingFailuresReachRetryCap(t *testing.T) {
	f := newFixture(t)
	customer := f.syncedCustomer(t)
	sub := testutil.NewSubscription(t, customer.ID, testutil.WithRemoteID(contractID), testutil.Clean())
	require.NoError(t, f.subs.Save(context.Background(), sub))

	for i := 1; i <= 3; i++ {
		ev := integration.BillingAttemptEvent{
			ID:                     fmt.Sprintf("gid://commerce/SubscriptionBillingAttempt/%d", i),
			SubscriptionContractID: contractID,
			ErrorCode:              "CARD_DECLINED",
			ErrorMessage:           "insufficient funds",
		}
		res, err := f.deliver(t, integration.TopicBillingFailure, ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeProcessed, res.Outcome)

		// redelivery of the same failure does not count twice
		res, err = f.deliver(t, integration.TopicBillingFailure, ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnchanged, res.Outcome)

		want := subscription.StatusActive
		if i == 3 {
			want = subscription.StatusFailed
		}
		assert.Equal(t, want, f.byRemoteID(t, contractID).Status, "after %d failures", i)
	}

	failures, err := f.attempts.CountFailedSince(context.Background(), sub.ID, f.now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, failures)
}

func TestReconciler_PaymentMethodRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t)

	affected := testutil.NewSubscription(t, customer.ID, testutil.WithRemoteID(contractID), testutil.Clean())
	require.NoError(t, f.subs.Save(ctx, affected))
	other := testutil.NewSubscription(t, customer.ID, testutil.Clean())
	require.NoError(t, f.subs.Save(ctx, other))

	res, err := f.deliver(t, integration.TopicPaymentMethodRevoked, integration.PaymentMethodEvent{
		ID:         *affected.PaymentMethodRef,
		CustomerID: customerID,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	paused, err := f.subs.FindByID(ctx, affected.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPaused, paused.Status)
	assert.Nil(t, paused.PaymentMethodRef)
	assert.True(t, paused.NeedsPush)

	untouched, err := f.subs.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, untouched.Status)
	assert.True(t, untouched.HasPaymentMethod())
	assert.False(t, untouched.NeedsPush)

	res, err = f.deliver(t, integration.TopicPaymentMethodRevoked, integration.PaymentMethodEvent{
		ID:         *affected.PaymentMethodRef,
		CustomerID: customerID,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)
}

func TestReconciler_PaymentMethodCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.syncedCustomer(t)

	missing := testutil.NewSubscription(t, customer.ID, testutil.WithoutPaymentMethod(), testutil.Clean())
	require.NoError(t, f.subs.Save(ctx, missing))
	paused := testutil.NewSubscription(t, customer.ID, testutil.WithoutPaymentMethod(), testutil.Clean())
	require.NoError(t, paused.Pause())
	require.NoError(t, f.subs.Save(ctx, paused))
	stranger := testutil.NewSubscription(t, uuid.New(), testutil.WithoutPaymentMethod(), testutil.Clean())
	require.NoError(t, f.subs.Save(ctx, stranger))

	pm := "gid://commerce/CustomerPaymentMethod/new"
	res, err := f.deliver(t, integration.TopicPaymentMethodCreated, integration.PaymentMethodEvent{ID: pm, CustomerID: customerID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	attached, err := f.subs.FindByID(ctx, missing.ID)
	require.NoError(t, err)
	require.NotNil(t, attached.PaymentMethodRef)
	assert.Equal(t, pm, *attached.PaymentMethodRef)
	assert.True(t, attached.NeedsPush)

	for _, id := range []uuid.UUID{paused.ID, stranger.ID} {
		sub, err := f.subs.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, sub.HasPaymentMethod())
	}

	res, err = f.deliver(t, integration.TopicPaymentMethodCreated, integration.PaymentMethodEvent{ID: pm, CustomerID: "gid://commerce/Customer/unknown"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)
}
