package subscription

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(t *testing.T) *CustomerSubscription {
	t.Helper()
	pm := "pm_123"
	sub, err := NewCustomerSubscription(NewSubscriptionParams{
		CustomerID:       uuid.New(),
		NextBillingDate:  date(2025, 1, 31),
		BillingInterval:  Interval{IntervalMonth, 1},
		DeliveryInterval: Interval{IntervalMonth, 1},
		LineItems: []LineItem{
			{VariantRef: "gid://variant/1", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
			{VariantRef: "gid://variant/2", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
		Currency:         "usd",
		PaymentMethodRef: &pm,
	})
	require.NoError(t, err)
	return sub
}

func TestNewCustomerSubscription(t *testing.T) {
	t.Run("valid subscription is active and dirty", func(t *testing.T) {
		sub := newTestSubscription(t)
		assert.Equal(t, StatusActive, sub.Status)
		assert.True(t, sub.NeedsPush)
		assert.False(t, sub.HasRemoteID())
		assert.Equal(t, "USD", sub.Currency)
		assert.True(t, decimal.RequireFromString("30").Equal(sub.TotalPrice))
		assert.True(t, sub.HasPaymentMethod())
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := NewCustomerSubscription(NewSubscriptionParams{
			CustomerID:       uuid.New(),
			NextBillingDate:  date(2025, 1, 1),
			BillingInterval:  Interval{IntervalMonth, 1},
			DeliveryInterval: Interval{IntervalMonth, 1},
			LineItems:        []LineItem{{VariantRef: "v", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
			Currency:         "US",
		})
		assert.ErrorIs(t, err, ErrInvalidCurrency)
	})

	t.Run("rejects empty line items", func(t *testing.T) {
		_, err := NewCustomerSubscription(NewSubscriptionParams{
			CustomerID:       uuid.New(),
			NextBillingDate:  date(2025, 1, 1),
			BillingInterval:  Interval{IntervalMonth, 1},
			DeliveryInterval: Interval{IntervalMonth, 1},
			Currency:         "USD",
		})
		assert.ErrorIs(t, err, ErrEmptyLineItems)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := NewCustomerSubscription(NewSubscriptionParams{
			CustomerID:       uuid.New(),
			NextBillingDate:  date(2025, 1, 1),
			BillingInterval:  Interval{IntervalMonth, 1},
			DeliveryInterval: Interval{IntervalMonth, 1},
			LineItems:        []LineItem{{VariantRef: "v", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}},
			Currency:         "USD",
		})
		assert.ErrorIs(t, err, ErrInvalidLineItem)
	})
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusActive, StatusFailed, true},
		{StatusActive, StatusExpired, true},
		{StatusPaused, StatusCancelled, true},
		{StatusFailed, StatusActive, false},
		{StatusCancelled, StatusActive, false},
		{StatusExpired, StatusActive, false},
		{StatusPaused, StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCustomerSubscription_Lifecycle(t *testing.T) {
	t.Run("pause and resume", func(t *testing.T) {
		sub := newTestSubscription(t)
		require.NoError(t, sub.Pause())
		assert.Equal(t, StatusPaused, sub.Status)
		require.NoError(t, sub.Resume())
		assert.Equal(t, StatusActive, sub.Status)
	})

	t.Run("cancelled cannot resume", func(t *testing.T) {
		sub := newTestSubscription(t)
		require.NoError(t, sub.Cancel(time.Now()))
		require.NotNil(t, sub.CancelledAt)
		assert.ErrorIs(t, sub.Resume(), ErrInvalidStatusTransition)
	})

	t.Run("failed needs reactivate", func(t *testing.T) {
		sub := newTestSubscription(t)
		require.NoError(t, sub.MarkFailed())
		assert.ErrorIs(t, sub.Resume(), ErrInvalidStatusTransition)
		require.NoError(t, sub.Reactivate(date(2025, 3, 1)))
		assert.Equal(t, StatusActive, sub.Status)
		assert.Equal(t, date(2025, 3, 1), sub.NextBillingDate)
	})

	t.Run("reactivate only from failed", func(t *testing.T) {
		sub := newTestSubscription(t)
		assert.ErrorIs(t, sub.Reactivate(date(2025, 3, 1)), ErrInvalidStatusTransition)
	})
}

func TestCustomerSubscription_AdvanceBillingCycle(t *testing.T) {
	t.Run("month end advances to calendar month end", func(t *testing.T) {
		sub := newTestSubscription(t)
		sub.AdvanceBillingCycle()
		assert.Equal(t, 1, sub.BillingCycleCount)
		assert.Equal(t, date(2025, 2, 28), sub.NextBillingDate)
	})

	t.Run("month end returns to the thirty first after february", func(t *testing.T) {
		sub := newTestSubscription(t)
		assert.Equal(t, 31, sub.BillingAnchorDay)
		sub.AdvanceBillingCycle()
		sub.AdvanceBillingCycle()
		sub.AdvanceBillingCycle()
		assert.Equal(t, date(2025, 4, 30), sub.NextBillingDate)
		sub.AdvanceBillingCycle()
		assert.Equal(t, date(2025, 5, 31), sub.NextBillingDate)
	})

	t.Run("rescheduling moves the anchor", func(t *testing.T) {
		sub := newTestSubscription(t)
		sub.SetNextBillingDate(date(2025, 2, 15))
		assert.Equal(t, 15, sub.BillingAnchorDay)
		sub.AdvanceBillingCycle()
		assert.Equal(t, date(2025, 3, 15), sub.NextBillingDate)
	})

	t.Run("delivery date keeps its own anchor", func(t *testing.T) {
		sub := newTestSubscription(t)
		sub.SetNextDeliveryDate(date(2025, 1, 30))
		sub.AdvanceBillingCycle()
		sub.AdvanceBillingCycle()
		assert.Equal(t, date(2025, 3, 30), *sub.NextDeliveryDate)
	})

	t.Run("delivery date follows delivery interval", func(t *testing.T) {
		sub := newTestSubscription(t)
		d := date(2025, 2, 3)
		sub.NextDeliveryDate = &d
		sub.DeliveryInterval = Interval{IntervalWeek, 2}
		sub.AdvanceBillingCycle()
		assert.Equal(t, date(2025, 2, 17), *sub.NextDeliveryDate)
	})

	t.Run("reaching the cycle ceiling expires", func(t *testing.T) {
		sub := newTestSubscription(t)
		ceiling := 2
		sub.TotalCycles = &ceiling
		sub.AdvanceBillingCycle()
		assert.Equal(t, StatusActive, sub.Status)
		sub.AdvanceBillingCycle()
		assert.Equal(t, StatusExpired, sub.Status)
	})
}

func TestCustomerSubscription_IsDueForBilling(t *testing.T) {
	sub := newTestSubscription(t)
	assert.True(t, sub.IsDueForBilling(date(2025, 1, 31)))
	assert.True(t, sub.IsDueForBilling(time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)))
	assert.False(t, sub.IsDueForBilling(date(2025, 1, 30)))

	require.NoError(t, sub.Pause())
	assert.False(t, sub.IsDueForBilling(date(2025, 2, 1)))
}

func TestSyncState(t *testing.T) {
	sub := newTestSubscription(t)

	sub.RecordPushFailure("field is invalid", true)
	assert.True(t, sub.NeedsPush)
	assert.False(t, sub.IsPushable())

	sub.MarkDirty()
	assert.True(t, sub.IsPushable())
	assert.Equal(t, "field is invalid", sub.LastPushError)

	require.NoError(t, sub.AssignRemoteID("gid://contract/1"))
	assert.ErrorIs(t, sub.AssignRemoteID("gid://contract/2"), ErrRemoteIDMismatch)
	require.NoError(t, sub.AssignRemoteID("gid://contract/1"))

	sub.RecordPushSuccess(time.Now())
	assert.False(t, sub.NeedsPush)
	assert.Empty(t, sub.LastPushError)
	assert.NotNil(t, sub.LastPushedAt)
}

func TestDiff(t *testing.T) {
	before := newTestSubscription(t)

	t.Run("no change", func(t *testing.T) {
		after := before.Clone()
		assert.True(t, Diff(before, after).Empty())
	})

	t.Run("address change is sync relevant", func(t *testing.T) {
		after := before.Clone()
		after.DeliveryAddress.City = "Lagos"
		c := Diff(before, after)
		assert.Equal(t, ChangeSet{FieldDeliveryAddress}, c)
	})

	t.Run("bookkeeping is ignored", func(t *testing.T) {
		after := before.Clone()
		now := time.Now()
		after.LastPushedAt = &now
		after.NeedsPush = false
		after.BillingCycleCount = 9
		assert.True(t, Diff(before, after).Empty())
	})

	t.Run("clone does not share line items", func(t *testing.T) {
		after := before.Clone()
		after.LineItems[0].Quantity = 7
		assert.True(t, Diff(before, after).Has(FieldLineItems))
		assert.Equal(t, 2, before.LineItems[0].Quantity)
	})
}

func TestApplyRemote(t *testing.T) {
	pulled := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	snap := RemoteSnapshot{
		RemoteID:         "gid://contract/9",
		Status:           StatusActive,
		NextBillingDate:  date(2025, 6, 1),
		BillingInterval:  Interval{IntervalMonth, 1},
		DeliveryInterval: Interval{IntervalMonth, 1},
		LineItems:        []LineItem{{VariantRef: "gid://variant/1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}},
		Currency:         "EUR",
		UpdatedAt:        time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("same snapshot twice is a no-op", func(t *testing.T) {
		sub, err := NewSubscriptionFromRemote(uuid.New(), snap, pulled)
		require.NoError(t, err)
		assert.False(t, sub.NeedsPush)
		firstPull := *sub.LastPulledAt

		out, err := sub.ApplyRemote(snap, pulled.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, firstPull, *sub.LastPulledAt)
	})

	t.Run("newer snapshot applies and clears dirty flag", func(t *testing.T) {
		sub, err := NewSubscriptionFromRemote(uuid.New(), snap, pulled)
		require.NoError(t, err)
		sub.MarkDirty()

		newer := snap
		newer.UpdatedAt = snap.UpdatedAt.Add(time.Minute)
		newer.Status = StatusPaused
		out, err := sub.ApplyRemote(newer, pulled.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, out.Applied)
		assert.True(t, out.Changes.Has(FieldStatus))
		assert.Equal(t, StatusPaused, sub.Status)
		assert.False(t, sub.NeedsPush)
	})

	t.Run("remote cannot revive a failed subscription", func(t *testing.T) {
		sub, err := NewSubscriptionFromRemote(uuid.New(), snap, pulled)
		require.NoError(t, err)
		require.NoError(t, sub.MarkFailed())

		newer := snap
		newer.UpdatedAt = snap.UpdatedAt.Add(time.Minute)
		out, err := sub.ApplyRemote(newer, pulled)
		require.NoError(t, err)
		assert.True(t, out.StatusConflict)
		assert.Equal(t, StatusFailed, sub.Status)
	})

	t.Run("foreign remote id is rejected", func(t *testing.T) {
		sub, err := NewSubscriptionFromRemote(uuid.New(), snap, pulled)
		require.NoError(t, err)
		other := snap
		other.RemoteID = "gid://contract/10"
		_, err = sub.ApplyRemote(other, pulled)
		assert.ErrorIs(t, err, ErrRemoteIDMismatch)
	})
}
