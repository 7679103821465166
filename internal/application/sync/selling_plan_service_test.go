package sync

import (
	"context"
	"testing"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planInput(name string) SellingPlanInput {
	return SellingPlanInput{
		Name:             name,
		BillingInterval:  IntervalInput{Unit: "MONTH", Count: 1},
		DeliveryInterval: IntervalInput{Unit: "MONTH", Count: 1},
		AdjustmentKind:   "PERCENTAGE",
		AdjustmentValue:  decimal.NewFromInt(15),
	}
}

func TestSellingPlanService(t *testing.T) {
	f := newFixture(t)
	svc := NewSellingPlanService(f.plans, f.pusher, false, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, planInput("Monthly box"))
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.True(t, created.NeedsPush)
	assert.Equal(t, "1 MONTH", created.BillingInterval)

	plan, err := f.plans.FindByID(ctx, created.ID)
	require.NoError(t, err)
	plan.RecordPushSuccess(f.now)
	require.NoError(t, f.plans.Save(ctx, plan))

	t.Run("unchanged update stays clean", func(t *testing.T) {
		resp, err := svc.Update(ctx, created.ID, planInput("Monthly box"))
		require.NoError(t, err)
		assert.False(t, resp.NeedsPush)
	})

	t.Run("rename marks dirty", func(t *testing.T) {
		resp, err := svc.Update(ctx, created.ID, planInput("Monthly crate"))
		require.NoError(t, err)
		assert.True(t, resp.NeedsPush)
		assert.Equal(t, "Monthly crate", resp.Name)
	})

	t.Run("percentage over 100 is rejected", func(t *testing.T) {
		in := planInput("Too generous")
		in.AdjustmentValue = decimal.NewFromInt(120)
		_, err := svc.Create(ctx, in)
		assert.Error(t, err)
	})

	t.Run("deactivate is idempotent", func(t *testing.T) {
		resp, err := svc.Deactivate(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, resp.Active)

		resp, err = svc.Deactivate(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, resp.Active)
	})

	items, total, err := svc.List(ctx, subscription.SellingPlanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)
}
