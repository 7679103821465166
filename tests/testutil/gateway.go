package testutil

import (
	"context"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of integration.CommerceGateway
type MockGateway struct {
	mock.Mock
}

var _ integration.CommerceGateway = (*MockGateway)(nil)

func (m *MockGateway) CreateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) (string, error) {
	args := m.Called(ctx, plan)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) UpdateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockGateway) CreateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc integration.SubscriptionContext) (string, error) {
	args := m.Called(ctx, sub, sc)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) UpdateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc integration.SubscriptionContext) error {
	args := m.Called(ctx, sub, sc)
	return args.Error(0)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, remoteID string) error {
	args := m.Called(ctx, remoteID)
	return args.Error(0)
}

func (m *MockGateway) CreateBillingAttempt(ctx context.Context, req integration.ChargeRequest) (*integration.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ChargeResult), args.Error(1)
}

func (m *MockGateway) FetchCustomer(ctx context.Context, remoteID string) (*integration.RemoteCustomer, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteCustomer), args.Error(1)
}
