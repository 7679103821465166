package sync

import (
	"context"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSubscriptionClosed is returned when editing a cancelled or expired subscription
var ErrSubscriptionClosed = shared.NewDomainError("SUBSCRIPTION_CLOSED", "Cancelled or expired subscriptions cannot be edited")

// SubscriptionServiceConfig holds the collaborators of a SubscriptionService
type SubscriptionServiceConfig struct {
	Subscriptions subscription.SubscriptionRepository
	Plans         subscription.SellingPlanRepository
	Customers     subscription.CustomerRepository
	Pusher        *PushSynchronizer
	// PushOnSave pushes a subscription right after a local change marked it dirty
	PushOnSave bool
	Logger     *zap.Logger
}

// SubscriptionService performs local subscription changes. A change marks the subscription
// dirty only when a sync-relevant field actually differs.
type SubscriptionService struct {
	subs       subscription.SubscriptionRepository
	plans      subscription.SellingPlanRepository
	customers  subscription.CustomerRepository
	pusher     *PushSynchronizer
	pushOnSave bool
	clock      func() time.Time
	logger     *zap.Logger
}

// NewSubscriptionService creates a SubscriptionService
func NewSubscriptionService(cfg SubscriptionServiceConfig) *SubscriptionService {
	return &SubscriptionService{
		subs:       cfg.Subscriptions,
		plans:      cfg.Plans,
		customers:  cfg.Customers,
		pusher:     cfg.Pusher,
		pushOnSave: cfg.PushOnSave && cfg.Pusher != nil,
		clock:      time.Now,
		logger:     logger.OrNop(cfg.Logger),
	}
}

// SetClock overrides the time source
func (s *SubscriptionService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Create creates a local subscription, dirty until pushed
func (s *SubscriptionService) Create(ctx context.Context, in CreateSubscriptionInput) (*SubscriptionResponse, error) {
	if _, err := s.customers.FindByID(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	if in.SellingPlanID != nil {
		if err := s.checkPlan(ctx, *in.SellingPlanID); err != nil {
			return nil, err
		}
	}

	billing, err := in.BillingInterval.toDomain()
	if err != nil {
		return nil, err
	}
	delivery, err := in.DeliveryInterval.toDomain()
	if err != nil {
		return nil, err
	}
	params := subscription.NewSubscriptionParams{
		CustomerID:       in.CustomerID,
		SellingPlanID:    in.SellingPlanID,
		NextBillingDate:  in.NextBillingDate,
		NextDeliveryDate: in.NextDeliveryDate,
		BillingInterval:  billing,
		DeliveryInterval: delivery,
		LineItems:        lineItemsToDomain(in.LineItems),
		Currency:         in.Currency,
		PaymentMethodRef: in.PaymentMethodRef,
		TotalCycles:      in.TotalCycles,
	}
	if in.DeliveryAddress != nil {
		params.DeliveryAddress = in.DeliveryAddress.toDomain()
	}

	sub, err := subscription.NewCustomerSubscription(params)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("customer_id", sub.CustomerID.String()),
	)
	return s.afterChange(ctx, sub)
}

// Update applies the non-nil fields of in
func (s *SubscriptionService) Update(ctx context.Context, id uuid.UUID, in UpdateSubscriptionInput) (*SubscriptionResponse, error) {
	if in.SellingPlanID != nil {
		if err := s.checkPlan(ctx, *in.SellingPlanID); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, id, func(sub *subscription.CustomerSubscription) error {
		if sub.Status.IsTerminal() {
			return ErrSubscriptionClosed
		}
		if in.SellingPlanID != nil {
			planID := *in.SellingPlanID
			sub.SellingPlanID = &planID
		}
		if in.NextBillingDate != nil {
			sub.SetNextBillingDate(*in.NextBillingDate)
		}
		if in.NextDeliveryDate != nil {
			sub.SetNextDeliveryDate(*in.NextDeliveryDate)
		}
		if in.BillingInterval != nil {
			interval, err := in.BillingInterval.toDomain()
			if err != nil {
				return err
			}
			sub.BillingInterval = interval
		}
		if in.DeliveryInterval != nil {
			interval, err := in.DeliveryInterval.toDomain()
			if err != nil {
				return err
			}
			sub.DeliveryInterval = interval
		}
		if in.LineItems != nil {
			if err := sub.SetLineItems(lineItemsToDomain(*in.LineItems)); err != nil {
				return err
			}
		}
		if in.DeliveryAddress != nil {
			sub.DeliveryAddress = in.DeliveryAddress.toDomain()
		}
		if in.PaymentMethodRef != nil {
			if *in.PaymentMethodRef == "" {
				sub.ClearPaymentMethod()
			} else {
				sub.AttachPaymentMethod(*in.PaymentMethodRef)
			}
		}
		if in.TotalCycles != nil {
			if *in.TotalCycles < 1 || *in.TotalCycles < sub.BillingCycleCount {
				return shared.NewDomainError("INVALID_TOTAL_CYCLES", "Total cycles must be positive and not below the cycles already billed")
			}
			cycles := *in.TotalCycles
			sub.TotalCycles = &cycles
		}
		return nil
	})
}

// Pause pauses an ACTIVE subscription
func (s *SubscriptionService) Pause(ctx context.Context, id uuid.UUID) (*SubscriptionResponse, error) {
	return s.mutate(ctx, id, func(sub *subscription.CustomerSubscription) error {
		return sub.Pause()
	})
}

// Resume reactivates a PAUSED subscription
func (s *SubscriptionService) Resume(ctx context.Context, id uuid.UUID) (*SubscriptionResponse, error) {
	return s.mutate(ctx, id, func(sub *subscription.CustomerSubscription) error {
		return sub.Resume()
	})
}

// Cancel ends a subscription. The next push issues the remote cancel.
func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID) (*SubscriptionResponse, error) {
	return s.mutate(ctx, id, func(sub *subscription.CustomerSubscription) error {
		return sub.Cancel(s.clock())
	})
}

// Reactivate moves a FAILED subscription back to ACTIVE. A zero nextBilling resets the
// schedule to today.
func (s *SubscriptionService) Reactivate(ctx context.Context, id uuid.UUID, nextBilling time.Time) (*SubscriptionResponse, error) {
	if nextBilling.IsZero() {
		nextBilling = s.clock().UTC()
	}
	return s.mutate(ctx, id, func(sub *subscription.CustomerSubscription) error {
		return sub.Reactivate(nextBilling)
	})
}

// Get returns one subscription
func (s *SubscriptionService) Get(ctx context.Context, id uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSubscriptionResponse(sub)
	return &resp, nil
}

// List returns a page of subscriptions
func (s *SubscriptionService) List(ctx context.Context, filter subscription.SubscriptionFilter) ([]SubscriptionResponse, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_STATUS", "Unknown subscription status "+string(filter.Status))
	}
	subs, total, err := s.subs.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		out[i] = ToSubscriptionResponse(sub)
	}
	return out, total, nil
}

// mutate loads, changes, diffs and saves a subscription
func (s *SubscriptionService) mutate(ctx context.Context, id uuid.UUID, change func(*subscription.CustomerSubscription) error) (*SubscriptionResponse, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := sub.Clone()
	if err := change(sub); err != nil {
		return nil, err
	}

	changes := subscription.Diff(before, sub)
	if changes.Empty() {
		resp := ToSubscriptionResponse(sub)
		return &resp, nil
	}
	sub.MarkDirty()
	sub.Touch()
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Subscription changed",
		zap.String("subscription_id", sub.ID.String()),
		zap.Strings("fields", changes),
	)
	return s.afterChange(ctx, sub)
}

// afterChange runs the explicit push when configured. A failed push leaves the
// subscription dirty and does not fail the local change.
func (s *SubscriptionService) afterChange(ctx context.Context, sub *subscription.CustomerSubscription) (*SubscriptionResponse, error) {
	if s.pushOnSave {
		if _, err := s.pusher.Push(ctx, shared.SubscriptionRef(sub.ID)); err != nil {
			s.logger.Warn("Push after save failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
		}
		if fresh, err := s.subs.FindByID(ctx, sub.ID); err == nil {
			sub = fresh
		}
	}
	resp := ToSubscriptionResponse(sub)
	return &resp, nil
}

func (s *SubscriptionService) checkPlan(ctx context.Context, id uuid.UUID) error {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !plan.Active {
		return shared.NewDomainError("PLAN_INACTIVE", "Selling plan is deactivated")
	}
	return nil
}
