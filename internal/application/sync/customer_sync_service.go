package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CustomerSyncService pulls customer profiles from the remote platform so that
// notifications about their subscriptions can be correlated
type CustomerSyncService struct {
	customers subscription.CustomerRepository
	gateway   integration.CommerceGateway
	recorder  *audit.Recorder
	clock     func() time.Time
	logger    *zap.Logger
}

// NewCustomerSyncService creates a CustomerSyncService
func NewCustomerSyncService(customers subscription.CustomerRepository, gateway integration.CommerceGateway, recorder *audit.Recorder, log *zap.Logger) *CustomerSyncService {
	return &CustomerSyncService{
		customers: customers,
		gateway:   gateway,
		recorder:  recorder,
		clock:     time.Now,
		logger:    logger.OrNop(log),
	}
}

// SetClock overrides the time source
func (s *CustomerSyncService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SyncByRemoteID fetches the remote customer and upserts it locally by remote identity.
// Every call writes one CUSTOMER_SYNC log.
func (s *CustomerSyncService) SyncByRemoteID(ctx context.Context, remoteID string) (*subscription.Customer, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, shared.NewDomainError("INVALID_REMOTE_ID", "Remote customer id is required")
	}

	ctx, log, err := s.recorder.Begin(ctx, integration.OperationCustomerSync, false)
	if err != nil {
		return nil, err
	}

	customer, err := s.sync(ctx, remoteID)
	if err != nil {
		ref := shared.EntityRef{Kind: shared.EntityKindCustomer}
		if customer != nil {
			ref.ID = customer.ID
		}
		_ = log.RecordFailure(ref, customerFailureCode(err), err.Error())
		logger.L(ctx).Warn("Customer sync failed",
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
	} else {
		_ = log.RecordSuccess()
	}
	if finishErr := s.recorder.Finish(ctx, log); finishErr != nil {
		s.logger.Warn("Failed to finish customer sync log", zap.Error(finishErr))
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *CustomerSyncService) sync(ctx context.Context, remoteID string) (*subscription.Customer, error) {
	remote, err := s.gateway.FetchCustomer(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("fetch customer %s: %w", remoteID, err)
	}

	customer, err := s.customers.FindByRemoteID(ctx, remoteID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		customer, err = subscription.NewCustomer(remote.Email, remote.FirstName, remote.LastName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	customer.ApplyRemote(remoteID, remote.Email, remote.FirstName, remote.LastName, s.clock())
	if err := s.customers.Save(ctx, customer); err != nil {
		return customer, fmt.Errorf("save customer %s: %w", remoteID, err)
	}
	logger.L(ctx).Info("Customer synced",
		zap.String("customer_id", customer.ID.String()),
		zap.String("remote_id", remoteID),
	)
	return customer, nil
}

func customerFailureCode(err error) string {
	switch {
	case integration.IsValidation(err):
		return CodeRemoteValidation
	case integration.IsTransient(err):
		return CodeTransport
	case errors.Is(err, integration.ErrRemoteNotFound):
		return "REMOTE_NOT_FOUND"
	default:
		return CodeLocalError
	}
}
