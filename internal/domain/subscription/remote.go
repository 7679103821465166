package subscription

import (
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// RemoteSnapshot is the remote platform's view of a subscription contract, as carried
// by lifecycle notifications
type RemoteSnapshot struct {
	RemoteID         string
	Status           Status
	NextBillingDate  time.Time
	NextDeliveryDate *time.Time
	BillingInterval  Interval
	DeliveryInterval Interval
	LineItems        []LineItem
	Currency         string
	DeliveryAddress  Address
	PaymentMethodRef *string
	SellingPlanID    *uuid.UUID
	// UpdatedAt is the remote modification time; zero when the payload omits it
	UpdatedAt time.Time
}

// ApplyOutcome describes what ApplyRemote did
type ApplyOutcome struct {
	Applied bool
	Changes ChangeSet
	// StatusConflict is set when the remote status could not be applied because the
	// local lifecycle does not allow that move (for example a local FAILED subscription)
	StatusConflict bool
}

// NewSubscriptionFromRemote materializes a subscription first seen through a notification
func NewSubscriptionFromRemote(customerID uuid.UUID, snap RemoteSnapshot, pulledAt time.Time) (*CustomerSubscription, error) {
	if snap.RemoteID == "" {
		return nil, shared.NewDomainError("INVALID_REMOTE_ID", "Remote subscription id is required")
	}
	s, err := NewCustomerSubscription(NewSubscriptionParams{
		CustomerID:       customerID,
		SellingPlanID:    snap.SellingPlanID,
		NextBillingDate:  snap.NextBillingDate,
		NextDeliveryDate: snap.NextDeliveryDate,
		BillingInterval:  snap.BillingInterval,
		DeliveryInterval: snap.DeliveryInterval,
		LineItems:        snap.LineItems,
		Currency:         snap.Currency,
		DeliveryAddress:  snap.DeliveryAddress,
		PaymentMethodRef: snap.PaymentMethodRef,
	})
	if err != nil {
		return nil, err
	}
	if snap.Status.IsValid() {
		s.Status = snap.Status
		if snap.Status == StatusCancelled {
			at := pulledAt.UTC()
			s.CancelledAt = &at
		}
	}
	if err := s.AssignRemoteID(snap.RemoteID); err != nil {
		return nil, err
	}
	if !snap.UpdatedAt.IsZero() {
		u := snap.UpdatedAt.UTC()
		s.RemoteUpdatedAt = &u
	}
	s.RecordPull(pulledAt)
	return s, nil
}

// ApplyRemote overwrites local state with a remote snapshot. Snapshots not newer than the
// last applied one, and snapshots that change nothing, are ignored so redelivery is a no-op.
func (s *CustomerSubscription) ApplyRemote(snap RemoteSnapshot, pulledAt time.Time) (ApplyOutcome, error) {
	if err := s.AssignRemoteID(snap.RemoteID); err != nil {
		return ApplyOutcome{}, err
	}
	if !snap.UpdatedAt.IsZero() && s.RemoteUpdatedAt != nil && !snap.UpdatedAt.After(*s.RemoteUpdatedAt) {
		return ApplyOutcome{}, nil
	}

	before := s.Clone()
	var out ApplyOutcome

	if err := snap.BillingInterval.Validate(); err == nil {
		s.BillingInterval = snap.BillingInterval
	}
	if err := snap.DeliveryInterval.Validate(); err == nil {
		s.DeliveryInterval = snap.DeliveryInterval
	}
	if !snap.NextBillingDate.IsZero() {
		s.SetNextBillingDate(snap.NextBillingDate)
	}
	if snap.NextDeliveryDate != nil {
		s.SetNextDeliveryDate(*snap.NextDeliveryDate)
	}
	if len(snap.LineItems) > 0 {
		if err := s.SetLineItems(snap.LineItems); err != nil {
			return ApplyOutcome{}, err
		}
	}
	if snap.Currency != "" {
		cur, err := NormalizeCurrency(snap.Currency)
		if err != nil {
			return ApplyOutcome{}, err
		}
		s.Currency = cur
	}
	s.DeliveryAddress = snap.DeliveryAddress
	s.PaymentMethodRef = cloneString(snap.PaymentMethodRef)
	if snap.SellingPlanID != nil {
		s.SellingPlanID = cloneUUID(snap.SellingPlanID)
	}
	if snap.Status.IsValid() && snap.Status != s.Status {
		if snap.Status == StatusCancelled {
			if err := s.Cancel(pulledAt); err != nil {
				out.StatusConflict = true
			}
		} else if err := s.transition(snap.Status); err != nil {
			out.StatusConflict = true
		}
	}

	out.Changes = Diff(before, s)
	if out.Changes.Empty() && snap.UpdatedAt.IsZero() {
		return out, nil
	}
	if !snap.UpdatedAt.IsZero() {
		u := snap.UpdatedAt.UTC()
		s.RemoteUpdatedAt = &u
	}
	s.RecordPull(pulledAt)
	s.Touch()
	out.Applied = true
	return out, nil
}
