package subscription

import (
	"strings"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
)

// Customer is the minimal local record of a remote customer. Profile management lives elsewhere;
// the sync engine only needs the correlation key.
type Customer struct {
	shared.BaseEntity
	RemoteID     *string
	Email        string
	FirstName    string
	LastName     string
	LastPulledAt *time.Time
}

// NewCustomer creates a local customer
func NewCustomer(email, firstName, lastName string) (*Customer, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Customer email is required")
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		Email:      email,
		FirstName:  strings.TrimSpace(firstName),
		LastName:   strings.TrimSpace(lastName),
	}, nil
}

// IsSynced reports whether the customer exists on the remote platform
func (c *Customer) IsSynced() bool {
	return c.RemoteID != nil && *c.RemoteID != ""
}

// ApplyRemote refreshes the customer from a remote profile
func (c *Customer) ApplyRemote(remoteID, email, firstName, lastName string, pulledAt time.Time) {
	if remoteID != "" {
		c.RemoteID = &remoteID
	}
	if e := strings.TrimSpace(strings.ToLower(email)); e != "" {
		c.Email = e
	}
	c.FirstName = strings.TrimSpace(firstName)
	c.LastName = strings.TrimSpace(lastName)
	at := pulledAt.UTC()
	c.LastPulledAt = &at
	c.Touch()
}
