package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Webhook Topics
// ---------------------------------------------------------------------------

// Topic is a remote lifecycle notification kind
type Topic string

const (
	TopicSubscriptionCreated  Topic = "subscription_contracts/create"
	TopicSubscriptionUpdated  Topic = "subscription_contracts/update"
	TopicBillingSuccess       Topic = "subscription_billing_attempts/success"
	TopicBillingFailure       Topic = "subscription_billing_attempts/failure"
	TopicPaymentMethodRevoked Topic = "customer_payment_methods/revoke"
	TopicPaymentMethodCreated Topic = "customer_payment_methods/create"
)

// topicSlugs maps the ingress path segment to the topic
var topicSlugs = map[string]Topic{
	"subscription-created":   TopicSubscriptionCreated,
	"subscription-updated":   TopicSubscriptionUpdated,
	"billing-success":        TopicBillingSuccess,
	"billing-failure":        TopicBillingFailure,
	"payment-method-revoked": TopicPaymentMethodRevoked,
	"payment-method-created": TopicPaymentMethodCreated,
}

// TopicFromSlug resolves an ingress path segment
func TopicFromSlug(slug string) (Topic, error) {
	t, ok := topicSlugs[slug]
	if !ok {
		return "", ErrUnknownTopic
	}
	return t, nil
}

// Slug returns the ingress path segment of a topic
func (t Topic) Slug() string {
	for slug, topic := range topicSlugs {
		if topic == t {
			return slug
		}
	}
	return ""
}

// IsValid returns true if the topic is known
func (t Topic) IsValid() bool {
	return t.Slug() != ""
}

// ---------------------------------------------------------------------------
// Webhook Payloads
// ---------------------------------------------------------------------------

// ContractLine is a line item as sent by the remote platform
type ContractLine struct {
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ContractAddress is a delivery address as sent by the remote platform
type ContractAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
}

// ContractPolicy is an interval as sent by the remote platform
type ContractPolicy struct {
	Interval      string `json:"interval"`
	IntervalCount int    `json:"interval_count"`
}

// SubscriptionContractEvent is the body of contract create/update notifications
type SubscriptionContractEvent struct {
	ID               string           `json:"admin_graphql_api_id"`
	CustomerID       string           `json:"admin_graphql_api_customer_id"`
	Status           string           `json:"status"`
	SellingPlanID    string           `json:"selling_plan_id,omitempty"`
	NextBillingDate  time.Time        `json:"next_billing_date"`
	NextDeliveryDate *time.Time       `json:"next_delivery_date,omitempty"`
	BillingPolicy    ContractPolicy   `json:"billing_policy"`
	DeliveryPolicy   ContractPolicy   `json:"delivery_policy"`
	CurrencyCode     string           `json:"currency_code"`
	Lines            []ContractLine   `json:"lines"`
	DeliveryAddress  *ContractAddress `json:"delivery_address,omitempty"`
	PaymentMethodID  string           `json:"customer_payment_method_id,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BillingAttemptEvent is the body of billing success/failure notifications
type BillingAttemptEvent struct {
	ID                     string     `json:"admin_graphql_api_id"`
	SubscriptionContractID string     `json:"admin_graphql_api_subscription_contract_id"`
	OrderID                string     `json:"admin_graphql_api_order_id,omitempty"`
	IdempotencyKey         string     `json:"idempotency_key,omitempty"`
	ErrorCode              string     `json:"error_code,omitempty"`
	ErrorMessage           string     `json:"error_message,omitempty"`
	Ready                  bool       `json:"ready"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// PaymentMethodEvent is the body of payment method created/revoked notifications
type PaymentMethodEvent struct {
	ID         string `json:"admin_graphql_api_id"`
	CustomerID string `json:"admin_graphql_api_customer_id"`
	RevokedAt  string `json:"revoked_at,omitempty"`
}
