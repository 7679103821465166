package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"go.uber.org/zap"
)

// Gateway implements integration.CommerceGateway over the remote GraphQL admin API
type Gateway struct {
	client *Client
	logger *zap.Logger
}

// Ensure Gateway implements the port
var _ integration.CommerceGateway = (*Gateway)(nil)

// NewGateway creates a gateway backed by a new Client
func NewGateway(config *Config, httpClient *http.Client, logger *zap.Logger) (*Gateway, error) {
	client, err := NewClient(config, httpClient, logger)
	if err != nil {
		return nil, err
	}
	return &Gateway{client: client, logger: client.logger}, nil
}

// CreateSellingPlan creates a selling plan group holding the plan
func (g *Gateway) CreateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) (string, error) {
	const op = "sellingPlanGroupCreate"
	var data sellingPlanGroupCreateData
	if err := g.client.Do(ctx, op, mutationSellingPlanGroupCreate, map[string]any{
		"input": sellingPlanInput(plan),
	}, &data); err != nil {
		return "", err
	}
	if err := userErrors(op, data.Payload.UserErrors); err != nil {
		return "", err
	}
	if data.Payload.SellingPlanGroup == nil || data.Payload.SellingPlanGroup.ID == "" {
		return "", missing(op, "sellingPlanGroup")
	}
	return data.Payload.SellingPlanGroup.ID, nil
}

// UpdateSellingPlan pushes the current plan attributes
func (g *Gateway) UpdateSellingPlan(ctx context.Context, plan *subscription.SellingPlan) error {
	const op = "sellingPlanGroupUpdate"
	if !plan.HasRemoteID() {
		return errNoRemoteID
	}
	var data sellingPlanGroupUpdateData
	if err := g.client.Do(ctx, op, mutationSellingPlanGroupUpdate, map[string]any{
		"id":    plan.RemoteIDValue(),
		"input": sellingPlanInput(plan),
	}, &data); err != nil {
		return err
	}
	return userErrors(op, data.Payload.UserErrors)
}

// CreateSubscription creates the contract and returns its remote ID
func (g *Gateway) CreateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc integration.SubscriptionContext) (string, error) {
	const op = "subscriptionContractAtomicCreate"
	if sc.CustomerRemoteID == "" {
		return "", integration.NewRemoteValidationError(op, integration.FieldError{
			Field:   []string{"customerId"},
			Message: "customer has no remote identity",
		})
	}
	input := contractInput(sub, sc)
	input["customerId"] = sc.CustomerRemoteID
	if sc.IdempotencyKey != "" {
		input["idempotencyKey"] = sc.IdempotencyKey
	}

	var data contractCreateData
	if err := g.client.Do(ctx, op, mutationContractCreate, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}
	if err := userErrors(op, data.Payload.UserErrors); err != nil {
		return "", err
	}
	if data.Payload.Contract == nil || data.Payload.Contract.ID == "" {
		return "", missing(op, "contract")
	}
	return data.Payload.Contract.ID, nil
}

// UpdateSubscription pushes the current contract state. Pause and resume travel as the status field.
func (g *Gateway) UpdateSubscription(ctx context.Context, sub *subscription.CustomerSubscription, sc integration.SubscriptionContext) error {
	const op = "subscriptionContractAtomicUpdate"
	if !sub.HasRemoteID() {
		return errNoRemoteID
	}
	var data contractUpdateData
	if err := g.client.Do(ctx, op, mutationContractUpdate, map[string]any{
		"contractId": sub.RemoteIDValue(),
		"input":      contractInput(sub, sc),
	}, &data); err != nil {
		return err
	}
	return userErrors(op, data.Payload.UserErrors)
}

// CancelSubscription cancels a remote contract
func (g *Gateway) CancelSubscription(ctx context.Context, remoteID string) error {
	const op = "subscriptionContractCancel"
	if remoteID == "" {
		return errNoRemoteID
	}
	var data contractCancelData
	if err := g.client.Do(ctx, op, mutationContractCancel, map[string]any{
		"subscriptionContractId": remoteID,
	}, &data); err != nil {
		return err
	}
	return userErrors(op, data.Payload.UserErrors)
}

// CreateBillingAttempt charges one cycle. A declined payment is a result, not an error.
func (g *Gateway) CreateBillingAttempt(ctx context.Context, req integration.ChargeRequest) (*integration.ChargeResult, error) {
	const op = "subscriptionBillingAttemptCreate"
	if req.SubscriptionRemoteID == "" {
		return nil, errNoRemoteID
	}
	input := map[string]any{
		"idempotencyKey": req.IdempotencyKey,
	}
	if !req.OriginTime.IsZero() {
		input["originTime"] = req.OriginTime.UTC().Format("2006-01-02T15:04:05Z")
	}

	var data billingAttemptCreateData
	if err := g.client.Do(ctx, op, mutationBillingAttemptCreate, map[string]any{
		"subscriptionContractId": req.SubscriptionRemoteID,
		"input":                  input,
	}, &data); err != nil {
		return nil, err
	}
	if err := userErrors(op, data.Payload.UserErrors); err != nil {
		return nil, err
	}
	node := data.Payload.Attempt
	if node == nil || node.ID == "" {
		return nil, missing(op, "subscriptionBillingAttempt")
	}

	result := &integration.ChargeResult{RemoteAttemptID: node.ID}
	switch {
	case node.ErrorCode != nil && *node.ErrorCode != "":
		result.Status = integration.ChargeDeclined
		result.ErrorCode = *node.ErrorCode
		if node.ErrorMessage != nil {
			result.ErrorMessage = *node.ErrorMessage
		}
	case node.Order != nil && node.Order.ID != "":
		result.Status = integration.ChargeSucceeded
		result.RemoteOrderRef = node.Order.ID
	default:
		result.Status = integration.ChargePending
	}

	g.logger.Info("Billing attempt created",
		zap.String("contract_id", req.SubscriptionRemoteID),
		zap.String("attempt_id", result.RemoteAttemptID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// FetchCustomer reads a customer profile
func (g *Gateway) FetchCustomer(ctx context.Context, remoteID string) (*integration.RemoteCustomer, error) {
	const op = "customer"
	if remoteID == "" {
		return nil, errNoRemoteID
	}
	var data customerData
	if err := g.client.Do(ctx, op, queryCustomer, map[string]any{"id": remoteID}, &data); err != nil {
		return nil, err
	}
	if data.Customer == nil {
		return nil, fmt.Errorf("%w: customer %s", integration.ErrRemoteNotFound, remoteID)
	}
	return &integration.RemoteCustomer{
		RemoteID:  data.Customer.ID,
		Email:     data.Customer.Email,
		FirstName: data.Customer.FirstName,
		LastName:  data.Customer.LastName,
	}, nil
}

// IsNoRemoteID reports a call made for an entity that was never created remotely
func IsNoRemoteID(err error) bool {
	return errors.Is(err, errNoRemoteID)
}

func policy(i subscription.Interval) map[string]any {
	return map[string]any{
		"interval":      string(i.Unit),
		"intervalCount": i.Count,
	}
}

func sellingPlanInput(plan *subscription.SellingPlan) map[string]any {
	return map[string]any{
		"name": plan.Name,
		"sellingPlansToCreate": []map[string]any{{
			"name":           plan.Name,
			"billingPolicy":  policy(plan.BillingInterval),
			"deliveryPolicy": policy(plan.DeliveryInterval),
			"pricingPolicy": map[string]any{
				"adjustmentType":  string(plan.Adjustment.Kind),
				"adjustmentValue": plan.Adjustment.Value.String(),
			},
			"active": plan.Active,
		}},
	}
}

func contractInput(sub *subscription.CustomerSubscription, sc integration.SubscriptionContext) map[string]any {
	lines := make([]map[string]any, 0, len(sub.LineItems))
	for _, item := range sub.LineItems {
		line := map[string]any{
			"productVariantId": item.VariantRef,
			"quantity":         item.Quantity,
			"currentPrice":     item.UnitPrice.StringFixed(2),
		}
		if sc.SellingPlanRemoteID != "" {
			line["sellingPlanGroupId"] = sc.SellingPlanRemoteID
		}
		if item.Title != "" {
			line["title"] = item.Title
		}
		lines = append(lines, line)
	}

	input := map[string]any{
		"status":          string(sub.Status),
		"nextBillingDate": subscription.DateOnly(sub.NextBillingDate).Format("2006-01-02"),
		"currencyCode":    sub.Currency,
		"billingPolicy":   policy(sub.BillingInterval),
		"deliveryPolicy":  policy(sub.DeliveryInterval),
		"lines":           lines,
		"deliveryAddress": map[string]any{
			"firstName": sub.DeliveryAddress.FirstName,
			"lastName":  sub.DeliveryAddress.LastName,
			"address1":  sub.DeliveryAddress.Address1,
			"address2":  sub.DeliveryAddress.Address2,
			"city":      sub.DeliveryAddress.City,
			"province":  sub.DeliveryAddress.Province,
			"country":   sub.DeliveryAddress.Country,
			"zip":       sub.DeliveryAddress.Zip,
			"phone":     sub.DeliveryAddress.Phone,
		},
	}
	if sub.HasPaymentMethod() {
		input["paymentMethodId"] = *sub.PaymentMethodRef
	}
	if sub.TotalCycles != nil {
		input["maxCycles"] = *sub.TotalCycles
	}
	return input
}
