package commerce

import (
	"encoding/json"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
)

// graphQLRequest is the POST body of every call
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError is one entry of the top-level errors array
type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
	Path []any `json:"path,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type idNode struct {
	ID string `json:"id"`
}

type sellingPlanGroupCreateData struct {
	Payload struct {
		SellingPlanGroup *idNode                  `json:"sellingPlanGroup"`
		UserErrors       []integration.FieldError `json:"userErrors"`
	} `json:"sellingPlanGroupCreate"`
}

type sellingPlanGroupUpdateData struct {
	Payload struct {
		SellingPlanGroup *idNode                  `json:"sellingPlanGroup"`
		UserErrors       []integration.FieldError `json:"userErrors"`
	} `json:"sellingPlanGroupUpdate"`
}

type contractCreateData struct {
	Payload struct {
		Contract   *idNode                  `json:"contract"`
		UserErrors []integration.FieldError `json:"userErrors"`
	} `json:"subscriptionContractAtomicCreate"`
}

type contractUpdateData struct {
	Payload struct {
		Contract   *idNode                  `json:"contract"`
		UserErrors []integration.FieldError `json:"userErrors"`
	} `json:"subscriptionContractAtomicUpdate"`
}

type contractCancelData struct {
	Payload struct {
		Contract   *idNode                  `json:"contract"`
		UserErrors []integration.FieldError `json:"userErrors"`
	} `json:"subscriptionContractCancel"`
}

type billingAttemptNode struct {
	ID           string  `json:"id"`
	Ready        bool    `json:"ready"`
	ErrorCode    *string `json:"errorCode"`
	ErrorMessage *string `json:"errorMessage"`
	Order        *idNode `json:"order"`
}

type billingAttemptCreateData struct {
	Payload struct {
		Attempt    *billingAttemptNode      `json:"subscriptionBillingAttempt"`
		UserErrors []integration.FieldError `json:"userErrors"`
	} `json:"subscriptionBillingAttemptCreate"`
}

type customerData struct {
	Customer *struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"customer"`
}

const (
	mutationSellingPlanGroupCreate = `mutation sellingPlanGroupCreate($input: SellingPlanGroupInput!) {
  sellingPlanGroupCreate(input: $input) {
    sellingPlanGroup { id }
    userErrors { field message code }
  }
}`

	mutationSellingPlanGroupUpdate = `mutation sellingPlanGroupUpdate($id: ID!, $input: SellingPlanGroupInput!) {
  sellingPlanGroupUpdate(id: $id, input: $input) {
    sellingPlanGroup { id }
    userErrors { field message code }
  }
}`

	mutationContractCreate = `mutation subscriptionContractAtomicCreate($input: SubscriptionContractAtomicCreateInput!) {
  subscriptionContractAtomicCreate(input: $input) {
    contract { id }
    userErrors { field message code }
  }
}`

	mutationContractUpdate = `mutation subscriptionContractAtomicUpdate($contractId: ID!, $input: SubscriptionContractAtomicUpdateInput!) {
  subscriptionContractAtomicUpdate(contractId: $contractId, input: $input) {
    contract { id }
    userErrors { field message code }
  }
}`

	mutationContractCancel = `mutation subscriptionContractCancel($subscriptionContractId: ID!) {
  subscriptionContractCancel(subscriptionContractId: $subscriptionContractId) {
    contract { id }
    userErrors { field message code }
  }
}`

	mutationBillingAttemptCreate = `mutation subscriptionBillingAttemptCreate($subscriptionContractId: ID!, $input: SubscriptionBillingAttemptInput!) {
  subscriptionBillingAttemptCreate(subscriptionContractId: $subscriptionContractId, subscriptionBillingAttemptInput: $input) {
    subscriptionBillingAttempt { id ready errorCode errorMessage order { id } }
    userErrors { field message code }
  }
}`

	queryCustomer = `query customer($id: ID!) {
  customer(id: $id) { id email firstName lastName }
}`
)
