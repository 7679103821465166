package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseSize caps how much of a remote response is read (10MB)
const maxResponseSize = 10 * 1024 * 1024

// AccessTokenHeader carries the platform access token
const AccessTokenHeader = "X-Commerce-Access-Token"

// Client posts GraphQL documents to the remote platform and classifies failures into the
// integration error taxonomy.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client. A nil httpClient gets one bounded by the configured timeout.
func NewClient(config *Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{config: config, httpClient: httpClient, logger: logger.Named("commerce")}, nil
}

// Do executes one operation and decodes its data object into out
func (c *Client) Do(ctx context.Context, operation, query string, variables map[string]any, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "commerce."+operation,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("commerce.operation", operation),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("commerce: failed to encode %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("commerce: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(AccessTokenHeader, c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrRemoteUnavailable, operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", integration.ErrRemoteUnavailable, operation, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: HTTP %d", integration.ErrRemoteUnauthorized, operation, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s: HTTP %d", integration.ErrRemoteUnavailable, operation, resp.StatusCode)
	case resp.StatusCode >= 400:
		return integration.NewRemoteValidationError(operation, integration.FieldError{
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
		})
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrRemoteInvalidResponse, operation, err)
	}
	if len(envelope.Errors) > 0 {
		return classifyGraphQLErrors(operation, envelope.Errors)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%w: %s: empty data", integration.ErrRemoteInvalidResponse, operation)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: %s: %v", integration.ErrRemoteInvalidResponse, operation, err)
		}
	}

	c.logger.Debug("Remote call succeeded", zap.String("operation", operation))
	return nil
}

// classifyGraphQLErrors treats throttling as transient and everything else as a rejection
func classifyGraphQLErrors(operation string, errs []graphQLError) error {
	fieldErrs := make([]integration.FieldError, 0, len(errs))
	for _, e := range errs {
		switch e.Extensions.Code {
		case "THROTTLED":
			return fmt.Errorf("%w: %s: throttled", integration.ErrRemoteUnavailable, operation)
		case "ACCESS_DENIED", "UNAUTHENTICATED":
			return fmt.Errorf("%w: %s: %s", integration.ErrRemoteUnauthorized, operation, e.Message)
		}
		fieldErrs = append(fieldErrs, integration.FieldError{Message: e.Message, Code: e.Extensions.Code})
	}
	return integration.NewRemoteValidationError(operation, fieldErrs...)
}

// userErrors turns a non-empty userErrors list into a validation error
func userErrors(operation string, errs []integration.FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return integration.NewRemoteValidationError(operation, errs...)
}

// missing reports a mutation payload that carried neither an object nor userErrors
func missing(operation, object string) error {
	return fmt.Errorf("%w: %s: response has no %s", integration.ErrRemoteInvalidResponse, operation, object)
}

var errNoRemoteID = errors.New("commerce: entity has no remote id")
