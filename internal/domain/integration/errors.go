package integration

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Remote Errors
// ---------------------------------------------------------------------------

var (
	// ErrRemoteUnavailable covers network failures, timeouts, throttling and 5xx responses.
	// The operation is retried by the next scheduled batch.
	ErrRemoteUnavailable = errors.New("integration: remote platform temporarily unavailable")
	// ErrRemoteValidation means the remote rejected the payload. Not retried automatically.
	ErrRemoteValidation = errors.New("integration: remote platform rejected the request")
	// ErrRemoteUnauthorized means the access token was refused
	ErrRemoteUnauthorized = errors.New("integration: remote platform authentication failed")
	// ErrRemoteNotFound means the remote object does not exist
	ErrRemoteNotFound = errors.New("integration: remote object not found")
	// ErrRemoteInvalidResponse means the response could not be decoded
	ErrRemoteInvalidResponse = errors.New("integration: invalid remote response")

	// ErrInvalidSignature is returned for webhook deliveries that fail authentication
	ErrInvalidSignature = errors.New("integration: invalid webhook signature")
	// ErrUnknownTopic is returned for unsupported webhook topics
	ErrUnknownTopic = errors.New("integration: unknown webhook topic")
	// ErrInvalidPayload is returned when a webhook body does not match its topic's shape
	ErrInvalidPayload = errors.New("integration: invalid webhook payload")
	// ErrCustomerSyncDeferred means a notification referenced a customer that could not be synced
	ErrCustomerSyncDeferred = errors.New("integration: customer not yet synchronized")

	// ErrSyncLogFinalized is returned when something tries to mutate a completed or failed log
	ErrSyncLogFinalized = errors.New("integration: sync log already finalized")
)

// FieldError is one field-level complaint returned by the remote platform
type FieldError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// String renders "field.path: message"
func (e FieldError) String() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return strings.Join(e.Field, ".") + ": " + e.Message
}

// RemoteValidationError carries the remote's field errors and matches ErrRemoteValidation
type RemoteValidationError struct {
	Operation string
	Errors    []FieldError
}

// Error implements the error interface
func (e *RemoteValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("%s: %s: %s", ErrRemoteValidation.Error(), e.Operation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrRemoteValidation
func (e *RemoteValidationError) Unwrap() error {
	return ErrRemoteValidation
}

// NewRemoteValidationError builds a validation error for an operation
func NewRemoteValidationError(operation string, errs ...FieldError) *RemoteValidationError {
	return &RemoteValidationError{Operation: operation, Errors: errs}
}

// IsTransient reports errors worth retrying on the next batch
func IsTransient(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// IsValidation reports errors that need operator correction
func IsValidation(err error) bool {
	return errors.Is(err, ErrRemoteValidation)
}

// FieldErrorsOf extracts the field errors from err, if any
func FieldErrorsOf(err error) []FieldError {
	var ve *RemoteValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}
