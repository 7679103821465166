package dto

import "net/http"

// Error codes follow ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeTokenExpired     = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "ERR_TOKEN_INVALID"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeUnknownTopic        = "ERR_UNKNOWN_TOPIC"
)

// Subscription rule error codes
const (
	ErrCodeInvalidState            = "ERR_INVALID_STATE"
	ErrCodeInvalidStatusTransition = "ERR_INVALID_STATUS_TRANSITION"
	ErrCodeInvalidInterval         = "ERR_INVALID_INTERVAL"
	ErrCodeInvalidCurrency         = "ERR_INVALID_CURRENCY"
	ErrCodeInvalidLineItem         = "ERR_INVALID_LINE_ITEM"
	ErrCodeEmptyLineItems          = "ERR_EMPTY_LINE_ITEMS"
	ErrCodeInvalidPriceAdjustment  = "ERR_INVALID_PRICE_ADJUSTMENT"
	ErrCodeAttemptCompleted        = "ERR_ATTEMPT_ALREADY_COMPLETED"
	ErrCodeRemoteIDMismatch        = "ERR_REMOTE_ID_MISMATCH"
	ErrCodeSyncLogFinalized        = "ERR_SYNC_LOG_FINALIZED"
	ErrCodeInvalidEntityKind       = "ERR_INVALID_ENTITY_KIND"
)

// Sync operation error codes
const (
	ErrCodeJobAlreadyRunning = "ERR_JOB_ALREADY_RUNNING"
	ErrCodeJobNotFound       = "ERR_JOB_NOT_FOUND"
	ErrCodeRemoteUnavailable = "ERR_REMOTE_UNAVAILABLE"
	ErrCodeFeatureDisabled   = "ERR_FEATURE_DISABLED"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeInvalidSignature: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeUnknownTopic:        http.StatusNotFound,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:            http.StatusUnprocessableEntity,
	ErrCodeInvalidStatusTransition: http.StatusUnprocessableEntity,
	ErrCodeAttemptCompleted:        http.StatusUnprocessableEntity,
	ErrCodeRemoteIDMismatch:        http.StatusUnprocessableEntity,
	ErrCodeSyncLogFinalized:        http.StatusUnprocessableEntity,
	ErrCodeInvalidInterval:         http.StatusBadRequest,
	ErrCodeInvalidCurrency:         http.StatusBadRequest,
	ErrCodeInvalidLineItem:         http.StatusBadRequest,
	ErrCodeEmptyLineItems:          http.StatusBadRequest,
	ErrCodeInvalidPriceAdjustment:  http.StatusBadRequest,
	ErrCodeInvalidEntityKind:       http.StatusBadRequest,

	ErrCodeJobAlreadyRunning: http.StatusConflict,
	ErrCodeJobNotFound:       http.StatusNotFound,
	ErrCodeRemoteUnavailable: http.StatusBadGateway,
	ErrCodeFeatureDisabled:   http.StatusServiceUnavailable,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeInvalidInput,
	"INVALID_STATE":             ErrCodeInvalidState,
	"UNAUTHORIZED":              ErrCodeUnauthorized,
	"FORBIDDEN":                 ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"INVALID_STATUS_TRANSITION": ErrCodeInvalidStatusTransition,
	"INVALID_INTERVAL":          ErrCodeInvalidInterval,
	"INVALID_CURRENCY":          ErrCodeInvalidCurrency,
	"INVALID_LINE_ITEM":         ErrCodeInvalidLineItem,
	"EMPTY_LINE_ITEMS":          ErrCodeEmptyLineItems,
	"INVALID_PRICE_ADJUSTMENT":  ErrCodeInvalidPriceAdjustment,
	"ATTEMPT_ALREADY_COMPLETED": ErrCodeAttemptCompleted,
	"REMOTE_ID_MISMATCH":        ErrCodeRemoteIDMismatch,
	"SYNC_LOG_FINALIZED":        ErrCodeSyncLogFinalized,
	"INVALID_ENTITY_KIND":       ErrCodeInvalidEntityKind,
	"INVALID_ENTITY_ID":         ErrCodeInvalidInput,
	"INVALID_BILLING_DATE":      ErrCodeInvalidInput,
	"INVALID_TOTAL_CYCLES":      ErrCodeInvalidInput,
	"INVALID_QUANTITY":          ErrCodeInvalidInput,
	"INVALID_AMOUNT":            ErrCodeInvalidInput,
	"INVALID_CONVERSION_RATE":   ErrCodeInvalidInput,
	"INVALID_NAME":              ErrCodeInvalidInput,
	"INVALID_EMAIL":             ErrCodeInvalidInput,
	"INVALID_STATUS":            ErrCodeInvalidInput,
	"INVALID_OPERATION":         ErrCodeInvalidInput,
	"INVALID_REMOTE_ID":         ErrCodeInvalidInput,
	"INVALID_CUSTOMER":          ErrCodeInvalidInput,
	"INVALID_SUBSCRIPTION":      ErrCodeInvalidInput,
	"INVALID_IDEMPOTENCY_KEY":   ErrCodeInvalidInput,
	"PLAN_INACTIVE":             ErrCodeInvalidState,
	"SUBSCRIPTION_CLOSED":       ErrCodeInvalidState,
	"CYCLE_COUNTER_DECREASE":    ErrCodeInvalidState,
	"VALIDATION_ERROR":          ErrCodeValidation,
	"BAD_REQUEST":               ErrCodeBadRequest,
	"INTERNAL_ERROR":            ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
