package dto

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	cases := map[string]int{
		ErrCodeInternal:                http.StatusInternalServerError,
		ErrCodeValidationRequired:      http.StatusBadRequest,
		ErrCodeTokenExpired:            http.StatusUnauthorized,
		ErrCodeInvalidSignature:        http.StatusUnauthorized,
		ErrCodeForbidden:               http.StatusForbidden,
		ErrCodeUnknownTopic:            http.StatusNotFound,
		ErrCodeJobNotFound:             http.StatusNotFound,
		ErrCodeJobAlreadyRunning:       http.StatusConflict,
		ErrCodeConcurrencyConflict:     http.StatusConflict,
		ErrCodeInvalidStatusTransition: http.StatusUnprocessableEntity,
		ErrCodeSyncLogFinalized:        http.StatusUnprocessableEntity,
		ErrCodeAttemptCompleted:        http.StatusUnprocessableEntity,
		ErrCodeInvalidCurrency:         http.StatusBadRequest,
		ErrCodeRemoteUnavailable:       http.StatusBadGateway,
		ErrCodeFeatureDisabled:         http.StatusServiceUnavailable,
		ErrCodePayloadTooLarge:         http.StatusRequestEntityTooLarge,
		"SOMETHING_ELSE":               http.StatusInternalServerError,
	}

	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, GetHTTPStatus(code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	t.Run("domain codes gain the API prefix", func(t *testing.T) {
		assert.Equal(t, ErrCodeInvalidStatusTransition, NormalizeErrorCode("INVALID_STATUS_TRANSITION"))
		assert.Equal(t, ErrCodeSyncLogFinalized, NormalizeErrorCode("SYNC_LOG_FINALIZED"))
		assert.Equal(t, ErrCodeInvalidState, NormalizeErrorCode("SUBSCRIPTION_CLOSED"))
		assert.Equal(t, ErrCodeInvalidInput, NormalizeErrorCode("INVALID_TOTAL_CYCLES"))
	})

	t.Run("API codes and unknown codes pass through", func(t *testing.T) {
		assert.Equal(t, ErrCodeJobAlreadyRunning, NormalizeErrorCode(ErrCodeJobAlreadyRunning))
		assert.Equal(t, "REMOTE_SAID_NO", NormalizeErrorCode("REMOTE_SAID_NO"))
	})
}

func TestErrorCodes_AreMappedAndPrefixed(t *testing.T) {
	for domainCode, apiCode := range LegacyErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "%s normalizes to %s which has no HTTP status", domainCode, apiCode)
	}
	for code := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
	}
}
