package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse_NormalizesAndStamps(t *testing.T) {
	start := time.Now()
	resp := NewErrorResponseWithRequestID("NOT_FOUND", "subscription not found", "req-42")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.False(t, resp.Error.Timestamp.Before(start))

	withHelp := NewErrorResponseWithHelp(ErrCodeInvalidSignature, "bad signature", "", "check the shared secret")
	assert.Equal(t, "check the shared secret", withHelp.Error.Help)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("invalid request", "req-7", []ValidationDetail{
		{Field: "currency", Message: "must be an ISO 4217 code"},
		{Field: "line_items", Message: "is required"},
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "currency", resp.Error.Details[0].Field)
}

func TestResponse_JSONShape(t *testing.T) {
	body, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeUnknownTopic, "no handler", "req-9"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, false, raw["success"])
	assert.NotContains(t, raw, "data")
	assert.NotContains(t, raw, "meta")
	errObj := raw["error"].(map[string]any)
	assert.Equal(t, ErrCodeUnknownTopic, errObj["code"])
	assert.Equal(t, "req-9", errObj["request_id"])
	assert.NotContains(t, errObj, "details")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
		wantSize  int
	}{
		{"exact pages", 40, 20, 2, 20},
		{"partial last page", 41, 20, 3, 20},
		{"empty result", 0, 20, 0, 20},
		{"non-positive size uses default", 45, 0, 3, defaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{}, tt.total, 2, tt.pageSize)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
			assert.Equal(t, tt.wantSize, resp.Meta.PageSize)
			assert.Equal(t, 2, resp.Meta.Page)
		})
	}

	assert.Nil(t, NewSuccessResponse("ok").Meta)
}

func TestListRequest_Normalize(t *testing.T) {
	req := ListRequest{Page: -2}
	req.Normalize()
	assert.Equal(t, DefaultListRequest(), req)
	assert.Equal(t, 0, req.Offset())

	req = ListRequest{Page: 4, PageSize: 50}
	req.Normalize()
	assert.Equal(t, 150, req.Offset())
}
