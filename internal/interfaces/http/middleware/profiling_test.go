package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/ready")
	assert.Contains(t, cfg.SkipPathPrefixes, "/swagger")
}

func TestProfilingWithConfig_CallsHandler(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProfilingConfig
		path string
	}{
		{"disabled", ProfilingConfig{Enabled: false}, "/api/v1/subscriptions"},
		{"enabled", DefaultProfilingConfig(), "/api/v1/subscriptions"},
		{"skip_path", DefaultProfilingConfig(), "/health"},
		{"skip_prefix", DefaultProfilingConfig(), "/swagger/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			r := gin.New()
			r.Use(ProfilingWithConfig(tt.cfg))
			r.GET("/*any", func(c *gin.Context) {
				called = true
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, called)
		})
	}
}

func TestProfilingLabels(t *testing.T) {
	var labels map[string]string
	r := gin.New()
	r.POST("/api/v1/sync/push/:kind/:id", func(c *gin.Context) {
		labels = profilingLabels(c)
		c.Status(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sync/push/subscription/42", nil))

	assert.Equal(t, http.MethodPost, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/sync/push/:kind/:id", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, "sync", labels[telemetry.ProfilingLabelOperation])
}

func TestOperationFromRoute(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/subscriptions/:id", "subscriptions"},
		{"/api/v2/selling-plans", "selling-plans"},
		{"/api/v1/sync/billing/run", "sync"},
		{"/webhooks/:topic", "webhooks"},
		{"/api/v1/:id", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, operationFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("version"))
	assert.False(t, isVersionSegment("sync"))
}
