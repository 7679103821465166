package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/auth"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwaggerRouter(cfg SwaggerConfig, jwt gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.GET("/swagger/*any", SwaggerProtection(cfg, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, "swagger")
	})
	return router
}

func serveSwagger(router *gin.Engine, remoteAddr, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if authHeader != "" {
		req.Header.Set(AuthHeaderKey, authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSwaggerProtection_Disabled(t *testing.T) {
	w := serveSwagger(newSwaggerRouter(SwaggerConfig{Enabled: false}, nil), "", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestSwaggerProtection_NoRestrictions(t *testing.T) {
	w := serveSwagger(newSwaggerRouter(SwaggerConfig{Enabled: true}, nil), "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSwaggerProtection_AllowList(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		remoteAddr string
		want       int
	}{
		{"exact_ip_allowed", []string{"127.0.0.1"}, "127.0.0.1:12345", http.StatusOK},
		{"exact_ip_denied", []string{"127.0.0.1"}, "10.0.0.8:12345", http.StatusForbidden},
		{"cidr_allowed", []string{"10.0.0.0/8"}, "10.20.30.40:80", http.StatusOK},
		{"cidr_denied", []string{"10.0.0.0/8"}, "192.168.1.1:80", http.StatusForbidden},
		{"ipv6_allowed", []string{"::1"}, "[::1]:8080", http.StatusOK},
		{"garbage_entries_ignored", []string{"not-an-ip", "300.0.0.0/8"}, "127.0.0.1:1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newSwaggerRouter(SwaggerConfig{Enabled: true, AllowedIPs: tt.allowed}, nil)
			w := serveSwagger(router, tt.remoteAddr, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSwaggerProtection_RequireAuth(t *testing.T) {
	svc := newTestTokenService(t)
	jwt := JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{Validator: svc, RequiredRole: auth.RoleOperator})
	router := newSwaggerRouter(SwaggerConfig{Enabled: true, RequireAuth: true}, jwt)

	w := serveSwagger(router, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := svc.Issue("ops@example.com", time.Hour, auth.RoleOperator)
	require.NoError(t, err)
	w = serveSwagger(router, "", BearerPrefix+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPAllowed_InvalidAddr(t *testing.T) {
	prefixes := parseAllowList([]string{"0.0.0.0/0"})
	assert.False(t, ipAllowed(netip.Addr{}, prefixes))
	assert.True(t, ipAllowed(netip.MustParseAddr("8.8.8.8"), prefixes))
}
