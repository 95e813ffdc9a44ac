package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "router-secret"},
		Academics: config.AcademicsConfig{CacheTTL: time.Minute},
		Audit:     config.AuditConfig{Workers: 1, BufferSize: 4},
	}
}

func signed(t *testing.T, role models.UserRole) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString([]byte("router-secret"))
	require.NoError(t, err)
	return raw
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterRegistersAcademicsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(NewContainer(testConfig(), nil, nil, nil))

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/academic-years/current",
		"PUT /api/v1/academic-years/:id/current",
		"PUT /api/v1/terms/:id/current",
		"PUT /api/v1/grade-scales/:id/default",
		"POST /api/v1/promotions/preview",
		"POST /api/v1/promotions/execute",
		"GET /api/v1/promotions/suggest-target",
		"DELETE /api/v1/enrollments/:id",
		"GET /api/v1/enrollments/:id/history",
		"POST /api/v1/classes/:id/enrollments/bulk",
		"GET /api/v1/classes/:id/roster",
		"PUT /api/v1/students/:id/status",
		"GET /metrics",
		"GET /docs/*any",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestRouterGuards(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(NewContainer(testConfig(), nil, nil, nil))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/academic-years", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/promotions/execute", signed(t, models.RoleTeacher)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/api/v1/academic-years/y1/current", signed(t, models.RoleStudent)).Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = config.EnvProduction
	r := NewRouter(NewContainer(cfg, nil, nil, nil))
	gin.SetMode(gin.TestMode)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/docs/index.html", "").Code)
}
