package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/apollo/backend/internal/middleware"
	"github.com/anonto42/apollo/backend/internal/notifications"
	"github.com/anonto42/apollo/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T) *echo.Echo {
	t.Helper()
	l, err := middleware.NewLimiter("2-M", "")
	require.NoError(t, err)

	e := echo.New()
	e.Validator = validators.NewValidator()
	SetupRoutes(e, Deps{
		Stores:      &Stores{},
		Manager:     notifications.NewManager(nil, notifications.Options{}),
		AuthLimiter: l,
		JWTSecret:   "router-test-secret-123",
		JWTTTL:      time.Hour,
		Settle:      time.Second,
		Log:         zap.NewNop().Sugar(),
	})
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	rec := serve(testServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := testServer(t)
	for _, target := range []string{
		"/api/v1/notifications",
		"/api/v1/feed",
		"/api/v1/conversations",
		"/api/v1/profile",
	} {
		rec := serve(e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	rec := serve(e, http.MethodPost, "/api/v1/auth/signout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	e := testServer(t)

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodPost, "/api/v1/auth/signup", `{"name":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := serve(e, http.MethodPost, "/api/v1/auth/signup", `{"name":""}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
