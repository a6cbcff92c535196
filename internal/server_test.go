package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/securestore"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/workout"
)

func newTestServer(t *testing.T, loginChecker auth.Checker) *Server {
	t.Helper()

	cfg := &config.Config{
		StoreBackend:                config.StoreBackendMemory,
		LoginRateLimitAllowedPerMin: 10,
	}
	rdb, _ := redismock.NewClientMock()

	metricsManager := metrics.NewTestManager()
	store, closeStore, err := securestore.Open(context.Background(), cfg.StoreOpenParams(), metricsManager)
	require.NoError(t, err)
	progressService := progress.NewService(store, nil, metricsManager)

	return &Server{
		config:      cfg,
		redisClient: rdb,
		store:       store,
		closeStore:  closeStore,

		loginChecker: loginChecker,
		authService: auth.NewAuthService(auth.NewServiceParams{
			Store:       store,
			Guard:       auth.NewAttemptGuard(store),
			RedisClient: rdb,
		}),
		progressService: progressService,
		orchestrator:    workout.NewOrchestrator(progressService),
		metricsManager:  metricsManager,
	}
}

func TestServer_Router(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	router := newTestServer(t, auth.NewLoginChecker(auth.DefaultTTL, rdb)).routerSetup()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "root", method: http.MethodGet, path: "/", expectedStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "progression needs token", method: http.MethodGet, path: "/progression", expectedStatus: http.StatusUnauthorized},
		{name: "workout needs token", method: http.MethodPost, path: "/workout/start", expectedStatus: http.StatusUnauthorized},
		{name: "export needs token", method: http.MethodGet, path: "/data/export", expectedStatus: http.StatusUnauthorized},
		{name: "unknown path", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Origin", "test")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}

func TestServer_Router_ForbiddenOrigin(t *testing.T) {
	router := newTestServer(t, auth.NewLoginTestChecker()).routerSetup()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestServer_Router_LoggedIn(t *testing.T) {
	loginChecker := auth.NewLoginTestChecker()
	loginChecker.LoggedSessions["tkn"] = "u1"
	router := newTestServer(t, loginChecker).routerSetup()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "progression", method: http.MethodGet, path: "/progression", expectedStatus: http.StatusOK, expectedBody: `"currentWeek":1`},
		{name: "complete day", method: http.MethodPost, path: "/progression/day/2", expectedStatus: http.StatusOK, expectedBody: `"completedDays":[2]`},
		{name: "complete bad day", method: http.MethodPost, path: "/progression/day/9", expectedStatus: http.StatusBadRequest},
		{name: "no active workout", method: http.MethodGet, path: "/workout", expectedStatus: http.StatusNotFound},
		{name: "sync disabled", method: http.MethodPost, path: "/sync", expectedStatus: http.StatusServiceUnavailable},
		{name: "weight check-in needed", method: http.MethodGet, path: "/weight/checkin/needed?week=8", expectedStatus: http.StatusOK, expectedBody: `"needed":true`},
		{name: "unknown path", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Origin", "test")
			req.Header.Set(auth.TokenHeader, "tkn")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tc.expectedBody)
			}
		})
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/progression", nil)
	req.Header.Set("Origin", "test")
	req.Header.Set(auth.TokenHeader, "other")
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
