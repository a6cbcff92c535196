package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetrics(t *testing.T) {
	metricsManager, registry := metrics.NewTestManagerAndRegistry()

	r := mux.NewRouter()
	r.HandleFunc("/progression/day/{day}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {})
	r.Use(RequestMetrics(metricsManager))

	for _, path := range []string{"/progression/day/1", "/progression/day/9", "/history"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metricsManager.CounterRequests.WithLabelValues("POST", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterRequests.WithLabelValues("POST", "200")))

	count, err := testutil.GatherAndCount(registry, "backend_test_server_request_duration_seconds")
	require.NoError(t, err)
	// one series per route/status pair
	assert.Equal(t, 2, count)
}

func TestDrainAndCloseRequest(t *testing.T) {
	body := &trackingBody{data: []byte("unread body")}
	req := httptest.NewRequest(http.MethodPost, "/history", nil)
	req.Body = body

	handler := DrainAndCloseRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, body.closed)
	assert.Empty(t, body.data)
}

type trackingBody struct {
	data   []byte
	closed bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}
