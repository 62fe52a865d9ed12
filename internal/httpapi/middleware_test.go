package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	_, err := uuid.Parse(rr.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	rr = s.do(t, http.MethodGet, "/healthz", nil, func(r *http.Request) { r.Header.Set(requestIDHeader, "abc-123") })
	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestRecovererReturns500(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(logger, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal_error", errorOf(t, rr).Code)
}

func TestHealthz(t *testing.T) {
	var pingErr error
	s := newTestServer(t, func(o *RouterOpts) {
		o.DBPing = func(context.Context) error { return pingErr }
	})

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	pingErr = errors.New("connection refused")
	rr = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUnknownV1RouteIsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", errorOf(t, rr).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	s := newTestServer(t, func(o *RouterOpts) {
		o.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})

	s.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"email": "a@example.com", "password": "x"})

	rr := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `accountd_http_requests_total{method="POST",route="POST /v1/auth/login",status="401"}`)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	WriteDomainError(rr, r, slog.New(slog.NewTextHandler(io.Discard, nil)), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "pq:")
}

func TestLoginLimiterWindow(t *testing.T) {
	l := newLoginLimiter(time.Minute, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("k", now))
	assert.True(t, l.Allow("k", now))
	assert.False(t, l.Allow("k", now))
	assert.True(t, l.Allow("other", now))
	assert.True(t, l.Allow("k", now.Add(61 * time.Second)))
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	cases := []struct {
		name    string
		remote  string
		xff     string
		trusted []netip.Prefix
		want    string
	}{
		{"no header", "10.0.0.1:5555", "", proxies, "10.0.0.1"},
		{"header ignored without trusted proxies", "203.0.113.9:5555", "198.51.100.1", nil, "203.0.113.9"},
		{"header ignored from untrusted peer", "203.0.113.9:5555", "198.51.100.1", proxies, "203.0.113.9"},
		{"client behind trusted proxy", "10.0.0.1:5555", "198.51.100.1", proxies, "198.51.100.1"},
		{"spoofed leading entries skipped", "10.0.0.1:5555", "1.2.3.4, 198.51.100.1, 10.0.0.2", proxies, "198.51.100.1"},
		{"all hops trusted", "10.0.0.1:5555", "10.0.0.3, 10.0.0.2", proxies, "10.0.0.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, clientIP(r, tc.trusted))
		})
	}
}

func TestLoginLimiterBlockedAndRecord(t *testing.T) {
	l := newLoginLimiter(time.Minute, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, l.Blocked("k", now))
	l.Record("k", now)
	assert.False(t, l.Blocked("k", now))
	l.Record("k", now)
	assert.True(t, l.Blocked("k", now))
	assert.True(t, l.Blocked("k", now), "Blocked must not charge")
	assert.False(t, l.Blocked("k", now.Add(61*time.Second)))
}
