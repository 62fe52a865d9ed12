package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accountd/internal/auth"
	"accountd/internal/domain"
	"accountd/internal/service"
	"accountd/internal/store/memory"
)

var cheapParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type capturedReset struct {
	account domain.Account
	token   string
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []capturedReset
}

func (n *capturingNotifier) NotifyPasswordReset(_ context.Context, a domain.Account, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, capturedReset{account: a, token: token})
	return nil
}

func (n *capturingNotifier) last(t *testing.T) capturedReset {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no reset notification sent")
	return n.sent[len(n.sent)-1]
}

type testServer struct {
	handler  http.Handler
	clock    *testClock
	store    *memory.Store
	notifier *capturingNotifier
	admin    *service.AdminService
}

type serverOption func(*RouterOpts)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	hasher := auth.NewHasher(cheapParams)
	codec, err := auth.NewTokenCodec([]byte(strings.Repeat("s", 32)), time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)
	notifier := &capturingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	admin := &service.AdminService{Accounts: store, Hasher: hasher, Logger: logger, Now: clock.Now}
	ro := RouterOpts{
		Logger:  logger,
		Auth:    &service.AuthService{Accounts: store, Hasher: hasher, Tokens: codec, Denylist: auth.NewMemoryDenylist(auth.WithDenylistClock(clock.Now)), Logger: logger, Now: clock.Now},
		Resets:  &service.PasswordResetService{Accounts: store, Tokens: store, Hasher: hasher, Notifier: notifier, Logger: logger, Now: clock.Now},
		Profile: &service.ProfileService{Accounts: store, Hasher: hasher, Now: clock.Now},
		Admin:   admin,
		Now:     clock.Now,
	}
	for _, o := range opts {
		o(&ro)
	}

	return &testServer{
		handler:  NewRouter(ro),
		clock:    clock,
		store:    store,
		notifier: notifier,
		admin:    admin,
	}
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withForwardedFor(ip string) requestOption {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

// register creates an account through the API and returns its session token.
func (s *testServer) register(t *testing.T, email, username, password string) (accountResponse, string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"email": email, "username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out sessionResponse
	decodeBody(t, rr, &out)
	return out.Account, out.Token
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out sessionResponse
	decodeBody(t, rr, &out)
	return out.Token
}

// adminToken bootstraps an administrator and logs it in.
func (s *testServer) adminToken(t *testing.T) (int64, string) {
	t.Helper()
	acct, _, err := s.admin.EnsureAdmin(context.Background(), "root@example.com", "root", "root-password-1")
	require.NoError(t, err)
	return acct.ID, s.login(t, "root@example.com", "root-password-1")
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errorEnvelope
	decodeBody(t, rr, &env)
	return env.Error
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
