package service

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
	"accountd/internal/store/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/pbkdf2"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var cheapParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type fixture struct {
	store    *memory.Store
	clock    *testClock
	hasher   *auth.Hasher
	codec    *auth.TokenCodec
	denylist *auth.MemoryDenylist
	notifier *recordingNotifier

	auth    *AuthService
	resets  *PasswordResetService
	profile *ProfileService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		clock:    newTestClock(),
		hasher:   auth.NewHasher(cheapParams),
		notifier: &recordingNotifier{},
	}
	f.denylist = auth.NewMemoryDenylist(auth.WithDenylistClock(f.clock.Now))
	codec, err := auth.NewTokenCodec([]byte(strings.Repeat("s", 32)), time.Hour, auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.codec = codec

	f.auth = &AuthService{Accounts: f.store, Hasher: f.hasher, Tokens: codec, Denylist: f.denylist, Now: f.clock.Now}
	f.resets = &PasswordResetService{Accounts: f.store, Tokens: f.store, Hasher: f.hasher, Notifier: f.notifier, Now: f.clock.Now}
	f.profile = &ProfileService{Accounts: f.store, Hasher: f.hasher, Now: f.clock.Now}
	f.admin = &AdminService{Accounts: f.store, Hasher: f.hasher, Now: f.clock.Now}
	return f
}

func (f *fixture) register(t *testing.T, email, username string) AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), domain.RegisterInput{Email: email, Username: username, Password: "password123"})
	require.NoError(t, err)
	return res
}

// adminClaims makes an admin account and returns its claims.
func (f *fixture) adminClaims(t *testing.T) domain.SessionClaims {
	t.Helper()
	a, _, err := f.admin.EnsureAdmin(context.Background(), "root@x.com", "root", "password123")
	require.NoError(t, err)
	return domain.SessionClaims{AccountID: a.ID, Email: a.Email, IsAdmin: true}
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, _ domain.Account, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, token)
	return nil
}

func (n *recordingNotifier) last(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.tokens, "no reset token delivered")
	return n.tokens[len(n.tokens)-1]
}

func legacySecret(password string) string {
	salt := []byte("0123456789abcdef")
	digest := pbkdf2.Key([]byte(password), salt, 10000, 64, sha512.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest)
}

// stubAccountStore fails the test on any call without a configured func.
type stubAccountStore struct {
	t *testing.T

	getByIDFunc    func(context.Context, int64) (domain.AccountWithSecret, error)
	getByEmailFunc func(context.Context, string) (domain.AccountWithSecret, error)
	countFunc      func(context.Context) (int, error)
}

func (s *stubAccountStore) CreateAccount(context.Context, domain.NewAccount) (domain.Account, error) {
	s.t.Fatalf("CreateAccount called unexpectedly")
	return domain.Account{}, nil
}

func (s *stubAccountStore) GetAccountByID(ctx context.Context, id int64) (domain.AccountWithSecret, error) {
	if s.getByIDFunc != nil {
		return s.getByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetAccountByID called unexpectedly")
	return domain.AccountWithSecret{}, nil
}

func (s *stubAccountStore) GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecret, error) {
	if s.getByEmailFunc != nil {
		return s.getByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetAccountByEmail called unexpectedly")
	return domain.AccountWithSecret{}, nil
}

func (s *stubAccountStore) GetAccountByUsername(context.Context, string) (domain.Account, error) {
	s.t.Fatalf("GetAccountByUsername called unexpectedly")
	return domain.Account{}, nil
}

func (s *stubAccountStore) UpdateAccount(context.Context, int64, domain.AccountUpdate) (domain.Account, error) {
	s.t.Fatalf("UpdateAccount called unexpectedly")
	return domain.Account{}, nil
}

func (s *stubAccountStore) ListAccounts(context.Context, int, int) ([]domain.Account, error) {
	s.t.Fatalf("ListAccounts called unexpectedly")
	return nil, nil
}

func (s *stubAccountStore) CountAccounts(ctx context.Context) (int, error) {
	if s.countFunc != nil {
		return s.countFunc(ctx)
	}
	s.t.Fatalf("CountAccounts called unexpectedly")
	return 0, nil
}

func (s *stubAccountStore) DeleteAccount(context.Context, int64) error {
	s.t.Fatalf("DeleteAccount called unexpectedly")
	return nil
}
