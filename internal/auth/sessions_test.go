package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := BearerToken(r); got != "abc.def.ghi" {
		t.Fatalf("bearer: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	if got := BearerToken(r); got != "" {
		t.Fatalf("non-bearer scheme must not fall back to cookie, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	if got := BearerToken(r); got != "cookie-token" {
		t.Fatalf("cookie: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := BearerToken(r); got != "" {
		t.Fatalf("none: got %q", got)
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "v", 10*time.Minute, false)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != SessionCookieName {
		t.Fatalf("unexpected cookie name: %s", cookies[0].Name)
	}
	if cookies[0].HttpOnly != true || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes")
	}

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr, false)
	cookies = rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Fatalf("expected MaxAge=-1 on clear")
	}
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDenylist(WithDenylistClock(func() time.Time { return now }))

	if err := d.Revoke(ctx, "jti-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := d.Revoke(ctx, "jti-old", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if ok, _ := d.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatalf("expected jti-1 revoked")
	}
	if ok, _ := d.IsRevoked(ctx, "jti-old"); ok {
		t.Fatalf("already-expired token should not be tracked")
	}

	now = now.Add(time.Minute)
	if ok, _ := d.IsRevoked(ctx, "jti-1"); ok {
		t.Fatalf("entry should lapse with the token expiry")
	}
}

func TestNewResetToken(t *testing.T) {
	raw, hash, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if len(raw) != 2*ResetTokenBytes {
		t.Fatalf("expected %d hex chars, got %d", 2*ResetTokenBytes, len(raw))
	}
	if hash != HashResetToken(raw) || hash == raw {
		t.Fatalf("hash must be the sha256 of the raw token")
	}
	raw2, _, _ := NewResetToken()
	if raw == raw2 {
		t.Fatalf("expected distinct tokens")
	}
}

func TestMemoryDenylistIgnoresWallClock(t *testing.T) {
	ctx := context.Background()
	past := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDenylist(WithDenylistClock(func() time.Time { return past }))

	if err := d.Revoke(ctx, "jti-1", past.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := d.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatalf("expected jti-1 revoked against the injected clock")
	}
}

type recordingRedis struct {
	redis.Cmdable
	key string
	ttl time.Duration
}

func (r *recordingRedis) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
	r.key, r.ttl = key, expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisDenylistTTLFromInjectedClock(t *testing.T) {
	past := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &recordingRedis{}
	d := NewRedisDenylist(client, WithDenylistClock(func() time.Time { return past }))

	if err := d.Revoke(context.Background(), "jti-1", past.Add(30*time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if client.key != redisDenylistPrefix+"jti-1" {
		t.Fatalf("unexpected key %q", client.key)
	}
	if client.ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %s", client.ttl)
	}
}
