package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Denylist records revoked session token ids until the token would have
// expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type DenylistOption func(*denylistConfig)

type denylistConfig struct {
	now func() time.Time
}

// WithDenylistClock overrides the time source entries are expired against.
// It should match the clock of the codec that issued the tokens.
func WithDenylistClock(now func() time.Time) DenylistOption {
	return func(c *denylistConfig) { c.now = now }
}

func newDenylistConfig(opts []DenylistOption) denylistConfig {
	c := denylistConfig{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist(opts ...DenylistOption) *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: newDenylistConfig(opts).now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.entries {
		if !now.Before(exp) {
			delete(d.entries, id)
		}
	}
	if now.Before(until) {
		d.entries[tokenID] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(exp) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

const redisDenylistPrefix = "accountd:revoked:"

// RedisDenylist shares revocations across processes. Keys expire with the token.
type RedisDenylist struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisDenylist(client redis.Cmdable, opts ...DenylistOption) *RedisDenylist {
	return &RedisDenylist{client: client, now: newDenylistConfig(opts).now}
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, redisDenylistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return oops.Code("DENYLIST_REVOKE_FAILED").With("token_id", tokenID).Wrap(err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, redisDenylistPrefix+tokenID).Result()
	if err != nil {
		return false, oops.Code("DENYLIST_LOOKUP_FAILED").With("token_id", tokenID).Wrap(err)
	}
	return n > 0, nil
}

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_PING_FAILED").With("addr", addr).Wrap(err)
	}
	return client, nil
}
