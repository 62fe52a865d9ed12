package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"accountd/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetService_ConsumeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")

	raw, tok, err := f.resets.IssueFor(ctx, reg.Account.ID)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.NotEqual(t, raw, tok.TokenHash)
	assert.Equal(t, f.clock.Now().Add(time.Hour), tok.ExpiresAt)
	assert.False(t, tok.Used)

	id, err := f.resets.Consume(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, reg.Account.ID, id)

	_, err = f.resets.Consume(ctx, raw)
	assert.ErrorIs(t, err, domain.ErrResetTokenUsed)

	_, err = f.resets.Consume(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPasswordResetService_ConsumeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")

	raw, _, err := f.resets.IssueFor(ctx, reg.Account.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.resets.Consume(ctx, raw)
	assert.ErrorIs(t, err, domain.ErrResetTokenExpired)
}

func TestPasswordResetService_ConcurrentConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")
	raw, _, err := f.resets.IssueFor(ctx, reg.Account.ID)
	require.NoError(t, err)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.resets.Consume(ctx, raw)
		}(i)
	}
	wg.Wait()

	var ok, used int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrResetTokenUsed):
			used++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, used)
}

func TestPasswordResetService_RequestResetUnknownEmail(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.resets.RequestReset(context.Background(), "ghost@x.com"))
	assert.Empty(t, f.notifier.tokens)
}

func TestPasswordResetService_RequestResetInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")
	no := false
	_, err := f.store.UpdateAccount(ctx, reg.Account.ID, domain.AccountUpdate{IsActive: &no, UpdatedAt: f.clock.Now()})
	require.NoError(t, err)

	require.NoError(t, f.resets.RequestReset(ctx, "a@x.com"))
	assert.Empty(t, f.notifier.tokens)
}

func TestPasswordResetService_FullReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")

	require.NoError(t, f.resets.RequestReset(ctx, " A@X.com"))
	first := f.notifier.last(t)
	require.NoError(t, f.resets.RequestReset(ctx, "a@x.com"))
	second := f.notifier.last(t)
	require.NotEqual(t, first, second)

	require.NoError(t, f.resets.ResetPassword(ctx, second, "new-password-1"))

	_, err := f.auth.Login(ctx, "a@x.com", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "a@x.com", "new-password-1")
	assert.NoError(t, err)

	// the earlier, never-used token was invalidated by the reset
	err = f.resets.ResetPassword(ctx, first, "another-password")
	assert.ErrorIs(t, err, domain.ErrResetTokenUsed)

	toks, err := f.store.ListResetTokens(ctx, reg.Account.ID)
	require.NoError(t, err)
	for _, tok := range toks {
		assert.True(t, tok.Used)
	}
}

func TestPasswordResetService_ResetRejectsWeakPasswordWithoutBurningToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "alice")
	raw, _, err := f.resets.IssueFor(ctx, reg.Account.ID)
	require.NoError(t, err)

	err = f.resets.ResetPassword(ctx, raw, "short")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, f.resets.ResetPassword(ctx, raw, "long-enough"))
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "https://app.example.com/reset-password?token=abc", ResetLink("https://app.example.com", "abc"))
	assert.Equal(t, "https://app.example.com/base/reset-password?token=abc", ResetLink("https://app.example.com/base/", "abc"))
	assert.Equal(t, "/reset-password?token=abc", ResetLink("", "abc"))
}
