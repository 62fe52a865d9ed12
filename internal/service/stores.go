package service

import (
	"context"
	"errors"
	"time"

	"accountd/internal/domain"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, in domain.NewAccount) (domain.Account, error)
	GetAccountByID(ctx context.Context, id int64) (domain.AccountWithSecret, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecret, error)
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)
	UpdateAccount(ctx context.Context, id int64, u domain.AccountUpdate) (domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
	CountAccounts(ctx context.Context) (int, error)
	DeleteAccount(ctx context.Context, id int64) error
}

type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, t domain.ResetToken) (domain.ResetToken, error)
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (int64, error)
	InvalidateResetTokens(ctx context.Context, accountID int64, now time.Time) (int64, error)
	PurgeResetTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, secret string) bool
	NeedsUpgrade(secret string) bool
}

type SessionTokens interface {
	Issue(claims domain.SessionClaims) (string, domain.SessionClaims, error)
	Verify(token string) (domain.SessionClaims, error)
}

// checkAvailable reports every field among email and username that already
// belongs to an account other than self. Nil fields are skipped. The unique
// constraints in the store remain the final word under concurrent writers.
func checkAvailable(ctx context.Context, store AccountStore, self int64, email, username *string) error {
	var conflicts []error
	if email != nil {
		a, err := store.GetAccountByEmail(ctx, *email)
		switch {
		case err == nil && a.ID != self:
			conflicts = append(conflicts, domain.ErrEmailTaken)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
	}
	if username != nil {
		a, err := store.GetAccountByUsername(ctx, *username)
		switch {
		case err == nil && a.ID != self:
			conflicts = append(conflicts, domain.ErrUsernameTaken)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
	}
	switch len(conflicts) {
	case 0:
		return nil
	case 1:
		return conflicts[0]
	default:
		return errors.Join(conflicts...)
	}
}

// profileUpdate turns a normalized patch into a store update, dropping email
// and username when they equal the current values.
func profileUpdate(current domain.Account, p domain.ProfilePatch, now time.Time) domain.AccountUpdate {
	u := domain.AccountUpdate{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		UpdatedAt: now,
	}
	if p.Email != nil && *p.Email != current.Email {
		u.Email = p.Email
	}
	if p.Username != nil && *p.Username != current.Username {
		u.Username = p.Username
	}
	return u
}

func nowFunc(f func() time.Time) func() time.Time {
	if f == nil {
		return time.Now
	}
	return f
}
