package postgres

import (
	"time"

	"accountd/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

const accountColumns = `id, email, username, first_name, last_name, is_admin, is_active, email_verified, last_login_at, created_at, updated_at`

const resetTokenColumns = `id, account_id, token_hash, expires_at, used, used_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a         domain.Account
		firstName pgtype.Text
		lastName  pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&firstName,
		&lastName,
		&a.IsAdmin,
		&a.IsActive,
		&a.EmailVerified,
		&lastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.FirstName = textPtr(firstName)
	a.LastName = textPtr(lastName)
	a.LastLoginAt = timestamptzPtr(lastLogin)
	return a, nil
}

func scanAccountWithSecret(row rowScanner) (domain.AccountWithSecret, error) {
	var (
		a         domain.AccountWithSecret
		firstName pgtype.Text
		lastName  pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&firstName,
		&lastName,
		&a.IsAdmin,
		&a.IsActive,
		&a.EmailVerified,
		&lastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PasswordHash,
	)
	if err != nil {
		return domain.AccountWithSecret{}, err
	}
	a.FirstName = textPtr(firstName)
	a.LastName = textPtr(lastName)
	a.LastLoginAt = timestamptzPtr(lastLogin)
	return a, nil
}

func scanResetToken(row rowScanner) (domain.ResetToken, error) {
	var (
		t      domain.ResetToken
		usedAt pgtype.Timestamptz
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.Used, &usedAt, &t.CreatedAt); err != nil {
		return domain.ResetToken{}, err
	}
	t.UsedAt = timestamptzPtr(usedAt)
	return t, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}
