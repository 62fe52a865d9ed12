package postgres

import (
	"context"
	"errors"
	"time"

	"accountd/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

type ResetTokensStore struct {
	db DB
}

func NewResetTokensStore(db DB) *ResetTokensStore {
	return &ResetTokensStore{db: db}
}

func (s *ResetTokensStore) CreateResetToken(ctx context.Context, t domain.ResetToken) (domain.ResetToken, error) {
	const q = `
		INSERT INTO password_reset_tokens (account_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, false, $4)
		RETURNING ` + resetTokenColumns

	out, err := scanResetToken(s.db.QueryRow(ctx, q, t.AccountID, t.TokenHash, t.ExpiresAt, t.CreatedAt))
	if err != nil {
		return domain.ResetToken{}, oops.Code("RESET_TOKEN_CREATE_FAILED").With("account_id", t.AccountID).Wrap(err)
	}
	return out, nil
}

// ConsumeResetToken flips used=false to true in one statement, so of any
// number of concurrent callers exactly one gets the account id.
func (s *ResetTokensStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (int64, error) {
	const q = `
		UPDATE password_reset_tokens
		SET used = true, used_at = $2
		WHERE token_hash = $1 AND used = false AND expires_at > $2
		RETURNING account_id
	`

	var accountID int64
	err := s.db.QueryRow(ctx, q, tokenHash, now).Scan(&accountID)
	if err == nil {
		return accountID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("RESET_TOKEN_CONSUME_FAILED").Wrap(err)
	}

	var (
		used      bool
		expiresAt time.Time
	)
	err = s.db.QueryRow(ctx, `SELECT used, expires_at FROM password_reset_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&used, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, oops.Code("RESET_TOKEN_CONSUME_FAILED").Wrap(err)
	}
	if used {
		return 0, domain.ErrResetTokenUsed
	}
	return 0, domain.ErrResetTokenExpired
}

// InvalidateResetTokens marks every still-unused token of the account as used.
func (s *ResetTokensStore) InvalidateResetTokens(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	const q = `
		UPDATE password_reset_tokens
		SET used = true, used_at = $2
		WHERE account_id = $1 AND used = false
	`
	tag, err := s.db.Exec(ctx, q, accountID, now)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_INVALIDATE_FAILED").With("account_id", accountID).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (s *ResetTokensStore) ListResetTokens(ctx context.Context, accountID int64) ([]domain.ResetToken, error) {
	const q = `
		SELECT ` + resetTokenColumns + `
		FROM password_reset_tokens
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.Query(ctx, q, accountID)
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	var out []domain.ResetToken
	for rows.Next() {
		t, err := scanResetToken(rows)
		if err != nil {
			return nil, oops.Code("RESET_TOKEN_LIST_FAILED").Wrapf(err, "scan reset token")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RESET_TOKEN_LIST_FAILED").Wrap(err)
	}
	return out, nil
}

// PurgeResetTokens deletes tokens that expired, or were used, before cutoff.
func (s *ResetTokensStore) PurgeResetTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
		DELETE FROM password_reset_tokens
		WHERE expires_at < $1 OR (used AND used_at < $1)
	`
	tag, err := s.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_PURGE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
