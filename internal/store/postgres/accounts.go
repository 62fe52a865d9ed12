package postgres

import (
	"context"
	"errors"

	"accountd/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const (
	accountsEmailConstraint    = "accounts_email_uq"
	accountsUsernameConstraint = "accounts_username_uq"
)

type AccountsStore struct {
	db DB
}

func NewAccountsStore(db DB) *AccountsStore {
	return &AccountsStore{db: db}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (
			email, username, password_hash, first_name, last_name,
			is_admin, is_active, email_verified, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + accountColumns

	a, err := scanAccount(s.db.QueryRow(ctx, q,
		in.Email,
		in.Username,
		in.PasswordHash,
		in.FirstName,
		in.LastName,
		in.IsAdmin,
		in.IsActive,
		in.EmailVerified,
		in.CreatedAt,
	))
	if err != nil {
		return domain.Account{}, mapAccountWriteError(err, "ACCOUNT_CREATE_FAILED")
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id int64) (domain.AccountWithSecret, error) {
	const q = `SELECT ` + accountColumns + `, password_hash FROM accounts WHERE id = $1`

	a, err := scanAccountWithSecret(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountWithSecret{}, domain.ErrNotFound
		}
		return domain.AccountWithSecret{}, oops.Code("ACCOUNT_GET_FAILED").With("account_id", id).Wrap(err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithSecret, error) {
	const q = `SELECT ` + accountColumns + `, password_hash FROM accounts WHERE email = $1`

	a, err := scanAccountWithSecret(s.db.QueryRow(ctx, q, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountWithSecret{}, domain.ErrNotFound
		}
		return domain.AccountWithSecret{}, oops.Code("ACCOUNT_GET_FAILED").With("by", "email").Wrap(err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	a, err := scanAccount(s.db.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, oops.Code("ACCOUNT_GET_FAILED").With("by", "username").Wrap(err)
	}
	return a, nil
}

// UpdateAccount applies a partial update. updated_at only moves forward.
func (s *AccountsStore) UpdateAccount(ctx context.Context, id int64, u domain.AccountUpdate) (domain.Account, error) {
	const q = `
		UPDATE accounts SET
			email          = COALESCE($2, email),
			username       = COALESCE($3, username),
			first_name     = CASE WHEN $4::boolean THEN $5::text ELSE first_name END,
			last_name      = CASE WHEN $6::boolean THEN $7::text ELSE last_name END,
			password_hash  = COALESCE($8, password_hash),
			is_admin       = COALESCE($9, is_admin),
			is_active      = COALESCE($10, is_active),
			email_verified = COALESCE($11, email_verified),
			last_login_at  = COALESCE($12, last_login_at),
			updated_at     = GREATEST(updated_at, $13)
		WHERE id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(s.db.QueryRow(ctx, q,
		id,
		u.Email,
		u.Username,
		u.FirstName.Set,
		u.FirstName.Value,
		u.LastName.Set,
		u.LastName.Value,
		u.PasswordHash,
		u.IsAdmin,
		u.IsActive,
		u.EmailVerified,
		u.LastLoginAt,
		u.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, mapAccountWriteError(err, "ACCOUNT_UPDATE_FAILED")
	}
	return a, nil
}

// ListAccounts returns newest accounts first, ties broken by id.
func (s *AccountsStore) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	const q = `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("limit", limit, "offset", offset).Wrap(err)
	}
	defer rows.Close()

	out := make([]domain.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").Wrapf(err, "scan account")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").Wrap(err)
	}
	return out, nil
}

func (s *AccountsStore) CountAccounts(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").Wrap(err)
	}
	return int(n), nil
}

// DeleteAccount removes the account; its reset tokens go with it (ON DELETE CASCADE).
func (s *AccountsStore) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapAccountWriteError(err error, code string) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
		switch pgerr.ConstraintName {
		case accountsUsernameConstraint:
			return domain.ErrUsernameTaken
		case accountsEmailConstraint:
			return domain.ErrEmailTaken
		default:
			return oops.Code(code).With("constraint", pgerr.ConstraintName).Wrap(err)
		}
	}
	return oops.Code(code).Wrap(err)
}
