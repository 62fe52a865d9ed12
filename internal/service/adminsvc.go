package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"accountd/internal/domain"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// AdminService manages accounts on behalf of an administrator. Every method
// takes the caller's verified claims and fails with ErrUnauthorized unless
// they carry the admin flag.
type AdminService struct {
	Accounts AccountStore
	Hasher   PasswordHasher
	Logger   *slog.Logger
	Now      func() time.Time
}

func requireAdmin(claims domain.SessionClaims) error {
	if !claims.IsAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

// ListUsers clamps page to >= 1 and limit to [1, MaxPageLimit]. A page past
// the end yields an empty slice with the real totals.
func (s *AdminService) ListUsers(ctx context.Context, claims domain.SessionClaims, page, limit int) (domain.AccountPage, error) {
	if err := requireAdmin(claims); err != nil {
		return domain.AccountPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	total, err := s.Accounts.CountAccounts(ctx)
	if err != nil {
		return domain.AccountPage{}, err
	}
	out := domain.AccountPage{
		Accounts:   []domain.Account{},
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
	if page > out.TotalPages {
		return out, nil
	}

	accounts, err := s.Accounts.ListAccounts(ctx, limit, (page-1)*limit)
	if err != nil {
		return domain.AccountPage{}, err
	}
	out.Accounts = accounts
	return out, nil
}

func (s *AdminService) GetUser(ctx context.Context, claims domain.SessionClaims, id int64) (domain.Account, error) {
	if err := requireAdmin(claims); err != nil {
		return domain.Account{}, err
	}
	a, err := s.Accounts.GetAccountByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	return a.Account, nil
}

func (s *AdminService) CreateUser(ctx context.Context, claims domain.SessionClaims, in domain.AdminCreateInput) (domain.Account, error) {
	if err := requireAdmin(claims); err != nil {
		return domain.Account{}, err
	}
	a, err := s.create(ctx, in)
	if err != nil {
		return domain.Account{}, err
	}
	s.logger().InfoContext(ctx, "account created by admin", "account_id", a.ID, "admin_id", claims.AccountID)
	return a, nil
}

func (s *AdminService) create(ctx context.Context, in domain.AdminCreateInput) (domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	username := domain.NormalizeUsername(in.Username)
	if err := domain.ValidateRegistration(email, username, in.Password, in.FirstName, in.LastName); err != nil {
		return domain.Account{}, err
	}
	if err := checkAvailable(ctx, s.Accounts, 0, &email, &username); err != nil {
		return domain.Account{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.Account{}, err
	}

	return s.Accounts.CreateAccount(ctx, domain.NewAccount{
		Email:         email,
		Username:      username,
		PasswordHash:  hash,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		IsAdmin:       boolOr(in.IsAdmin, false),
		IsActive:      boolOr(in.IsActive, true),
		EmailVerified: boolOr(in.EmailVerified, false),
		CreatedAt:     nowFunc(s.Now)(),
	})
}

// UpdateUser applies an admin patch. An admin can neither clear their own
// admin flag nor deactivate themselves through this path.
func (s *AdminService) UpdateUser(ctx context.Context, claims domain.SessionClaims, id int64, patch domain.AdminPatch) (domain.Account, error) {
	if err := requireAdmin(claims); err != nil {
		return domain.Account{}, err
	}
	if id == claims.AccountID {
		if patch.IsAdmin != nil && !*patch.IsAdmin {
			return domain.Account{}, domain.ErrSelfDemotion
		}
		if patch.IsActive != nil && !*patch.IsActive {
			return domain.Account{}, domain.ErrSelfDeactivation
		}
	}
	if err := patch.ProfilePatch.Normalize(); err != nil {
		return domain.Account{}, err
	}
	if patch.Password != nil && !domain.ValidPassword(*patch.Password) {
		return domain.Account{}, domain.NewValidationError(map[string]string{"password": "must be at least 8 characters"})
	}

	current, err := s.Accounts.GetAccountByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	upd := profileUpdate(current.Account, patch.ProfilePatch, nowFunc(s.Now)())
	if err := checkAvailable(ctx, s.Accounts, current.ID, upd.Email, upd.Username); err != nil {
		return domain.Account{}, err
	}
	upd.IsAdmin = patch.IsAdmin
	upd.IsActive = patch.IsActive
	upd.EmailVerified = patch.EmailVerified
	if patch.Password != nil {
		hash, err := s.Hasher.Hash(*patch.Password)
		if err != nil {
			return domain.Account{}, err
		}
		upd.PasswordHash = &hash
	}

	a, err := s.Accounts.UpdateAccount(ctx, id, upd)
	if err != nil {
		return domain.Account{}, err
	}
	s.logger().InfoContext(ctx, "account updated by admin", "account_id", id, "admin_id", claims.AccountID)
	return a, nil
}

// DeleteUser removes the account and, through the store, its reset tokens.
func (s *AdminService) DeleteUser(ctx context.Context, claims domain.SessionClaims, id int64) error {
	if err := requireAdmin(claims); err != nil {
		return err
	}
	if id == claims.AccountID {
		return domain.ErrSelfDeletion
	}
	if err := s.Accounts.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "account deleted by admin", "account_id", id, "admin_id", claims.AccountID)
	return nil
}

// EnsureAdmin creates an active admin account unless one with the email
// already exists, in which case it is promoted and reactivated. It backs the
// create-admin command and the bootstrap settings, which run without a session.
func (s *AdminService) EnsureAdmin(ctx context.Context, email, username, password string) (domain.Account, bool, error) {
	existing, err := s.Accounts.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case err == nil:
		if existing.IsAdmin && existing.IsActive {
			return existing.Account, false, nil
		}
		yes := true
		a, err := s.Accounts.UpdateAccount(ctx, existing.ID, domain.AccountUpdate{
			IsAdmin:   &yes,
			IsActive:  &yes,
			UpdatedAt: nowFunc(s.Now)(),
		})
		if err != nil {
			return domain.Account{}, false, err
		}
		s.logger().InfoContext(ctx, "admin bootstrap: promoted existing account", "account_id", a.ID)
		return a, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Account{}, false, err
	}

	yes := true
	a, err := s.create(ctx, domain.AdminCreateInput{
		Email:    email,
		Username: username,
		Password: password,
		IsAdmin:  &yes,
	})
	if err != nil {
		return domain.Account{}, false, err
	}
	s.logger().InfoContext(ctx, "admin bootstrap: created admin account", "account_id", a.ID)
	return a, true, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *AdminService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
