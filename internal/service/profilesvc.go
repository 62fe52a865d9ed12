package service

import (
	"context"
	"time"

	"accountd/internal/domain"
)

type ProfileService struct {
	Accounts AccountStore
	Hasher   PasswordHasher
	Now      func() time.Time
}

func (s *ProfileService) Get(ctx context.Context, claims domain.SessionClaims) (domain.Account, error) {
	a, err := s.Accounts.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		return domain.Account{}, err
	}
	return a.Account, nil
}

// UpdateSelf applies a partial patch to the caller's own account. An empty
// patch still bumps updated_at.
func (s *ProfileService) UpdateSelf(ctx context.Context, claims domain.SessionClaims, patch domain.ProfilePatch) (domain.Account, error) {
	if err := patch.Normalize(); err != nil {
		return domain.Account{}, err
	}

	current, err := s.Accounts.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !current.IsActive {
		return domain.Account{}, domain.ErrAccountInactive
	}

	upd := profileUpdate(current.Account, patch, nowFunc(s.Now)())
	if err := checkAvailable(ctx, s.Accounts, current.ID, upd.Email, upd.Username); err != nil {
		return domain.Account{}, err
	}
	return s.Accounts.UpdateAccount(ctx, current.ID, upd)
}

func (s *ProfileService) ChangePassword(ctx context.Context, claims domain.SessionClaims, currentPassword, newPassword string) (err error) {
	defer func() { recordAuthEvent("change_password", err) }()

	a, err := s.Accounts.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return domain.ErrAccountInactive
	}
	if !s.Hasher.Verify(currentPassword, a.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if !domain.ValidPassword(newPassword) {
		return domain.NewValidationError(map[string]string{"new_password": "must be at least 8 characters"})
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	_, err = s.Accounts.UpdateAccount(ctx, a.ID, domain.AccountUpdate{
		PasswordHash: &hash,
		UpdatedAt:    nowFunc(s.Now)(),
	})
	return err
}
