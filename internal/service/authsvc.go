package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

// AuthResult is what register and login hand back: the account without its
// secret, the signed session token and the claims inside it.
type AuthResult struct {
	Account domain.Account
	Token   string
	Claims  domain.SessionClaims
}

type AuthService struct {
	Accounts AccountStore
	Hasher   PasswordHasher
	Tokens   SessionTokens
	Denylist auth.Denylist
	Logger   *slog.Logger
	Now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func (s *AuthService) Register(ctx context.Context, in domain.RegisterInput) (res AuthResult, err error) {
	defer func() { recordAuthEvent("register", err) }()

	email := domain.NormalizeEmail(in.Email)
	username := domain.NormalizeUsername(in.Username)
	if err := domain.ValidateRegistration(email, username, in.Password, in.FirstName, in.LastName); err != nil {
		return AuthResult{}, err
	}
	if err := checkAvailable(ctx, s.Accounts, 0, &email, &username); err != nil {
		return AuthResult{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	a, err := s.Accounts.CreateAccount(ctx, domain.NewAccount{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		CreatedAt:    nowFunc(s.Now)(),
	})
	if err != nil {
		return AuthResult{}, err
	}

	return s.issue(a)
}

// Login fails with ErrInvalidCredentials for an unknown email and for a wrong
// password alike. The password is checked before the active flag so an
// inactive account is only revealed to someone who knows its password.
func (s *AuthService) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { recordAuthEvent("login", err) }()

	a, err := s.Accounts.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.Hasher.Verify(password, s.dummySecret())
			return AuthResult{}, domain.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !s.Hasher.Verify(password, a.PasswordHash) {
		return AuthResult{}, domain.ErrInvalidCredentials
	}
	if !a.IsActive {
		return AuthResult{}, domain.ErrAccountInactive
	}

	now := nowFunc(s.Now)()
	upd := domain.AccountUpdate{LastLoginAt: &now, UpdatedAt: now}
	if s.Hasher.NeedsUpgrade(a.PasswordHash) {
		if rehashed, err := s.Hasher.Hash(password); err == nil {
			upd.PasswordHash = &rehashed
		} else {
			s.logger().Warn("password rehash failed", "account_id", a.ID, "err", err)
		}
	}

	updated, err := s.Accounts.UpdateAccount(ctx, a.ID, upd)
	if err != nil {
		return AuthResult{}, err
	}
	if upd.PasswordHash != nil {
		s.logger().Info("password hash upgraded", "account_id", a.ID)
	}

	return s.issue(updated)
}

// Authenticate verifies a session token and, when a denylist is configured,
// rejects tokens revoked by logout.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.SessionClaims, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.SessionClaims{}, err
	}
	if s.Denylist != nil && claims.TokenID != "" {
		revoked, err := s.Denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return domain.SessionClaims{}, err
		}
		if revoked {
			return domain.SessionClaims{}, domain.ErrInvalidToken
		}
	}
	return claims, nil
}

// Logout revokes the token until its natural expiry. Without a denylist it is
// a no-op and the client simply discards the token.
func (s *AuthService) Logout(ctx context.Context, claims domain.SessionClaims) (err error) {
	defer func() { recordAuthEvent("logout", err) }()

	if s.Denylist == nil || claims.TokenID == "" {
		return nil
	}
	return s.Denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt)
}

func (s *AuthService) issue(a domain.Account) (AuthResult, error) {
	tok, claims, err := s.Tokens.Issue(domain.SessionClaims{
		AccountID: a.ID,
		Email:     a.Email,
		IsAdmin:   a.IsAdmin,
	})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Account: a, Token: tok, Claims: claims}, nil
}

// dummySecret is verified against when the email is unknown so both failure
// paths cost one hash.
func (s *AuthService) dummySecret() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("accountd-dummy-password")
		if err != nil {
			s.logger().Warn("dummy hash failed", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
