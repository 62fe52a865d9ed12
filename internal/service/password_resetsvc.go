package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

// ResetNotifier hands a freshly issued reset token to whatever delivers it.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, account domain.Account, token string, expiresAt time.Time) error
}

// LogResetNotifier writes reset requests to the log. The link, which carries
// the token, is only logged when IncludeLink is set (development).
type LogResetNotifier struct {
	Logger      *slog.Logger
	PublicURL   string
	IncludeLink bool
}

func (n *LogResetNotifier) NotifyPasswordReset(ctx context.Context, account domain.Account, token string, expiresAt time.Time) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"account_id", account.ID, "expires_at", expiresAt}
	if n.IncludeLink {
		attrs = append(attrs, "link", ResetLink(n.PublicURL, token))
	}
	logger.InfoContext(ctx, "password reset requested", attrs...)
	return nil
}

func ResetLink(publicURL, token string) string {
	u, err := url.Parse(publicURL)
	if err != nil || publicURL == "" {
		return "/reset-password?token=" + url.QueryEscape(token)
	}
	u = u.JoinPath("reset-password")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

type PasswordResetService struct {
	Accounts AccountStore
	Tokens   ResetTokenStore
	Hasher   PasswordHasher
	Notifier ResetNotifier
	TokenTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// IssueFor creates a reset token for the account and returns the raw token.
// Only its hash is persisted.
func (s *PasswordResetService) IssueFor(ctx context.Context, accountID int64) (string, domain.ResetToken, error) {
	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return "", domain.ResetToken{}, err
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = auth.ResetTokenExpiry
	}
	now := nowFunc(s.Now)()
	tok, err := s.Tokens.CreateResetToken(ctx, domain.ResetToken{
		AccountID: accountID,
		TokenHash: hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", domain.ResetToken{}, err
	}
	return raw, tok, nil
}

// Consume marks the token used and returns its account id. Of concurrent
// callers presenting the same token at most one succeeds.
func (s *PasswordResetService) Consume(ctx context.Context, raw string) (int64, error) {
	if raw == "" {
		return 0, domain.ErrNotFound
	}
	return s.Tokens.ConsumeResetToken(ctx, auth.HashResetToken(raw), nowFunc(s.Now)())
}

// RequestReset never reveals whether the email belongs to an account: unknown
// and inactive accounts return nil exactly like a successful request.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	defer func() { recordAuthEvent("reset_request", err) }()

	a, err := s.Accounts.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !a.IsActive {
		s.logger().InfoContext(ctx, "password reset skipped for inactive account", "account_id", a.ID)
		return nil
	}

	raw, tok, err := s.IssueFor(ctx, a.ID)
	if err != nil {
		return err
	}
	if s.Notifier != nil {
		if err := s.Notifier.NotifyPasswordReset(ctx, a.Account, raw, tok.ExpiresAt); err != nil {
			s.logger().ErrorContext(ctx, "password reset notification failed", "account_id", a.ID, "err", err)
		}
	}
	return nil
}

// ResetPassword consumes the token, stores the new password and invalidates
// every other outstanding token of the account.
func (s *PasswordResetService) ResetPassword(ctx context.Context, raw, newPassword string) (err error) {
	defer func() { recordAuthEvent("reset_complete", err) }()

	if !domain.ValidPassword(newPassword) {
		return domain.NewValidationError(map[string]string{"password": "must be at least 8 characters"})
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	accountID, err := s.Consume(ctx, raw)
	if err != nil {
		return err
	}

	now := nowFunc(s.Now)()
	if _, err := s.Accounts.UpdateAccount(ctx, accountID, domain.AccountUpdate{PasswordHash: &hash, UpdatedAt: now}); err != nil {
		return err
	}

	if n, err := s.Tokens.InvalidateResetTokens(ctx, accountID, now); err != nil {
		s.logger().WarnContext(ctx, "invalidate reset tokens failed", "account_id", accountID, "err", err)
	} else if n > 0 {
		s.logger().InfoContext(ctx, "invalidated outstanding reset tokens", "account_id", accountID, "count", n)
	}
	return nil
}

func (s *PasswordResetService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
