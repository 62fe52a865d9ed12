package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"accountd/internal/domain"
)

const DefaultTokenTTL = 24 * time.Hour

type sessionClaims struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens with a fixed TTL.
// The secret is copied at construction and read-only afterwards.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type TokenOption func(*TokenCodec)

func WithIssuer(issuer string) TokenOption {
	return func(c *TokenCodec) { c.issuer = issuer }
}

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) { c.now = now }
}

func NewTokenCodec(secret []byte, ttl time.Duration, opts ...TokenOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be > 0")
	}
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)

	c := &TokenCodec{secret: secretCopy, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the identity in claims. IssuedAt, ExpiresAt and
// TokenID are filled in; the returned claims are exactly what Verify yields.
func (c *TokenCodec) Issue(claims domain.SessionClaims) (string, domain.SessionClaims, error) {
	now := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(c.ttl)
	claims.TokenID = ulid.Make().String()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		AccountID: claims.AccountID,
		Email:     claims.Email,
		IsAdmin:   claims.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(claims.AccountID, 10),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", domain.SessionClaims{}, err
	}
	return signed, claims, nil
}

// Verify checks the signature, then expiry. A token at or past its expiry
// fails with domain.ErrTokenExpired; everything else fails with
// domain.ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (domain.SessionClaims, error) {
	if token == "" {
		return domain.SessionClaims{}, domain.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var sc sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &sc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.SessionClaims{}, domain.ErrTokenExpired
		}
		return domain.SessionClaims{}, domain.ErrInvalidToken
	}
	if !parsed.Valid || sc.AccountID <= 0 || sc.ExpiresAt == nil || sc.IssuedAt == nil {
		return domain.SessionClaims{}, domain.ErrInvalidToken
	}
	if sc.Subject != strconv.FormatInt(sc.AccountID, 10) {
		return domain.SessionClaims{}, domain.ErrInvalidToken
	}

	return domain.SessionClaims{
		TokenID:   sc.ID,
		AccountID: sc.AccountID,
		Email:     sc.Email,
		IsAdmin:   sc.IsAdmin,
		IssuedAt:  sc.IssuedAt.Time.UTC(),
		ExpiresAt: sc.ExpiresAt.Time.UTC(),
	}, nil
}
