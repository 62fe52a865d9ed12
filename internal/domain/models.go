package domain

import "time"

// Account is a user record as returned to callers. The password secret lives
// only on AccountWithSecret and never leaves the service layer.
type Account struct {
	ID            int64
	Email         string
	Username      string
	FirstName     *string
	LastName      *string
	IsAdmin       bool
	IsActive      bool
	EmailVerified bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type AccountWithSecret struct {
	Account
	PasswordHash string
}

// NewAccount is the input to an account insert. PasswordHash must already be hashed.
type NewAccount struct {
	Email         string
	Username      string
	PasswordHash  string
	FirstName     *string
	LastName      *string
	IsAdmin       bool
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time
}

// OptionalString is a patch value for a nullable column. Set=false leaves the
// stored value untouched; Set=true with a nil Value clears it.
type OptionalString struct {
	Set   bool
	Value *string
}

func SetString(v string) OptionalString { return OptionalString{Set: true, Value: &v} }

func ClearString() OptionalString { return OptionalString{Set: true} }

// AccountUpdate is a partial update applied by the store. Nil pointers and
// unset optionals keep the stored value. UpdatedAt is always applied and
// never moves backwards.
type AccountUpdate struct {
	Email         *string
	Username      *string
	FirstName     OptionalString
	LastName      OptionalString
	PasswordHash  *string
	IsAdmin       *bool
	IsActive      *bool
	EmailVerified *bool
	LastLoginAt   *time.Time
	UpdatedAt     time.Time
}

// ProfilePatch is what an account may change about itself.
type ProfilePatch struct {
	Username  *string
	Email     *string
	FirstName OptionalString
	LastName  OptionalString
}

// AdminPatch extends ProfilePatch with privileged flags and an optional new password.
type AdminPatch struct {
	ProfilePatch
	Password      *string
	IsAdmin       *bool
	IsActive      *bool
	EmailVerified *bool
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
}

// AdminCreateInput is the admin-side account creation request. Nil flags take
// the defaults is_admin=false, is_active=true, email_verified=false.
type AdminCreateInput struct {
	Email         string
	Username      string
	Password      string
	FirstName     *string
	LastName      *string
	IsAdmin       *bool
	IsActive      *bool
	EmailVerified *bool
}

type AccountPage struct {
	Accounts   []Account
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ResetToken is a persisted password-reset token. Only the SHA-256 of the
// opaque token string is stored.
type ResetToken struct {
	ID        int64
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	TokenID   string
	AccountID int64
	Email     string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}
