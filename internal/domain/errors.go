package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountInactive    = errors.New("account_inactive")
	ErrNotFound           = errors.New("not_found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSelfDemotion       = errors.New("self_demotion_forbidden")
	ErrSelfDeletion       = errors.New("self_deletion_forbidden")
	ErrSelfDeactivation   = errors.New("self_deactivation_forbidden")
	ErrResetTokenUsed     = errors.New("reset_token_used")
	ErrResetTokenExpired  = errors.New("reset_token_expired")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrValidation         = errors.New("validation")
)

// ConflictError reports which unique field collided. It matches ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string { return e.Field + "_taken" }

func (e *ConflictError) Unwrap() error { return ErrConflict }

var (
	ErrEmailTaken    error = &ConflictError{Field: "email"}
	ErrUsernameTaken error = &ConflictError{Field: "username"}
)

// ConflictFields lists the colliding fields carried by err, in stable order.
func ConflictFields(err error) []string {
	var out []string
	if errors.Is(err, ErrEmailTaken) {
		out = append(out, "email")
	}
	if errors.Is(err, ErrUsernameTaken) {
		out = append(out, "username")
	}
	return out
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
