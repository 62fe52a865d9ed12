package domain

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 50
	PasswordMinLen    = 8
	PasswordMaxLen    = 256
	NameMaxLen        = 100
	emailMaxLen       = 254
	validationInvalid = "must be a valid email"
)

// NormalizeEmail trims and lowercases. Every write and every lookup goes
// through it, so uniqueness is effectively case-insensitive.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

func ValidEmail(s string) bool {
	if s == "" || len(s) > emailMaxLen {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}

func ValidUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

func ValidPassword(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= PasswordMinLen && len(s) <= PasswordMaxLen
}

func validName(s string) bool {
	if utf8.RuneCountInString(s) > NameMaxLen {
		return false
	}
	for _, r := range s {
		if r < 32 {
			return false
		}
	}
	return true
}

// ValidateRegistration checks the fields shared by self-registration and
// admin-create. It collects every failing field.
func ValidateRegistration(email, username, password string, firstName, lastName *string) error {
	fields := map[string]string{}
	if !ValidEmail(email) {
		fields["email"] = validationInvalid
	}
	if !ValidUsername(username) {
		fields["username"] = "must be 3-50 chars [A-Za-z0-9_.-]"
	}
	if !ValidPassword(password) {
		fields["password"] = "must be at least 8 characters"
	}
	if firstName != nil && !validName(*firstName) {
		fields["first_name"] = "must be 100 characters or less"
	}
	if lastName != nil && !validName(*lastName) {
		fields["last_name"] = "must be 100 characters or less"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// Normalize trims the patch in place and validates whatever is present.
func (p *ProfilePatch) Normalize() error {
	fields := map[string]string{}
	if p.Email != nil {
		e := NormalizeEmail(*p.Email)
		p.Email = &e
		if !ValidEmail(e) {
			fields["email"] = validationInvalid
		}
	}
	if p.Username != nil {
		u := NormalizeUsername(*p.Username)
		p.Username = &u
		if !ValidUsername(u) {
			fields["username"] = "must be 3-50 chars [A-Za-z0-9_.-]"
		}
	}
	if p.FirstName.Value != nil && !validName(*p.FirstName.Value) {
		fields["first_name"] = "must be 100 characters or less"
	}
	if p.LastName.Value != nil && !validName(*p.LastName.Value) {
		fields["last_name"] = "must be 100 characters or less"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}
