package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"accountd/internal/domain"
)

type accountResponse struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	Username      string  `json:"username"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	IsAdmin       bool    `json:"is_admin"`
	IsActive      bool    `json:"is_active"`
	EmailVerified bool    `json:"email_verified"`
	LastLogin     *string `json:"last_login"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Email:         a.Email,
		Username:      a.Username,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		IsAdmin:       a.IsAdmin,
		IsActive:      a.IsActive,
		EmailVerified: a.EmailVerified,
		LastLogin:     formatMillisPtr(a.LastLoginAt),
		CreatedAt:     formatMillis(a.CreatedAt),
		UpdatedAt:     formatMillis(a.UpdatedAt),
	}
}

type sessionResponse struct {
	Account   accountResponse `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
}

type accountPageResponse struct {
	Users      []accountResponse `json:"users"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

func toAccountPageResponse(p domain.AccountPage) accountPageResponse {
	users := make([]accountResponse, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		users = append(users, toAccountResponse(a))
	}
	return accountPageResponse{
		Users:      users,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
}

func writeAccount(w http.ResponseWriter, status int, a domain.Account) {
	w.Header().Set("ETag", accountETag(a))
	WriteJSON(w, status, toAccountResponse(a))
}

func accountETag(a domain.Account) string {
	return fmt.Sprintf("W/\"account:%d:%d\"", a.ID, a.UpdatedAt.UnixNano())
}

func formatMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatMillisPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	out := formatMillis(*t)
	return &out
}
