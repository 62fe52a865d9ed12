package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"accountd/internal/auth"
	"accountd/internal/domain"
	"accountd/internal/service"
)

type registerRequest struct {
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	res, err := a.authSvc.Register(r.Context(), domain.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	a.writeSession(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	email := domain.NormalizeEmail(req.Email)
	if err := requireFields(map[string]string{"email": email, "password": req.Password}); err != nil {
		a.writeErr(w, r, err)
		return
	}

	now := a.now()
	emailKey := "login:" + email
	ipOK := a.loginLimiter.Allow("ip:"+a.clientIP(r), now)
	if !ipOK || a.loginLimiter.Blocked(emailKey, now) {
		writeRateLimited(w)
		return
	}

	res, err := a.authSvc.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			a.loginLimiter.Record(emailKey, now)
		}
		a.writeErr(w, r, err)
		return
	}

	a.writeSession(w, http.StatusOK, res)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	if err := a.authSvc.Logout(r.Context(), claims); err != nil {
		a.writeErr(w, r, err)
		return
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// writeSession sets the session cookie for browser clients and returns the
// same token in the body for API clients.
func (a *api) writeSession(w http.ResponseWriter, status int, res service.AuthResult) {
	auth.SetSessionCookie(w, res.Token, res.Claims.ExpiresAt.Sub(a.now()), a.cookieSecure)
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, status, sessionResponse{
		Account:   toAccountResponse(res.Account),
		Token:     res.Token,
		ExpiresAt: formatMillis(res.Claims.ExpiresAt),
	})
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

// requireFields reports every blank value as a required field.
func requireFields(values map[string]string) error {
	fields := map[string]string{}
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			fields[name] = "required"
		}
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}
