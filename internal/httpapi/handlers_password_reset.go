package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"accountd/internal/domain"
	"accountd/internal/logging"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleAuthForgot answers {success:true} for every well-formed request so
// the response never reveals whether an account exists. Store failures are
// logged, not surfaced.
func (a *api) handleAuthForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	email := domain.NormalizeEmail(req.Email)
	if !a.loginLimiter.allowAll(a.now(), "forgot:ip:"+a.clientIP(r), "forgot:email:"+email) {
		writeRateLimited(w)
		return
	}

	if email != "" {
		if err := a.resetSvc.RequestReset(r.Context(), email); err != nil {
			logging.LogError(r.Context(), a.logger, "password reset request failed", err)
		}
	}

	writeSuccess(w)
}

func (a *api) handleAuthReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	token := strings.TrimSpace(req.Token)
	if err := requireFields(map[string]string{"token": token, "password": req.Password}); err != nil {
		a.writeErr(w, r, err)
		return
	}

	if err := a.resetSvc.ResetPassword(r.Context(), token, req.Password); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteError(w, http.StatusBadRequest, "invalid_reset_token", "reset token is invalid")
			return
		}
		a.writeErr(w, r, err)
		return
	}

	writeSuccess(w)
}
