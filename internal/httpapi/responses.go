package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accountd/internal/domain"
	"accountd/internal/logging"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// WriteDomainError maps a service error to its HTTP status and stable code.
// Anything unrecognised is an infrastructure failure: it is logged and
// reported as a bare 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrConflict):
		fields := map[string]string{}
		for _, f := range domain.ConflictFields(err) {
			fields[f] = "already taken"
		}
		code := "conflict"
		if len(fields) == 1 {
			code = domain.ConflictFields(err)[0] + "_taken"
		}
		WriteJSON(w, http.StatusConflict, errorEnvelope{Error: apiError{
			Code:    code,
			Message: "already in use",
			Fields:  fields,
		}})
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrTokenExpired):
		WriteError(w, http.StatusUnauthorized, "token_expired", "session expired")
	case errors.Is(err, domain.ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid session")
	case errors.Is(err, domain.ErrAccountInactive):
		WriteError(w, http.StatusForbidden, "account_inactive", "account is deactivated")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "forbidden", "admin privileges required")
	case errors.Is(err, domain.ErrSelfDemotion):
		WriteError(w, http.StatusForbidden, "self_demotion_forbidden", "cannot remove your own admin privileges")
	case errors.Is(err, domain.ErrSelfDeactivation):
		WriteError(w, http.StatusForbidden, "self_deactivation_forbidden", "cannot deactivate your own account")
	case errors.Is(err, domain.ErrSelfDeletion):
		WriteError(w, http.StatusForbidden, "self_deletion_forbidden", "cannot delete your own account")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrResetTokenUsed):
		WriteError(w, http.StatusBadRequest, "reset_token_used", "reset token has already been used")
	case errors.Is(err, domain.ErrResetTokenExpired):
		WriteError(w, http.StatusBadRequest, "reset_token_expired", "reset token has expired")
	default:
		logging.LogError(r.Context(), logger, "request failed", err, "method", r.Method, "path", r.URL.Path)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}
