package httpapi

import (
	"net/http"

	"accountd/internal/domain"
)

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	acct, err := a.profileSvc.Get(r.Context(), claims)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeAccount(w, http.StatusOK, acct)
}

type updateProfileRequest struct {
	Username  *string        `json:"username"`
	Email     *string        `json:"email"`
	FirstName nullableString `json:"first_name"`
	LastName  nullableString `json:"last_name"`
}

func (req updateProfileRequest) patch() domain.ProfilePatch {
	return domain.ProfilePatch{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: domain.OptionalString{Set: req.FirstName.Set, Value: req.FirstName.Value},
		LastName:  domain.OptionalString{Set: req.LastName.Set, Value: req.LastName.Value},
	}
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	acct, err := a.profileSvc.UpdateSelf(r.Context(), claims, req.patch())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeAccount(w, http.StatusOK, acct)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *api) handleUsersMePassword(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if err := requireFields(map[string]string{"current_password": req.CurrentPassword, "new_password": req.NewPassword}); err != nil {
		a.writeErr(w, r, err)
		return
	}

	if err := a.profileSvc.ChangePassword(r.Context(), claims, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeSuccess(w)
}
