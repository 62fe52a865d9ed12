package httpapi

import (
	"net/http"
	"strconv"

	"accountd/internal/domain"
)

func (a *api) handleAdminUsersList(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	page, limit, err := pageParams(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	out, err := a.adminSvc.ListUsers(r.Context(), claims, page, limit)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toAccountPageResponse(out))
}

func (a *api) handleAdminUsersGet(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	acct, err := a.adminSvc.GetUser(r.Context(), claims, id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeAccount(w, http.StatusOK, acct)
}

type adminCreateRequest struct {
	Email         string  `json:"email"`
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	IsAdmin       *bool   `json:"is_admin"`
	IsActive      *bool   `json:"is_active"`
	EmailVerified *bool   `json:"email_verified"`
}

func (a *api) handleAdminUsersCreate(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	var req adminCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	acct, err := a.adminSvc.CreateUser(r.Context(), claims, domain.AdminCreateInput{
		Email:         req.Email,
		Username:      req.Username,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		IsAdmin:       req.IsAdmin,
		IsActive:      req.IsActive,
		EmailVerified: req.EmailVerified,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/admin/users/"+strconv.FormatInt(acct.ID, 10))
	writeAccount(w, http.StatusCreated, acct)
}

type adminUpdateRequest struct {
	updateProfileRequest
	Password      *string `json:"password"`
	IsAdmin       *bool   `json:"is_admin"`
	IsActive      *bool   `json:"is_active"`
	EmailVerified *bool   `json:"email_verified"`
}

func (a *api) handleAdminUsersUpdate(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	var req adminUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	acct, err := a.adminSvc.UpdateUser(r.Context(), claims, id, domain.AdminPatch{
		ProfilePatch:  req.patch(),
		Password:      req.Password,
		IsAdmin:       req.IsAdmin,
		IsActive:      req.IsActive,
		EmailVerified: req.EmailVerified,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeAccount(w, http.StatusOK, acct)
}

func (a *api) handleAdminUsersDelete(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	if err := a.adminSvc.DeleteUser(r.Context(), claims, id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
