package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersMe(t *testing.T) {
	s := newTestServer(t)
	acct, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodGet, "/v1/users/me", nil, withToken(tok))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("ETag"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var got accountResponse
	decodeBody(t, rr, &got)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestUsersMeUpdate(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	s.clock.Advance(time.Second)
	rr := s.do(t, http.MethodPatch, "/v1/users/me", `{"first_name":"Alice","last_name":"Liddell","username":"alice.l"}`, withToken(tok))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got accountResponse
	decodeBody(t, rr, &got)
	assert.Equal(t, "alice.l", got.Username)
	require.NotNil(t, got.FirstName)
	assert.Equal(t, "Alice", *got.FirstName)
	assert.Equal(t, formatMillis(s.clock.Now()), got.UpdatedAt)

	// Omitted fields are kept; explicit null clears.
	rr = s.do(t, http.MethodPatch, "/v1/users/me", `{"first_name":null}`, withToken(tok))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got = accountResponse{}
	decodeBody(t, rr, &got)
	assert.Nil(t, got.FirstName)
	require.NotNil(t, got.LastName)
	assert.Equal(t, "Liddell", *got.LastName)
	assert.Equal(t, "alice.l", got.Username)
}

func TestUsersMeUpdateOwnValuesAreNotConflicts(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodPatch, "/v1/users/me", `{"email":"ALICE@example.com","username":"alice"}`, withToken(tok))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestUsersMeUpdateConflict(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "bob@example.com", "bob", "correct-horse")
	_, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodPatch, "/v1/users/me", `{"username":"bob"}`, withToken(tok))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "username_taken", errorOf(t, rr).Code)
}

func TestUsersMeUpdateValidation(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodPatch, "/v1/users/me", `{"email":"nope"}`, withToken(tok))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorOf(t, rr).Fields, "email")

	rr = s.do(t, http.MethodPatch, "/v1/users/me", `{"first_name":42}`, withToken(tok))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_json", errorOf(t, rr).Code)
}

func TestUsersMeChangePassword(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodPost, "/v1/users/me/password", map[string]string{
		"current_password": "wrong-horse", "new_password": "battery-staple",
	}, withToken(tok))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_credentials", errorOf(t, rr).Code)

	rr = s.do(t, http.MethodPost, "/v1/users/me/password", map[string]string{
		"current_password": "correct-horse", "new_password": "short",
	}, withToken(tok))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/users/me/password", map[string]string{
		"current_password": "correct-horse", "new_password": "battery-staple",
	}, withToken(tok))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	s.login(t, "alice@example.com", "battery-staple")
	rr = s.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUsersMeDeactivatedAccount(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.adminToken(t)
	acct, tok := s.register(t, "alice@example.com", "alice", "correct-horse")

	rr := s.do(t, http.MethodPatch, "/v1/admin/users/"+itoa(acct.ID), map[string]any{"is_active": false}, withToken(adminTok))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPatch, "/v1/users/me", `{"first_name":"A"}`, withToken(tok))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "account_inactive", errorOf(t, rr).Code)
}
