package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_SignupAndLogin(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService, _ := newTestAuthService(t, db)
	h := NewHandler(authService)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/a/signup", strings.NewReader(`{"email":"serj@gym.com","password":"password123","name":"Serj"}`))
	h.HandleSignup(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "serj@gym.com", user.Email)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/a/signup", strings.NewReader(`{"email":"serj@gym.com","password":"password123"}`))
	h.HandleSignup(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/a/signup", strings.NewReader(`{"email":"x@y.z","password":"short"}`))
	h.HandleSignup(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"email":"serj@gym.com"}`))
	h.HandleLogin(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 1; i < MaxAttempts; i++ {
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"email":"serj@gym.com","password":"nope-nope"}`))
		h.HandleLogin(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var result LoginResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, LoginStatusInvalidCredentials, result.Status)
		assert.Equal(t, MaxAttempts-i, result.AttemptsLeft)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"email":"serj@gym.com","password":"nope-nope"}`))
	h.HandleLogin(rec, req)
	require.Equal(t, http.StatusLocked, rec.Code)

	var result LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, LoginStatusLocked, result.Status)
	assert.Equal(t, 30, result.LockMinutes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_HandleLogout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService, _ := newTestAuthService(t, db)
	h := NewHandler(authService)

	rec := httptest.NewRecorder()
	h.HandleLogout(rec, httptest.NewRequest(http.MethodGet, "/a/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sessionKey := sessionKeyPrefix + "tkn"
	mock.ExpectGet(sessionKey).SetVal(`{"userId":"u1","createdAt":1}`)
	mock.ExpectDel(sessionKey).SetVal(1)
	mock.ExpectSRem(tokensSetKey, "tkn").SetVal(1)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/a/logout", nil)
	req.Header.Set(TokenHeader, "tkn")
	h.HandleLogout(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
