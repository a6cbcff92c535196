//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymtracker/internal/auth"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	creds := newTestCredentials()
	s.doSignup(ctx, t, creds)

	cases := map[string]struct {
		loginReq           credentials
		expectedStatusCode int
		expectedStatus     auth.LoginStatus
	}{
		"good creds": {
			loginReq:           credentials{Email: creds.Email, Password: creds.Password},
			expectedStatusCode: http.StatusOK,
			expectedStatus:     auth.LoginStatusOK,
		},
		"bad password": {
			loginReq:           credentials{Email: creds.Email, Password: "bad-password"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedStatus:     auth.LoginStatusInvalidCredentials,
		},
		"unknown email": {
			loginReq:           credentials{Email: "nobody@gym.com", Password: testPassword},
			expectedStatusCode: http.StatusUnauthorized,
			expectedStatus:     auth.LoginStatusInvalidCredentials,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			resp, err := s.postJSON(ctx, "/a/login", "", tc.loginReq)
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatusCode, resp.StatusCode)

			var result auth.LoginResult
			decodeBody(t, resp, &result)
			assert.Equal(t, tc.expectedStatus, result.Status)
		})
	}

	t.Run("login, then logout", func(t *testing.T) {
		token := s.doLogin(ctx, t, creds)

		resp, err := s.doRequest(ctx, http.MethodGet, "/progression", token, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, resp.Body.Close())

		resp, err = s.doRequest(ctx, http.MethodGet, "/a/logout", token, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, resp.Body.Close())

		resp, err = s.doRequest(ctx, http.MethodGet, "/progression", token, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})

	require.NoError(t, s.redisDataCleanup(ctx))
}

func (s *IntegrationTestSuite) TestLoginLockout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	creds := newTestCredentials()
	s.doSignup(ctx, t, creds)
	badCreds := credentials{Email: creds.Email, Password: "wrong-password"}

	for i := 1; i < auth.MaxAttempts; i++ {
		resp, err := s.postJSON(ctx, "/a/login", "", badCreds)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt: %d", i)

		var result auth.LoginResult
		decodeBody(t, resp, &result)
		assert.Equal(t, auth.MaxAttempts-i, result.AttemptsLeft, "attempt: %d", i)
	}

	resp, err := s.postJSON(ctx, "/a/login", "", badCreds)
	require.NoError(t, err)
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	var result auth.LoginResult
	decodeBody(t, resp, &result)
	assert.Equal(t, 30, result.LockMinutes)

	// the right password does not help while locked
	resp, err = s.postJSON(ctx, "/a/login", "", creds)
	require.NoError(t, err)
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Equal(t, auth.LoginStatusLocked, result.Status)

	require.NoError(t, s.redisDataCleanup(ctx))
}

func (s *IntegrationTestSuite) TestLoginRateLimiting() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// simulate login requests brute force attack
	require.NoError(t, s.redisDataCleanup(ctx))

	loginReq := credentials{Email: "brute@force.com", Password: "some-password"}
	for i := 1; i <= loginRateLimitPerMin+5; i++ {
		resp, err := s.postJSON(ctx, "/a/login", "", loginReq)
		require.NoError(t, err)

		if i <= loginRateLimitPerMin {
			assert.NotEqual(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
		}
		assert.NoError(t, resp.Body.Close())
	}

	require.NoError(t, s.redisDataCleanup(ctx))
}
