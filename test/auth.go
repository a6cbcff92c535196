//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/2beens/gymtracker/internal/auth"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

const testPassword = "testpass123"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func newTestCredentials() credentials {
	return credentials{
		Email:    gofakeit.Email(),
		Password: testPassword,
		Name:     gofakeit.FirstName(),
	}
}

func (s *IntegrationTestSuite) postJSON(ctx context.Context, path, token string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(bodyJson)
	}
	return s.doRequest(ctx, http.MethodPost, path, token, reqBody)
}

func (s *IntegrationTestSuite) doRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", serverEndpoint, path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	return s.httpClient.Do(req)
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(respBytes, dst), string(respBytes))
}

func (s *IntegrationTestSuite) doSignup(ctx context.Context, t *testing.T, creds credentials) auth.User {
	resp, err := s.postJSON(ctx, "/a/signup", "", creds)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user auth.User
	decodeBody(t, resp, &user)
	require.NotEmpty(t, user.ID)
	return user
}

func (s *IntegrationTestSuite) doLogin(ctx context.Context, t *testing.T, creds credentials) string {
	resp, err := s.postJSON(ctx, "/a/login", "", credentials{Email: creds.Email, Password: creds.Password})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp auth.LoginResult
	decodeBody(t, resp, &loginResp)
	require.Equal(t, auth.LoginStatusOK, loginResp.Status)
	require.NotEmpty(t, loginResp.Token)
	return loginResp.Token
}

// newLoggedInUser signs up a fresh user and returns its id and session token.
func (s *IntegrationTestSuite) newLoggedInUser(ctx context.Context, t *testing.T) (string, string) {
	creds := newTestCredentials()
	user := s.doSignup(ctx, t, creds)
	return user.ID, s.doLogin(ctx, t, creds)
}
