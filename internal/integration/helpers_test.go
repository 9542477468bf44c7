//go:build integration_test

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/2beens/fittrack/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

type testAccount struct {
	ID       int
	Name     string
	Email    string
	Password string
	Token    string
}

// doRequest sends a request to the running server, JSON encoding the body when given.
func doRequest(ctx context.Context, t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBytes
}

func (s *IntegrationTestSuite) register(ctx context.Context) testAccount {
	t := s.T()

	account := testAccount{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 14),
	}

	resp, respBytes := doRequest(ctx, t, http.MethodPost, "/api/users/register", "", users.RegisterRequest{
		Name:     account.Name,
		Email:    account.Email,
		Password: account.Password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(respBytes))

	var registerResp users.AccountResponse
	require.NoError(t, json.Unmarshal(respBytes, &registerResp))
	require.False(t, registerResp.Verified)
	account.ID = registerResp.ID

	return account
}

// verificationToken reissues the user's email token; the plain one only ever travels by email.
func (s *IntegrationTestSuite) verificationToken(ctx context.Context, userID int, kind users.TokenKind) string {
	token, err := users.NewTokensRepo(s.pgPool).Issue(ctx, userID, kind, time.Now())
	require.NoError(s.T(), err)
	return token
}

// registerVerified registers a new account and verifies its email, returning the session token.
func (s *IntegrationTestSuite) registerVerified(ctx context.Context) testAccount {
	t := s.T()
	account := s.register(ctx)

	token := s.verificationToken(ctx, account.ID, users.TokenKindVerifyEmail)
	resp, respBytes := doRequest(ctx, t, http.MethodGet, fmt.Sprintf("/api/users/verifyEmail/%s", token), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var verifyResp users.VerifyEmailResponse
	require.NoError(t, json.Unmarshal(respBytes, &verifyResp))
	require.NotEmpty(t, verifyResp.Token)
	account.Token = verifyResp.Token

	return account
}
