//go:build integration_test

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2beens/fittrack/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestRegisterVerifyLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account := s.register(ctx)

	// login before verification
	resp, _ := doRequest(ctx, t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    account.Email,
		"password": account.Password,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// same email again
	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/users/register", "", users.RegisterRequest{
		Name:     account.Name,
		Email:    account.Email,
		Password: account.Password,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := s.verificationToken(ctx, account.ID, users.TokenKindVerifyEmail)
	resp, respBytes := doRequest(ctx, t, http.MethodGet, fmt.Sprintf("/api/users/verifyEmail/%s", token), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// token is single use
	resp, _ = doRequest(ctx, t, http.MethodGet, fmt.Sprintf("/api/users/verifyEmail/%s", token), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, respBytes = doRequest(ctx, t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    account.Email,
		"password": account.Password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var loginResp users.AccountResponse
	require.NoError(t, json.Unmarshal(respBytes, &loginResp))
	assert.Equal(t, account.ID, loginResp.ID)
	assert.True(t, loginResp.Verified)
	require.NotEmpty(t, loginResp.Token)

	resp, respBytes = doRequest(ctx, t, http.MethodGet, "/api/users/me", loginResp.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var me users.User
	require.NoError(t, json.Unmarshal(respBytes, &me))
	assert.Equal(t, users.NormalizeEmail(account.Email), me.Email)
	assert.Equal(t, account.Name, me.Name)
}

func (s *IntegrationTestSuite) TestCompleteRegistrationAndLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account := s.registerVerified(ctx)

	resp, respBytes := doRequest(ctx, t, http.MethodPost, "/api/users/completeRegistration", account.Token, users.CompleteRegistrationRequest{
		Phone:       "+381641234567",
		Age:         gofakeit.Number(18, 80),
		WorkoutTime: "07:30",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var workoutTime string
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT workout_time FROM users WHERE id = $1`, account.ID,
	).Scan(&workoutTime))
	assert.Equal(t, "07:30", workoutTime)

	resp, _ = doRequest(ctx, t, http.MethodGet, "/api/users/logout", account.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// session revoked
	resp, _ = doRequest(ctx, t, http.MethodGet, "/api/users/me", account.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// logging out twice is still fine
	resp, _ = doRequest(ctx, t, http.MethodGet, "/api/users/logout", account.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestForgotAndResetPassword() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account := s.registerVerified(ctx)

	// unknown emails are not disclosed
	resp, _ := doRequest(ctx, t, http.MethodPost, "/api/users/forgotPassword", "", map[string]string{
		"email": gofakeit.Email(),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/users/forgotPassword", "", map[string]string{
		"email": account.Email,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	newPassword := gofakeit.Password(true, true, true, false, false, 16)
	token := s.verificationToken(ctx, account.ID, users.TokenKindResetPassword)
	resp, respBytes := doRequest(ctx, t, http.MethodPut, fmt.Sprintf("/api/users/resetPassword/%s", token), "", map[string]string{
		"password": newPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    account.Email,
		"password": account.Password,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    account.Email,
		"password": newPassword,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
