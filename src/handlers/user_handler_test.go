package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/config"
	"github.com/username/investfolio/backend/src/security"
)

func newTestUserHandler() (*UserHandler, *stubEmailService) {
	email := &stubEmailService{}
	return NewUserHandler(security.NewAuthService(config.Cfg.JWTSecret), email), email
}

func registerUser(t *testing.T, h *UserHandler, username, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RegisterUserHandler(rec, req)
	return rec
}

func loginUser(t *testing.T, h *UserHandler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LoginUserHandler(rec, req)
	return rec
}

func verifyEmail(t *testing.T, h *UserHandler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/verify-email?token="+token, nil)
	rec := httptest.NewRecorder()
	h.VerifyEmailHandler(rec, req)
	return rec
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	setupTestDB(t)
	h, email := newTestUserHandler()

	rec := registerUser(t, h, "alice", "alice@example.com", "s3cretpass")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Unverified local accounts cannot log in yet.
	rec = loginUser(t, h, "alice", "s3cretpass")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Please verify your email address before logging in", decodeError(t, rec))

	rec = verifyEmail(t, h, email.lastVerificationToken(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = loginUser(t, h, "alice", "s3cretpass")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&loginResp))
	assert.NotEmpty(t, loginResp.AccessToken)
	assert.NotEmpty(t, loginResp.RefreshToken)
	assert.Equal(t, "alice", loginResp.User.Username)
	assert.Equal(t, "alice@example.com", loginResp.User.Email)
	assert.Positive(t, loginResp.User.ID)
}

func TestLogin_WrongCredentials(t *testing.T) {
	setupTestDB(t)
	h, email := newTestUserHandler()
	registerUser(t, h, "bob", "bob@example.com", "s3cretpass")
	verifyEmail(t, h, email.lastVerificationToken(t))

	rec := loginUser(t, h, "bob", "wrongpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password", decodeError(t, rec))

	rec = loginUser(t, h, "nobody", "s3cretpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password", decodeError(t, rec))
}

func TestRegister_Validation(t *testing.T) {
	setupTestDB(t)
	h, _ := newTestUserHandler()

	rec := registerUser(t, h, "ab", "short@example.com", "s3cretpass")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = registerUser(t, h, "charlie", "not-an-email", "s3cretpass")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid email address", decodeError(t, rec))

	rec = registerUser(t, h, "charlie", "charlie@example.com", "short")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	setupTestDB(t)
	h, _ := newTestUserHandler()

	rec := registerUser(t, h, "dora", "dora@example.com", "s3cretpass")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = registerUser(t, h, "dora", "other@example.com", "s3cretpass")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already exists", decodeError(t, rec))

	rec = registerUser(t, h, "dora2", "dora@example.com", "s3cretpass")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", decodeError(t, rec))
}

func TestVerifyEmail_BadTokens(t *testing.T) {
	setupTestDB(t)
	h, _ := newTestUserHandler()

	rec := verifyEmail(t, h, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing verification token", decodeError(t, rec))

	rec = verifyEmail(t, h, "no-such-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired verification token", decodeError(t, rec))
}

func TestRefreshToken_RotatesSession(t *testing.T) {
	setupTestDB(t)
	h, email := newTestUserHandler()
	registerUser(t, h, "erin", "erin@example.com", "s3cretpass")
	verifyEmail(t, h, email.lastVerificationToken(t))

	rec := loginUser(t, h, "erin", "s3cretpass")
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&loginResp))

	refresh := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"refresh_token":"`+token+`"}`))
		rr := httptest.NewRecorder()
		h.RefreshTokenHandler(rr, req)
		return rr
	}

	rec2 := refresh(loginResp.RefreshToken)
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	var refreshResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(rec2.Body).Decode(&refreshResp))
	assert.NotEmpty(t, refreshResp.AccessToken)
	assert.NotEqual(t, loginResp.RefreshToken, refreshResp.RefreshToken)

	// The rotated-out refresh token is dead.
	rec3 := refresh(loginResp.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)
	assert.Equal(t, "Invalid or expired refresh token", decodeError(t, rec3))
}

func TestRefreshToken_MissingToken(t *testing.T) {
	setupTestDB(t)
	h, _ := newTestUserHandler()

	req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.RefreshTokenHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token is required", decodeError(t, rec))
}

func TestPasswordResetFlow(t *testing.T) {
	setupTestDB(t)
	h, email := newTestUserHandler()
	registerUser(t, h, "frank", "frank@example.com", "oldpassword")
	verifyEmail(t, h, email.lastVerificationToken(t))

	requestReset := func(address string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/request-password-reset", strings.NewReader(`{"email":"`+address+`"}`))
		rr := httptest.NewRecorder()
		h.RequestPasswordResetHandler(rr, req)
		return rr
	}

	const genericMessage = "If an account with that email exists, a password reset link has been sent."

	rec := requestReset("frank@example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, genericMessage, resp["message"])

	// Unknown addresses get the same answer, so the endpoint leaks nothing.
	rec = requestReset("stranger@example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, genericMessage, resp["message"])

	resetToken := email.lastResetToken(t)
	req := httptest.NewRequest(http.MethodPost, "/reset-password",
		strings.NewReader(`{"token":"`+resetToken+`","password":"newpassword"}`))
	rec = httptest.NewRecorder()
	h.ResetPasswordHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = loginUser(t, h, "frank", "oldpassword")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = loginUser(t, h, "frank", "newpassword")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Reset tokens are single use.
	req = httptest.NewRequest(http.MethodPost, "/reset-password",
		strings.NewReader(`{"token":"`+resetToken+`","password":"anotherpass"}`))
	rec = httptest.NewRecorder()
	h.ResetPasswordHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset token", decodeError(t, rec))
}

func TestLogout_DeletesSession(t *testing.T) {
	setupTestDB(t)
	h, email := newTestUserHandler()
	registerUser(t, h, "grace", "grace@example.com", "s3cretpass")
	verifyEmail(t, h, email.lastVerificationToken(t))

	rec := loginUser(t, h, "grace", "s3cretpass")
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&loginResp))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	rec = httptest.NewRecorder()
	h.LogoutUserHandler(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The session is gone, so the refresh token no longer works.
	req = httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"refresh_token":"`+loginResp.RefreshToken+`"}`))
	rec = httptest.NewRecorder()
	h.RefreshTokenHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
