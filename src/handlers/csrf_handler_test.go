package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/config"
)

func csrfProbe() (http.Handler, *bool) {
	called := false
	wrapped := CSRFMiddleware(config.Cfg.CSRFAuthKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	return wrapped, &called
}

func TestGetCSRFToken_IssuesMatchingCookieHeaderAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	GetCSRFToken(rec, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "expected the %s cookie to be set", csrfCookieName)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	headerToken := rec.Header().Get("X-CSRF-Token")
	bodyToken := extractJSONField(t, rec, "csrfToken")
	assert.Equal(t, cookie.Value, headerToken)
	assert.Equal(t, cookie.Value, bodyToken)
	assert.True(t, validCSRFToken(config.Cfg.CSRFAuthKey, headerToken))
}

func TestCSRFMiddleware_ValidPairPasses(t *testing.T) {
	handler, called := csrfProbe()
	token := signCSRFToken(config.Cfg.CSRFAuthKey, generateRandomToken())

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *called)
}

func TestCSRFMiddleware_MissingHeaderRejected(t *testing.T) {
	handler, called := csrfProbe()
	token := signCSRFToken(config.Cfg.CSRFAuthKey, generateRandomToken())

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CSRF token validation failed", strings.TrimSpace(rec.Body.String()))
	assert.False(t, *called)
}

func TestCSRFMiddleware_MismatchedCookieRejected(t *testing.T) {
	handler, called := csrfProbe()

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-CSRF-Token", signCSRFToken(config.Cfg.CSRFAuthKey, generateRandomToken()))
	req.AddCookie(&http.Cookie{
		Name:  csrfCookieName,
		Value: signCSRFToken(config.Cfg.CSRFAuthKey, generateRandomToken()),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, *called)
}

func TestCSRFMiddleware_TamperedSignatureRejected(t *testing.T) {
	handler, called := csrfProbe()

	// Sign with a different key so the payload/signature pair does not verify.
	forged := signCSRFToken([]byte("some-other-key-an-attacker-chose"), generateRandomToken())
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-CSRF-Token", forged)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: forged})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, *called)
}

func TestCSRFMiddleware_PreflightBypasses(t *testing.T) {
	handler, called := csrfProbe()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, *called)
}

func TestCSRFMiddleware_TokenEndpointBypasses(t *testing.T) {
	handler, called := csrfProbe()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *called)
}
