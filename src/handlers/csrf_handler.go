package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/investfolio/backend/src/config"
	"github.com/username/investfolio/backend/src/logger"
)

// The cookie keeps its historical name from when gorilla/csrf issued it, so
// existing frontends keep working.
const csrfCookieName = "_gorilla_csrf"

// GetCSRFToken issues a signed double-submit token: the value lands both in
// a cookie and in the response so the client can echo it back in the
// X-CSRF-Token header.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := signCSRFToken(config.Cfg.CSRFAuthKey, generateRandomToken())
	logger.L.Debug("Issued CSRF token", "remoteAddr", r.RemoteAddr)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{
		"csrfToken": token,
	})
}

func generateRandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// If we can't generate random bytes, use a timestamp-based fallback.
		logger.L.Error("Failed to generate random bytes for token", "error", err)
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

func signCSRFToken(authKey []byte, payload string) string {
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(payload))
	return payload + "." + base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRFToken(authKey []byte, token string) bool {
	payload, sigPart, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	sig, err := base64.URLEncoding.DecodeString(sigPart)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(payload))
	return hmac.Equal(sig, mac.Sum(nil))
}

// CSRFMiddleware validates the double-submit pair: the X-CSRF-Token header
// must match the cookie and the token's signature must verify against the
// auth key, so a token cannot be forged by a subdomain writing cookies.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Preflight requests never carry tokens.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			// The token endpoint itself is reachable without a token. This is
			// the path as seen after StripPrefix("/api/auth").
			if r.Method == http.MethodGet && r.URL.Path == "/csrf" {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)

			if headerToken != "" && err == nil && headerToken == cookie.Value &&
				validCSRFToken(authKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF validation failed",
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"hasHeaderToken", headerToken != "",
				"hasCookie", err == nil)
			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
