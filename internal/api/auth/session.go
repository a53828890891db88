package auth

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/jon4hz/wayfare/internal/identity"
)

const (
	sessionProvider     = "provider"
	sessionAccessToken  = "access_token"
	sessionRefreshToken = "refresh_token"
	sessionExpiresAt    = "expires_at"

	sessionOIDCState    = "oidc_state"
	sessionOIDCVerifier = "oidc_verifier"
	sessionPKCEVerifier = "pkce_verifier"
)

// LoadTokens reads the identity tokens from the session.
func LoadTokens(session sessions.Session) identity.Tokens {
	tokens := identity.Tokens{
		Provider:     getSessionString(session, sessionProvider),
		AccessToken:  getSessionString(session, sessionAccessToken),
		RefreshToken: getSessionString(session, sessionRefreshToken),
	}
	if exp := getSessionInt64(session, sessionExpiresAt); exp > 0 {
		tokens.ExpiresAt = time.Unix(exp, 0)
	}
	return tokens
}

// SetTokens writes tokens to the session. The caller saves the session.
func SetTokens(session sessions.Session, tokens identity.Tokens) {
	session.Set(sessionProvider, tokens.Provider)
	session.Set(sessionAccessToken, tokens.AccessToken)
	session.Set(sessionRefreshToken, tokens.RefreshToken)
	if tokens.ExpiresAt.IsZero() {
		session.Delete(sessionExpiresAt)
	} else {
		session.Set(sessionExpiresAt, tokens.ExpiresAt.Unix())
	}
}

// ClearTokens removes the identity tokens from the session. The caller saves the session.
func ClearTokens(session sessions.Session) {
	for _, key := range []string{sessionProvider, sessionAccessToken, sessionRefreshToken, sessionExpiresAt} {
		session.Delete(key)
	}
}

// popSessionString returns the value stored under key and removes it.
func popSessionString(session sessions.Session, key string) string {
	v := getSessionString(session, key)
	session.Delete(key)
	return v
}

// Helper functions to safely get session values.
func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getSessionInt64(session sessions.Session, key string) int64 {
	if val := session.Get(key); val != nil {
		if i, ok := val.(int64); ok {
			return i
		}
	}
	return 0
}
