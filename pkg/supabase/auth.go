package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is a GoTrue user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is the token set GoTrue returns on sign in, code exchange and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expiry returns the absolute expiry of the access token.
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
}

func (c *Client) authURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authHeader(accessToken string) http.Header {
	h := http.Header{}
	h.Set("apikey", c.anonKey)
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

func (c *Client) token(ctx context.Context, grantType string, body any) (*Session, error) {
	reqURL := c.authURL("token", url.Values{"grant_type": {grantType}})
	resp, err := c.doRequest(ctx, http.MethodPost, reqURL, body, c.authHeader(""))
	if err != nil {
		return nil, err
	}
	var session Session
	if err := decode(resp, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignInWithPassword signs the user in with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// ExchangeCode trades a PKCE auth code for a session.
func (c *Client) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	return c.token(ctx, "pkce", map[string]string{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	})
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// SignUp registers a new user. When email confirmation is required the returned
// session is nil and the confirmation link redirects to redirectTo with an auth code.
func (c *Client) SignUp(ctx context.Context, email, password, codeChallenge, redirectTo string) (*Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	if codeChallenge != "" {
		body["code_challenge"] = codeChallenge
		body["code_challenge_method"] = "s256"
	}
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.authURL("signup", query), body, c.authHeader(""))
	if err != nil {
		return nil, err
	}
	var session Session
	if err := decode(resp, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	return &session, nil
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.authURL("user", nil), nil, c.authHeader(accessToken))
	if err != nil {
		return nil, err
	}
	var user User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the refresh tokens of the session owning accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, c.authURL("logout", nil), nil, c.authHeader(accessToken))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}
