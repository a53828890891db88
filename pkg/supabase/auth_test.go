package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionJSON = `{
	"access_token": "access",
	"token_type": "bearer",
	"expires_in": 3600,
	"expires_at": 1760000000,
	"refresh_token": "refresh",
	"user": {"id": "user-1", "email": "ada@example.com"}
}`

func TestSignInWithPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "secret", body["password"])
		fmt.Fprint(w, sessionJSON)
	}, "")

	session, err := client.SignInWithPassword(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)
	assert.Equal(t, "refresh", session.RefreshToken)
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, time.Unix(1760000000, 0), session.Expiry())
}

func TestExchangeCodeAndRefresh(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Query().Get("grant_type") {
		case "pkce":
			assert.Equal(t, map[string]string{"auth_code": "code", "code_verifier": "verifier"}, body)
		case "refresh_token":
			assert.Equal(t, map[string]string{"refresh_token": "refresh"}, body)
		default:
			t.Errorf("unexpected grant type %q", r.URL.Query().Get("grant_type"))
		}
		fmt.Fprint(w, sessionJSON)
	}, "")

	session, err := client.ExchangeCode(context.Background(), "code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)

	session, err = client.RefreshSession(context.Background(), "refresh")
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)
}

func TestSignUp(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/signup", r.URL.Path)
			assert.Equal(t, "http://localhost:3000/auth/callback", r.URL.Query().Get("redirect_to"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "challenge", body["code_challenge"])
			assert.Equal(t, "s256", body["code_challenge_method"])
			fmt.Fprint(w, `{"id":"user-1","email":"ada@example.com"}`)
		}, "")

		session, err := client.SignUp(context.Background(), "ada@example.com", "secret", "challenge", "http://localhost:3000/auth/callback")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("auto confirmed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sessionJSON)
		}, "")

		session, err := client.SignUp(context.Background(), "ada@example.com", "secret", "", "")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "user-1", session.User.ID)
	})
}

func TestGetUserAndSignOut(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/user":
			fmt.Fprint(w, `{"id":"user-1","email":"ada@example.com"}`)
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}, "")

	user, err := client.GetUser(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	require.NoError(t, client.SignOut(context.Background(), "access"))
}

func TestGetUser_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`)
	}, "")

	_, err := client.GetUser(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized, http.StatusForbidden))
}
