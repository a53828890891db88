package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/pkg/supabase"
)

const (
	ProviderSupabase = "supabase"
	ProviderOIDC     = "oidc"
)

// Provider is an identity provider whose tokens can be stored in the session.
type Provider interface {
	identity.Resolver

	// Name is the value stored as identity.Tokens.Provider.
	Name() string

	// SignOut revokes the session upstream where the provider supports it.
	SignOut(ctx context.Context, tokens identity.Tokens) error
}

// MultiProvider wraps the enabled providers and dispatches on the provider stored in the session.
type MultiProvider struct {
	supabaseProvider *SupabaseProvider
	oidcProvider     *OIDCProvider
	cfg              *config.AuthConfig
}

var _ identity.Resolver = (*MultiProvider)(nil)

// NewProvider creates a multi-provider for every enabled authentication method.
func NewProvider(ctx context.Context, cfg *config.Config, db database.DB) (*MultiProvider, error) {
	if cfg == nil || cfg.Auth == nil {
		return nil, fmt.Errorf("auth config is required")
	}

	mp := &MultiProvider{cfg: cfg.Auth}

	if cfg.Auth.Supabase != nil && cfg.Auth.Supabase.Enabled {
		// profiles are created by a trigger when supabase is the store
		ensureProfiles := cfg.Database.Driver != config.DatabaseDriverSupabase
		mp.supabaseProvider = NewSupabaseProvider(supabase.New(cfg.Supabase), cfg, db, ensureProfiles)
	}

	if cfg.Auth.OIDC != nil && cfg.Auth.OIDC.Enabled {
		oidcProvider, err := NewOIDCProvider(ctx, cfg.Auth.OIDC, db)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		mp.oidcProvider = oidcProvider
	}

	if mp.supabaseProvider == nil && mp.oidcProvider == nil {
		return nil, fmt.Errorf("no authentication provider is enabled")
	}

	return mp, nil
}

func (mp *MultiProvider) provider(name string) Provider {
	switch name {
	case ProviderSupabase:
		if mp.supabaseProvider != nil {
			return mp.supabaseProvider
		}
	case ProviderOIDC:
		if mp.oidcProvider != nil {
			return mp.oidcProvider
		}
	}
	return nil
}

// Resolve resolves tokens with the provider that issued them.
func (mp *MultiProvider) Resolve(ctx context.Context, tokens identity.Tokens) (*identity.User, *identity.Tokens, error) {
	if tokens.Empty() {
		return nil, nil, identity.ErrNoSession
	}
	p := mp.provider(tokens.Provider)
	if p == nil {
		log.Warn("session issued by a disabled provider", "provider", tokens.Provider)
		return nil, nil, identity.ErrInvalidSession
	}
	return p.Resolve(ctx, tokens)
}

// Supabase returns the Supabase provider or nil when it is disabled.
func (mp *MultiProvider) Supabase() *SupabaseProvider {
	return mp.supabaseProvider
}

// OIDC returns the OIDC provider or nil when it is disabled.
func (mp *MultiProvider) OIDC() *OIDCProvider {
	return mp.oidcProvider
}

// GetAuthConfig returns the authentication configuration for templates.
func (mp *MultiProvider) GetAuthConfig() *config.AuthConfig {
	return mp.cfg
}

// Helper methods for the MultiProvider.
func (mp *MultiProvider) HasSupabase() bool {
	return mp.supabaseProvider != nil
}

func (mp *MultiProvider) HasOIDC() bool {
	return mp.oidcProvider != nil
}

// Logout revokes the session upstream, clears the session cookie and redirects to the login page.
func (mp *MultiProvider) Logout(c *gin.Context) {
	session := sessions.Default(c)
	tokens := LoadTokens(session)

	if p := mp.provider(tokens.Provider); p != nil && !tokens.Empty() {
		if err := p.SignOut(c.Request.Context(), tokens); err != nil {
			log.Warn("failed to sign out upstream", "provider", tokens.Provider, "error", err)
		}
	}

	ClearTokens(session)
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

// loginRedirect sends the browser back to the login page with a message.
func loginRedirect(c *gin.Context, key, message string) {
	c.Redirect(http.StatusFound, "/login?"+url.Values{key: {message}}.Encode())
}

// saveTokens stores tokens in the session and redirects to the home page.
func saveTokens(c *gin.Context, tokens identity.Tokens) {
	session := sessions.Default(c)
	SetTokens(session, tokens)
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, "/trips")
}

// ensureProfile creates the pending profile of a user logging in for the first time.
func ensureProfile(ctx context.Context, db database.DB, user *identity.User) (*database.Profile, error) {
	profile, err := db.EnsureProfile(ctx, user.ID, user.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	return profile, nil
}
