package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
	"golang.org/x/oauth2"
)

// OIDCProvider authenticates users against an OpenID Connect issuer.
// The session stores the raw ID token, which is verified locally on every request.
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	cfg      *config.OIDCConfig
	db       database.DB
}

var _ Provider = (*OIDCProvider)(nil)

func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig, db database.DB) (*OIDCProvider, error) {
	p := OIDCProvider{
		cfg: cfg,
		db:  db,
	}
	var err error
	p.provider, err = oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess, "profile", "email", "groups"},
	}

	p.verifier = p.provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &p, nil
}

func (p *OIDCProvider) Name() string {
	return ProviderOIDC
}

// DisplayName is the provider name shown on the login button.
func (p *OIDCProvider) DisplayName() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return "Single Sign-On"
}

type oidcClaims struct {
	Sub    string   `json:"sub"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
}

// Resolve verifies the ID token stored in the session and refreshes it when it expired.
func (p *OIDCProvider) Resolve(ctx context.Context, tokens identity.Tokens) (*identity.User, *identity.Tokens, error) {
	var refreshed *identity.Tokens
	if tokens.Expired(time.Now()) {
		t, err := p.refresh(ctx, tokens)
		if err != nil {
			return nil, nil, err
		}
		refreshed, tokens = t, *t
	}

	user, err := p.verify(ctx, tokens.AccessToken)
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) && refreshed == nil {
		if refreshed, err = p.refresh(ctx, tokens); err != nil {
			return nil, nil, err
		}
		user, err = p.verify(ctx, refreshed.AccessToken)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", identity.ErrInvalidSession, err)
	}
	return user, refreshed, nil
}

func (p *OIDCProvider) verify(ctx context.Context, rawIDToken string) (*identity.User, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return &identity.User{ID: idToken.Subject, Email: claims.Email}, nil
}

// refresh trades the refresh token for a new ID token.
func (p *OIDCProvider) refresh(ctx context.Context, tokens identity.Tokens) (*identity.Tokens, error) {
	if tokens.RefreshToken == "" {
		return nil, identity.ErrInvalidSession
	}
	ts := p.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: tokens.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidSession, err)
	}
	t, _, err := p.tokensFromOAuth2(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidSession, err)
	}
	if t.RefreshToken == "" {
		t.RefreshToken = tokens.RefreshToken
	}
	log.Debug("refreshed oidc session")
	return t, nil
}

// tokensFromOAuth2 verifies the ID token of an oauth2 token response.
func (p *OIDCProvider) tokensFromOAuth2(ctx context.Context, token *oauth2.Token) (*identity.Tokens, *oidcClaims, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, nil, errors.New("token response has no id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, err
	}
	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, err
	}
	claims.Sub = idToken.Subject
	return &identity.Tokens{
		Provider:     ProviderOIDC,
		AccessToken:  rawIDToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    idToken.Expiry,
	}, &claims, nil
}

// SignOut is a no-op, sessions end when the cookie is cleared.
func (p *OIDCProvider) SignOut(context.Context, identity.Tokens) error {
	return nil
}
