package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/pkg/supabase"
	"golang.org/x/oauth2"
)

// supabaseAudience is the audience of access tokens issued to signed in users.
const supabaseAudience = "authenticated"

var errTokenExpired = errors.New("access token expired")

// SupabaseProvider authenticates users with Supabase email and password accounts.
type SupabaseProvider struct {
	client         *supabase.Client
	cfg            *config.SupabaseAuthConfig
	jwtSecret      []byte
	serverURL      string
	db             database.DB
	ensureProfiles bool
}

var _ Provider = (*SupabaseProvider)(nil)

// NewSupabaseProvider creates a new Supabase provider.
// With ensureProfiles set, a pending profile is created on first login.
func NewSupabaseProvider(client *supabase.Client, cfg *config.Config, db database.DB, ensureProfiles bool) *SupabaseProvider {
	p := &SupabaseProvider{
		client:         client,
		cfg:            cfg.Auth.Supabase,
		serverURL:      strings.TrimSuffix(cfg.ServerURL, "/"),
		db:             db,
		ensureProfiles: ensureProfiles,
	}
	if cfg.Supabase != nil && cfg.Supabase.JWTSecret != "" {
		p.jwtSecret = []byte(cfg.Supabase.JWTSecret)
	}
	return p
}

func (p *SupabaseProvider) Name() string {
	return ProviderSupabase
}

type supabaseClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Resolve verifies the access token and refreshes the session when it expired.
func (p *SupabaseProvider) Resolve(ctx context.Context, tokens identity.Tokens) (*identity.User, *identity.Tokens, error) {
	var refreshed *identity.Tokens
	if tokens.Expired(time.Now()) {
		t, err := p.refresh(ctx, tokens)
		if err != nil {
			return nil, nil, err
		}
		refreshed, tokens = t, *t
	}

	user, err := p.verify(ctx, tokens.AccessToken)
	if errors.Is(err, errTokenExpired) && refreshed == nil {
		if refreshed, err = p.refresh(ctx, tokens); err != nil {
			return nil, nil, err
		}
		user, err = p.verify(ctx, refreshed.AccessToken)
	}
	if errors.Is(err, errTokenExpired) {
		return nil, nil, identity.ErrInvalidSession
	}
	if err != nil {
		return nil, nil, err
	}
	return user, refreshed, nil
}

// verify returns the user owning accessToken. HS256 tokens are checked locally
// when a JWT secret is configured. Everything else, including tokens signed with
// asymmetric project keys, goes to the auth server.
func (p *SupabaseProvider) verify(ctx context.Context, accessToken string) (*identity.User, error) {
	if len(p.jwtSecret) == 0 || !signedWithHS256(accessToken) {
		return p.verifyRemote(ctx, accessToken)
	}

	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims,
		func(*jwt.Token) (any, error) { return p.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(supabaseAudience),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidSession, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: token has no subject", identity.ErrInvalidSession)
	}
	return &identity.User{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *SupabaseProvider) verifyRemote(ctx context.Context, accessToken string) (*identity.User, error) {
	u, err := p.client.GetUser(ctx, accessToken)
	if supabase.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden) {
		return nil, errTokenExpired
	}
	if err != nil {
		return nil, err
	}
	return &identity.User{ID: u.ID, Email: u.Email}, nil
}

// signedWithHS256 reads the alg header of a JWT without verifying it.
func signedWithHS256(accessToken string) bool {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, &supabaseClaims{})
	return err == nil && token.Method.Alg() == jwt.SigningMethodHS256.Alg()
}

func (p *SupabaseProvider) refresh(ctx context.Context, tokens identity.Tokens) (*identity.Tokens, error) {
	if tokens.RefreshToken == "" {
		return nil, identity.ErrInvalidSession
	}
	s, err := p.client.RefreshSession(ctx, tokens.RefreshToken)
	if supabase.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidSession, err)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("refreshed supabase session", "user", s.User.ID)
	t := tokensFromSession(s)
	return &t, nil
}

func tokensFromSession(s *supabase.Session) identity.Tokens {
	return identity.Tokens{
		Provider:     ProviderSupabase,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.Expiry(),
	}
}

// SignOut revokes the refresh tokens of the session.
func (p *SupabaseProvider) SignOut(ctx context.Context, tokens identity.Tokens) error {
	return p.client.SignOut(ctx, tokens.AccessToken)
}

// AllowSignup reports whether the sign up form is enabled.
func (p *SupabaseProvider) AllowSignup() bool {
	return p.cfg != nil && p.cfg.AllowSignup
}

// Login handles the email and password login form.
func (p *SupabaseProvider) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		loginRedirect(c, "error", "Email and password are required")
		return
	}

	s, err := p.client.SignInWithPassword(c.Request.Context(), email, password)
	if err != nil {
		log.Info("supabase login failed", "email", email, "error", err)
		loginRedirect(c, "error", "Invalid email or password")
		return
	}

	p.completeLogin(c, s)
}

// SignUp registers a new account. When the project requires email confirmation the
// confirmation link returns to Callback with a PKCE auth code.
func (p *SupabaseProvider) SignUp(c *gin.Context) {
	if !p.AllowSignup() {
		loginRedirect(c, "error", "Sign up is disabled")
		return
	}

	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		loginRedirect(c, "error", "Email and password are required")
		return
	}

	verifier := oauth2.GenerateVerifier()
	session := sessions.Default(c)
	session.Set(sessionPKCEVerifier, verifier)
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}

	s, err := p.client.SignUp(c.Request.Context(), email, password, oauth2.S256ChallengeFromVerifier(verifier), p.callbackURL(c))
	if err != nil {
		log.Info("supabase sign up failed", "email", email, "error", err)
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.StatusCode < http.StatusInternalServerError {
			loginRedirect(c, "error", apiErr.Message)
			return
		}
		loginRedirect(c, "error", "Sign up failed, please try again later")
		return
	}
	if s == nil {
		loginRedirect(c, "notice", "Check your email to confirm your account")
		return
	}

	p.completeLogin(c, s)
}

// Callback exchanges the auth code of an email confirmation link for a session.
func (p *SupabaseProvider) Callback(c *gin.Context) {
	if desc := c.Query("error_description"); desc != "" {
		loginRedirect(c, "error", desc)
		return
	}

	session := sessions.Default(c)
	verifier := popSessionString(session, sessionPKCEVerifier)
	code := c.Query("code")
	if code == "" || verifier == "" {
		loginRedirect(c, "error", "The confirmation link is invalid or has expired")
		return
	}

	s, err := p.client.ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		log.Info("supabase code exchange failed", "error", err)
		loginRedirect(c, "error", "The confirmation link is invalid or has expired")
		return
	}

	p.completeLogin(c, s)
}

func (p *SupabaseProvider) completeLogin(c *gin.Context, s *supabase.Session) {
	if p.ensureProfiles {
		user := &identity.User{ID: s.User.ID, Email: s.User.Email}
		if _, err := ensureProfile(c.Request.Context(), p.db, user); err != nil {
			log.Error("failed to ensure profile", "user", user.ID, "error", err)
		}
	}
	saveTokens(c, tokensFromSession(s))
}

func (p *SupabaseProvider) callbackURL(c *gin.Context) string {
	base := p.serverURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/auth/callback"
}
