package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/database/mock"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/pkg/supabase"
	"github.com/stretchr/testify/suite"
)

const testJWTSecret = "super-secret-jwt-token-with-at-least-32-characters"

// fakeGoTrue is a minimal auth server. Password "secret" signs in, refresh token
// "rt-valid" refreshes and auth code "code-1" is exchanged.
type fakeGoTrue struct {
	mu           sync.Mutex
	secret       []byte
	refreshCalls int
	logoutCalls  int
	signUpBody   map[string]string
	signUpQuery  url.Values
	pkceBody     map[string]string
	userTokens   []string
}

func (f *fakeGoTrue) accessToken(sub string, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, supabaseClaims{
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{supabaseAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString(f.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (f *fakeGoTrue) session(sub, refreshToken string) map[string]any {
	exp := time.Now().Add(time.Hour)
	return map[string]any{
		"access_token":  f.accessToken(sub, exp),
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    exp.Unix(),
		"refresh_token": refreshToken,
		"user":          map[string]any{"id": sub, "email": sub + "@example.com"},
	}
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	invalidGrant := func(desc string) {
		writeJSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": desc})
	}

	var body map[string]string
	if r.Body != nil && r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch r.URL.Path {
	case "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "secret" {
				invalidGrant("Invalid login credentials")
				return
			}
			writeJSON(http.StatusOK, f.session("user-1", "rt-valid"))
		case "refresh_token":
			f.refreshCalls++
			if body["refresh_token"] != "rt-valid" {
				invalidGrant("Invalid Refresh Token: Refresh Token Not Found")
				return
			}
			writeJSON(http.StatusOK, f.session("user-1", "rt-rotated"))
		case "pkce":
			f.pkceBody = body
			if body["auth_code"] != "code-1" || body["code_verifier"] == "" {
				invalidGrant("invalid flow state, no valid flow state found")
				return
			}
			writeJSON(http.StatusOK, f.session("user-2", "rt-valid"))
		}
	case "/auth/v1/signup":
		f.signUpBody = body
		f.signUpQuery = r.URL.Query()
		if body["email"] == "taken@example.com" {
			writeJSON(http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"id": "user-3", "email": body["email"]})
	case "/auth/v1/user":
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != "opaque-token" && !slices.Contains(f.userTokens, token) {
			writeJSON(http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"id": "user-9", "email": "nine@example.com"})
	case "/auth/v1/logout":
		f.logoutCalls++
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

type SupabaseProviderTestSuite struct {
	suite.Suite
	gotrue   *fakeGoTrue
	server   *httptest.Server
	db       *mock.MockDB
	cfg      *config.Config
	provider *SupabaseProvider
	router   *gin.Engine
}

func (s *SupabaseProviderTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.gotrue = &fakeGoTrue{secret: []byte(testJWTSecret)}
	s.server = httptest.NewServer(s.gotrue)
	s.db = mock.NewMockDB()
	s.cfg = &config.Config{
		ServerURL: "https://trips.example.com/",
		Database:  &config.DatabaseConfig{Driver: config.DatabaseDriverSQLite},
		Supabase: &config.SupabaseConfig{
			URL:       s.server.URL,
			AnonKey:   "anon",
			JWTSecret: testJWTSecret,
		},
		Auth: &config.AuthConfig{
			Supabase: &config.SupabaseAuthConfig{Enabled: true, AllowSignup: true},
		},
	}
	s.provider = NewSupabaseProvider(supabase.New(s.cfg.Supabase), s.cfg, s.db, true)

	s.router = gin.New()
	s.router.Use(sessions.Sessions("wayfare_session", cookie.NewStore([]byte("test-secret"))))
	s.router.POST("/auth/supabase/login", s.provider.Login)
	s.router.POST("/auth/supabase/signup", s.provider.SignUp)
	s.router.GET("/auth/callback", s.provider.Callback)
	s.router.GET("/test/tokens", func(c *gin.Context) {
		c.JSON(http.StatusOK, LoadTokens(sessions.Default(c)))
	})
}

func (s *SupabaseProviderTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *SupabaseProviderTestSuite) postForm(path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *SupabaseProviderTestSuite) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *SupabaseProviderTestSuite) sessionTokens(cookies []*http.Cookie) identity.Tokens {
	w := s.get("/test/tokens", cookies)
	s.Require().Equal(http.StatusOK, w.Code)
	var tokens identity.Tokens
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tokens))
	return tokens
}

func (s *SupabaseProviderTestSuite) TestResolve_ValidToken() {
	tokens := identity.Tokens{
		Provider:    ProviderSupabase,
		AccessToken: s.gotrue.accessToken("user-1", time.Now().Add(time.Hour)),
	}

	user, refreshed, err := s.provider.Resolve(s.T().Context(), tokens)
	s.Require().NoError(err)
	s.Nil(refreshed)
	s.Equal("user-1", user.ID)
	s.Equal("user-1@example.com", user.Email)
	s.Zero(s.gotrue.refreshCalls)
}

func (s *SupabaseProviderTestSuite) TestResolve_ExpiredTokenIsRefreshed() {
	tokens := identity.Tokens{
		Provider:     ProviderSupabase,
		AccessToken:  s.gotrue.accessToken("user-1", time.Now().Add(-time.Minute)),
		RefreshToken: "rt-valid",
	}

	user, refreshed, err := s.provider.Resolve(s.T().Context(), tokens)
	s.Require().NoError(err)
	s.Equal("user-1", user.ID)
	s.Require().NotNil(refreshed)
	s.Equal("rt-rotated", refreshed.RefreshToken)
	s.Equal(ProviderSupabase, refreshed.Provider)
	s.True(refreshed.ExpiresAt.After(time.Now()))
	s.Equal(1, s.gotrue.refreshCalls)
}

func (s *SupabaseProviderTestSuite) TestResolve_PastExpiryRefreshesFirst() {
	tokens := identity.Tokens{
		Provider:     ProviderSupabase,
		AccessToken:  "stale",
		RefreshToken: "rt-valid",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}

	user, refreshed, err := s.provider.Resolve(s.T().Context(), tokens)
	s.Require().NoError(err)
	s.Equal("user-1", user.ID)
	s.NotNil(refreshed)
	s.Equal(1, s.gotrue.refreshCalls)
}

func (s *SupabaseProviderTestSuite) TestResolve_RefreshRejected() {
	tokens := identity.Tokens{
		Provider:     ProviderSupabase,
		AccessToken:  s.gotrue.accessToken("user-1", time.Now().Add(-time.Minute)),
		RefreshToken: "rt-revoked",
	}

	_, _, err := s.provider.Resolve(s.T().Context(), tokens)
	s.ErrorIs(err, identity.ErrInvalidSession)
}

func (s *SupabaseProviderTestSuite) TestResolve_ForeignSignature() {
	forged := (&fakeGoTrue{secret: []byte("another-secret-that-is-long-enough-too")}).accessToken("admin", time.Now().Add(time.Hour))

	_, _, err := s.provider.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderSupabase, AccessToken: forged})
	s.ErrorIs(err, identity.ErrInvalidSession)
	s.Zero(s.gotrue.refreshCalls)
}

func (s *SupabaseProviderTestSuite) TestResolve_WithoutSecretAsksAuthServer() {
	s.cfg.Supabase.JWTSecret = ""
	p := NewSupabaseProvider(supabase.New(s.cfg.Supabase), s.cfg, s.db, false)

	user, _, err := p.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderSupabase, AccessToken: "opaque-token"})
	s.Require().NoError(err)
	s.Equal("user-9", user.ID)

	_, _, err = p.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderSupabase, AccessToken: "revoked"})
	s.ErrorIs(err, identity.ErrInvalidSession)
}

func (s *SupabaseProviderTestSuite) TestResolve_AsymmetricTokenAsksAuthServer() {
	es256Token := func(sub string) string {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		s.Require().NoError(err)
		token := jwt.NewWithClaims(jwt.SigningMethodES256, supabaseClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				Audience:  jwt.ClaimStrings{supabaseAudience},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(key)
		s.Require().NoError(err)
		return signed
	}

	known := es256Token("user-9")
	s.gotrue.mu.Lock()
	s.gotrue.userTokens = append(s.gotrue.userTokens, known)
	s.gotrue.mu.Unlock()

	user, refreshed, err := s.provider.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderSupabase, AccessToken: known})
	s.Require().NoError(err)
	s.Nil(refreshed)
	s.Equal("user-9", user.ID)

	_, _, err = s.provider.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderSupabase, AccessToken: es256Token("admin")})
	s.ErrorIs(err, identity.ErrInvalidSession)
	s.Zero(s.gotrue.refreshCalls)
}

func (s *SupabaseProviderTestSuite) TestLogin() {
	w := s.postForm("/auth/supabase/login", url.Values{"email": {"user-1@example.com"}, "password": {"secret"}}, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/trips", w.Header().Get("Location"))

	tokens := s.sessionTokens(w.Result().Cookies())
	s.Equal(ProviderSupabase, tokens.Provider)
	s.Equal("rt-valid", tokens.RefreshToken)
	s.NotEmpty(tokens.AccessToken)

	profile, err := s.db.GetProfile(s.T().Context(), "user-1")
	s.Require().NoError(err)
	s.Equal(database.ProfileStatusPending, profile.Status)
}

func (s *SupabaseProviderTestSuite) TestLogin_InvalidCredentials() {
	w := s.postForm("/auth/supabase/login", url.Values{"email": {"user-1@example.com"}, "password": {"wrong"}}, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?error=Invalid+email+or+password", w.Header().Get("Location"))

	w = s.postForm("/auth/supabase/login", url.Values{"email": {" "}}, nil)
	s.Equal("/login?error=Email+and+password+are+required", w.Header().Get("Location"))
}

func (s *SupabaseProviderTestSuite) TestSignUp_ConfirmationThenCallback() {
	w := s.postForm("/auth/supabase/signup", url.Values{"email": {"new@example.com"}, "password": {"secret"}}, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?notice=Check+your+email+to+confirm+your+account", w.Header().Get("Location"))

	s.Equal("s256", s.gotrue.signUpBody["code_challenge_method"])
	s.NotEmpty(s.gotrue.signUpBody["code_challenge"])
	s.Equal("https://trips.example.com/auth/callback", s.gotrue.signUpQuery.Get("redirect_to"))

	cookies := w.Result().Cookies()
	w = s.get("/auth/callback?code=code-1", cookies)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/trips", w.Header().Get("Location"))
	s.NotEmpty(s.gotrue.pkceBody["code_verifier"])

	tokens := s.sessionTokens(w.Result().Cookies())
	s.Equal(ProviderSupabase, tokens.Provider)

	_, err := s.db.GetProfile(s.T().Context(), "user-2")
	s.NoError(err)
}

func (s *SupabaseProviderTestSuite) TestSignUp_Rejected() {
	w := s.postForm("/auth/supabase/signup", url.Values{"email": {"taken@example.com"}, "password": {"secret"}}, nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?error=User+already+registered", w.Header().Get("Location"))
}

func (s *SupabaseProviderTestSuite) TestSignUp_Disabled() {
	s.cfg.Auth.Supabase.AllowSignup = false

	w := s.postForm("/auth/supabase/signup", url.Values{"email": {"new@example.com"}, "password": {"secret"}}, nil)
	s.Equal("/login?error=Sign+up+is+disabled", w.Header().Get("Location"))
	s.Nil(s.gotrue.signUpBody)
}

func (s *SupabaseProviderTestSuite) TestCallback_WithoutVerifier() {
	w := s.get("/auth/callback?code=code-1", nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?error=The+confirmation+link+is+invalid+or+has+expired", w.Header().Get("Location"))
	s.Nil(s.gotrue.pkceBody)
}

func (s *SupabaseProviderTestSuite) TestCallback_ErrorDescription() {
	w := s.get("/auth/callback?error=access_denied&error_description=Email+link+is+invalid+or+has+expired", nil)
	s.Equal("/login?error=Email+link+is+invalid+or+has+expired", w.Header().Get("Location"))
}

func (s *SupabaseProviderTestSuite) TestLogout() {
	mp := &MultiProvider{supabaseProvider: s.provider, cfg: s.cfg.Auth}
	s.router.POST("/auth/logout", mp.Logout)

	w := s.postForm("/auth/supabase/login", url.Values{"email": {"user-1@example.com"}, "password": {"secret"}}, nil)
	w = s.postForm("/auth/logout", nil, w.Result().Cookies())
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login", w.Header().Get("Location"))
	s.Equal(1, s.gotrue.logoutCalls)

	s.True(s.sessionTokens(w.Result().Cookies()).Empty())
}

func (s *SupabaseProviderTestSuite) TestMultiProvider_Resolve() {
	mp := &MultiProvider{supabaseProvider: s.provider, cfg: s.cfg.Auth}

	_, _, err := mp.Resolve(s.T().Context(), identity.Tokens{})
	s.ErrorIs(err, identity.ErrNoSession)

	_, _, err = mp.Resolve(s.T().Context(), identity.Tokens{Provider: ProviderOIDC, AccessToken: "x"})
	s.ErrorIs(err, identity.ErrInvalidSession)

	user, _, err := mp.Resolve(s.T().Context(), identity.Tokens{
		Provider:    ProviderSupabase,
		AccessToken: s.gotrue.accessToken("user-1", time.Now().Add(time.Hour)),
	})
	s.Require().NoError(err)
	s.Equal("user-1", user.ID)
}

func TestSupabaseProviderTestSuite(t *testing.T) {
	suite.Run(t, new(SupabaseProviderTestSuite))
}
