package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/database/mock"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/internal/viewer"
	"github.com/jon4hz/wayfare/pkg/supabase"
	"github.com/stretchr/testify/suite"
)

type GateTestSuite struct {
	suite.Suite
	router       *gin.Engine
	db           *mock.MockDB
	resolveCalls int
}

// fakeResolve understands access tokens of the form "valid:<user>", "refresh:<user>" and "expired".
func (s *GateTestSuite) fakeResolve(_ context.Context, tokens identity.Tokens) (*identity.User, *identity.Tokens, error) {
	s.resolveCalls++
	kind, userID, _ := strings.Cut(tokens.AccessToken, ":")
	switch kind {
	case "valid":
		return &identity.User{ID: userID, Email: userID + "@example.com"}, nil, nil
	case "refresh":
		return &identity.User{ID: userID}, &identity.Tokens{
			Provider:    tokens.Provider,
			AccessToken: "valid:" + userID,
			ExpiresAt:   time.Now().Add(time.Hour),
		}, nil
	case "expired":
		return nil, nil, identity.ErrInvalidSession
	case "down":
		return nil, nil, errors.New("auth server unavailable")
	}
	return nil, nil, identity.ErrInvalidSession
}

func (s *GateTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.db = mock.NewMockDB()
	s.resolveCalls = 0

	s.router = gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	s.router.Use(sessions.Sessions("wayfare_session", store))

	// seeds the session outside the gate
	s.router.GET("/test/session/:provider/:token", func(c *gin.Context) {
		session := sessions.Default(c)
		SetTokens(session, identity.Tokens{Provider: c.Param("provider"), AccessToken: c.Param("token")})
		s.Require().NoError(session.Save())
		c.Status(http.StatusNoContent)
	})

	gated := s.router.Group("/")
	gated.Use(Gate(identity.ResolverFunc(s.fakeResolve), s.db))

	ok := func(c *gin.Context) {
		v := viewer.FromContext(c.Request.Context()).Viewer(c.Request.Context())
		id := ""
		if v.User != nil {
			id = v.User.ID
		}
		c.String(http.StatusOK, "ok "+id+" "+supabase.AccessTokenFromContext(c.Request.Context()))
	}
	for _, path := range []string{"/", "/login", "/pending", "/trips", "/trips/:id/edit", "/profile", "/auth/callback"} {
		gated.GET(path, ok)
	}
	gated.POST("/auth/logout", ok)
	gated.POST("/api/places", ok)
	gated.GET("/admin", RequireAdmin(), ok)
}

func (s *GateTestSuite) login(provider, token string) []*http.Cookie {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test/session/"+provider+"/"+token, nil))
	s.Require().Equal(http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func (s *GateTestSuite) do(method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *GateTestSuite) putProfile(id string, status database.ProfileStatus, role database.Role) {
	s.db.PutProfile(database.Profile{ID: id, Email: id + "@example.com", Status: status, Role: role})
}

var protectedRequests = [][2]string{
	{http.MethodGet, "/"},
	{http.MethodGet, "/trips"},
	{http.MethodGet, "/trips/abc/edit"},
	{http.MethodGet, "/profile"},
	{http.MethodGet, "/admin"},
	{http.MethodPost, "/api/places"},
}

func (s *GateTestSuite) TestNoSession_RedirectsToLogin() {
	for _, r := range protectedRequests {
		w := s.do(r[0], r[1], nil)
		s.Equal(http.StatusFound, w.Code, r[1])
		s.Equal("/login", w.Header().Get("Location"), r[1])
	}
	s.Zero(s.resolveCalls)
	s.Zero(s.db.GetProfileCalls)
}

func (s *GateTestSuite) TestNoSession_PublicPaths() {
	for _, path := range []string{"/login", "/pending", "/auth/callback"} {
		w := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, w.Code, path)
	}
}

func (s *GateTestSuite) TestNotApproved_RedirectsToPending() {
	for _, status := range []database.ProfileStatus{database.ProfileStatusPending, database.ProfileStatusRejected} {
		s.putProfile("user-1", status, database.RoleUser)
		cookies := s.login(ProviderSupabase, "valid:user-1")

		for _, r := range append(protectedRequests, [2]string{http.MethodGet, "/login"}) {
			w := s.do(r[0], r[1], cookies)
			s.Equal(http.StatusFound, w.Code, "%s %s", status, r[1])
			s.Equal("/pending", w.Header().Get("Location"), "%s %s", status, r[1])
		}

		w := s.do(http.MethodGet, "/pending", cookies)
		s.Equal(http.StatusOK, w.Code)
		w = s.do(http.MethodPost, "/auth/logout", cookies)
		s.Equal(http.StatusOK, w.Code)
	}
}

func (s *GateTestSuite) TestApproved() {
	s.putProfile("user-1", database.ProfileStatusApproved, database.RoleUser)
	cookies := s.login(ProviderSupabase, "valid:user-1")

	w := s.do(http.MethodGet, "/login", cookies)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/trips", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok user-1 valid:user-1", w.Body.String())
}

func (s *GateTestSuite) TestSingleLookupPerRequest() {
	s.putProfile("user-1", database.ProfileStatusApproved, database.RoleUser)
	cookies := s.login(ProviderSupabase, "valid:user-1")

	// the gate and the handler both read the viewer
	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, s.resolveCalls)
	s.Equal(1, s.db.GetProfileCalls)
}

func (s *GateTestSuite) TestMissingProfile_FailsOpen() {
	cookies := s.login(ProviderSupabase, "valid:new-user")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/login", cookies)
	s.Equal(http.StatusOK, w.Code)
}

func (s *GateTestSuite) TestProfileLookupError_FailsOpen() {
	s.db.GetProfileError = errors.New("connection refused")
	cookies := s.login(ProviderSupabase, "valid:user-1")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
}

func (s *GateTestSuite) TestExpiredSession_ClearsCookie() {
	cookies := s.login(ProviderSupabase, "expired")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login", w.Header().Get("Location"))
	s.NotEmpty(w.Result().Cookies())

	// the cleared cookie carries no tokens, so the resolver is not called again
	s.resolveCalls = 0
	w = s.do(http.MethodGet, "/trips", w.Result().Cookies())
	s.Equal(http.StatusFound, w.Code)
	s.Zero(s.resolveCalls)
}

func (s *GateTestSuite) TestResolverFailure_RedirectsWithoutClearing() {
	cookies := s.login(ProviderSupabase, "down")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login", w.Header().Get("Location"))
	s.Empty(w.Result().Cookies())
}

func (s *GateTestSuite) TestRefreshedSession_RewritesCookie() {
	s.putProfile("user-1", database.ProfileStatusApproved, database.RoleUser)
	cookies := s.login(ProviderSupabase, "refresh:user-1")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok user-1 valid:user-1", w.Body.String())
	refreshed := w.Result().Cookies()
	s.Require().NotEmpty(refreshed)

	w = s.do(http.MethodGet, "/trips", refreshed)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok user-1 valid:user-1", w.Body.String())
}

func (s *GateTestSuite) TestAccessTokenOnlyForSupabase() {
	s.putProfile("user-1", database.ProfileStatusApproved, database.RoleUser)
	cookies := s.login(ProviderOIDC, "valid:user-1")

	w := s.do(http.MethodGet, "/trips", cookies)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok user-1 ", w.Body.String())
}

func (s *GateTestSuite) TestRequireAdmin() {
	s.putProfile("user-1", database.ProfileStatusApproved, database.RoleUser)
	s.putProfile("admin-1", database.ProfileStatusApproved, database.RoleAdmin)

	w := s.do(http.MethodGet, "/admin", s.login(ProviderSupabase, "valid:user-1"))
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/trips", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/admin", s.login(ProviderSupabase, "valid:admin-1"))
	s.Equal(http.StatusOK, w.Code)
}

func TestGateTestSuite(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}
