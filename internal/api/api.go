package api

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/auth"
	"github.com/jon4hz/wayfare/internal/api/handler"
	"github.com/jon4hz/wayfare/internal/api/middleware"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/gravatar"
	"github.com/jon4hz/wayfare/internal/notify/email"
	"github.com/jon4hz/wayfare/internal/static"
	"github.com/jon4hz/wayfare/internal/web"
	"github.com/jon4hz/wayfare/pkg/places"
)

const sessionName = "wayfare_session"

type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	httpServer   *http.Server
	db           database.DB
	authProvider *auth.MultiProvider
	renderer     *web.Renderer
	places       *places.Client
	notifier     *email.NotificationService
	metrics      *middleware.Metrics
}

func New(ctx context.Context, cfg *config.Config, db database.DB, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	authProvider, err := auth.NewProvider(ctx, cfg, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	avatars, err := gravatar.New(cfg.Gravatar)
	if err != nil {
		return nil, err
	}
	var renderOpts []web.Option
	if avatars != nil {
		renderOpts = append(renderOpts, web.WithAvatars(avatars.URL))
	}

	renderer, err := web.New(renderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:          cfg,
		ginEngine:    gin.New(),
		db:           db,
		authProvider: authProvider,
		renderer:     renderer,
		places:       places.New(cfg.Places),
		notifier:     email.New(cfg.Email, cfg.ServerURL),
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		s.metrics = middleware.NewMetrics()
	}
	if !s.places.Configured() {
		log.Warn("no places API key configured, place search is disabled")
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

// csrfKey returns the configured key or one derived from the session key.
func (s *Server) csrfKey() []byte {
	if s.cfg.CSRFKey != "" {
		return []byte(s.cfg.CSRFKey)
	}
	sum := sha256.Sum256([]byte("wayfare-csrf:" + s.cfg.SessionKey))
	return sum[:]
}

func (s *Server) setupRoutes() error {
	s.ginEngine.Use(gin.Recovery())
	if s.metrics != nil {
		s.ginEngine.Use(s.metrics.Instrument())
	}
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	s.setupSession()

	h := handler.New(s.cfg, s.db, s.renderer, s.authProvider, s.places, s.notifier, s.metrics)

	assets, err := static.FS()
	if err != nil {
		return err
	}
	s.ginEngine.StaticFS("/static", http.FS(assets))

	// ungated
	s.ginEngine.GET("/api/version", h.Version)
	s.ginEngine.GET("/healthz", h.Healthz)
	if s.metrics != nil {
		s.ginEngine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	gated := s.ginEngine.Group("/")
	gated.Use(auth.Gate(s.authProvider, s.db), middleware.CSRF(s.csrfKey(), s.cfg.SecureCookies))

	gated.GET("/", h.Home)
	gated.GET("/login", h.Login)
	gated.GET("/pending", h.Pending)
	gated.POST("/auth/logout", s.authProvider.Logout)

	if sp := s.authProvider.Supabase(); sp != nil {
		gated.POST("/auth/login", sp.Login)
		gated.POST("/auth/signup", sp.SignUp)
		gated.GET("/auth/callback", sp.Callback)
	}
	if op := s.authProvider.OIDC(); op != nil {
		gated.GET("/auth/oidc/login", op.Login)
		gated.GET("/auth/oidc/callback", op.Callback)
	}

	gated.GET("/trips", h.ListTrips)
	gated.GET("/trips/new", h.NewTrip)
	gated.POST("/trips", h.CreateTrip)
	gated.GET("/trips/:id", h.ShowTrip)
	gated.GET("/trips/:id/edit", h.EditTrip)
	gated.POST("/trips/:id", h.UpdateTrip)
	gated.POST("/trips/:id/delete", h.DeleteTrip)

	gated.GET("/profile", h.Profile)
	gated.POST("/profile", h.UpdateProfile)

	api := gated.Group("/api")
	api.POST("/places", h.SearchPlaces)
	api.POST("/trips/:id/join-all", h.JoinAll)
	api.POST("/trips/:id/leave-all", h.LeaveAll)
	api.POST("/trips/:id/activities/:activityID/join", h.JoinActivity)
	api.POST("/trips/:id/activities/:activityID/leave", h.LeaveActivity)

	admin := gated.Group("/admin")
	admin.Use(auth.RequireAdmin())
	admin.GET("", h.AdminDashboard)
	admin.GET("/users", h.AdminUsers)
	admin.POST("/users/:id/status", h.UpdateUserStatus)
	admin.POST("/users/:id/role", h.UpdateUserRole)
	admin.GET("/activities", h.AdminActivities)
	admin.POST("/activities", h.CreateActivity)
	admin.POST("/activities/:id", h.UpdateActivity)
	admin.POST("/activities/:id/delete", h.DeleteActivity)
	admin.POST("/activities/:id/locations", h.AddActivityLocation)
	admin.POST("/activities/:id/locations/:locationID/delete", h.DeleteActivityLocation)

	s.ginEngine.NoRoute(auth.Gate(s.authProvider, s.db), h.NotFound)
	return nil
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
