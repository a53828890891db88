package handler

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/auth"
	"github.com/jon4hz/wayfare/internal/api/middleware"
	"github.com/jon4hz/wayfare/internal/api/models"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/gate"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/internal/viewer"
	"github.com/jon4hz/wayfare/internal/web"
	"github.com/jon4hz/wayfare/pkg/places"
)

// formReadError is shown when a posted form cannot be parsed.
const formReadError = "The form could not be read"

// Notifier tells users about changes to their account.
type Notifier interface {
	NotifyStatusChange(profile *database.Profile) error
}

type Handler struct {
	config   *config.Config
	db       database.DB
	renderer *web.Renderer
	auth     *auth.MultiProvider
	places   *places.Client
	notifier Notifier
	metrics  *middleware.Metrics
}

// New creates the page and API handlers. authProvider, notifier and metrics may be nil.
func New(cfg *config.Config, db database.DB, renderer *web.Renderer, authProvider *auth.MultiProvider, placesClient *places.Client, notifier Notifier, metrics *middleware.Metrics) *Handler {
	return &Handler{
		config:   cfg,
		db:       db,
		renderer: renderer,
		auth:     authProvider,
		places:   placesClient,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (h *Handler) page(c *gin.Context, title string, data any) *web.Page {
	ctx := c.Request.Context()
	return &web.Page{
		Title:     title,
		Viewer:    viewer.FromContext(ctx).Viewer(ctx),
		CSRFToken: middleware.CSRFToken(c),
		Error:     c.Query("error"),
		Notice:    c.Query("notice"),
		Data:      data,
	}
}

func (h *Handler) render(c *gin.Context, status int, name string, p *web.Page) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := h.renderer.Render(c.Writer, name, p); err != nil {
		log.Error("failed to render page", "page", name, "error", err)
		c.String(http.StatusInternalServerError, "internal server error")
	}
}

// NotFound renders the not found page.
func (h *Handler) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "not_found", h.page(c, "Not found", nil))
}

func (h *Handler) serverError(c *gin.Context, msg string, err error) {
	log.Error(msg, "path", c.Request.URL.Path, "error", err)
	h.render(c, http.StatusInternalServerError, "error", h.page(c, "Error", nil))
}

// storeError renders the not found page for missing rows and the error page otherwise.
func (h *Handler) storeError(c *gin.Context, msg string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		h.NotFound(c)
		return
	}
	h.serverError(c, msg, err)
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

// currentUser returns the signed in user. The gate guarantees one on every protected route.
func currentUser(c *gin.Context) *identity.User {
	user, _ := viewer.FromContext(c.Request.Context()).User(c.Request.Context())
	return user
}

func currentProfile(c *gin.Context) *database.Profile {
	profile, _ := viewer.FromContext(c.Request.Context()).Profile(c.Request.Context())
	return profile
}

func (h *Handler) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, gate.HomePath)
}

func (h *Handler) Login(c *gin.Context) {
	data := models.LoginPage{}
	if h.auth != nil {
		if sp := h.auth.Supabase(); sp != nil {
			data.SupabaseEnabled = true
			data.AllowSignup = sp.AllowSignup()
		}
		if op := h.auth.OIDC(); op != nil {
			data.OIDCEnabled = true
			data.OIDCName = op.DisplayName()
		}
	}
	h.render(c, http.StatusOK, "login", h.page(c, "Sign in", data))
}

func (h *Handler) Pending(c *gin.Context) {
	h.render(c, http.StatusOK, "pending", h.page(c, "Waiting for approval", nil))
}

// Version reports that the server is up.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, models.VersionResponse{
		Status:    "online",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Env:       h.config.Env,
		Node:      runtime.Version(),
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
