package auth

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/gate"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/jon4hz/wayfare/internal/viewer"
	"github.com/jon4hz/wayfare/pkg/supabase"
)

// Gate returns middleware that resolves the session, seeds the request scoped
// viewer and applies the routing decision of gate.Decide.
func Gate(idp identity.Resolver, store viewer.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		r := viewer.New(idp, store, LoadTokens(session))
		ctx := viewer.WithResolver(c.Request.Context(), r)

		path := c.Request.URL.Path
		in := gate.Input{Path: path}

		user, err := r.User(ctx)
		switch {
		case err == nil:
			in.User = user
			in.Refreshed = r.Refreshed()
			if tokens := r.Tokens(); tokens.Provider == ProviderSupabase {
				ctx = supabase.WithAccessToken(ctx, tokens.AccessToken)
			}
		case errors.Is(err, identity.ErrInvalidSession):
			log.Debug("session rejected", "path", path, "error", err)
			in.Expired = true
		case !errors.Is(err, identity.ErrNoSession):
			log.Warn("failed to resolve session", "path", path, "error", err)
		}

		if in.User != nil && gate.NeedsProfile(path) {
			profile, err := r.Profile(ctx)
			if err != nil {
				log.Warn("profile lookup failed, letting request through", "user", in.User.ID, "error", err)
			}
			in.Profile = profile
		}

		c.Request = c.Request.WithContext(ctx)

		d := gate.Decide(in)
		if len(d.Cookies) > 0 {
			for _, m := range d.Cookies {
				switch m.Kind {
				case gate.SetTokens:
					SetTokens(session, m.Tokens)
				case gate.Clear:
					ClearTokens(session)
				}
			}
			if err := session.Save(); err != nil {
				log.Error("failed to save session", "error", err)
			}
		}

		if d.Action == gate.Redirect {
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin returns middleware that sends everyone but administrators to the trips page.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, _ := viewer.FromContext(c.Request.Context()).Profile(c.Request.Context())
		if !profile.IsAdmin() || !profile.IsApproved() {
			c.Redirect(http.StatusFound, gate.HomePath)
			c.Abort()
			return
		}
		c.Next()
	}
}
