package auth

import (
	"context"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
	"golang.org/x/oauth2"
)

func (p *OIDCProvider) Login(c *gin.Context) {
	state := uuid.New().String()
	session := sessions.Default(c)
	session.Set(sessionOIDCState, state)

	var opts []oauth2.AuthCodeOption
	if p.cfg.UsePKCE {
		verifier := oauth2.GenerateVerifier()
		session.Set(sessionOIDCVerifier, verifier)
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, p.config.AuthCodeURL(state, opts...))
}

func (p *OIDCProvider) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	state := popSessionString(session, sessionOIDCState)
	verifier := popSessionString(session, sessionOIDCVerifier)
	if state == "" || c.Query("state") != state {
		loginRedirect(c, "error", "Login expired, please try again")
		return
	}

	code := c.Query("code")
	if code == "" {
		loginRedirect(c, "error", "Login was cancelled")
		return
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	oauth2Token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		log.Warn("oidc code exchange failed", "error", err)
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	tokens, claims, err := p.tokensFromOAuth2(ctx, oauth2Token)
	if err != nil {
		log.Warn("oidc token verification failed", "error", err)
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	if err := p.syncProfile(ctx, claims); err != nil {
		log.Error("failed to sync profile", "user", claims.Sub, "error", err)
	}

	saveTokens(c, *tokens)
}

// syncProfile creates the profile of a first time user and applies the configured groups.
func (p *OIDCProvider) syncProfile(ctx context.Context, claims *oidcClaims) error {
	profile, err := ensureProfile(ctx, p.db, &identity.User{ID: claims.Sub, Email: claims.Email})
	if err != nil || profile == nil {
		return err
	}

	if profile.DisplayName == "" && claims.Name != "" {
		if err := p.db.UpdateProfileDisplayName(ctx, profile.ID, claims.Name); err != nil {
			return err
		}
	}

	isAdmin := p.cfg.AdminGroup != "" && slices.Contains(claims.Groups, p.cfg.AdminGroup)
	if isAdmin && profile.Role != database.RoleAdmin {
		if err := p.db.UpdateProfileRole(ctx, profile.ID, database.RoleAdmin); err != nil {
			return err
		}
	}

	autoApprove := isAdmin || (p.cfg.AutoApproveGroup != "" && slices.Contains(claims.Groups, p.cfg.AutoApproveGroup))
	if autoApprove && profile.Status == database.ProfileStatusPending {
		if err := p.db.UpdateProfileStatus(ctx, profile.ID, database.ProfileStatusApproved); err != nil {
			return err
		}
		log.Info("auto approved profile", "user", profile.ID, "email", profile.Email)
	}
	return nil
}
