package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/models"
	"github.com/jon4hz/wayfare/internal/database"
)

const maxDisplayNameLength = 80

func (h *Handler) Profile(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		user := currentUser(c)
		profile = &database.Profile{ID: user.ID, Email: user.Email, Status: database.ProfileStatusPending, Role: database.RoleUser}
	}
	h.render(c, http.StatusOK, "profile", h.page(c, "Profile", models.ProfilePage{Profile: profile}))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	var form models.ProfileForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWithError(c, "/profile", formReadError)
		return
	}
	name := strings.TrimSpace(form.DisplayName)
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		c.Redirect(http.StatusFound, "/profile?error=Display+name+is+too+long")
		return
	}

	if _, err := h.db.EnsureProfile(ctx, user.ID, user.Email); err != nil {
		h.serverError(c, "failed to ensure profile", err)
		return
	}
	if err := h.db.UpdateProfileDisplayName(ctx, user.ID, name); err != nil {
		h.storeError(c, "failed to update display name", err)
		return
	}
	c.Redirect(http.StatusFound, "/profile?notice=Profile+saved")
}
