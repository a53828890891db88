package handler

import (
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/models"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/sysinfo"
	"github.com/jon4hz/wayfare/internal/version"
)

func redirectWithError(c *gin.Context, path, msg string) {
	c.Redirect(http.StatusFound, path+"?error="+url.QueryEscape(msg))
}

func (h *Handler) diskPath() string {
	if db := h.config.Database; db != nil && db.Driver == config.DatabaseDriverSQLite && db.Path != "" {
		return filepath.Dir(db.Path)
	}
	return "/"
}

// AdminDashboard shows store statistics and host information.
func (h *Handler) AdminDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.db.Stats(ctx)
	if err != nil {
		h.serverError(c, "failed to get stats", err)
		return
	}

	host, err := sysinfo.Collect(ctx, h.diskPath())
	if err != nil {
		log.Warn("failed to collect host information", "error", err)
	}

	h.render(c, http.StatusOK, "admin_dashboard", h.page(c, "Admin", models.DashboardPage{
		Stats:   stats,
		Host:    host,
		Version: version.Version,
		Commit:  version.Commit,
	}))
}

func (h *Handler) AdminUsers(c *gin.Context) {
	profiles, err := h.db.ListProfiles(c.Request.Context())
	if err != nil {
		h.serverError(c, "failed to list profiles", err)
		return
	}
	h.render(c, http.StatusOK, "admin_users", h.page(c, "Users", models.UsersPage{
		Profiles: profiles,
		Self:     currentUser(c).ID,
		Statuses: []database.ProfileStatus{database.ProfileStatusPending, database.ProfileStatusApproved, database.ProfileStatusRejected},
		Roles:    []database.Role{database.RoleUser, database.RoleAdmin},
	}))
}

// UpdateUserStatus approves or rejects a user and notifies them by email.
func (h *Handler) UpdateUserStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")
	status := database.ProfileStatus(c.PostForm("status"))

	if !status.Valid() {
		redirectWithError(c, "/admin/users", "Unknown status")
		return
	}
	if userID == currentUser(c).ID {
		redirectWithError(c, "/admin/users", "You cannot change your own status")
		return
	}

	profile, err := h.db.GetProfile(ctx, userID)
	if err != nil {
		h.storeError(c, "failed to get profile", err)
		return
	}
	if profile.Status == status {
		c.Redirect(http.StatusFound, "/admin/users")
		return
	}

	if err := h.db.UpdateProfileStatus(ctx, userID, status); err != nil {
		h.storeError(c, "failed to update profile status", err)
		return
	}
	log.Info("user status changed", "user", userID, "from", profile.Status, "to", status, "by", currentUser(c).ID)

	profile.Status = status
	if h.notifier != nil {
		if err := h.notifier.NotifyStatusChange(profile); err != nil {
			log.Error("failed to send status notification", "user", userID, "error", err)
		}
	}
	c.Redirect(http.StatusFound, "/admin/users?notice="+url.QueryEscape("Status of "+profile.Name()+" set to "+string(status)))
}

func (h *Handler) UpdateUserRole(c *gin.Context) {
	userID := c.Param("id")
	role := database.Role(c.PostForm("role"))

	if !role.Valid() {
		redirectWithError(c, "/admin/users", "Unknown role")
		return
	}
	if userID == currentUser(c).ID {
		redirectWithError(c, "/admin/users", "You cannot change your own role")
		return
	}

	if err := h.db.UpdateProfileRole(c.Request.Context(), userID, role); err != nil {
		h.storeError(c, "failed to update profile role", err)
		return
	}
	log.Info("user role changed", "user", userID, "role", role, "by", currentUser(c).ID)
	c.Redirect(http.StatusFound, "/admin/users")
}

func (h *Handler) AdminActivities(c *gin.Context) {
	activities, err := h.db.ListActivities(c.Request.Context())
	if err != nil {
		h.serverError(c, "failed to list activities", err)
		return
	}
	h.render(c, http.StatusOK, "admin_activities", h.page(c, "Activities", models.ActivitiesPage{
		Activities: activities,
	}))
}

func (h *Handler) CreateActivity(c *gin.Context) {
	var form models.ActivityForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWithError(c, "/admin/activities", formReadError)
		return
	}

	var activity database.Activity
	if err := models.ApplyActivityForm(form, &activity); err != nil {
		redirectWithError(c, "/admin/activities", models.ValidationMessage(err))
		return
	}
	if err := h.db.CreateActivity(c.Request.Context(), &activity); err != nil {
		h.serverError(c, "failed to create activity", err)
		return
	}
	c.Redirect(http.StatusFound, "/admin/activities")
}

func (h *Handler) UpdateActivity(c *gin.Context) {
	ctx := c.Request.Context()

	activity, err := h.db.GetActivity(ctx, c.Param("id"))
	if err != nil {
		h.storeError(c, "failed to get activity", err)
		return
	}

	var form models.ActivityForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWithError(c, "/admin/activities", formReadError)
		return
	}
	if err := models.ApplyActivityForm(form, activity); err != nil {
		redirectWithError(c, "/admin/activities", models.ValidationMessage(err))
		return
	}
	if err := h.db.UpdateActivity(ctx, activity); err != nil {
		h.storeError(c, "failed to update activity", err)
		return
	}
	c.Redirect(http.StatusFound, "/admin/activities")
}

func (h *Handler) DeleteActivity(c *gin.Context) {
	if err := h.db.DeleteActivity(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, "failed to delete activity", err)
		return
	}
	c.Redirect(http.StatusFound, "/admin/activities")
}

func (h *Handler) AddActivityLocation(c *gin.Context) {
	ctx := c.Request.Context()
	activityID := c.Param("id")

	if _, err := h.db.GetActivity(ctx, activityID); err != nil {
		h.storeError(c, "failed to get activity", err)
		return
	}

	var form models.LocationForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWithError(c, "/admin/activities", formReadError)
		return
	}
	location, err := models.ToActivityLocation(form, activityID)
	if err != nil {
		redirectWithError(c, "/admin/activities", models.ValidationMessage(err))
		return
	}
	if err := h.db.AddActivityLocation(ctx, location); err != nil {
		h.storeError(c, "failed to add activity location", err)
		return
	}
	c.Redirect(http.StatusFound, "/admin/activities")
}

func (h *Handler) DeleteActivityLocation(c *gin.Context) {
	if err := h.db.DeleteActivityLocation(c.Request.Context(), c.Param("id"), c.Param("locationID")); err != nil {
		h.storeError(c, "failed to delete activity location", err)
		return
	}
	c.Redirect(http.StatusFound, "/admin/activities")
}
