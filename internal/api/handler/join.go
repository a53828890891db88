package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/planner"
)

// tripExists answers with a JSON error when the trip of the id parameter is missing.
func (h *Handler) tripExists(c *gin.Context) bool {
	_, err := h.db.GetTrip(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		jsonError(c, http.StatusNotFound, "Trip not found")
		return false
	case err != nil:
		log.Error("failed to get trip", "trip", c.Param("id"), "error", err)
		jsonError(c, http.StatusInternalServerError, "Failed to load trip")
		return false
	}
	return true
}

// JoinAll joins the viewer to every activity of a trip.
func (h *Handler) JoinAll(c *gin.Context) {
	if !h.tripExists(c) {
		return
	}
	tripID, user := c.Param("id"), currentUser(c)

	added, err := planner.JoinAll(c.Request.Context(), h.db, tripID, user.ID)
	h.metrics.ObserveJoinRows("join_all", added)
	if err != nil {
		log.Error("failed to join all activities", "trip", tripID, "user", user.ID, "added", added, "error", err)
		jsonError(c, http.StatusInternalServerError, "Failed to join all activities")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"added":   added,
	})
}

// LeaveAll removes the viewer from every activity of a trip.
func (h *Handler) LeaveAll(c *gin.Context) {
	if !h.tripExists(c) {
		return
	}
	tripID, user := c.Param("id"), currentUser(c)

	if err := planner.LeaveAll(c.Request.Context(), h.db, tripID, user.ID); err != nil {
		log.Error("failed to leave all activities", "trip", tripID, "user", user.ID, "error", err)
		jsonError(c, http.StatusInternalServerError, "Failed to leave all activities")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) JoinActivity(c *gin.Context) {
	if !h.tripExists(c) {
		return
	}
	tripID, activityID, user := c.Param("id"), c.Param("activityID"), currentUser(c)

	err := planner.Join(c.Request.Context(), h.db, tripID, activityID, user.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		jsonError(c, http.StatusNotFound, "Activity is not part of this trip")
		return
	case err != nil:
		log.Error("failed to join activity", "trip", tripID, "activity", activityID, "user", user.ID, "error", err)
		jsonError(c, http.StatusInternalServerError, "Failed to join activity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) LeaveActivity(c *gin.Context) {
	if !h.tripExists(c) {
		return
	}
	tripID, activityID, user := c.Param("id"), c.Param("activityID"), currentUser(c)

	if err := planner.Leave(c.Request.Context(), h.db, tripID, activityID, user.ID); err != nil {
		log.Error("failed to leave activity", "trip", tripID, "activity", activityID, "user", user.ID, "error", err)
		jsonError(c, http.StatusInternalServerError, "Failed to leave activity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
