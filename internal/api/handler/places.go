package handler

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/models"
	"github.com/jon4hz/wayfare/pkg/places"
)

// SearchPlaces forwards a text search to the places API and passes the answer through.
func (h *Handler) SearchPlaces(c *gin.Context) {
	if !h.places.Configured() {
		log.Error("places search requested but no API key is configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Places API key is not configured"})
		return
	}

	var req models.PlacesRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	text := places.TextQuery(req.Query, req.Location)
	res, err := h.places.SearchText(c.Request.Context(), text)
	if err != nil {
		h.metrics.ObservePlacesSearch(0)
		log.Error("places search failed", "query", text, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to search places",
			"details": err.Error(),
		})
		return
	}
	h.metrics.ObservePlacesSearch(res.StatusCode)

	if !res.OK() {
		log.Warn("places API request failed", "query", text, "status", res.StatusCode)
		c.JSON(res.StatusCode, gin.H{
			"error":   "Places API request failed",
			"details": res.Details(),
		})
		return
	}

	c.Data(http.StatusOK, "application/json", res.Body)
}
