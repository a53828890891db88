package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/wayfare/internal/api/models"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/planner"
)

func tripURL(id string) string {
	return "/trips/" + id
}

// ListTrips shows the trips of the viewer followed by all other trips.
func (h *Handler) ListTrips(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	mine, err := h.db.GetUserTrips(ctx, user.ID)
	if err != nil {
		h.serverError(c, "failed to get user trips", err)
		return
	}

	all, err := h.db.ListTrips(ctx)
	if err != nil {
		// the own trips are still useful
		log.Error("failed to list trips", "error", err)
	}

	h.render(c, http.StatusOK, "trips", h.page(c, "Trips", models.TripsPage{
		MyTrips:    mine,
		OtherTrips: models.OtherTrips(all, mine),
	}))
}

func (h *Handler) ShowTrip(c *gin.Context) {
	view, err := planner.View(c.Request.Context(), h.db, c.Param("id"), currentUser(c).ID)
	if err != nil {
		h.storeError(c, "failed to load trip", err)
		return
	}
	h.render(c, http.StatusOK, "trip", h.page(c, view.Trip.Name, models.TripPage{
		View:          view,
		PlacesEnabled: h.places.Configured(),
	}))
}

func (h *Handler) renderTripForm(c *gin.Context, status int, trip *database.Trip, form models.TripForm, formErr string) {
	activities, err := h.db.ListActivities(c.Request.Context())
	if err != nil {
		h.serverError(c, "failed to list activities", err)
		return
	}

	title, action := "New trip", "/trips"
	if trip != nil {
		title, action = "Edit "+trip.Name, tripURL(trip.ID)
	}

	p := h.page(c, title, models.TripFormPage{
		Trip:       trip,
		Form:       form,
		Activities: activities,
		Selected:   models.SelectedActivities(form),
		Action:     action,
	})
	if formErr != "" {
		p.Error = formErr
	}
	h.render(c, status, "trip_form", p)
}

func (h *Handler) NewTrip(c *gin.Context) {
	h.renderTripForm(c, http.StatusOK, nil, models.TripForm{}, "")
}

func (h *Handler) CreateTrip(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	var form models.TripForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderTripForm(c, http.StatusBadRequest, nil, form, formReadError)
		return
	}

	trip := database.Trip{OwnerID: user.ID}
	if err := models.ApplyTripForm(form, &trip); err != nil {
		h.renderTripForm(c, http.StatusBadRequest, nil, form, models.ValidationMessage(err))
		return
	}

	if err := h.db.CreateTrip(ctx, &trip); err != nil {
		h.serverError(c, "failed to create trip", err)
		return
	}
	if err := h.setTripActivities(c, trip.ID, form.Activities); err != nil {
		h.serverError(c, "failed to set trip activities", err)
		return
	}

	log.Info("trip created", "trip", trip.ID, "owner", user.ID)
	c.Redirect(http.StatusFound, tripURL(trip.ID))
}

func (h *Handler) setTripActivities(c *gin.Context, tripID string, ids []string) error {
	catalog, err := h.db.ListActivities(c.Request.Context())
	if err != nil {
		return err
	}
	return h.db.SetTripActivities(c.Request.Context(), tripID, models.CatalogActivityIDs(ids, catalog))
}

// ownedTrip loads the trip of the id parameter. Non-owners are sent to the trip page.
func (h *Handler) ownedTrip(c *gin.Context) (*database.Trip, bool) {
	trip, err := h.db.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, "failed to get trip", err)
		return nil, false
	}
	if !trip.OwnedBy(currentUser(c).ID) {
		c.Redirect(http.StatusFound, tripURL(trip.ID))
		return nil, false
	}
	return trip, true
}

func (h *Handler) EditTrip(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	activities, err := h.db.ListTripActivities(c.Request.Context(), trip.ID)
	if err != nil {
		h.serverError(c, "failed to list trip activities", err)
		return
	}
	h.renderTripForm(c, http.StatusOK, trip, models.ToTripForm(trip, activities), "")
}

func (h *Handler) UpdateTrip(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}

	var form models.TripForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderTripForm(c, http.StatusBadRequest, trip, form, formReadError)
		return
	}

	updated := *trip
	if err := models.ApplyTripForm(form, &updated); err != nil {
		h.renderTripForm(c, http.StatusBadRequest, trip, form, models.ValidationMessage(err))
		return
	}

	if err := h.db.UpdateTrip(c.Request.Context(), &updated); err != nil {
		h.storeError(c, "failed to update trip", err)
		return
	}
	if err := h.setTripActivities(c, trip.ID, form.Activities); err != nil {
		h.serverError(c, "failed to set trip activities", err)
		return
	}
	c.Redirect(http.StatusFound, tripURL(trip.ID))
}

func (h *Handler) DeleteTrip(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	if err := h.db.DeleteTrip(c.Request.Context(), trip.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
		h.serverError(c, "failed to delete trip", err)
		return
	}
	log.Info("trip deleted", "trip", trip.ID, "owner", trip.OwnerID)
	c.Redirect(http.StatusFound, "/trips?notice=Trip+deleted")
}
