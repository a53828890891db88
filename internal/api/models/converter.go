package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jon4hz/wayfare/internal/database"
	"github.com/samber/lo"
)

// ErrInvalidForm wraps every validation error of a submitted form.
var ErrInvalidForm = errors.New("invalid form")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidForm, fmt.Sprintf(format, args...))
}

// ValidationMessage returns the user facing part of a validation error.
func ValidationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidForm.Error()+": ")
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, invalid("%s must be a date like 2026-07-01", field)
	}
	return t, nil
}

// ApplyTripForm validates f and copies it onto trip.
func ApplyTripForm(f TripForm, trip *database.Trip) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return invalid("name is required")
	}
	start, err := parseDate("start date", f.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate("end date", f.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return invalid("end date must not be before the start date")
	}

	trip.Name = name
	trip.Location = strings.TrimSpace(f.Location)
	trip.Description = strings.TrimSpace(f.Description)
	trip.StartDate = start
	trip.EndDate = end
	return nil
}

// ToTripForm fills the form for editing trip.
func ToTripForm(trip *database.Trip, activities []database.Activity) TripForm {
	return TripForm{
		Name:        trip.Name,
		Location:    trip.Location,
		Description: trip.Description,
		StartDate:   dateValue(trip.StartDate),
		EndDate:     dateValue(trip.EndDate),
		Activities:  lo.Map(activities, func(a database.Activity, _ int) string { return a.ID }),
	}
}

func dateValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// SelectedActivities returns the checked activity IDs of a form as a set.
func SelectedActivities(f TripForm) map[string]bool {
	return lo.SliceToMap(f.Activities, func(id string) (string, bool) { return id, true })
}

// CatalogActivityIDs keeps the IDs that exist in the catalog, dropping duplicates.
func CatalogActivityIDs(ids []string, catalog []database.Activity) []string {
	known := lo.SliceToMap(catalog, func(a database.Activity) (string, bool) { return a.ID, true })
	return lo.Uniq(lo.Filter(ids, func(id string, _ int) bool { return known[id] }))
}

// ApplyActivityForm validates f and copies it onto activity.
func ApplyActivityForm(f ActivityForm, activity *database.Activity) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return invalid("name is required")
	}
	activity.Name = name
	activity.Description = strings.TrimSpace(f.Description)
	activity.RequiresGPS = f.RequiresGPS
	return nil
}

// ToActivityLocation validates f and returns the location it describes.
func ToActivityLocation(f LocationForm, activityID string) (*database.ActivityLocation, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return nil, invalid("location name is required")
	}
	mapsURL := strings.TrimSpace(f.MapsURL)
	if mapsURL != "" {
		u, err := url.Parse(mapsURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid("maps link must be an http or https URL")
		}
	}
	return &database.ActivityLocation{
		ActivityID: activityID,
		Name:       name,
		Address:    strings.TrimSpace(f.Address),
		MapsURL:    mapsURL,
	}, nil
}

// OtherTrips returns the trips that are not in mine, keeping the order of all.
func OtherTrips(all, mine []database.Trip) []database.Trip {
	own := lo.SliceToMap(mine, func(t database.Trip) (string, bool) { return t.ID, true })
	return lo.Filter(all, func(t database.Trip, _ int) bool { return !own[t.ID] })
}
