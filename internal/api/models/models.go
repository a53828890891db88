package models

import (
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/planner"
	"github.com/jon4hz/wayfare/internal/sysinfo"
)

// TripForm is the trip create and edit form.
type TripForm struct {
	Name        string   `form:"name"`
	Location    string   `form:"location"`
	Description string   `form:"description"`
	StartDate   string   `form:"start_date"`
	EndDate     string   `form:"end_date"`
	Activities  []string `form:"activities"`
}

// ActivityForm is the admin activity form.
type ActivityForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	RequiresGPS bool   `form:"requires_gps"`
}

// LocationForm adds a candidate place to an activity.
type LocationForm struct {
	Name    string `form:"name"`
	Address string `form:"address"`
	MapsURL string `form:"maps_url"`
}

// ProfileForm is the profile settings form.
type ProfileForm struct {
	DisplayName string `form:"display_name"`
}

// PlacesRequest is the body of a place search.
type PlacesRequest struct {
	Query    string `json:"query"`
	Location string `json:"location"`
}

// VersionResponse is returned by the version endpoint.
type VersionResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Env       string `json:"env"`
	Node      string `json:"node"`
}

// LoginPage lists the enabled sign in methods.
type LoginPage struct {
	SupabaseEnabled bool
	AllowSignup     bool
	OIDCEnabled     bool
	OIDCName        string
}

// TripsPage holds the trips of the viewer and every other trip.
type TripsPage struct {
	MyTrips    []database.Trip
	OtherTrips []database.Trip
}

// TripPage is a single trip as seen by the viewer.
type TripPage struct {
	View          *planner.TripView
	PlacesEnabled bool
}

// TripFormPage renders the trip form. Trip is nil when creating.
type TripFormPage struct {
	Trip       *database.Trip
	Form       TripForm
	Activities []database.Activity
	Selected   map[string]bool
	Action     string
}

type ProfilePage struct {
	Profile *database.Profile
}

// DashboardPage is the admin overview. Host is nil when host information is unavailable.
type DashboardPage struct {
	Stats   *database.Stats
	Host    *sysinfo.Info
	Version string
	Commit  string
}

type UsersPage struct {
	Profiles []database.Profile
	Self     string
	Statuses []database.ProfileStatus
	Roles    []database.Role
}

type ActivitiesPage struct {
	Activities []database.Activity
}
