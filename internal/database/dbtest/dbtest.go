// Package dbtest holds the behaviour every database.DB implementation must share.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/wayfare/internal/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) database.DB

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func tripIDs(trips []database.Trip) []string {
	return lo.Map(trips, func(t database.Trip, _ int) string { return t.ID })
}

func activityIDs(activities []database.Activity) []string {
	return lo.Map(activities, func(a database.Activity, _ int) string { return a.ID })
}

// Run runs the store contract against the implementation built by newDB.
func Run(t *testing.T, newDB Factory) {
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newDB(t)) })
	t.Run("Trips", func(t *testing.T) { testTrips(t, newDB(t)) })
	t.Run("Activities", func(t *testing.T) { testActivities(t, newDB(t)) })
	t.Run("Joins", func(t *testing.T) { testJoins(t, newDB(t)) })
	t.Run("UserTrips", func(t *testing.T) { testUserTrips(t, newDB(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newDB(t)) })
}

func testProfiles(t *testing.T, db database.DB) {
	ctx := context.Background()

	_, err := db.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	p, err := db.EnsureProfile(ctx, "user-1", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, database.ProfileStatusPending, p.Status)
	assert.Equal(t, database.RoleUser, p.Role)

	require.NoError(t, db.UpdateProfileStatus(ctx, "user-1", database.ProfileStatusApproved))
	require.NoError(t, db.UpdateProfileRole(ctx, "user-1", database.RoleAdmin))
	require.NoError(t, db.UpdateProfileDisplayName(ctx, "user-1", "Ada"))

	// an existing profile is never overwritten
	p, err = db.EnsureProfile(ctx, "user-1", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, database.ProfileStatusApproved, p.Status)
	assert.Equal(t, database.RoleAdmin, p.Role)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.Name())

	byEmail, err := db.GetProfileByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byEmail.ID)

	_, err = db.EnsureProfile(ctx, "user-2", "grace@example.com")
	require.NoError(t, err)

	profiles, err := db.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	// emails match exactly, LIKE wildcards included
	_, err = db.EnsureProfile(ctx, "user-3", "axb@example.com")
	require.NoError(t, err)
	_, err = db.EnsureProfile(ctx, "user-4", "a_b@example.com")
	require.NoError(t, err)
	byEmail, err = db.GetProfileByEmail(ctx, "a_b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-4", byEmail.ID)
	_, err = db.GetProfileByEmail(ctx, "a%b@example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.ErrorIs(t, db.UpdateProfileStatus(ctx, "missing", database.ProfileStatusApproved), database.ErrNotFound)
}

func testTrips(t *testing.T, db database.DB) {
	ctx := context.Background()

	trip := &database.Trip{
		Name:      "Lisbon",
		Location:  "Lisbon, Portugal",
		StartDate: date(2026, 6, 1),
		EndDate:   date(2026, 6, 7),
		OwnerID:   "owner",
	}
	require.NoError(t, db.CreateTrip(ctx, trip))
	require.NotEmpty(t, trip.ID)

	got, err := db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", got.Name)
	assert.Equal(t, "owner", got.OwnerID)
	assert.True(t, got.StartDate.Equal(trip.StartDate))

	got.Name = "Porto"
	got.Description = "**wine**"
	require.NoError(t, db.UpdateTrip(ctx, got))

	got, err = db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Porto", got.Name)
	assert.Equal(t, "**wine**", got.Description)
	assert.Equal(t, "owner", got.OwnerID)

	trips, err := db.ListTrips(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{trip.ID}, tripIDs(trips))

	require.NoError(t, db.DeleteTrip(ctx, trip.ID))
	_, err = db.GetTrip(ctx, trip.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, db.DeleteTrip(ctx, trip.ID), database.ErrNotFound)
	assert.ErrorIs(t, db.UpdateTrip(ctx, &database.Trip{ID: "missing", Name: "x"}), database.ErrNotFound)
}

func testActivities(t *testing.T, db database.DB) {
	ctx := context.Background()

	hike := &database.Activity{Name: "Hiking", RequiresGPS: true}
	dinner := &database.Activity{Name: "Dinner"}
	require.NoError(t, db.CreateActivity(ctx, hike))
	require.NoError(t, db.CreateActivity(ctx, dinner))

	activities, err := db.ListActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{dinner.ID, hike.ID}, activityIDs(activities))

	loc := &database.ActivityLocation{ActivityID: hike.ID, Name: "Sintra", Address: "Sintra, Portugal"}
	require.NoError(t, db.AddActivityLocation(ctx, loc))
	require.NotEmpty(t, loc.ID)
	assert.ErrorIs(t, db.AddActivityLocation(ctx, &database.ActivityLocation{ActivityID: "missing", Name: "x"}), database.ErrNotFound)

	got, err := db.GetActivity(ctx, hike.ID)
	require.NoError(t, err)
	assert.True(t, got.RequiresGPS)
	require.Len(t, got.Locations, 1)
	assert.Equal(t, "Sintra", got.Locations[0].Name)

	got.Name = "Hike"
	got.RequiresGPS = false
	require.NoError(t, db.UpdateActivity(ctx, got))
	got, err = db.GetActivity(ctx, hike.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hike", got.Name)
	assert.False(t, got.RequiresGPS)

	require.NoError(t, db.DeleteActivityLocation(ctx, hike.ID, loc.ID))
	assert.ErrorIs(t, db.DeleteActivityLocation(ctx, hike.ID, loc.ID), database.ErrNotFound)

	trip := &database.Trip{Name: "Trip", OwnerID: "owner", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 2)}
	require.NoError(t, db.CreateTrip(ctx, trip))
	require.NoError(t, db.SetTripActivities(ctx, trip.ID, []string{hike.ID, dinner.ID, hike.ID}))

	offered, err := db.ListTripActivities(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{dinner.ID, hike.ID}, activityIDs(offered))

	require.NoError(t, db.JoinActivity(ctx, database.ActivityJoin{UserID: "u", TripID: trip.ID, ActivityID: hike.ID}))
	require.NoError(t, db.SetTripActivities(ctx, trip.ID, []string{dinner.ID}))

	offered, err = db.ListTripActivities(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{dinner.ID}, activityIDs(offered))

	// joins for activities no longer offered are dropped
	joins, err := db.ListTripJoins(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, joins)

	require.NoError(t, db.DeleteActivity(ctx, dinner.ID))
	_, err = db.GetActivity(ctx, dinner.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	offered, err = db.ListTripActivities(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, offered)
}

func testJoins(t *testing.T, db database.DB) {
	ctx := context.Background()

	a := &database.Activity{Name: "A"}
	b := &database.Activity{Name: "B"}
	require.NoError(t, db.CreateActivity(ctx, a))
	require.NoError(t, db.CreateActivity(ctx, b))
	trip := &database.Trip{Name: "Trip", OwnerID: "owner", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 2)}
	require.NoError(t, db.CreateTrip(ctx, trip))
	require.NoError(t, db.SetTripActivities(ctx, trip.ID, []string{a.ID, b.ID}))

	join := database.ActivityJoin{UserID: "u1", TripID: trip.ID, ActivityID: a.ID}
	require.NoError(t, db.JoinActivity(ctx, join))
	require.NoError(t, db.JoinActivity(ctx, join)) // idempotent
	require.NoError(t, db.JoinActivity(ctx, database.ActivityJoin{UserID: "u1", TripID: trip.ID, ActivityID: b.ID}))
	require.NoError(t, db.JoinActivity(ctx, database.ActivityJoin{UserID: "u2", TripID: trip.ID, ActivityID: a.ID}))

	joins, err := db.ListTripJoins(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, joins, 3)

	require.NoError(t, db.LeaveActivity(ctx, trip.ID, b.ID, "u1"))
	require.NoError(t, db.LeaveActivity(ctx, trip.ID, b.ID, "u1")) // missing row is fine
	joins, err = db.ListTripJoins(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, joins, 2)

	require.NoError(t, db.LeaveTripActivities(ctx, trip.ID, "u1"))
	joins, err = db.ListTripJoins(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, "u2", joins[0].UserID)

	require.NoError(t, db.DeleteTrip(ctx, trip.ID))
	joins, err = db.ListTripJoins(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, joins)
}

func testUserTrips(t *testing.T, db database.DB) {
	ctx := context.Background()

	trips, err := db.GetUserTrips(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, trips)

	activity := &database.Activity{Name: "Kayak"}
	require.NoError(t, db.CreateActivity(ctx, activity))

	later := &database.Trip{Name: "Later", OwnerID: "alice", StartDate: date(2026, 9, 1), EndDate: date(2026, 9, 3)}
	sooner := &database.Trip{Name: "Sooner", OwnerID: "bob", StartDate: date(2026, 3, 1), EndDate: date(2026, 3, 3)}
	other := &database.Trip{Name: "Other", OwnerID: "bob", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 3)}
	for _, trip := range []*database.Trip{later, sooner, other} {
		require.NoError(t, db.CreateTrip(ctx, trip))
	}
	require.NoError(t, db.SetTripActivities(ctx, sooner.ID, []string{activity.ID}))
	require.NoError(t, db.JoinActivity(ctx, database.ActivityJoin{UserID: "alice", TripID: sooner.ID, ActivityID: activity.ID}))

	trips, err = db.GetUserTrips(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{sooner.ID, later.ID}, tripIDs(trips))

	trips, err = db.GetUserTrips(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID, sooner.ID}, tripIDs(trips))
}

func testStats(t *testing.T, db database.DB) {
	ctx := context.Background()

	_, err := db.EnsureProfile(ctx, "a", "a@example.com")
	require.NoError(t, err)
	_, err = db.EnsureProfile(ctx, "b", "b@example.com")
	require.NoError(t, err)
	require.NoError(t, db.UpdateProfileStatus(ctx, "b", database.ProfileStatusApproved))
	require.NoError(t, db.CreateActivity(ctx, &database.Activity{Name: "Swim"}))
	require.NoError(t, db.CreateTrip(ctx, &database.Trip{Name: "T", OwnerID: "b", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 1)}))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingProfiles)
	assert.Equal(t, int64(1), stats.ApprovedProfiles)
	assert.Equal(t, int64(2), stats.Profiles())
	assert.Equal(t, int64(1), stats.Trips)
	assert.Equal(t, int64(1), stats.Activities)
	assert.Equal(t, int64(0), stats.Joins)
}
