package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/wayfare/pkg/supabase"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	tableProfiles          = "profiles"
	tableTrips             = "trips"
	tableActivities        = "activities"
	tableActivityLocations = "activity_locations"
	tableTripActivities    = "trip_activities"
	tableUserActivities    = "user_activities"

	dateLayout = "2006-01-02"
)

var _ DB = (*SupabaseStore)(nil)

// SupabaseStore implements DB on top of the Supabase REST API.
// Requests run with the access token found in the context, so row level security applies
// unless the client was configured with a service role key.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabase creates a store backed by client.
func NewSupabase(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// Close is a no-op, the REST client holds no connections worth closing.
func (s *SupabaseStore) Close() error {
	return nil
}

// restNotFound maps empty results and malformed ids to ErrNotFound.
func restNotFound(err error) error {
	if errors.Is(err, supabase.ErrNoRows) {
		return ErrNotFound
	}
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) && apiErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}

type tripRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartDate   *string    `json:"start_date"`
	EndDate     *string    `json:"end_date"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func formatDate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateLayout, *s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		return t
	}
	log.Warn("unparseable date from supabase", "value", *s)
	return time.Time{}
}

func newTripRow(t *Trip) tripRow {
	return tripRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Location:    t.Location,
		StartDate:   formatDate(t.StartDate),
		EndDate:     formatDate(t.EndDate),
		OwnerID:     t.OwnerID,
	}
}

func (r tripRow) trip() Trip {
	return Trip{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		StartDate:   parseDate(r.StartDate),
		EndDate:     parseDate(r.EndDate),
		OwnerID:     r.OwnerID,
		CreatedAt:   lo.FromPtr(r.CreatedAt),
		UpdatedAt:   lo.FromPtr(r.UpdatedAt),
	}
}

func trips(rows []tripRow) []Trip {
	return lo.Map(rows, func(r tripRow, _ int) Trip { return r.trip() })
}

type activityRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	RequiresGPS bool       `json:"requires_gps"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (r activityRow) activity() Activity {
	return Activity{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		RequiresGPS: r.RequiresGPS,
		CreatedAt:   lo.FromPtr(r.CreatedAt),
		UpdatedAt:   lo.FromPtr(r.UpdatedAt),
	}
}

type locationRow struct {
	ID         string     `json:"id"`
	ActivityID string     `json:"activity_id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	MapsURL    string     `json:"maps_url"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (r locationRow) location() ActivityLocation {
	return ActivityLocation{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		Name:       r.Name,
		Address:    r.Address,
		MapsURL:    r.MapsURL,
		CreatedAt:  lo.FromPtr(r.CreatedAt),
	}
}

// Profiles

func (s *SupabaseStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := s.client.From(tableProfiles).Eq("id", userID).First(ctx, &profile); err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get profile", "user", userID, "error", err)
		}
		return nil, err
	}
	return &profile, nil
}

func (s *SupabaseStore) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	var profiles []Profile
	if err := s.client.From(tableProfiles).ILike("email", supabase.EscapeLike(email)).Find(ctx, &profiles); err != nil {
		log.Error("failed to get profile by email", "error", err)
		return nil, err
	}
	profile, ok := lo.Find(profiles, func(p Profile) bool {
		return strings.EqualFold(p.Email, email)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

// EnsureProfile inserts a pending profile for the user unless one exists.
func (s *SupabaseStore) EnsureProfile(ctx context.Context, userID, email string) (*Profile, error) {
	row := map[string]any{
		"id":     userID,
		"email":  email,
		"status": ProfileStatusPending,
		"role":   RoleUser,
	}
	if err := s.client.From(tableProfiles).Upsert(ctx, row, "id", true); err != nil {
		log.Error("failed to create profile", "user", userID, "error", err)
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *SupabaseStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if err := s.client.From(tableProfiles).Order("created_at", false).Find(ctx, &profiles); err != nil {
		log.Error("failed to list profiles", "error", err)
		return nil, err
	}
	return profiles, nil
}

func (s *SupabaseStore) UpdateProfileStatus(ctx context.Context, userID string, status ProfileStatus) error {
	return s.updateProfile(ctx, userID, "status", status)
}

func (s *SupabaseStore) UpdateProfileRole(ctx context.Context, userID string, role Role) error {
	return s.updateProfile(ctx, userID, "role", role)
}

func (s *SupabaseStore) UpdateProfileDisplayName(ctx context.Context, userID, displayName string) error {
	return s.updateProfile(ctx, userID, "display_name", displayName)
}

func (s *SupabaseStore) updateProfile(ctx context.Context, userID, column string, value any) error {
	var updated []Profile
	body := map[string]any{column: value, "updated_at": time.Now().UTC()}
	if err := s.client.From(tableProfiles).Eq("id", userID).Update(ctx, body, &updated); err != nil {
		log.Error("failed to update profile", "user", userID, "column", column, "error", err)
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// Trips

func (s *SupabaseStore) CreateTrip(ctx context.Context, trip *Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	var created []tripRow
	if err := s.client.From(tableTrips).Insert(ctx, newTripRow(trip), &created); err != nil {
		log.Error("failed to create trip", "error", err)
		return err
	}
	if len(created) > 0 {
		*trip = created[0].trip()
	}
	return nil
}

func (s *SupabaseStore) GetTrip(ctx context.Context, id string) (*Trip, error) {
	var row tripRow
	if err := s.client.From(tableTrips).Eq("id", id).First(ctx, &row); err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get trip", "trip", id, "error", err)
		}
		return nil, err
	}
	trip := row.trip()
	return &trip, nil
}

func (s *SupabaseStore) UpdateTrip(ctx context.Context, trip *Trip) error {
	body := map[string]any{
		"name":        trip.Name,
		"description": trip.Description,
		"location":    trip.Location,
		"start_date":  formatDate(trip.StartDate),
		"end_date":    formatDate(trip.EndDate),
		"updated_at":  time.Now().UTC(),
	}
	var updated []tripRow
	if err := s.client.From(tableTrips).Eq("id", trip.ID).Update(ctx, body, &updated); err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to update trip", "trip", trip.ID, "error", err)
		}
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrip removes the trip together with its activity links and joins.
func (s *SupabaseStore) DeleteTrip(ctx context.Context, id string) error {
	err := s.deleteWhere(ctx, []string{tableUserActivities, tableTripActivities}, "trip_id", id, tableTrips)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to delete trip", "trip", id, "error", err)
	}
	return err
}

// deleteWhere deletes the rows of children where column = id, then the row of parent with that id.
func (s *SupabaseStore) deleteWhere(ctx context.Context, children []string, column, id, parent string) error {
	for _, table := range children {
		if err := s.client.From(table).Eq(column, id).Delete(ctx, nil); err != nil {
			return restNotFound(err)
		}
	}
	var deleted []map[string]any
	if err := s.client.From(parent).Eq("id", id).Delete(ctx, &deleted); err != nil {
		return restNotFound(err)
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) ListTrips(ctx context.Context) ([]Trip, error) {
	var rows []tripRow
	err := s.client.From(tableTrips).
		Order("start_date", true).
		Order("created_at", true).
		Find(ctx, &rows)
	if err != nil {
		log.Error("failed to list trips", "error", err)
		return nil, err
	}
	return trips(rows), nil
}

// GetUserTrips calls the get_user_trips function of the project.
func (s *SupabaseStore) GetUserTrips(ctx context.Context, userID string) ([]Trip, error) {
	var rows []tripRow
	if err := s.client.RPC(ctx, "get_user_trips", map[string]string{"query_user_id": userID}, &rows); err != nil {
		log.Error("failed to get user trips", "user", userID, "error", err)
		return nil, err
	}
	return trips(rows), nil
}

// Activities

func (s *SupabaseStore) CreateActivity(ctx context.Context, activity *Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	row := activityRow{
		ID:          activity.ID,
		Name:        activity.Name,
		Description: activity.Description,
		RequiresGPS: activity.RequiresGPS,
	}
	var created []activityRow
	if err := s.client.From(tableActivities).Insert(ctx, row, &created); err != nil {
		log.Error("failed to create activity", "error", err)
		return err
	}
	if len(created) > 0 {
		activity.CreatedAt = lo.FromPtr(created[0].CreatedAt)
		activity.UpdatedAt = lo.FromPtr(created[0].UpdatedAt)
	}
	return nil
}

func (s *SupabaseStore) GetActivity(ctx context.Context, id string) (*Activity, error) {
	var row activityRow
	if err := s.client.From(tableActivities).Eq("id", id).First(ctx, &row); err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get activity", "activity", id, "error", err)
		}
		return nil, err
	}
	activities, err := s.withLocations(ctx, []activityRow{row})
	if err != nil {
		return nil, err
	}
	return &activities[0], nil
}

func (s *SupabaseStore) UpdateActivity(ctx context.Context, activity *Activity) error {
	body := map[string]any{
		"name":         activity.Name,
		"description":  activity.Description,
		"requires_gps": activity.RequiresGPS,
		"updated_at":   time.Now().UTC(),
	}
	var updated []activityRow
	if err := s.client.From(tableActivities).Eq("id", activity.ID).Update(ctx, body, &updated); err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to update activity", "activity", activity.ID, "error", err)
		}
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActivity removes the activity, its locations, trip links and joins.
func (s *SupabaseStore) DeleteActivity(ctx context.Context, id string) error {
	children := []string{tableUserActivities, tableTripActivities, tableActivityLocations}
	err := s.deleteWhere(ctx, children, "activity_id", id, tableActivities)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to delete activity", "activity", id, "error", err)
	}
	return err
}

func (s *SupabaseStore) ListActivities(ctx context.Context) ([]Activity, error) {
	var rows []activityRow
	if err := s.client.From(tableActivities).Order("name", true).Find(ctx, &rows); err != nil {
		log.Error("failed to list activities", "error", err)
		return nil, err
	}
	return s.withLocations(ctx, rows)
}

// withLocations converts rows and attaches their locations ordered by creation.
func (s *SupabaseStore) withLocations(ctx context.Context, rows []activityRow) ([]Activity, error) {
	activities := lo.Map(rows, func(r activityRow, _ int) Activity { return r.activity() })
	if len(activities) == 0 {
		return activities, nil
	}

	ids := lo.Map(activities, func(a Activity, _ int) string { return a.ID })
	var locations []locationRow
	err := s.client.From(tableActivityLocations).
		In("activity_id", ids).
		Order("created_at", true).
		Find(ctx, &locations)
	if err != nil {
		log.Error("failed to list activity locations", "error", err)
		return nil, err
	}

	byActivity := lo.GroupBy(locations, func(l locationRow) string { return l.ActivityID })
	for i := range activities {
		activities[i].Locations = lo.Map(byActivity[activities[i].ID], func(l locationRow, _ int) ActivityLocation {
			return l.location()
		})
	}
	return activities, nil
}

func (s *SupabaseStore) AddActivityLocation(ctx context.Context, location *ActivityLocation) error {
	var exists activityRow
	if err := s.client.From(tableActivities).Select("id").Eq("id", location.ActivityID).First(ctx, &exists); err != nil {
		return restNotFound(err)
	}
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	row := locationRow{
		ID:         location.ID,
		ActivityID: location.ActivityID,
		Name:       location.Name,
		Address:    location.Address,
		MapsURL:    location.MapsURL,
	}
	if err := s.client.From(tableActivityLocations).Insert(ctx, row, nil); err != nil {
		log.Error("failed to create activity location", "activity", location.ActivityID, "error", err)
		return err
	}
	return nil
}

func (s *SupabaseStore) DeleteActivityLocation(ctx context.Context, activityID, locationID string) error {
	var deleted []locationRow
	err := s.client.From(tableActivityLocations).
		Eq("id", locationID).
		Eq("activity_id", activityID).
		Delete(ctx, &deleted)
	if err != nil {
		err = restNotFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to delete activity location", "location", locationID, "error", err)
		}
		return err
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

// Trip activities

// SetTripActivities makes activityIDs the exact set of activities offered by the trip.
// Joins for activities that are no longer offered are removed.
func (s *SupabaseStore) SetTripActivities(ctx context.Context, tripID string, activityIDs []string) error {
	activityIDs = lo.Uniq(activityIDs)
	for _, table := range []string{tableTripActivities, tableUserActivities} {
		q := s.client.From(table).Eq("trip_id", tripID)
		if len(activityIDs) > 0 {
			q = q.NotIn("activity_id", activityIDs)
		}
		if err := q.Delete(ctx, nil); err != nil {
			log.Error("failed to set trip activities", "trip", tripID, "error", err)
			return err
		}
	}
	if len(activityIDs) == 0 {
		return nil
	}

	links := lo.Map(activityIDs, func(id string, _ int) map[string]string {
		return map[string]string{"trip_id": tripID, "activity_id": id}
	})
	if err := s.client.From(tableTripActivities).Upsert(ctx, links, "trip_id,activity_id", true); err != nil {
		log.Error("failed to set trip activities", "trip", tripID, "error", err)
		return err
	}
	return nil
}

func (s *SupabaseStore) ListTripActivities(ctx context.Context, tripID string) ([]Activity, error) {
	var links []TripActivity
	if err := s.client.From(tableTripActivities).Select("trip_id,activity_id").Eq("trip_id", tripID).Find(ctx, &links); err != nil {
		log.Error("failed to list trip activities", "trip", tripID, "error", err)
		return nil, err
	}
	if len(links) == 0 {
		return []Activity{}, nil
	}

	ids := lo.Map(links, func(l TripActivity, _ int) string { return l.ActivityID })
	var rows []activityRow
	if err := s.client.From(tableActivities).In("id", ids).Order("name", true).Find(ctx, &rows); err != nil {
		log.Error("failed to list trip activities", "trip", tripID, "error", err)
		return nil, err
	}
	return s.withLocations(ctx, rows)
}

// Joins

func (s *SupabaseStore) ListTripJoins(ctx context.Context, tripID string) ([]ActivityJoin, error) {
	var joins []ActivityJoin
	if err := s.client.From(tableUserActivities).Eq("trip_id", tripID).Order("created_at", true).Find(ctx, &joins); err != nil {
		log.Error("failed to list trip joins", "trip", tripID, "error", err)
		return nil, err
	}
	return joins, nil
}

// JoinActivity inserts the join row unless it already exists.
func (s *SupabaseStore) JoinActivity(ctx context.Context, join ActivityJoin) error {
	row := map[string]string{
		"user_id":     join.UserID,
		"trip_id":     join.TripID,
		"activity_id": join.ActivityID,
	}
	if err := s.client.From(tableUserActivities).Upsert(ctx, row, "user_id,trip_id,activity_id", true); err != nil {
		log.Error("failed to join activity", "trip", join.TripID, "activity", join.ActivityID, "error", err)
		return err
	}
	return nil
}

// LeaveActivity deletes the join row. Deleting a missing row is not an error.
func (s *SupabaseStore) LeaveActivity(ctx context.Context, tripID, activityID, userID string) error {
	err := s.client.From(tableUserActivities).
		Eq("trip_id", tripID).
		Eq("activity_id", activityID).
		Eq("user_id", userID).
		Delete(ctx, nil)
	if err != nil {
		log.Error("failed to leave activity", "trip", tripID, "activity", activityID, "error", err)
	}
	return err
}

// LeaveTripActivities deletes every join row of the user for the trip.
func (s *SupabaseStore) LeaveTripActivities(ctx context.Context, tripID, userID string) error {
	err := s.client.From(tableUserActivities).Eq("trip_id", tripID).Eq("user_id", userID).Delete(ctx, nil)
	if err != nil {
		log.Error("failed to leave trip activities", "trip", tripID, "error", err)
	}
	return err
}

func (s *SupabaseStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	count := func(table string, dst *int64, status ...ProfileStatus) func() error {
		return func() error {
			q := s.client.From(table)
			if len(status) > 0 {
				q = q.Eq("status", string(status[0]))
			}
			n, err := q.Count(ctx)
			*dst = n
			return err
		}
	}

	var g errgroup.Group
	g.Go(count(tableProfiles, &stats.PendingProfiles, ProfileStatusPending))
	g.Go(count(tableProfiles, &stats.ApprovedProfiles, ProfileStatusApproved))
	g.Go(count(tableProfiles, &stats.RejectedProfiles, ProfileStatusRejected))
	g.Go(count(tableTrips, &stats.Trips))
	g.Go(count(tableActivities, &stats.Activities))
	g.Go(count(tableUserActivities, &stats.Joins))
	if err := g.Wait(); err != nil {
		log.Error("failed to collect database stats", "error", err)
		return nil, err
	}
	return &stats, nil
}
