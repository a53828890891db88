package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/samber/lo"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	profiles       map[string]*database.Profile
	trips          map[string]*database.Trip
	activities     map[string]*database.Activity
	tripActivities map[string][]string // trip ID -> activity IDs
	joins          map[database.ActivityJoin]time.Time

	// Call counters
	GetProfileCalls   int
	JoinActivityCalls int

	// Error simulation
	GetProfileError          error
	EnsureProfileError       error
	UpdateProfileStatusError error
	GetTripError             error
	CreateTripError          error
	GetUserTripsError        error
	ListTripActivitiesError  error
	ListTripJoinsError       error
	LeaveTripActivitiesError error
	// JoinActivityErrors fails JoinActivity for the given activity IDs.
	JoinActivityErrors map[string]error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	m := &MockDB{}
	m.Reset()
	return m
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles = make(map[string]*database.Profile)
	m.trips = make(map[string]*database.Trip)
	m.activities = make(map[string]*database.Activity)
	m.tripActivities = make(map[string][]string)
	m.joins = make(map[database.ActivityJoin]time.Time)

	m.GetProfileCalls = 0
	m.JoinActivityCalls = 0

	m.GetProfileError = nil
	m.EnsureProfileError = nil
	m.UpdateProfileStatusError = nil
	m.GetTripError = nil
	m.CreateTripError = nil
	m.GetUserTripsError = nil
	m.ListTripActivitiesError = nil
	m.ListTripJoinsError = nil
	m.LeaveTripActivitiesError = nil
	m.JoinActivityErrors = nil
}

// Close is a no-op.
func (m *MockDB) Close() error { return nil }

// PutProfile stores the profile as is, for test setup.
func (m *MockDB) PutProfile(p database.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.profiles[p.ID] = &p
}

// Profiles

func (m *MockDB) GetProfile(_ context.Context, userID string) (*database.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetProfileCalls++
	if m.GetProfileError != nil {
		return nil, m.GetProfileError
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockDB) GetProfileByEmail(_ context.Context, email string) (*database.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) EnsureProfile(_ context.Context, userID, email string) (*database.Profile, error) {
	if m.EnsureProfileError != nil {
		return nil, m.EnsureProfileError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		now := time.Now()
		p = &database.Profile{
			ID:        userID,
			Email:     email,
			Status:    database.ProfileStatusPending,
			Role:      database.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.profiles[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (m *MockDB) ListProfiles(_ context.Context) ([]database.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profiles := make([]database.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		profiles = append(profiles, *p)
	}
	slices.SortFunc(profiles, func(a, b database.Profile) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return profiles, nil
}

func (m *MockDB) UpdateProfileStatus(_ context.Context, userID string, status database.ProfileStatus) error {
	if m.UpdateProfileStatusError != nil {
		return m.UpdateProfileStatusError
	}
	return m.updateProfile(userID, func(p *database.Profile) { p.Status = status })
}

func (m *MockDB) UpdateProfileRole(_ context.Context, userID string, role database.Role) error {
	return m.updateProfile(userID, func(p *database.Profile) { p.Role = role })
}

func (m *MockDB) UpdateProfileDisplayName(_ context.Context, userID, displayName string) error {
	return m.updateProfile(userID, func(p *database.Profile) { p.DisplayName = displayName })
}

func (m *MockDB) updateProfile(userID string, fn func(p *database.Profile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return database.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return nil
}

// Trips

func (m *MockDB) CreateTrip(_ context.Context, trip *database.Trip) error {
	if m.CreateTripError != nil {
		return m.CreateTripError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	now := time.Now()
	trip.CreatedAt, trip.UpdatedAt = now, now
	cp := *trip
	m.trips[trip.ID] = &cp
	return nil
}

func (m *MockDB) GetTrip(_ context.Context, id string) (*database.Trip, error) {
	if m.GetTripError != nil {
		return nil, m.GetTripError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockDB) UpdateTrip(_ context.Context, trip *database.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[trip.ID]
	if !ok {
		return database.ErrNotFound
	}
	t.Name = trip.Name
	t.Description = trip.Description
	t.Location = trip.Location
	t.StartDate = trip.StartDate
	t.EndDate = trip.EndDate
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MockDB) DeleteTrip(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.trips, id)
	delete(m.tripActivities, id)
	for j := range m.joins {
		if j.TripID == id {
			delete(m.joins, j)
		}
	}
	return nil
}

func (m *MockDB) ListTrips(_ context.Context) ([]database.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortTrips(lo.MapToSlice(m.trips, func(_ string, t *database.Trip) database.Trip { return *t })), nil
}

func (m *MockDB) GetUserTrips(_ context.Context, userID string) ([]database.Trip, error) {
	if m.GetUserTripsError != nil {
		return nil, m.GetUserTripsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var trips []database.Trip
	for _, t := range m.trips {
		if t.OwnerID == userID || m.hasJoined(t.ID, userID) {
			trips = append(trips, *t)
		}
	}
	return sortTrips(trips), nil
}

func (m *MockDB) hasJoined(tripID, userID string) bool {
	for j := range m.joins {
		if j.TripID == tripID && j.UserID == userID {
			return true
		}
	}
	return false
}

func sortTrips(trips []database.Trip) []database.Trip {
	slices.SortFunc(trips, func(a, b database.Trip) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return trips
}

// Activities

func (m *MockDB) CreateActivity(_ context.Context, activity *database.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now()
	activity.CreatedAt, activity.UpdatedAt = now, now
	cp := *activity
	cp.Locations = nil
	m.activities[activity.ID] = &cp
	return nil
}

func (m *MockDB) GetActivity(_ context.Context, id string) (*database.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return cloneActivity(a), nil
}

func (m *MockDB) UpdateActivity(_ context.Context, activity *database.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[activity.ID]
	if !ok {
		return database.ErrNotFound
	}
	a.Name = activity.Name
	a.Description = activity.Description
	a.RequiresGPS = activity.RequiresGPS
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MockDB) DeleteActivity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.activities, id)
	for tripID, ids := range m.tripActivities {
		m.tripActivities[tripID] = lo.Without(ids, id)
	}
	for j := range m.joins {
		if j.ActivityID == id {
			delete(m.joins, j)
		}
	}
	return nil
}

func (m *MockDB) ListActivities(_ context.Context) ([]database.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	activities := make([]database.Activity, 0, len(m.activities))
	for _, a := range m.activities {
		activities = append(activities, *cloneActivity(a))
	}
	slices.SortFunc(activities, func(a, b database.Activity) int { return strings.Compare(a.Name, b.Name) })
	return activities, nil
}

func (m *MockDB) AddActivityLocation(_ context.Context, location *database.ActivityLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[location.ActivityID]
	if !ok {
		return database.ErrNotFound
	}
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	location.CreatedAt = time.Now()
	a.Locations = append(a.Locations, *location)
	return nil
}

func (m *MockDB) DeleteActivityLocation(_ context.Context, activityID, locationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[activityID]
	if !ok {
		return database.ErrNotFound
	}
	n := len(a.Locations)
	a.Locations = lo.Reject(a.Locations, func(l database.ActivityLocation, _ int) bool { return l.ID == locationID })
	if len(a.Locations) == n {
		return database.ErrNotFound
	}
	return nil
}

func cloneActivity(a *database.Activity) *database.Activity {
	cp := *a
	cp.Locations = slices.Clone(a.Locations)
	return &cp
}

// Trip activities

func (m *MockDB) SetTripActivities(_ context.Context, tripID string, activityIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	activityIDs = lo.Uniq(activityIDs)
	m.tripActivities[tripID] = activityIDs
	for j := range m.joins {
		if j.TripID == tripID && !slices.Contains(activityIDs, j.ActivityID) {
			delete(m.joins, j)
		}
	}
	return nil
}

func (m *MockDB) ListTripActivities(_ context.Context, tripID string) ([]database.Activity, error) {
	if m.ListTripActivitiesError != nil {
		return nil, m.ListTripActivitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var activities []database.Activity
	for _, id := range m.tripActivities[tripID] {
		if a, ok := m.activities[id]; ok {
			activities = append(activities, *cloneActivity(a))
		}
	}
	slices.SortFunc(activities, func(a, b database.Activity) int { return strings.Compare(a.Name, b.Name) })
	return activities, nil
}

// Joins

func (m *MockDB) ListTripJoins(_ context.Context, tripID string) ([]database.ActivityJoin, error) {
	if m.ListTripJoinsError != nil {
		return nil, m.ListTripJoinsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var joins []database.ActivityJoin
	for j, created := range m.joins {
		if j.TripID == tripID {
			j.CreatedAt = created
			joins = append(joins, j)
		}
	}
	slices.SortFunc(joins, func(a, b database.ActivityJoin) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return joins, nil
}

func (m *MockDB) JoinActivity(_ context.Context, join database.ActivityJoin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JoinActivityCalls++
	if err, ok := m.JoinActivityErrors[join.ActivityID]; ok {
		return err
	}
	join.CreatedAt = time.Time{}
	if _, ok := m.joins[join]; !ok {
		m.joins[join] = time.Now()
	}
	return nil
}

func (m *MockDB) LeaveActivity(_ context.Context, tripID, activityID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.joins, database.ActivityJoin{UserID: userID, TripID: tripID, ActivityID: activityID})
	return nil
}

func (m *MockDB) LeaveTripActivities(_ context.Context, tripID, userID string) error {
	if m.LeaveTripActivitiesError != nil {
		return m.LeaveTripActivitiesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for j := range m.joins {
		if j.TripID == tripID && j.UserID == userID {
			delete(m.joins, j)
		}
	}
	return nil
}

func (m *MockDB) Stats(_ context.Context) (*database.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats database.Stats
	for _, p := range m.profiles {
		switch p.Status {
		case database.ProfileStatusPending:
			stats.PendingProfiles++
		case database.ProfileStatusApproved:
			stats.ApprovedProfiles++
		case database.ProfileStatusRejected:
			stats.RejectedProfiles++
		}
	}
	stats.Trips = int64(len(m.trips))
	stats.Activities = int64(len(m.activities))
	stats.Joins = int64(len(m.joins))
	return &stats, nil
}
