// Package planner implements membership operations over the activities of a trip.
package planner

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/samber/lo"
)

// Store is the subset of database.DB the planner works with.
type Store interface {
	GetTrip(ctx context.Context, id string) (*database.Trip, error)
	ListTripActivities(ctx context.Context, tripID string) ([]database.Activity, error)
	ListTripJoins(ctx context.Context, tripID string) ([]database.ActivityJoin, error)
	JoinActivity(ctx context.Context, join database.ActivityJoin) error
	LeaveActivity(ctx context.Context, tripID, activityID, userID string) error
	LeaveTripActivities(ctx context.Context, tripID, userID string) error
}

// JoinAll joins the user to every activity of the trip they have not joined yet.
// Each row is inserted independently; a failure leaves earlier rows in place and
// calling JoinAll again only adds the rows still missing.
func JoinAll(ctx context.Context, store Store, tripID, userID string) (int, error) {
	activities, err := store.ListTripActivities(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to list trip activities: %w", err)
	}
	joins, err := store.ListTripJoins(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to list trip joins: %w", err)
	}

	joined := joinedBy(joins, userID)
	missing := lo.Filter(activities, func(a database.Activity, _ int) bool { return !joined[a.ID] })

	var added int
	for _, activity := range missing {
		err := store.JoinActivity(ctx, database.ActivityJoin{
			UserID:     userID,
			TripID:     tripID,
			ActivityID: activity.ID,
		})
		if err != nil {
			return added, fmt.Errorf("failed to join activity %s: %w", activity.ID, err)
		}
		added++
	}

	log.Debug("joined trip activities", "trip", tripID, "user", userID, "added", added)
	return added, nil
}

// LeaveAll removes every join of the user for the trip.
func LeaveAll(ctx context.Context, store Store, tripID, userID string) error {
	if err := store.LeaveTripActivities(ctx, tripID, userID); err != nil {
		return fmt.Errorf("failed to leave trip activities: %w", err)
	}
	log.Debug("left trip activities", "trip", tripID, "user", userID)
	return nil
}

// Join joins the user to a single activity offered by the trip.
func Join(ctx context.Context, store Store, tripID, activityID, userID string) error {
	if err := offered(ctx, store, tripID, activityID); err != nil {
		return err
	}
	return store.JoinActivity(ctx, database.ActivityJoin{UserID: userID, TripID: tripID, ActivityID: activityID})
}

// Leave removes the user from a single activity of the trip.
func Leave(ctx context.Context, store Store, tripID, activityID, userID string) error {
	return store.LeaveActivity(ctx, tripID, activityID, userID)
}

func offered(ctx context.Context, store Store, tripID, activityID string) error {
	activities, err := store.ListTripActivities(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to list trip activities: %w", err)
	}
	if !lo.ContainsBy(activities, func(a database.Activity) bool { return a.ID == activityID }) {
		return database.ErrNotFound
	}
	return nil
}

func joinedBy(joins []database.ActivityJoin, userID string) map[string]bool {
	joined := make(map[string]bool)
	for _, j := range joins {
		if j.UserID == userID {
			joined[j.ActivityID] = true
		}
	}
	return joined
}

// ActivityView is an activity of a trip as seen by one user.
type ActivityView struct {
	database.Activity
	Joined       bool
	Participants int
}

// TripView is a trip with its activities as seen by one user.
type TripView struct {
	Trip       *database.Trip
	Activities []ActivityView
	// IsOwner is set when the viewing user owns the trip.
	IsOwner bool
	// JoinedAll is set when the user joined every activity of a trip that has activities.
	JoinedAll bool
	// Participants is the number of distinct users with at least one join.
	Participants int
}

// JoinedCount returns how many activities the user joined.
func (v *TripView) JoinedCount() int {
	return lo.CountBy(v.Activities, func(a ActivityView) bool { return a.Joined })
}

// View loads the trip and its activities for userID.
func View(ctx context.Context, store Store, tripID, userID string) (*TripView, error) {
	trip, err := store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	activities, err := store.ListTripActivities(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip activities: %w", err)
	}
	joins, err := store.ListTripJoins(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip joins: %w", err)
	}

	joined := joinedBy(joins, userID)
	perActivity := lo.CountValuesBy(joins, func(j database.ActivityJoin) string { return j.ActivityID })

	view := &TripView{
		Trip:    trip,
		IsOwner: trip.OwnedBy(userID),
		Activities: lo.Map(activities, func(a database.Activity, _ int) ActivityView {
			return ActivityView{
				Activity:     a,
				Joined:       joined[a.ID],
				Participants: perActivity[a.ID],
			}
		}),
		Participants: len(lo.UniqBy(joins, func(j database.ActivityJoin) string { return j.UserID })),
	}
	view.JoinedAll = len(view.Activities) > 0 && view.JoinedCount() == len(view.Activities)
	return view, nil
}
