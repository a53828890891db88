package database

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/clause"
)

func (c *Client) ListTripJoins(ctx context.Context, tripID string) ([]ActivityJoin, error) {
	var joins []ActivityJoin
	if err := c.db.WithContext(ctx).Where("trip_id = ?", tripID).Order("created_at").Find(&joins).Error; err != nil {
		log.Error("failed to list trip joins", "trip", tripID, "error", err)
		return nil, err
	}
	return joins, nil
}

// JoinActivity inserts the join row unless it already exists.
func (c *Client) JoinActivity(ctx context.Context, join ActivityJoin) error {
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&join).Error; err != nil {
		log.Error("failed to join activity", "trip", join.TripID, "activity", join.ActivityID, "error", err)
		return err
	}
	return nil
}

// LeaveActivity deletes the join row. Deleting a missing row is not an error.
func (c *Client) LeaveActivity(ctx context.Context, tripID, activityID, userID string) error {
	err := c.db.WithContext(ctx).
		Where("trip_id = ? AND activity_id = ? AND user_id = ?", tripID, activityID, userID).
		Delete(&ActivityJoin{}).Error
	if err != nil {
		log.Error("failed to leave activity", "trip", tripID, "activity", activityID, "error", err)
	}
	return err
}

// LeaveTripActivities deletes every join row of the user for the trip.
func (c *Client) LeaveTripActivities(ctx context.Context, tripID, userID string) error {
	err := c.db.WithContext(ctx).Where("trip_id = ? AND user_id = ?", tripID, userID).Delete(&ActivityJoin{}).Error
	if err != nil {
		log.Error("failed to leave trip activities", "trip", tripID, "error", err)
	}
	return err
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	count := func(model any, dst *int64, query ...any) func() error {
		return func() error {
			tx := c.db.WithContext(ctx).Model(model)
			if len(query) > 0 {
				tx = tx.Where(query[0], query[1:]...)
			}
			return tx.Count(dst).Error
		}
	}

	var g errgroup.Group
	g.Go(count(&Profile{}, &stats.PendingProfiles, "status = ?", ProfileStatusPending))
	g.Go(count(&Profile{}, &stats.ApprovedProfiles, "status = ?", ProfileStatusApproved))
	g.Go(count(&Profile{}, &stats.RejectedProfiles, "status = ?", ProfileStatusRejected))
	g.Go(count(&Trip{}, &stats.Trips))
	g.Go(count(&Activity{}, &stats.Activities))
	g.Go(count(&ActivityJoin{}, &stats.Joins))
	if err := g.Wait(); err != nil {
		log.Error("failed to collect database stats", "error", err)
		return nil, err
	}
	return &stats, nil
}
