package database

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (c *Client) CreateActivity(ctx context.Context, activity *Activity) error {
	if err := c.db.WithContext(ctx).Omit("Locations").Create(activity).Error; err != nil {
		log.Error("failed to create activity", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetActivity(ctx context.Context, id string) (*Activity, error) {
	var activity Activity
	err := c.db.WithContext(ctx).
		Preload("Locations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("id = ?", id).
		First(&activity).Error
	if err != nil {
		err = notFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get activity", "activity", id, "error", err)
		}
		return nil, err
	}
	return &activity, nil
}

func (c *Client) UpdateActivity(ctx context.Context, activity *Activity) error {
	result := c.db.WithContext(ctx).Model(&Activity{}).Where("id = ?", activity.ID).Updates(map[string]any{
		"name":         activity.Name,
		"description":  activity.Description,
		"requires_gps": activity.RequiresGPS,
	})
	if result.Error != nil {
		log.Error("failed to update activity", "activity", activity.ID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActivity removes the activity, its locations, trip links and joins.
func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&ActivityJoin{}, &TripActivity{}, &ActivityLocation{}} {
			if err := tx.Where("activity_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		result := tx.Where("id = ?", id).Delete(&Activity{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to delete activity", "activity", id, "error", err)
	}
	return err
}

func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var activities []Activity
	err := c.db.WithContext(ctx).
		Preload("Locations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Order("name").
		Find(&activities).Error
	if err != nil {
		log.Error("failed to list activities", "error", err)
		return nil, err
	}
	return activities, nil
}

func (c *Client) AddActivityLocation(ctx context.Context, location *ActivityLocation) error {
	if _, err := c.GetActivity(ctx, location.ActivityID); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Create(location).Error; err != nil {
		log.Error("failed to create activity location", "activity", location.ActivityID, "error", err)
		return err
	}
	return nil
}

func (c *Client) DeleteActivityLocation(ctx context.Context, activityID, locationID string) error {
	result := c.db.WithContext(ctx).Where("id = ? AND activity_id = ?", locationID, activityID).Delete(&ActivityLocation{})
	if result.Error != nil {
		log.Error("failed to delete activity location", "location", locationID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTripActivities makes activityIDs the exact set of activities offered by the trip.
// Joins for activities that are no longer offered are removed.
func (c *Client) SetTripActivities(ctx context.Context, tripID string, activityIDs []string) error {
	activityIDs = lo.Uniq(activityIDs)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Where("trip_id = ?", tripID)
		staleJoins := tx.Where("trip_id = ?", tripID)
		if len(activityIDs) > 0 {
			stale = stale.Where("activity_id NOT IN ?", activityIDs)
			staleJoins = staleJoins.Where("activity_id NOT IN ?", activityIDs)
		}
		if err := stale.Delete(&TripActivity{}).Error; err != nil {
			return err
		}
		if err := staleJoins.Delete(&ActivityJoin{}).Error; err != nil {
			return err
		}
		if len(activityIDs) == 0 {
			return nil
		}
		links := lo.Map(activityIDs, func(id string, _ int) TripActivity {
			return TripActivity{TripID: tripID, ActivityID: id}
		})
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
	if err != nil {
		log.Error("failed to set trip activities", "trip", tripID, "error", err)
	}
	return err
}

func (c *Client) ListTripActivities(ctx context.Context, tripID string) ([]Activity, error) {
	var activities []Activity
	err := c.db.WithContext(ctx).
		Preload("Locations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Joins("JOIN trip_activities ta ON ta.activity_id = activities.id").
		Where("ta.trip_id = ?", tripID).
		Order("activities.name").
		Find(&activities).Error
	if err != nil {
		log.Error("failed to list trip activities", "trip", tripID, "error", err)
		return nil, err
	}
	return activities, nil
}
