package database

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/wayfare/internal/config"
	"gorm.io/gorm"
)

// getUserTripsQuery lists the trips a user owns or has joined activities in.
const getUserTripsQuery = `
SELECT t.* FROM trips t
WHERE t.owner_id = @user
   OR EXISTS (
        SELECT 1 FROM user_activities ua
        WHERE ua.trip_id = t.id AND ua.user_id = @user
   )
ORDER BY t.start_date, t.created_at`

const getUserTripsFunction = `
CREATE OR REPLACE FUNCTION get_user_trips(query_user_id text)
RETURNS SETOF trips
LANGUAGE sql STABLE
AS $$
  SELECT t.* FROM trips t
  WHERE t.owner_id = query_user_id
     OR EXISTS (
          SELECT 1 FROM user_activities ua
          WHERE ua.trip_id = t.id AND ua.user_id = query_user_id
     )
  ORDER BY t.start_date, t.created_at
$$;`

func (c *Client) CreateTrip(ctx context.Context, trip *Trip) error {
	if err := c.db.WithContext(ctx).Create(trip).Error; err != nil {
		log.Error("failed to create trip", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetTrip(ctx context.Context, id string) (*Trip, error) {
	var trip Trip
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&trip).Error; err != nil {
		err = notFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get trip", "trip", id, "error", err)
		}
		return nil, err
	}
	return &trip, nil
}

func (c *Client) UpdateTrip(ctx context.Context, trip *Trip) error {
	result := c.db.WithContext(ctx).Model(&Trip{}).Where("id = ?", trip.ID).Updates(map[string]any{
		"name":        trip.Name,
		"description": trip.Description,
		"location":    trip.Location,
		"start_date":  trip.StartDate,
		"end_date":    trip.EndDate,
	})
	if result.Error != nil {
		log.Error("failed to update trip", "trip", trip.ID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrip removes the trip together with its activity links and joins.
func (c *Client) DeleteTrip(ctx context.Context, id string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trip_id = ?", id).Delete(&ActivityJoin{}).Error; err != nil {
			return err
		}
		if err := tx.Where("trip_id = ?", id).Delete(&TripActivity{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Trip{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to delete trip", "trip", id, "error", err)
	}
	return err
}

func (c *Client) ListTrips(ctx context.Context) ([]Trip, error) {
	var trips []Trip
	if err := c.db.WithContext(ctx).Order("start_date, created_at").Find(&trips).Error; err != nil {
		log.Error("failed to list trips", "error", err)
		return nil, err
	}
	return trips, nil
}

// GetUserTrips returns the trips visible to the user in store order.
func (c *Client) GetUserTrips(ctx context.Context, userID string) ([]Trip, error) {
	var trips []Trip
	var err error
	switch c.driver {
	case config.DatabaseDriverPostgres:
		err = c.db.WithContext(ctx).Raw("SELECT * FROM get_user_trips(?)", userID).Scan(&trips).Error
	default:
		err = c.db.WithContext(ctx).Raw(getUserTripsQuery, map[string]any{"user": userID}).Scan(&trips).Error
	}
	if err != nil {
		log.Error("failed to get user trips", "user", userID, "error", err)
		return nil, err
	}
	return trips, nil
}
