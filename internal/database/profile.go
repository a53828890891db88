package database

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/clause"
)

func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := c.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error; err != nil {
		err = notFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get profile", "user", userID, "error", err)
		}
		return nil, err
	}
	return &profile, nil
}

func (c *Client) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	var profile Profile
	if err := c.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&profile).Error; err != nil {
		err = notFound(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("failed to get profile by email", "error", err)
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile inserts a pending profile for the user unless one exists.
// An existing profile is never modified.
func (c *Client) EnsureProfile(ctx context.Context, userID, email string) (*Profile, error) {
	profile := Profile{
		ID:     userID,
		Email:  email,
		Status: ProfileStatusPending,
		Role:   RoleUser,
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error; err != nil {
		log.Error("failed to create profile", "user", userID, "error", err)
		return nil, err
	}
	return c.GetProfile(ctx, userID)
}

func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if err := c.db.WithContext(ctx).Order("created_at DESC").Find(&profiles).Error; err != nil {
		log.Error("failed to list profiles", "error", err)
		return nil, err
	}
	return profiles, nil
}

func (c *Client) UpdateProfileStatus(ctx context.Context, userID string, status ProfileStatus) error {
	return c.updateProfile(ctx, userID, "status", status)
}

func (c *Client) UpdateProfileRole(ctx context.Context, userID string, role Role) error {
	return c.updateProfile(ctx, userID, "role", role)
}

func (c *Client) UpdateProfileDisplayName(ctx context.Context, userID, displayName string) error {
	return c.updateProfile(ctx, userID, "display_name", displayName)
}

func (c *Client) updateProfile(ctx context.Context, userID, column string, value any) error {
	result := c.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", userID).Update(column, value)
	if result.Error != nil {
		log.Error("failed to update profile", "user", userID, "column", column, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
