package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileStatus is the approval state of a profile.
type ProfileStatus string

const (
	ProfileStatusPending  ProfileStatus = "pending"
	ProfileStatusApproved ProfileStatus = "approved"
	ProfileStatusRejected ProfileStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfileStatusPending, ProfileStatusApproved, ProfileStatusRejected:
		return true
	}
	return false
}

// Role is the permission level of a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Profile extends an identity provider user with approval status and role.
// The ID is the user ID issued by the identity provider.
type Profile struct {
	ID          string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email       string        `gorm:"index" json:"email"`
	DisplayName string        `json:"display_name"`
	Status      ProfileStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	Role        Role          `gorm:"type:varchar(16);not null;default:user" json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p *Profile) IsApproved() bool {
	return p != nil && p.Status == ProfileStatusApproved
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Name returns the display name, falling back to the email address.
func (p *Profile) Name() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Trip is a planned group event owned by exactly one user.
type Trip struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Name        string    `gorm:"not null"`
	Description string    // markdown
	Location    string    // destination, used as the default place search location
	StartDate   time.Time `gorm:"index"`
	EndDate     time.Time
	OwnerID     string `gorm:"type:varchar(64);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t *Trip) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// OwnedBy reports whether userID owns the trip.
func (t *Trip) OwnedBy(userID string) bool {
	return t != nil && userID != "" && t.OwnerID == userID
}

// Activity is a curated catalog entry that trips can offer.
type Activity struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Name        string `gorm:"not null"`
	Description string
	RequiresGPS bool               `gorm:"column:requires_gps;not null;default:false"`
	Locations   []ActivityLocation `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Activity) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ActivityLocation is a candidate place for an activity.
type ActivityLocation struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	ActivityID string `gorm:"type:varchar(36);not null;index"`
	Name       string `gorm:"not null"`
	Address    string
	MapsURL    string `gorm:"column:maps_url"`
	CreatedAt  time.Time
}

func (l *ActivityLocation) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// TripActivity links a trip to an activity it offers.
type TripActivity struct {
	TripID     string    `gorm:"primaryKey;type:varchar(36)" json:"trip_id"`
	ActivityID string    `gorm:"primaryKey;type:varchar(36)" json:"activity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityJoin records that a user opted into an activity for a trip.
type ActivityJoin struct {
	UserID     string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	TripID     string    `gorm:"primaryKey;type:varchar(36);index" json:"trip_id"`
	ActivityID string    `gorm:"primaryKey;type:varchar(36)" json:"activity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityJoin) TableName() string {
	return "user_activities"
}

// Stats summarizes the store contents.
type Stats struct {
	PendingProfiles  int64
	ApprovedProfiles int64
	RejectedProfiles int64
	Trips            int64
	Activities       int64
	Joins            int64
}

// Profiles returns the total number of profiles.
func (s *Stats) Profiles() int64 {
	return s.PendingProfiles + s.ApprovedProfiles + s.RejectedProfiles
}
