package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/pkg/supabase"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB is the persistent store used by the application.
type DB interface {
	// Profiles
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	EnsureProfile(ctx context.Context, userID, email string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	UpdateProfileStatus(ctx context.Context, userID string, status ProfileStatus) error
	UpdateProfileRole(ctx context.Context, userID string, role Role) error
	UpdateProfileDisplayName(ctx context.Context, userID, displayName string) error

	// Trips
	CreateTrip(ctx context.Context, trip *Trip) error
	GetTrip(ctx context.Context, id string) (*Trip, error)
	UpdateTrip(ctx context.Context, trip *Trip) error
	DeleteTrip(ctx context.Context, id string) error
	ListTrips(ctx context.Context) ([]Trip, error)
	GetUserTrips(ctx context.Context, userID string) ([]Trip, error)

	// Activities
	CreateActivity(ctx context.Context, activity *Activity) error
	GetActivity(ctx context.Context, id string) (*Activity, error)
	UpdateActivity(ctx context.Context, activity *Activity) error
	DeleteActivity(ctx context.Context, id string) error
	ListActivities(ctx context.Context) ([]Activity, error)
	AddActivityLocation(ctx context.Context, location *ActivityLocation) error
	DeleteActivityLocation(ctx context.Context, activityID, locationID string) error

	// Trip activities
	SetTripActivities(ctx context.Context, tripID string, activityIDs []string) error
	ListTripActivities(ctx context.Context, tripID string) ([]Activity, error)

	// Joins
	ListTripJoins(ctx context.Context, tripID string) ([]ActivityJoin, error)
	JoinActivity(ctx context.Context, join ActivityJoin) error
	LeaveActivity(ctx context.Context, tripID, activityID, userID string) error
	LeaveTripActivities(ctx context.Context, tripID, userID string) error

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

var _ DB = (*Client)(nil) // Ensure Client implements DB

// Client wraps the gorm.DB instance.
type Client struct {
	db     *gorm.DB
	driver config.DatabaseDriver
}

// Open returns the store selected by the database driver.
func Open(cfg *config.Config) (DB, error) {
	if cfg.Database.Driver == config.DatabaseDriverSupabase {
		return NewSupabase(supabase.New(cfg.Supabase)), nil
	}
	return New(cfg.Database)
}

// New creates a new sqlite or postgres connection and performs migrations.
func New(cfg *config.DatabaseConfig) (*Client, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DatabaseDriverSQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("driver %q is not backed by gorm", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == config.DatabaseDriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	c := &Client{db: db, driver: cfg.Driver}
	if err := c.Migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Migrate creates or updates the schema.
// On postgres it also installs the get_user_trips function.
func (c *Client) Migrate() error {
	if err := c.db.AutoMigrate(
		&Profile{},
		&Trip{},
		&Activity{},
		&ActivityLocation{},
		&TripActivity{},
		&ActivityJoin{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if c.driver == config.DatabaseDriverPostgres {
		if err := c.db.Exec(getUserTripsFunction).Error; err != nil {
			return fmt.Errorf("failed to create get_user_trips function: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// notFound maps gorm's missing row error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
