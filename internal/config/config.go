package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSupabase DatabaseDriver = "supabase"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// DefaultPlacesEndpoint is the Google Places text search endpoint.
const DefaultPlacesEndpoint = "https://places.googleapis.com/v1/places:searchText"

// Config holds the configuration for the Wayfare server and its dependencies.
type Config struct {
	// Listen is the address the Wayfare server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the Wayfare server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Env is the deployment environment name reported by the version endpoint.
	Env string `yaml:"env" mapstructure:"env"`
	// SessionKey is the key used to authenticate session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// SecureCookies marks session and csrf cookies as Secure. Enable behind TLS.
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// CSRFKey is the 32 byte key for csrf tokens. Derived from the session key if empty.
	CSRFKey string `yaml:"csrf_key" mapstructure:"csrf_key"`
	// Metrics holds the prometheus metrics configuration.
	Metrics *MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	// Places holds the places search configuration.
	Places *PlacesConfig `yaml:"places" mapstructure:"places"`
	// Database holds the persistent store configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Supabase holds the Supabase project configuration.
	Supabase *SupabaseConfig `yaml:"supabase" mapstructure:"supabase"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Email holds the email notification configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
	// Gravatar holds the configuration for profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
}

// MetricsConfig holds the prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes /metrics and records request metrics.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// PlacesConfig holds the configuration for the places search proxy.
type PlacesConfig struct {
	// APIKey is the Google Places API key. The proxy answers 500 when it is empty.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Endpoint is the text search endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// DatabaseConfig holds the persistent store configuration.
type DatabaseConfig struct {
	// Driver selects the store backend: "supabase", "sqlite" or "postgres".
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// MaxOpenConns is the maximum number of open postgres connections.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	// MaxIdleConns is the maximum number of idle postgres connections.
	MaxIdleConns int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	// ConnMaxLifetime is the maximum lifetime of a postgres connection.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// SupabaseConfig holds the Supabase project configuration.
type SupabaseConfig struct {
	// URL is the project URL, e.g. https://xyzcompany.supabase.co.
	URL string `yaml:"url" mapstructure:"url"`
	// AnonKey is the public anon key.
	AnonKey string `yaml:"anon_key" mapstructure:"anon_key"`
	// ServiceRoleKey bypasses row level security when set. Optional.
	ServiceRoleKey string `yaml:"service_role_key" mapstructure:"service_role_key"`
	// JWTSecret enables local verification of HS256 access tokens. Tokens signed
	// with asymmetric keys are always checked by the auth server. Optional.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// Supabase holds the Supabase password authentication configuration.
	Supabase *SupabaseAuthConfig `yaml:"supabase" mapstructure:"supabase"`
	// OIDC holds the OpenID Connect configuration.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`
}

// SupabaseAuthConfig holds the Supabase authentication configuration.
type SupabaseAuthConfig struct {
	// Enabled indicates whether email/password authentication against Supabase is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// AllowSignup shows the sign up form on the login page.
	AllowSignup bool `yaml:"allow_signup" mapstructure:"allow_signup"`
}

// OIDCConfig holds the OpenID Connect configuration.
type OIDCConfig struct {
	// Enabled indicates whether OIDC authentication is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Name is the display name for the OIDC provider.
	Name string `yaml:"name" mapstructure:"name"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// ClientID is the OIDC client ID.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OIDC client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	// RedirectURL is the redirect URL for the oidc flow.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
	// AdminGroup is the group whose members are made administrators on login.
	AdminGroup string `yaml:"admin_group" mapstructure:"admin_group"`
	// AutoApproveGroup is the group whose members are approved on login.
	AutoApproveGroup string `yaml:"auto_approve_group" mapstructure:"auto_approve_group"`
	// UsePKCE enables PKCE (Proof Key for Code Exchange) for the OAuth 2.0 flow.
	UsePKCE bool `yaml:"use_pkce" mapstructure:"use_pkce"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use STARTTLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use SSL for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled shows Gravatar images in place of initials.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the image shown when no Gravatar is found, e.g. "mp" or "identicon".
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating of the images.
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the image size in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// If no config file is found, defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("WAYFARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wayfare")
		v.AddConfigPath("/etc/wayfare")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the WAYFARE_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3000")
	v.SetDefault("server_url", "http://localhost:3000")
	v.SetDefault("env", "development")
	v.SetDefault("session_max_age", 604800) // 7 days
	v.SetDefault("session_key", "")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("csrf_key", "")

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("places.api_key", "")
	v.SetDefault("places.endpoint", DefaultPlacesEndpoint)

	v.SetDefault("database.driver", DatabaseDriverSupabase)
	v.SetDefault("database.path", "./data/wayfare.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("auth.supabase.enabled", true)
	v.SetDefault("auth.supabase.allow_signup", true)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.name", "OIDC")
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("auth.oidc.use_pkce", false)
	v.SetDefault("auth.oidc.admin_group", "")
	v.SetDefault("auth.oidc.auto_approve_group", "")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "Wayfare")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)

	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "mp")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 64)
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// The supabase section has no defaults on purpose, so its env vars are bound manually.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("supabase.url", "WAYFARE_SUPABASE_URL")
	v.MustBindEnv("supabase.anon_key", "WAYFARE_SUPABASE_ANON_KEY")
	v.MustBindEnv("supabase.service_role_key", "WAYFARE_SUPABASE_SERVICE_ROLE_KEY")
	v.MustBindEnv("supabase.jwt_secret", "WAYFARE_SUPABASE_JWT_SECRET")
}

// NeedsSupabase reports whether the store or an enabled auth provider talks to Supabase.
func (c *Config) NeedsSupabase() bool {
	if c.Database != nil && c.Database.Driver == DatabaseDriverSupabase {
		return true
	}
	return c.Auth != nil && c.Auth.Supabase != nil && c.Auth.Supabase.Enabled
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing wayfare config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	if len(c.SessionKey) < 32 {
		return fmt.Errorf("session key must be at least 32 characters long")
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return fmt.Errorf("csrf key must be exactly 32 characters long")
	}

	if c.Places == nil {
		c.Places = &PlacesConfig{Endpoint: DefaultPlacesEndpoint}
	}
	if c.Places.APIKey == "" {
		log.Warn("places.api_key is not set, place search requests will fail")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Driver {
	case DatabaseDriverSupabase:
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required when using postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Auth == nil {
		return fmt.Errorf("missing auth config")
	}

	authEnabled := false
	if c.Auth.Supabase != nil && c.Auth.Supabase.Enabled {
		authEnabled = true
	}

	if c.Auth.OIDC != nil && c.Auth.OIDC.Enabled {
		authEnabled = true
		if c.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if c.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
	}

	if !authEnabled {
		return fmt.Errorf("at least one authentication method must be enabled")
	}

	if c.NeedsSupabase() {
		if c.Supabase == nil {
			return fmt.Errorf("missing supabase config")
		}
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase URL is required")
		}
		if c.Supabase.AnonKey == "" {
			return fmt.Errorf("supabase anon key is required")
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Supabase != nil {
		c.Supabase.URL = urlSanitize(c.Supabase.URL)
	}

	if c.Places != nil {
		c.Places.Endpoint = urlSanitize(c.Places.Endpoint)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
