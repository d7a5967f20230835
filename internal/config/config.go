package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Registrar RegistrarConfig `yaml:"registrar"`
	Cohort    CohortConfig    `yaml:"cohort"`
	Sync      SyncConfig      `yaml:"sync"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RegistrarConfig contains the external registrar endpoint and signing
// settings. A fully empty section is a valid deployment mode: the sync
// pipeline logs and no-ops instead of calling out.
type RegistrarConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	SigningSecret  string `yaml:"signing_secret"`
	Source         string `yaml:"source"`
	CollectiveID   string `yaml:"collective_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Configured reports whether outbound registrar calls are enabled.
func (r *RegistrarConfig) Configured() bool {
	return r.BaseURL != ""
}

func (r *RegistrarConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// CohortConfig contains cohort allocation settings
type CohortConfig struct {
	Capacity int32 `yaml:"capacity"`
}

// SyncConfig contains sync worker settings
type SyncConfig struct {
	MaxAttempts int32 `yaml:"max_attempts"`
}

// SendGridConfig contains email notification settings
type SendGridConfig struct {
	APIKey     string `yaml:"api_key"`
	FromEmail  string `yaml:"from_email"`
	FromName   string `yaml:"from_name"`
	AdminEmail string `yaml:"admin_email"`
}

// JWTConfig contains operator token settings
type JWTConfig struct {
	Secret           string `yaml:"secret"`
	TokenExpiryHours int    `yaml:"token_expiry_hours"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RegistrarSync string `yaml:"registrar_sync"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Registrar
	if val := os.Getenv("REGISTRAR_BASE_URL"); val != "" {
		c.Registrar.BaseURL = val
	}
	if val := os.Getenv("REGISTRAR_API_KEY"); val != "" {
		c.Registrar.APIKey = val
	}
	if val := os.Getenv("REGISTRAR_SIGNING_SECRET"); val != "" {
		c.Registrar.SigningSecret = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Registrar validation: absence of the whole section is fine, but a
	// base URL without signing material must fail at startup rather than
	// send unsigned requests later.
	if c.Registrar.Configured() {
		if c.Registrar.SigningSecret == "" {
			return fmt.Errorf("registrar signing secret is required when a base URL is set")
		}
		if c.Registrar.APIKey == "" {
			return fmt.Errorf("registrar API key is required when a base URL is set")
		}
	}
	if c.Registrar.TimeoutSeconds == 0 {
		c.Registrar.TimeoutSeconds = 30
	}
	if c.Registrar.Source == "" {
		c.Registrar.Source = "collective-backend"
	}

	// Cohort defaults
	if c.Cohort.Capacity < 0 {
		return fmt.Errorf("cohort capacity must be positive: %d", c.Cohort.Capacity)
	}
	if c.Cohort.Capacity == 0 {
		c.Cohort.Capacity = 10
	}

	// Sync defaults
	if c.Sync.MaxAttempts == 0 {
		c.Sync.MaxAttempts = 5
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.TokenExpiryHours == 0 {
		c.JWT.TokenExpiryHours = 12
	}

	// Scheduler defaults
	if c.Scheduler.RegistrarSync == "" {
		c.Scheduler.RegistrarSync = "0 */5 * * * *" // every 5 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
