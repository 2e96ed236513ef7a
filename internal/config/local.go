package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage drivers for attempt history.
const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverNone     = "none"
)

// LocalConfig holds configuration for the workshop daemon and CLI
type LocalConfig struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Courses  CoursesConfig  `yaml:"courses"`
	Carousel CarouselConfig `yaml:"carousel"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	Bind     string `yaml:"bind" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// CoursesConfig says where course documents come from. A non-empty URL
// takes precedence over Path.
type CoursesConfig struct {
	Path    string `yaml:"path"`
	URL     string `yaml:"url,omitempty" validate:"omitempty,url"`
	Default string `yaml:"default,omitempty"`
}

// CarouselConfig tunes course-carousel input handling
type CarouselConfig struct {
	SettleMS       int     `yaml:"settle_ms" validate:"min=0"`
	SwipeThreshold float64 `yaml:"swipe_threshold" validate:"min=0"`
	WheelThreshold float64 `yaml:"wheel_threshold" validate:"min=0"`
}

// FetchConfig holds remote course fetch settings
type FetchConfig struct {
	TimeoutSeconds   int `yaml:"timeout_seconds" validate:"min=1"`
	MaxAttempts      int `yaml:"max_attempts" validate:"min=1"`
	InitialDelayMS   int `yaml:"initial_delay_ms" validate:"min=0"`
	FailureThreshold int `yaml:"failure_threshold" validate:"min=1"`
}

// StorageConfig selects the attempt-history backend
type StorageConfig struct {
	Driver      string `yaml:"driver" validate:"oneof=sqlite postgres none"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresURL string `yaml:"-"` // Loaded from secrets.yaml or the environment
}

// EventsConfig controls progress-event publishing to RabbitMQ
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	AMQPURL string `yaml:"-"` // Loaded from secrets.yaml or the environment
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SecretsConfig holds connection strings loaded from secrets.yaml
type SecretsConfig struct {
	PostgresURL string `yaml:"postgres_url,omitempty"`
	AMQPURL     string `yaml:"amqp_url,omitempty"`
}

// Settle returns the carousel settle duration.
func (c CarouselConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// Timeout returns the per-request fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InitialDelay returns the first retry backoff.
func (c FetchConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMS) * time.Millisecond
}

// WorkshopDir returns the path to ~/.workshop
func WorkshopDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".workshop"), nil
}

// EnsureWorkshopDir creates ~/.workshop and subdirectories if they don't exist
func EnsureWorkshopDir() (string, error) {
	dir, err := WorkshopDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"state",
		"courses",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode. Paths are
// left empty and resolved against the workshop dir by Resolve.
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Carousel: CarouselConfig{
			SettleMS:       600,
			SwipeThreshold: 50,
			WheelThreshold: 10,
		},
		Fetch: FetchConfig{
			TimeoutSeconds:   15,
			MaxAttempts:      3,
			InitialDelayMS:   200,
			FailureThreshold: 5,
		},
		Storage: StorageConfig{
			Driver: StorageDriverSQLite,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Resolve fills empty paths with locations under dir.
func (c *LocalConfig) Resolve(dir string) {
	if c.Courses.Path == "" {
		c.Courses.Path = filepath.Join(dir, "courses")
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(dir, "workshop.db")
	}
}

// Validate checks value ranges and enumerations.
func (c *LocalConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == StorageDriverPostgres && c.Storage.PostgresURL == "" {
		return fmt.Errorf("invalid config: storage driver postgres needs a connection URL (%s or secrets.yaml)", EnvPostgresURL)
	}
	if c.Events.Enabled && c.Events.AMQPURL == "" {
		return fmt.Errorf("invalid config: events enabled without an AMQP URL (%s or secrets.yaml)", EnvAMQPURL)
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.workshop/config.yaml, applies
// secrets and environment overrides, and validates the result.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := WorkshopDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads configuration from dir/config.yaml.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	ApplyEnv(cfg)
	cfg.Resolve(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets loads connection strings from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.PostgresURL != "" {
		cfg.Storage.PostgresURL = secrets.PostgresURL
	}
	if secrets.AMQPURL != "" {
		cfg.Events.AMQPURL = secrets.AMQPURL
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.workshop/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureWorkshopDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo saves configuration to dir/config.yaml
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves connection strings to dir/secrets.yaml
func SaveSecrets(dir string, secrets SecretsConfig) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
