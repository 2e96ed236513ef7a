package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after config.yaml.
const (
	EnvPort           = "WORKSHOP_PORT"
	EnvBind           = "WORKSHOP_BIND"
	EnvLogLevel       = "WORKSHOP_LOG_LEVEL"
	EnvCoursesPath    = "WORKSHOP_COURSES_PATH"
	EnvCoursesURL     = "WORKSHOP_COURSES_URL"
	EnvStorageDriver  = "WORKSHOP_STORAGE_DRIVER"
	EnvPostgresURL    = "WORKSHOP_POSTGRES_URL"
	EnvAMQPURL        = "WORKSHOP_AMQP_URL"
	EnvMetricsEnabled = "WORKSHOP_METRICS"
)

// LoadDotEnv loads KEY=value pairs from each existing file into the process
// environment. Variables that are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any WORKSHOP_* variables that are set.
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt(EnvPort, cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv(EnvBind, cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = strings.ToLower(getEnv(EnvLogLevel, cfg.Daemon.LogLevel))
	cfg.Courses.Path = getEnv(EnvCoursesPath, cfg.Courses.Path)
	cfg.Courses.URL = getEnv(EnvCoursesURL, cfg.Courses.URL)
	cfg.Storage.Driver = getEnv(EnvStorageDriver, cfg.Storage.Driver)
	cfg.Metrics.Enabled = getEnvBool(EnvMetricsEnabled, cfg.Metrics.Enabled)

	if url := os.Getenv(EnvPostgresURL); url != "" {
		cfg.Storage.PostgresURL = url
		if os.Getenv(EnvStorageDriver) == "" {
			cfg.Storage.Driver = StorageDriverPostgres
		}
	}
	if url := os.Getenv(EnvAMQPURL); url != "" {
		cfg.Events.AMQPURL = url
		cfg.Events.Enabled = true
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
