package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every override so tests see only what they set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvPort, EnvBind, EnvLogLevel, EnvCoursesPath, EnvCoursesURL,
		EnvStorageDriver, EnvPostgresURL, EnvAMQPURL, EnvMetricsEnabled,
	} {
		t.Setenv(key, "")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WORKSHOP_TEST_STRING", "value")
	t.Setenv("WORKSHOP_TEST_EMPTY", "")

	tests := []struct {
		key  string
		def  string
		want string
	}{
		{"WORKSHOP_TEST_STRING", "default", "value"},
		{"WORKSHOP_TEST_EMPTY", "default", "default"},
		{"WORKSHOP_TEST_UNSET", "default", "default"},
	}
	for _, tt := range tests {
		if got := getEnv(tt.key, tt.def); got != tt.want {
			t.Errorf("getEnv(%q) = %q; want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("WORKSHOP_TEST_INT", "42")
	t.Setenv("WORKSHOP_TEST_BAD_INT", "forty-two")

	if got := getEnvInt("WORKSHOP_TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt(valid) = %d; want 42", got)
	}
	if got := getEnvInt("WORKSHOP_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("getEnvInt(invalid) = %d; want default 1", got)
	}
	if got := getEnvInt("WORKSHOP_TEST_UNSET_INT", 7); got != 7 {
		t.Errorf("getEnvInt(unset) = %d; want default 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("WORKSHOP_TEST_TRUE", "true")
	t.Setenv("WORKSHOP_TEST_ZERO", "0")
	t.Setenv("WORKSHOP_TEST_BAD_BOOL", "maybe")

	if !getEnvBool("WORKSHOP_TEST_TRUE", false) {
		t.Error("getEnvBool(true) = false")
	}
	if getEnvBool("WORKSHOP_TEST_ZERO", true) {
		t.Error("getEnvBool(0) = true")
	}
	if !getEnvBool("WORKSHOP_TEST_BAD_BOOL", true) {
		t.Error("getEnvBool(invalid) should return the default")
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvCoursesURL, "https://courses.example.com/")
	t.Setenv(EnvPostgresURL, "postgres://u:p@db/workshop")
	t.Setenv(EnvAMQPURL, "amqp://guest:guest@mq:5672/")
	t.Setenv(EnvMetricsEnabled, "false")

	cfg := DefaultLocalConfig()
	ApplyEnv(cfg)

	if cfg.Daemon.Port != 9000 {
		t.Errorf("Port = %d; want 9000", cfg.Daemon.Port)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", cfg.Daemon.LogLevel)
	}
	if cfg.Courses.URL != "https://courses.example.com/" {
		t.Errorf("Courses.URL = %q", cfg.Courses.URL)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Errorf("Storage.Driver = %q; a Postgres URL should select postgres", cfg.Storage.Driver)
	}
	if !cfg.Events.Enabled || cfg.Events.AMQPURL == "" {
		t.Errorf("Events = %+v; an AMQP URL should enable events", cfg.Events)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be overridden to false")
	}
}

func TestApplyEnv_ExplicitDriverWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPostgresURL, "postgres://u:p@db/workshop")
	t.Setenv(EnvStorageDriver, StorageDriverNone)

	cfg := DefaultLocalConfig()
	ApplyEnv(cfg)
	if cfg.Storage.Driver != StorageDriverNone {
		t.Errorf("Storage.Driver = %q; want none", cfg.Storage.Driver)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "WORKSHOP_DOTENV_A=from-file\nWORKSHOP_DOTENV_B=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WORKSHOP_DOTENV_B", "from-env")
	// Registered for cleanup; the file sets it
	t.Setenv("WORKSHOP_DOTENV_A", "")
	os.Unsetenv("WORKSHOP_DOTENV_A")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("WORKSHOP_DOTENV_A"); got != "from-file" {
		t.Errorf("WORKSHOP_DOTENV_A = %q; want from-file", got)
	}
	if got := os.Getenv("WORKSHOP_DOTENV_B"); got != "from-env" {
		t.Errorf("WORKSHOP_DOTENV_B = %q; existing variables should win", got)
	}
}
