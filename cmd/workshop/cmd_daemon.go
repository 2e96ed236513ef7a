package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/workshop/internal/config"
)

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	workshopDir, err := config.EnsureWorkshopDir()
	if err != nil {
		return fmt.Errorf("setup workshop directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = workshopDir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", daemonAddr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'workshop logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	workshopDir, err := config.WorkshopDir()
	if err != nil {
		return err
	}

	pid, err := readPID(filepath.Join(workshopDir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	var status struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Source   string `json:"source"`
		Courses  int    `json:"courses"`
		Storage  string `json:"storage"`
		Events   bool   `json:"events"`
		Clients  int    `json:"clients"`
		State    string `json:"state"`
		CourseID string `json:"course_id"`
	}
	if err := newClient(daemonAddr).do("GET", "/v1/status", nil, &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	fmt.Printf("Status:    %s\n", status.Status)
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Courses:   %d from %s\n", status.Courses, status.Source)
	fmt.Printf("Storage:   %s\n", status.Storage)
	fmt.Printf("Events:    %t\n", status.Events)
	fmt.Printf("Clients:   %d\n", status.Clients)
	fmt.Printf("Workshop:  %s", status.State)
	if status.CourseID != "" {
		fmt.Printf(" (%s)", status.CourseID)
	}
	fmt.Println()
	fmt.Printf("Address:   %s\n", daemonAddr)

	return nil
}

// cmdLogs shows daemon logs
func cmdLogs() error {
	workshopDir, err := config.WorkshopDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(workshopDir, "logs", "workshopd.log")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, _ := file.Stat()
	offset := info.Size() - 4096
	if offset < 0 {
		offset = 0
	}
	_, _ = file.Seek(offset, 0)

	reader := bufio.NewReader(file)
	// Skip partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}

	return scanner.Err()
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Workshop Configuration")

	fmt.Println("\nDaemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nCourses:")
	if cfg.Courses.URL != "" {
		fmt.Printf("  url: %s\n", cfg.Courses.URL)
	} else {
		fmt.Printf("  path: %s\n", cfg.Courses.Path)
	}
	if cfg.Courses.Default != "" {
		fmt.Printf("  default: %s\n", cfg.Courses.Default)
	}
	fmt.Printf("  fetch: timeout=%s attempts=%d\n", cfg.Fetch.Timeout(), cfg.Fetch.MaxAttempts)

	fmt.Println("\nCarousel:")
	fmt.Printf("  settle: %s\n", cfg.Carousel.Settle())
	fmt.Printf("  swipe_threshold: %.0fpx\n", cfg.Carousel.SwipeThreshold)
	fmt.Printf("  wheel_threshold: %.0f\n", cfg.Carousel.WheelThreshold)

	fmt.Println("\nStorage:")
	fmt.Printf("  driver: %s\n", cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		fmt.Printf("  path: %s\n", cfg.Storage.SQLitePath)
	case config.StorageDriverPostgres:
		fmt.Printf("  url: %s\n", secretStatus(cfg.Storage.PostgresURL))
	}

	fmt.Println("\nEvents:")
	fmt.Printf("  enabled: %t\n", cfg.Events.Enabled)
	if cfg.Events.Enabled {
		fmt.Printf("  amqp_url: %s\n", secretStatus(cfg.Events.AMQPURL))
	}

	fmt.Println("\nMetrics:")
	fmt.Printf("  enabled: %t\n", cfg.Metrics.Enabled)

	workshopDir, _ := config.WorkshopDir()
	fmt.Printf("\nConfig path: %s\n", filepath.Join(workshopDir, "config.yaml"))

	return nil
}

func secretStatus(s string) string {
	if s == "" {
		return "✗ not set"
	}
	return "✓ set"
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	return newClient(daemonAddr).healthy()
}

// findDaemonBinary locates the workshopd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("workshopd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	self, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(self), "workshopd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	locations := []string{
		"/usr/local/bin/workshopd",
		"./workshopd",
		"./cmd/workshopd/workshopd",
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("workshopd binary not found (build with 'go build ./cmd/workshopd')")
}
