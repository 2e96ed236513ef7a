package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/daemon"
	"github.com/felixgeelhaar/workshop/internal/engine"
	"github.com/felixgeelhaar/workshop/internal/metrics"
	"github.com/felixgeelhaar/workshop/internal/queue"
	"github.com/felixgeelhaar/workshop/internal/storage"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "workshopd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	// Ensure ~/.workshop directory exists
	workshopDir, err := config.EnsureWorkshopDir()
	if err != nil {
		return fmt.Errorf("ensure workshop dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := setupLogging(workshopDir, parseLogLevel(cfg.Daemon.LogLevel))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(workshopDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx := context.Background()

	opts := engine.Options{
		StateDir: filepath.Join(workshopDir, "state"),
		Logger:   slog.Default(),
	}
	var publishers workshop.Publishers

	// Attempt history
	driver := config.StorageDriverNone
	backend, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		slog.Info("attempt history disabled")
	case err != nil:
		return fmt.Errorf("open storage: %w", err)
	default:
		defer backend.Close()
		driver = backend.Driver
		opts.History = backend.History
		if backend.Events != nil {
			publishers = append(publishers, backend.Events)
		}
	}

	// Progress events
	if cfg.Events.Enabled {
		conn, err := queue.NewConnection(cfg.Events.AMQPURL)
		if err != nil {
			slog.Warn("event queue unavailable, continuing without it", "error", err)
		} else {
			defer conn.Close()
			publishers = append(publishers, queue.NewPublisher(conn))
		}
	}
	if len(publishers) > 0 {
		opts.Publisher = publishers
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	server, err := daemon.NewServer(ctx, daemon.ServerConfig{
		Config:  cfg,
		Engine:  opts,
		Metrics: m,
		Version: Version,
		Storage: driver,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
