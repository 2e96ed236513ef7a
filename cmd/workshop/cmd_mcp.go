package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/engine"
	mcpserver "github.com/felixgeelhaar/workshop/internal/mcp"
	"github.com/felixgeelhaar/workshop/internal/storage"
)

// cmdMCP runs an in-process workshop behind the MCP server on stdio. Stdout
// carries the protocol, so logs go to stderr.
func cmdMCP() error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	workshopDir, err := config.EnsureWorkshopDir()
	if err != nil {
		return fmt.Errorf("ensure workshop dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Daemon.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := engine.Options{
		Config:   cfg,
		StateDir: filepath.Join(workshopDir, "state"),
		Logger:   logger,
	}

	backend, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
	case err != nil:
		return fmt.Errorf("open storage: %w", err)
	default:
		defer backend.Close()
		opts.History = backend.History
		if backend.Events != nil {
			opts.Publisher = backend.Events
		}
	}

	eng, err := engine.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		Engine:  eng,
		Version: Version,
	})

	return mcpSrv.ServeStdio(ctx)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
