// Package storage opens the configured attempt-history backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/storage/postgres"
	"github.com/felixgeelhaar/workshop/internal/storage/sqlite"
)

// ErrDisabled is returned by Open when the driver is "none".
var ErrDisabled = errors.New("attempt history disabled")

// History records and reports submission attempts.
type History interface {
	Record(ctx context.Context, attempt *domain.Attempt) error
	List(ctx context.Context, courseID string, limit int) ([]*domain.Attempt, error)
	Stats(ctx context.Context, courseID string) ([]domain.AttemptStats, error)
}

// EventLog keeps progress events locally.
type EventLog interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// Backend is an opened storage backend.
type Backend struct {
	Driver  string
	History History
	// Events is nil for backends without a local event log.
	Events EventLog
	// SQLiteEvents exposes the local event log for reading when the
	// backend is SQLite.
	SQLiteEvents *sqlite.EventStore
	close        func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	switch cfg.Driver {
	case config.StorageDriverSQLite, "":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		events := sqlite.NewEventStore(db)
		slog.Debug("attempt history opened", "driver", config.StorageDriverSQLite, "path", cfg.SQLitePath)
		return &Backend{
			Driver:       config.StorageDriverSQLite,
			History:      sqlite.NewAttemptStore(db),
			Events:       events,
			SQLiteEvents: events,
			close:        db.Close,
		}, nil

	case config.StorageDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresURL, postgres.DefaultMaxConns)
		if err != nil {
			return nil, err
		}
		store := postgres.NewAttemptStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Driver:  config.StorageDriverPostgres,
			History: store,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StorageDriverNone:
		return nil, ErrDisabled

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
