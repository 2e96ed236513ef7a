package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/google/uuid"
)

// EventStore keeps a local log of progress events.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite-backed event log.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Publish appends an event to the log.
func (s *EventStore) Publish(ctx context.Context, e *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, course_id, exercise_index, message, occurred_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID.String(), string(e.Type), e.CourseID, e.ExerciseIndex, e.Message, e.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Since returns events that occurred after t, oldest first, optionally
// filtered by course.
func (s *EventStore) Since(ctx context.Context, courseID string, t time.Time, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, type, course_id, exercise_index, message, occurred_at FROM events WHERE occurred_at > ?"
	args := []any{t.UTC()}
	if courseID != "" {
		query += " AND course_id = ?"
		args = append(args, courseID)
	}
	query += " ORDER BY occurred_at ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			e          domain.Event
			id, typ    string
			occurredAt time.Time
		)
		if err := rows.Scan(&id, &typ, &e.CourseID, &e.ExerciseIndex, &e.Message, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse event id %q: %w", id, err)
		}
		e.ID = parsed
		e.Type = domain.EventType(typ)
		e.OccurredAt = occurredAt.UTC()
		events = append(events, &e)
	}
	return events, rows.Err()
}
