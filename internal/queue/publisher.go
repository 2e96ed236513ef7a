package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/google/uuid"
)

// JSONPublisher is the part of Connection the Publisher needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Publisher publishes learner progress events to the event queue
type Publisher struct {
	conn   JSONPublisher
	logger *slog.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(conn JSONPublisher) *Publisher {
	return &Publisher{conn: conn, logger: slog.Default()}
}

// Publish sends one event. Missing ids and timestamps are filled in.
func (p *Publisher) Publish(ctx context.Context, e *domain.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	if err := p.conn.PublishJSON(ctx, EventQueueName, e); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}

	p.logger.Debug("published event",
		"event_id", e.ID,
		"type", e.Type,
		"course_id", e.CourseID,
		"exercise", e.ExerciseIndex,
	)
	return nil
}
