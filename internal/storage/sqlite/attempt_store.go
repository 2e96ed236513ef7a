package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore records submission history in SQLite.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt store.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Record stores one attempt.
func (s *AttemptStore) Record(ctx context.Context, a *domain.Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, course_id, exercise_index, passed, code_length, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.CourseID, a.ExerciseIndex, a.Passed, a.CodeLength, a.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// List returns the most recent attempts, newest first. An empty courseID
// lists every course.
func (s *AttemptStore) List(ctx context.Context, courseID string, limit int) ([]*domain.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, course_id, exercise_index, passed, code_length, submitted_at FROM attempts"
	var args []any
	if courseID != "" {
		query += " WHERE course_id = ?"
		args = append(args, courseID)
	}
	query += " ORDER BY submitted_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		var (
			a           domain.Attempt
			id          string
			submittedAt time.Time
		)
		if err := rows.Scan(&id, &a.CourseID, &a.ExerciseIndex, &a.Passed, &a.CodeLength, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
		}
		a.ID = parsed
		a.SubmittedAt = submittedAt.UTC()
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// Stats aggregates attempts per course and exercise.
func (s *AttemptStore) Stats(ctx context.Context, courseID string) ([]domain.AttemptStats, error) {
	query := `SELECT course_id, exercise_index, COUNT(*), COALESCE(SUM(passed), 0)
		FROM attempts`
	var args []any
	if courseID != "" {
		query += " WHERE course_id = ?"
		args = append(args, courseID)
	}
	query += " GROUP BY course_id, exercise_index ORDER BY course_id, exercise_index"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempt stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.AttemptStats
	for rows.Next() {
		var st domain.AttemptStats
		if err := rows.Scan(&st.CourseID, &st.ExerciseIndex, &st.Attempts, &st.Passed); err != nil {
			return nil, fmt.Errorf("scan attempt stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
