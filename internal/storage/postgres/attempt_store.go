package postgres

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS workshop_attempts (
		id             UUID PRIMARY KEY,
		course_id      TEXT NOT NULL,
		exercise_index INTEGER NOT NULL,
		passed         BOOLEAN NOT NULL DEFAULT FALSE,
		code_length    INTEGER NOT NULL DEFAULT 0,
		submitted_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workshop_attempts_course
		ON workshop_attempts (course_id, exercise_index);
`

// AttemptStore records submission history in PostgreSQL.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates a new PostgreSQL attempt store
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// EnsureSchema creates the attempts table when it does not exist.
func (s *AttemptStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure attempts schema: %w", err)
	}
	return nil
}

// Record inserts an attempt
func (s *AttemptStore) Record(ctx context.Context, a *domain.Attempt) error {
	query := `
		INSERT INTO workshop_attempts (id, course_id, exercise_index, passed, code_length, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.CourseID, a.ExerciseIndex, a.Passed, a.CodeLength, a.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// List retrieves the most recent attempts, newest first. An empty courseID
// lists every course.
func (s *AttemptStore) List(ctx context.Context, courseID string, limit int) ([]*domain.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, course_id, exercise_index, passed, code_length, submitted_at
		FROM workshop_attempts
		WHERE $1 = '' OR course_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Stats aggregates attempts per course and exercise.
func (s *AttemptStore) Stats(ctx context.Context, courseID string) ([]domain.AttemptStats, error) {
	query := `
		SELECT course_id, exercise_index, COUNT(*), COUNT(*) FILTER (WHERE passed)
		FROM workshop_attempts
		WHERE $1 = '' OR course_id = $1
		GROUP BY course_id, exercise_index
		ORDER BY course_id, exercise_index
	`
	rows, err := s.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("query attempt stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.AttemptStats
	for rows.Next() {
		var st domain.AttemptStats
		var total, passedN int64
		if err := rows.Scan(&st.CourseID, &st.ExerciseIndex, &total, &passedN); err != nil {
			return nil, fmt.Errorf("scan attempt stats: %w", err)
		}
		st.Attempts = int(total)
		st.Passed = int(passedN)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func scanAttempt(row pgx.Row) (*domain.Attempt, error) {
	var a domain.Attempt
	err := row.Scan(&a.ID, &a.CourseID, &a.ExerciseIndex, &a.Passed, &a.CodeLength, &a.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.SubmittedAt = a.SubmittedAt.UTC()
	return &a, nil
}
