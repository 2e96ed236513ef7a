package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attempt records one submission against an exercise.
type Attempt struct {
	ID            uuid.UUID `json:"id"`
	CourseID      string    `json:"course_id"`
	ExerciseIndex int       `json:"exercise_index"`
	Passed        bool      `json:"passed"`
	CodeLength    int       `json:"code_length"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// NewAttempt creates an attempt stamped with a fresh id and the current time.
func NewAttempt(courseID string, exerciseIndex int, passed bool, codeLength int) *Attempt {
	return &Attempt{
		ID:            uuid.New(),
		CourseID:      courseID,
		ExerciseIndex: exerciseIndex,
		Passed:        passed,
		CodeLength:    codeLength,
		SubmittedAt:   time.Now().UTC(),
	}
}

// AttemptStats aggregates attempts per exercise.
type AttemptStats struct {
	CourseID      string `json:"course_id"`
	ExerciseIndex int    `json:"exercise_index"`
	Attempts      int    `json:"attempts"`
	Passed        int    `json:"passed"`
}
