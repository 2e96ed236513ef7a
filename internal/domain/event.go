package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a progress event.
type EventType string

const (
	EventCourseLoaded      EventType = "course_loaded"
	EventLoadFailed        EventType = "load_failed"
	EventExercisePassed    EventType = "exercise_passed"
	EventExerciseFailed    EventType = "exercise_failed"
	EventWorkshopCompleted EventType = "workshop_completed"
)

// Event is a learner progress event published for external consumers.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Type          EventType `json:"type"`
	CourseID      string    `json:"course_id"`
	ExerciseIndex int       `json:"exercise_index"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(typ EventType, courseID string, exerciseIndex int) *Event {
	return &Event{
		ID:            uuid.New(),
		Type:          typ,
		CourseID:      courseID,
		ExerciseIndex: exerciseIndex,
		OccurredAt:    time.Now().UTC(),
	}
}
