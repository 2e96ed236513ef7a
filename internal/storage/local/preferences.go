package local

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	preferencesCollection = "preferences"
	lastCourseKey         = "last_course"
)

type lastCourseRecord struct {
	CourseID  string    `json:"course_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preferences persists learner preferences in the store.
type Preferences struct {
	store *Store
}

// NewPreferences creates preferences backed by store.
func NewPreferences(store *Store) *Preferences {
	return &Preferences{store: store}
}

// LastCourse returns the last selected course id, or "" if none was saved.
func (p *Preferences) LastCourse(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var rec lastCourseRecord
	if err := p.store.Load(preferencesCollection, lastCourseKey, &rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load last course: %w", err)
	}
	return rec.CourseID, nil
}

// SetLastCourse saves the selected course id.
func (p *Preferences) SetLastCourse(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := lastCourseRecord{CourseID: id, UpdatedAt: time.Now().UTC()}
	if err := p.store.Save(preferencesCollection, lastCourseKey, rec); err != nil {
		return fmt.Errorf("save last course: %w", err)
	}
	return nil
}
