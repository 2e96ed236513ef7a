package workshop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
)

// Editor is the code editor surface: it yields the current text and accepts
// text to display.
type Editor interface {
	Code() string
	SetCode(code string)
}

// NoticeLevel grades a notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Notifier shows notices to the learner.
type Notifier interface {
	Notify(Notice)
}

// CourseLoader loads a course by id.
type CourseLoader interface {
	Load(ctx context.Context, courseID string) (*course.Course, error)
}

// AttemptRecorder stores submission history.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *domain.Attempt) error
}

// EventPublisher forwards progress events.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// Metrics observes controller activity.
type Metrics interface {
	ObserveLoad(success bool, d time.Duration)
	ObserveSubmission(passed bool)
}

// Buffer is an in-memory Editor.
type Buffer struct {
	mu   sync.RWMutex
	code string
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Code returns the buffer text.
func (b *Buffer) Code() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.code
}

// SetCode replaces the buffer text.
func (b *Buffer) SetCode(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.code = code
}

// NoticeBoard keeps the most recent notices in memory.
type NoticeBoard struct {
	mu      sync.RWMutex
	notices []Notice
	limit   int
}

// NewNoticeBoard creates a board holding up to limit notices.
func NewNoticeBoard(limit int) *NoticeBoard {
	if limit <= 0 {
		limit = 20
	}
	return &NoticeBoard{limit: limit}
}

// Notify records a notice, dropping the oldest beyond the limit.
func (b *NoticeBoard) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.notices = append(b.notices, n)
	if len(b.notices) > b.limit {
		b.notices = b.notices[len(b.notices)-b.limit:]
	}
}

// Notices returns the recorded notices, oldest first.
func (b *NoticeBoard) Notices() []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Latest returns the newest notice.
func (b *NoticeBoard) Latest() (Notice, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.notices) == 0 {
		return Notice{}, false
	}
	return b.notices[len(b.notices)-1], true
}

// Publishers fans each event out to every publisher in order. All publishers
// are tried; their errors are joined.
type Publishers []EventPublisher

// Publish implements EventPublisher.
func (ps Publishers) Publish(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
