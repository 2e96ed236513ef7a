// Package carousel implements the course selector shown before a workshop
// starts: a bounded position that locks while a transition animates.
package carousel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
)

// Defaults for Options.
const (
	DefaultSettle         = 600 * time.Millisecond
	DefaultSwipeThreshold = 50
	DefaultWheelThreshold = 10
)

var (
	ErrNoSelection = errors.New("no course selected")
	ErrInactive    = errors.New("carousel is not the active view")
)

// Source names the input that caused a transition.
type Source string

const (
	SourceButton Source = "button"
	SourceWheel  Source = "wheel"
	SourceTouch  Source = "touch"
	SourceKey    Source = "key"
	SourceDot    Source = "dot"
)

// State is a snapshot of the carousel.
type State struct {
	Courses          []domain.CourseSummary `json:"courses"`
	Index            int                    `json:"index"`
	SelectedCourseID string                 `json:"selected_course_id"`
	Animating        bool                   `json:"animating"`
	Active           bool                   `json:"active"`
}

// Indicator updates the visual position when a transition starts. An error
// aborts the transition.
type Indicator interface {
	Show(State) error
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func(State) error

func (f IndicatorFunc) Show(s State) error { return f(s) }

// Preferences persists the last selected course id.
type Preferences interface {
	LastCourse(ctx context.Context) (string, error)
	SetLastCourse(ctx context.Context, id string) error
}

// Committer starts the workshop for a chosen course.
type Committer interface {
	Select(ctx context.Context, courseID string) error
}

// Options configures a Carousel.
type Options struct {
	Settle         time.Duration
	SwipeThreshold float64
	WheelThreshold float64
	Clock          Clock
	Indicator      Indicator
	Preferences    Preferences
	Committer      Committer
	Logger         *slog.Logger

	// OnTransition is called for every accepted transition.
	OnTransition func(Source)
	// OnChange is called after every state change, outside the lock.
	OnChange func(State)
}

// Carousel is safe for concurrent use.
type Carousel struct {
	mu        sync.Mutex
	courses   []domain.CourseSummary
	index     int
	selected  string
	animating bool
	active    bool
	touching  bool
	touchY    float64
	gen       uint64
	timer     Timer

	settle         time.Duration
	swipeThreshold float64
	wheelThreshold float64
	clock          Clock
	indicator      Indicator
	prefs          Preferences
	committer      Committer
	logger         *slog.Logger
	onTransition   func(Source)
	onChange       func(State)
}

// New creates a carousel over courses positioned at the first course.
func New(courses []domain.CourseSummary, opts Options) (*Carousel, error) {
	if len(courses) == 0 {
		return nil, domain.ErrNoCourses
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.SwipeThreshold <= 0 {
		opts.SwipeThreshold = DefaultSwipeThreshold
	}
	if opts.WheelThreshold <= 0 {
		opts.WheelThreshold = DefaultWheelThreshold
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Carousel{
		courses:        append([]domain.CourseSummary(nil), courses...),
		selected:       courses[0].ID,
		active:         true,
		settle:         opts.Settle,
		swipeThreshold: opts.SwipeThreshold,
		wheelThreshold: opts.WheelThreshold,
		clock:          opts.Clock,
		indicator:      opts.Indicator,
		prefs:          opts.Preferences,
		committer:      opts.Committer,
		logger:         opts.Logger,
		onTransition:   opts.OnTransition,
		onChange:       opts.OnChange,
	}
	return c, nil
}

// Restore positions the carousel on the persisted course, if it still exists.
func (c *Carousel) Restore(ctx context.Context) error {
	if c.prefs == nil {
		return nil
	}
	id, err := c.prefs.LastCourse(ctx)
	if err != nil {
		return fmt.Errorf("read last course: %w", err)
	}
	if id == "" {
		return nil
	}

	c.mu.Lock()
	restored := false
	for i, s := range c.courses {
		if s.ID == id && !c.animating {
			c.index = i
			c.selected = id
			restored = true
			break
		}
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if restored {
		c.logger.Debug("carousel restored", "course_id", id, "index", state.Index)
		c.changed(state)
	}
	return nil
}

// Next moves one course forward. Moving past the end is a no-op.
func (c *Carousel) Next() (bool, error) {
	return c.step(1, SourceButton)
}

// Previous moves one course back. Moving before the start is a no-op.
func (c *Carousel) Previous() (bool, error) {
	return c.step(-1, SourceButton)
}

// JumpTo moves directly to index i.
func (c *Carousel) JumpTo(i int) (bool, error) {
	return c.transition(func(int) int { return i }, SourceDot)
}

func (c *Carousel) step(delta int, source Source) (bool, error) {
	return c.transition(func(cur int) int { return cur + delta }, source)
}

// transition runs the guarded index change. target computes the new index
// from the current one under the lock.
func (c *Carousel) transition(target func(int) int, source Source) (bool, error) {
	c.mu.Lock()
	if c.animating {
		c.mu.Unlock()
		return false, nil
	}
	prev := c.index
	next := target(prev)
	if next < 0 || next >= len(c.courses) || next == prev {
		c.mu.Unlock()
		return false, nil
	}

	c.animating = true
	c.index = next
	c.selected = c.courses[next].ID
	c.gen++
	gen := c.gen
	state := c.stateLocked()
	c.mu.Unlock()

	if c.indicator != nil {
		if err := c.indicator.Show(state); err != nil {
			c.mu.Lock()
			if c.gen == gen {
				c.animating = false
				c.index = prev
				c.selected = c.courses[prev].ID
			}
			state = c.stateLocked()
			c.mu.Unlock()
			c.changed(state)
			return false, fmt.Errorf("update indicator: %w", err)
		}
	}

	c.mu.Lock()
	if c.gen == gen && c.animating {
		c.timer = c.clock.AfterFunc(c.settle, func() { c.finish(gen) })
	}
	c.mu.Unlock()

	if c.onTransition != nil {
		c.onTransition(source)
	}
	c.changed(state)
	return true, nil
}

// finish returns to Idle if gen is still the running transition.
func (c *Carousel) finish(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || !c.animating {
		c.mu.Unlock()
		return
	}
	c.animating = false
	c.timer = nil
	state := c.stateLocked()
	c.mu.Unlock()

	c.changed(state)
}

// Settle ends a running transition immediately.
func (c *Carousel) Settle() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.gen
	c.mu.Unlock()

	c.finish(gen)
}

// Close stops a pending settle timer and clears the lock.
func (c *Carousel) Close() {
	c.Settle()
}

// Wheel routes a pointer wheel event. Small deltas are ignored.
func (c *Carousel) Wheel(deltaY float64) (bool, error) {
	if math.Abs(deltaY) < c.wheelThreshold {
		return false, nil
	}
	if deltaY > 0 {
		return c.step(1, SourceWheel)
	}
	return c.step(-1, SourceWheel)
}

// TouchStart records the start of a vertical touch.
func (c *Carousel) TouchStart(y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.touching = true
	c.touchY = y
}

// TouchEnd completes a touch. Swiping up moves forward, swiping down moves
// back; movements shorter than the threshold are taps.
func (c *Carousel) TouchEnd(y float64) (bool, error) {
	c.mu.Lock()
	if !c.touching {
		c.mu.Unlock()
		return false, nil
	}
	c.touching = false
	diff := c.touchY - y
	c.mu.Unlock()

	if math.Abs(diff) < c.swipeThreshold {
		return false, nil
	}
	if diff > 0 {
		return c.step(1, SourceTouch)
	}
	return c.step(-1, SourceTouch)
}

// Key routes a keyboard key. Keys are ignored unless the carousel is the
// active view. Enter commits the selection.
func (c *Carousel) Key(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if !active {
		return false, nil
	}

	switch key {
	case "ArrowDown", "ArrowRight":
		return c.step(1, SourceKey)
	case "ArrowUp", "ArrowLeft":
		return c.step(-1, SourceKey)
	case "Enter":
		if err := c.Commit(ctx); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// SetActive marks whether the carousel is the visible view.
func (c *Carousel) SetActive(active bool) {
	c.mu.Lock()
	if c.active == active {
		c.mu.Unlock()
		return
	}
	c.active = active
	state := c.stateLocked()
	c.mu.Unlock()

	c.changed(state)
}

// Commit persists the selected course and hands it to the committer.
func (c *Carousel) Commit(ctx context.Context) error {
	c.mu.Lock()
	id := c.selected
	c.mu.Unlock()

	if id == "" {
		return ErrNoSelection
	}

	if c.prefs != nil {
		if err := c.prefs.SetLastCourse(ctx, id); err != nil {
			c.logger.Warn("failed to persist selected course", "course_id", id, "error", err)
		}
	}

	if c.committer == nil {
		return nil
	}
	if err := c.committer.Select(ctx, id); err != nil {
		return fmt.Errorf("select course %s: %w", id, err)
	}
	return nil
}

// State returns a snapshot.
func (c *Carousel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Len returns the number of courses.
func (c *Carousel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.courses)
}

func (c *Carousel) stateLocked() State {
	courses := make([]domain.CourseSummary, len(c.courses))
	copy(courses, c.courses)
	return State{
		Courses:          courses,
		Index:            c.index,
		SelectedCourseID: c.selected,
		Animating:        c.animating,
		Active:           c.active,
	}
}

func (c *Carousel) changed(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
