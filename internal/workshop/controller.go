// Package workshop orchestrates a learner's run through a course: course
// selection, onboarding, the exercise sequence and completion.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/rules"
	"github.com/felixgeelhaar/workshop/internal/ui"
)

// State is the controller's position in the workshop flow.
type State string

const (
	StateSelectingCourse State = "selecting_course"
	StateOnboarding      State = "onboarding"
	StateRunningExercise State = "running_exercise"
	StateCompleted       State = "completed"
)

var (
	ErrSuperseded         = errors.New("course load superseded by a newer request")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNotRunning         = errors.New("no exercise is running")
	ErrCompleted          = errors.New("workshop already completed")
	ErrNotLoaded          = errors.New("course data not loaded")
	ErrExerciseOutOfRange = errors.New("exercise index out of range")
)

const tryAgainMessage = "Not quite there yet. Check your code and try again."

// Feedback is the outcome of a submission.
type Feedback struct {
	Passed    bool     `json:"passed"`
	Exercise  int      `json:"exercise"`
	Next      int      `json:"next,omitempty"`
	Completed bool     `json:"completed"`
	Message   string   `json:"message"`
	Unmet     []string `json:"unmet,omitempty"`
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State          State     `json:"state"`
	CourseID       string    `json:"course_id,omitempty"`
	CourseTitle    string    `json:"course_title,omitempty"`
	ActiveExercise int       `json:"active_exercise"`
	ExerciseCount  int       `json:"exercise_count"`
	ExerciseTitle  string    `json:"exercise_title,omitempty"`
	DataLoaded     bool      `json:"data_loaded"`
	Loading        bool      `json:"loading"`
	Generation     uint64    `json:"generation"`
	LastFeedback   *Feedback `json:"last_feedback,omitempty"`
}

// Options configures a Controller. Loader is required.
type Options struct {
	Loader    CourseLoader
	Builder   *ui.Builder
	Screen    *ui.Screen
	Editor    Editor
	Notifier  Notifier
	Recorder  AttemptRecorder
	Publisher EventPublisher
	Metrics   Metrics
	Logger    *slog.Logger
}

// Controller owns the active course and exercise. It is safe for concurrent
// use; course fetches run outside the lock and the newest request wins.
type Controller struct {
	mu         sync.Mutex
	state      State
	course     *course.Course
	active     int
	dataLoaded bool
	loading    bool
	token      uint64
	feedback   *Feedback

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int

	loader    CourseLoader
	builder   *ui.Builder
	screen    *ui.Screen
	editor    Editor
	notifier  Notifier
	recorder  AttemptRecorder
	publisher EventPublisher
	metrics   Metrics
	logger    *slog.Logger
}

// New creates a controller in the SelectingCourse state.
func New(opts Options) *Controller {
	if opts.Builder == nil {
		opts.Builder = ui.NewBuilder()
	}
	if opts.Screen == nil {
		opts.Screen = ui.NewScreen()
	}
	if opts.Editor == nil {
		opts.Editor = NewBuffer()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNoticeBoard(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		state:       StateSelectingCourse,
		subscribers: make(map[int]func(Snapshot)),
		loader:      opts.Loader,
		builder:     opts.Builder,
		screen:      opts.Screen,
		editor:      opts.Editor,
		notifier:    opts.Notifier,
		recorder:    opts.Recorder,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Screen returns the screen the controller renders into.
func (c *Controller) Screen() *ui.Screen {
	return c.screen
}

// Editor returns the editor collaborator.
func (c *Controller) Editor() Editor {
	return c.editor
}

// Select loads courseID, renders it and moves to Onboarding. On failure the
// previously loaded course stays in place, a notice is shown and the state
// returns to SelectingCourse. A result that arrives after a newer Select was
// issued is discarded with ErrSuperseded.
func (c *Controller) Select(ctx context.Context, courseID string) error {
	c.mu.Lock()
	c.token++
	token := c.token
	c.dataLoaded = false
	c.loading = true
	c.mu.Unlock()
	c.publishState()

	start := time.Now()
	loaded, err := c.loader.Load(ctx, courseID)
	elapsed := time.Since(start)

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logger.Debug("discarding stale course load", "course_id", courseID)
		return ErrSuperseded
	}
	c.loading = false

	if err != nil {
		c.dataLoaded = c.course != nil
		c.state = StateSelectingCourse
		c.mu.Unlock()

		c.logger.Error("course load failed", "course_id", courseID, "error", err)
		c.notifier.Notify(Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("Could not load course %q. Please pick a course again.", courseID),
		})
		c.observeLoad(false, elapsed)
		c.publish(ctx, domain.EventLoadFailed, courseID, -1, err.Error())
		c.publishState()
		return err
	}

	c.course = loaded
	c.active = 0
	c.feedback = nil
	c.screen.Mount(c.builder.Render(loaded, c))
	c.dataLoaded = true
	c.state = StateOnboarding
	c.mu.Unlock()

	c.logger.Info("course selected", "course_id", courseID, "exercises", loaded.Len())
	c.observeLoad(true, elapsed)
	c.publish(ctx, domain.EventCourseLoaded, courseID, -1, "")
	c.publishState()
	return nil
}

// Begin leaves onboarding and starts the first exercise.
func (c *Controller) Begin() error {
	c.mu.Lock()
	if !c.dataLoaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.state != StateOnboarding {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, state)
	}
	starter := c.enterLocked(0)
	c.mu.Unlock()

	c.editor.SetCode(starter)
	c.publishState()
	return nil
}

// GoTo jumps to exercise i. It is rejected once the workshop is completed.
func (c *Controller) GoTo(i int) error {
	c.mu.Lock()
	if !c.dataLoaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	switch c.state {
	case StateCompleted:
		c.mu.Unlock()
		return ErrCompleted
	case StateSelectingCourse:
		c.mu.Unlock()
		return fmt.Errorf("%w: go to exercise while selecting a course", ErrInvalidTransition)
	}
	if i < 0 || i >= c.course.Len() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrExerciseOutOfRange, i)
	}
	starter := c.enterLocked(i)
	c.mu.Unlock()

	c.editor.SetCode(starter)
	c.publishState()
	return nil
}

// enterLocked makes exercise i active and renders its panel. It returns the
// starter code for the editor.
func (c *Controller) enterLocked(i int) string {
	ex := c.course.Exercises[i]
	c.state = StateRunningExercise
	c.active = i
	c.feedback = nil
	c.screen.SetRegion(ui.RegionCompletion, nil)
	c.screen.SetRegion(ui.RegionExercise, c.builder.ExercisePanel(ex, c.course.Len()))
	if ex.Spec.Hint != "" {
		c.screen.Bind(ui.TargetHint, c.showHint)
	} else {
		c.screen.Unbind(ui.TargetHint)
	}
	return ex.Spec.StarterCode
}

// Submit validates code against the active exercise. A pass advances to the
// next exercise or completes the workshop; a failure leaves everything as
// it was.
func (c *Controller) Submit(ctx context.Context, code string) (*Feedback, error) {
	c.mu.Lock()
	ex, err := c.runningLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	courseID := c.course.ID
	fb := &Feedback{Exercise: ex.Index}
	var nextStarter string

	if ex.Validate(code) {
		fb.Passed = true
		if ex.Index == c.course.Len()-1 {
			c.state = StateCompleted
			c.screen.SetRegion(ui.RegionExercise, nil)
			c.screen.Unbind(ui.TargetHint)
			c.screen.SetRegion(ui.RegionCompletion, c.builder.Completion(c.course.Document))
			fb.Completed = true
			fb.Message = "Workshop complete!"
		} else {
			nextStarter = c.enterLocked(ex.Index + 1)
			fb.Next = ex.Index + 1
			fb.Message = fmt.Sprintf("Well done! On to exercise %d.", fb.Next+1)
		}
	} else {
		fb.Message = tryAgainMessage
		for _, r := range rules.Unmet(ex.Evaluate(code)) {
			fb.Unmet = append(fb.Unmet, r.String())
		}
	}
	c.feedback = fb
	c.mu.Unlock()

	if fb.Passed && !fb.Completed {
		c.editor.SetCode(nextStarter)
	}

	c.logger.Debug("submission evaluated",
		"course_id", courseID,
		"exercise", ex.Index+1,
		"passed", fb.Passed)

	c.record(ctx, domain.NewAttempt(courseID, ex.Index, fb.Passed, utf8.RuneCountInString(code)))
	if c.metrics != nil {
		c.metrics.ObserveSubmission(fb.Passed)
	}
	switch {
	case fb.Completed:
		c.publish(ctx, domain.EventExercisePassed, courseID, ex.Index, "")
		c.publish(ctx, domain.EventWorkshopCompleted, courseID, ex.Index, "")
		c.notifier.Notify(Notice{Level: NoticeSuccess, Message: fb.Message})
	case fb.Passed:
		c.publish(ctx, domain.EventExercisePassed, courseID, ex.Index, "")
	default:
		c.publish(ctx, domain.EventExerciseFailed, courseID, ex.Index, "")
	}

	c.publishState()
	return fb, nil
}

// Run submits the editor's current text.
func (c *Controller) Run(ctx context.Context) (*Feedback, error) {
	return c.Submit(ctx, c.editor.Code())
}

// runningLocked returns the active exercise if submissions are accepted.
func (c *Controller) runningLocked() (*course.Exercise, error) {
	if !c.dataLoaded || c.loading {
		return nil, ErrNotLoaded
	}
	switch c.state {
	case StateCompleted:
		return nil, ErrCompleted
	case StateRunningExercise:
		return c.course.Exercises[c.active], nil
	default:
		return nil, ErrNotRunning
	}
}

// ShowSolution puts the active exercise's solution in the editor.
func (c *Controller) ShowSolution() (string, error) {
	c.mu.Lock()
	ex, err := c.runningLocked()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	c.editor.SetCode(ex.Spec.SolutionCode)
	return ex.Spec.SolutionCode, nil
}

// ResetCode puts the active exercise's starter code back in the editor.
func (c *Controller) ResetCode() (string, error) {
	c.mu.Lock()
	ex, err := c.runningLocked()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	c.editor.SetCode(ex.Spec.StarterCode)
	return ex.Spec.StarterCode, nil
}

// Hint returns the active exercise's hint.
func (c *Controller) Hint() (string, error) {
	c.mu.Lock()
	ex, err := c.runningLocked()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return ex.Spec.Hint, nil
}

func (c *Controller) showHint() error {
	hint, err := c.Hint()
	if err != nil {
		return err
	}
	c.notifier.Notify(Notice{Level: NoticeInfo, Message: hint})
	return nil
}

// BackToCourses returns to course selection. The loaded course is kept.
func (c *Controller) BackToCourses() {
	c.mu.Lock()
	c.state = StateSelectingCourse
	c.feedback = nil
	c.mu.Unlock()

	c.publishState()
}

// Course returns the loaded course, if any.
func (c *Controller) Course() *course.Course {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.course
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:          c.state,
		ActiveExercise: c.active,
		DataLoaded:     c.dataLoaded,
		Loading:        c.loading,
		Generation:     c.screen.Generation(),
	}
	if c.course != nil {
		s.CourseID = c.course.ID
		s.CourseTitle = c.course.Title()
		s.ExerciseCount = c.course.Len()
		if ex, ok := c.course.Exercise(c.active); ok {
			s.ExerciseTitle = ex.Spec.Title
		}
	}
	if c.feedback != nil {
		fb := *c.feedback
		s.LastFeedback = &fb
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Controller) publishState() {
	snap := c.Snapshot()

	c.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) observeLoad(success bool, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveLoad(success, d)
	}
}

func (c *Controller) record(ctx context.Context, attempt *domain.Attempt) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, attempt); err != nil {
		c.logger.Warn("failed to record attempt",
			"course_id", attempt.CourseID,
			"exercise", attempt.ExerciseIndex+1,
			"error", err)
	}
}

func (c *Controller) publish(ctx context.Context, typ domain.EventType, courseID string, exercise int, message string) {
	if c.publisher == nil {
		return
	}
	event := domain.NewEvent(typ, courseID, exercise)
	event.Message = message
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish event", "type", typ, "course_id", courseID, "error", err)
	}
}
