// Package engine assembles a running workshop from configuration: the course
// catalog, the carousel, the controller and their collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/workshop/internal/carousel"
	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/storage"
	"github.com/felixgeelhaar/workshop/internal/storage/local"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

// Metrics is what the engine reports to. *metrics.Metrics satisfies it.
type Metrics interface {
	workshop.Metrics
	ObserveTransition(source string)
}

// Options configures an Engine. Config is required; everything else is
// optional.
type Options struct {
	Config *config.LocalConfig
	// Source overrides the course source derived from Config.
	Source course.Source
	// StateDir holds persisted preferences. Empty disables persistence.
	StateDir  string
	History   storage.History
	Publisher workshop.EventPublisher
	Metrics   Metrics
	Clock     carousel.Clock
	Logger    *slog.Logger

	// OnCarouselChange and OnWorkshopChange receive state after every change.
	OnCarouselChange func(carousel.State)
	OnWorkshopChange func(workshop.Snapshot)
}

// Engine is a fully wired workshop.
type Engine struct {
	Config     *config.LocalConfig
	Loader     *course.Loader
	Catalog    *course.Catalog
	Controller *workshop.Controller
	Carousel   *carousel.Carousel
	Notices    *workshop.NoticeBoard
	History    storage.History

	logger *slog.Logger
	unsub  func()
}

// NewSource builds the course source described by cfg: the remote base URL
// when set, the local directory otherwise.
func NewSource(cfg *config.LocalConfig, logger *slog.Logger) (course.Source, error) {
	if cfg.Courses.URL != "" {
		return course.NewHTTPSource(course.HTTPSourceConfig{
			BaseURL:          cfg.Courses.URL,
			Timeout:          cfg.Fetch.Timeout(),
			MaxAttempts:      cfg.Fetch.MaxAttempts,
			InitialDelay:     cfg.Fetch.InitialDelay(),
			FailureThreshold: cfg.Fetch.FailureThreshold,
			Logger:           logger,
		})
	}
	return course.NewDirSource(cfg.Courses.Path), nil
}

// New loads the course index and wires the engine. The carousel is
// positioned on the last persisted course when it still exists.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	source := opts.Source
	if source == nil {
		var err error
		source, err = NewSource(opts.Config, logger)
		if err != nil {
			return nil, fmt.Errorf("create course source: %w", err)
		}
	}

	loader := course.NewLoader(source, logger)
	catalog := course.NewCatalog(loader)
	if err := catalog.Load(ctx); err != nil {
		return nil, err
	}

	e := &Engine{
		Config:  opts.Config,
		Loader:  loader,
		Catalog: catalog,
		Notices: workshop.NewNoticeBoard(50),
		History: opts.History,
		logger:  logger,
	}

	var wsMetrics workshop.Metrics
	if opts.Metrics != nil {
		wsMetrics = opts.Metrics
	}
	var recorder workshop.AttemptRecorder
	if opts.History != nil {
		recorder = opts.History
	}
	e.Controller = workshop.New(workshop.Options{
		Loader:    loader,
		Notifier:  e.Notices,
		Recorder:  recorder,
		Publisher: opts.Publisher,
		Metrics:   wsMetrics,
		Logger:    logger,
	})

	var prefs carousel.Preferences
	if opts.StateDir != "" {
		store, err := local.NewStore(opts.StateDir)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		prefs = local.NewPreferences(store)
	}

	var onTransition func(carousel.Source)
	if opts.Metrics != nil {
		onTransition = func(s carousel.Source) { opts.Metrics.ObserveTransition(string(s)) }
	}

	cfg := opts.Config.Carousel
	car, err := carousel.New(catalog.List(), carousel.Options{
		Settle:         cfg.Settle(),
		SwipeThreshold: cfg.SwipeThreshold,
		WheelThreshold: cfg.WheelThreshold,
		Clock:          opts.Clock,
		Preferences:    prefs,
		Committer:      e.Controller,
		Logger:         logger,
		OnTransition:   onTransition,
		OnChange:       opts.OnCarouselChange,
	})
	if err != nil {
		return nil, err
	}
	e.Carousel = car

	if err := car.Restore(ctx); err != nil {
		logger.Warn("failed to restore last course", "error", err)
	}
	if def := opts.Config.Courses.Default; def != "" && !hasLastCourse(ctx, prefs) {
		e.moveTo(def)
	}

	onChange := opts.OnWorkshopChange
	e.unsub = e.Controller.Subscribe(func(s workshop.Snapshot) {
		car.SetActive(s.State == workshop.StateSelectingCourse)
		if onChange != nil {
			onChange(s)
		}
	})

	logger.Info("workshop engine ready", "courses", catalog.Len(), "source", fmt.Sprint(source))
	return e, nil
}

// SelectCourse positions the carousel on courseID and commits it, exactly as
// if the learner had navigated there and pressed Enter.
func (e *Engine) SelectCourse(ctx context.Context, courseID string) error {
	if e.Catalog.IndexOf(courseID) < 0 {
		return fmt.Errorf("%w: %s", domain.ErrCourseNotFound, courseID)
	}
	e.moveTo(courseID)
	return e.Carousel.Commit(ctx)
}

// moveTo jumps the carousel to courseID without waiting for the animation.
func (e *Engine) moveTo(courseID string) {
	i := e.Catalog.IndexOf(courseID)
	if i < 0 || e.Carousel.State().Index == i {
		return
	}
	e.Carousel.Settle()
	if _, err := e.Carousel.JumpTo(i); err != nil {
		e.logger.Warn("failed to move carousel", "course_id", courseID, "error", err)
	}
	e.Carousel.Settle()
}

// Close stops timers and subscriptions.
func (e *Engine) Close() {
	if e.unsub != nil {
		e.unsub()
	}
	e.Carousel.Close()
}

// hasLastCourse reports whether a previous selection was persisted.
func hasLastCourse(ctx context.Context, prefs carousel.Preferences) bool {
	if prefs == nil {
		return false
	}
	last, _ := prefs.LastCourse(ctx)
	return last != ""
}
