// Package course loads course documents and builds their runtime exercises.
package course

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/preamble"
	"github.com/felixgeelhaar/workshop/internal/rules"
	"github.com/felixgeelhaar/workshop/internal/view"
)

// IndexPath is the location of the course index within a source.
const IndexPath = "index.json"

var courseIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidID reports whether id is usable as a course id.
func ValidID(id string) bool {
	return courseIDPattern.MatchString(id)
}

// Exercise is a compiled exercise: its spec plus the cached preamble and
// validation predicate. Exercises are rebuilt wholesale on every load.
type Exercise struct {
	Index        int
	Spec         domain.ExerciseSpec
	Rules        []rules.Rule
	Preamble     *view.Node
	PreambleHTML string
	Validate     rules.Predicate
}

// Evaluate reports the outcome of every rule for code.
func (e *Exercise) Evaluate(code string) []rules.Outcome {
	return rules.Evaluate(e.Rules, code)
}

// Course is a fully loaded course.
type Course struct {
	ID        string
	Document  domain.CourseDocument
	Exercises []*Exercise
	LoadedAt  time.Time
}

// Len returns the number of exercises.
func (c *Course) Len() int {
	return len(c.Exercises)
}

// Exercise returns the exercise at index i.
func (c *Course) Exercise(i int) (*Exercise, bool) {
	if i < 0 || i >= len(c.Exercises) {
		return nil, false
	}
	return c.Exercises[i], true
}

// Title returns the course title, falling back to the id.
func (c *Course) Title() string {
	if c.Document.Info.Title != "" {
		return c.Document.Info.Title
	}
	return c.ID
}

// Loader fetches and builds courses. It holds no course state, so a failed
// load never disturbs a course the caller already has.
type Loader struct {
	source   Source
	validate *structValidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoader creates a loader reading from source.
func NewLoader(source Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		source:   source,
		validate: newStructValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Source returns the loader's source.
func (l *Loader) Source() Source {
	return l.source
}

// Load fetches <id>.json and builds every exercise. Any failure aborts the
// whole load with a *domain.LoadError.
func (l *Loader) Load(ctx context.Context, id string) (*Course, error) {
	start := l.now()

	if !ValidID(id) {
		return nil, domain.NewFetchError(id, domain.ErrInvalidCourseID)
	}

	data, err := l.source.Fetch(ctx, id+".json")
	if err != nil {
		return nil, domain.NewFetchError(id, err)
	}

	course, err := l.Build(id, data)
	if err != nil {
		return nil, err
	}

	l.logger.Info("course loaded",
		"course_id", id,
		"exercises", len(course.Exercises),
		"duration", l.now().Sub(start))
	return course, nil
}

// Build parses and compiles a course document that was already fetched.
func (l *Loader) Build(id string, data []byte) (*Course, error) {
	var doc domain.CourseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewParseError(id, err)
	}
	if err := l.validate.Struct(doc); err != nil {
		return nil, domain.NewCompileError(id, -1, err)
	}
	if doc.Info.ID != "" && doc.Info.ID != id {
		l.logger.Warn("course id differs from document", "course_id", id, "document_id", doc.Info.ID)
	}

	exercises := make([]*Exercise, 0, len(doc.Exercises))
	for i, raw := range doc.Exercises {
		ex, err := l.compileExercise(i, raw)
		if err != nil {
			return nil, domain.NewCompileError(id, i, err)
		}
		exercises = append(exercises, ex)
	}

	return &Course{
		ID:        id,
		Document:  doc,
		Exercises: exercises,
		LoadedAt:  l.now().UTC(),
	}, nil
}

func (l *Loader) compileExercise(index int, raw json.RawMessage) (*Exercise, error) {
	var spec domain.ExerciseSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decode exercise: %w", err)
	}
	if err := l.validate.Struct(spec); err != nil {
		return nil, err
	}

	block := preamble.BuildFor(index, spec)
	html, err := view.HTML(block)
	if err != nil {
		return nil, fmt.Errorf("render preamble: %w", err)
	}

	ruleSet := rules.Decode(spec.ValidationRules)
	for _, r := range ruleSet {
		if r.Kind == rules.KindInvalid {
			l.logger.Warn("unrecognised validation rule",
				"exercise", index+1,
				"title", spec.Title,
				"rule", r.Raw)
		}
	}

	return &Exercise{
		Index:        index,
		Spec:         spec,
		Rules:        ruleSet,
		Preamble:     block,
		PreambleHTML: html,
		Validate:     rules.Compile(ruleSet),
	}, nil
}

// courseIndex wraps the index list for validation.
type courseIndex struct {
	Courses []domain.CourseSummary `json:"courses" validate:"min=1,unique=ID,dive"`
}

// LoadIndex fetches the course index shown by the carousel.
func (l *Loader) LoadIndex(ctx context.Context) ([]domain.CourseSummary, error) {
	data, err := l.source.Fetch(ctx, IndexPath)
	if err != nil {
		return nil, domain.NewFetchError("index", err)
	}
	return l.ParseIndex(data)
}

// ParseIndex decodes and validates a course index document.
func (l *Loader) ParseIndex(data []byte) ([]domain.CourseSummary, error) {
	var idx courseIndex
	if err := json.Unmarshal(data, &idx.Courses); err != nil {
		return nil, domain.NewParseError("index", err)
	}
	if err := l.validate.Struct(idx); err != nil {
		return nil, domain.NewParseError("index", err)
	}
	for _, c := range idx.Courses {
		if !ValidID(c.ID) {
			return nil, domain.NewParseError("index", fmt.Errorf("%w: %q", domain.ErrInvalidCourseID, c.ID))
		}
	}
	return idx.Courses, nil
}
