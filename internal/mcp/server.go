package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/workshop/internal/engine"
	"github.com/felixgeelhaar/workshop/internal/ui"
	"github.com/felixgeelhaar/workshop/internal/view"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

// ErrNoEngine is returned by every tool when the server has no engine.
var ErrNoEngine = errors.New("workshop engine not configured")

// Server wraps the MCP server with workshop tools
type Server struct {
	mcpServer *server.Server
	engine    *engine.Engine
}

// Config contains configuration for the MCP server
type Config struct {
	Engine  *engine.Engine
	Version string
}

// NewServer creates a new MCP server for the workshop
func NewServer(cfg Config) *Server {
	s := &Server{engine: cfg.Engine}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "workshop",
		Version: version,
	}, server.WithInstructions(`
Workshop runs interactive programming courses. A learner picks a course,
reads the onboarding, then solves exercises in order. Each submission is
checked against the exercise's validation rules; a pass moves on to the next
exercise and the last pass completes the workshop.

Available tools:
- workshop_courses: List the courses in the index
- workshop_select: Load a course and show its onboarding
- workshop_begin: Start the first exercise, or jump to one by index
- workshop_status: Show the current course, exercise and last feedback
- workshop_submit: Submit code for the current exercise
- workshop_hint: Get the hint for the current exercise
`))

	s.registerTools()

	return s
}

// registerTools registers all workshop MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("workshop_courses").
		Description("List available courses. Optionally filter by a search term.").
		Handler(s.handleCourses)

	s.mcpServer.Tool("workshop_select").
		Description("Select and load a course by id. Loading fails as a whole if the course document is invalid.").
		Handler(s.handleSelect)

	s.mcpServer.Tool("workshop_begin").
		Description("Start the loaded course at the first exercise, or jump to a given exercise.").
		Handler(s.handleBegin)

	s.mcpServer.Tool("workshop_status").
		Description("Get the current workshop state, optionally with the exercise text.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("workshop_submit").
		Description("Submit code for the current exercise and get feedback.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("workshop_hint").
		Description("Get the hint for the current exercise.").
		Handler(s.handleHint)
}

// Input/Output types for tools

type CoursesInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=Case-insensitive filter on course id or title"`
}

type CourseEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type CoursesOutput struct {
	Courses  []CourseEntry `json:"courses"`
	Selected string        `json:"selected,omitempty"`
}

type SelectInput struct {
	CourseID string `json:"course_id" jsonschema:"description=Course id from workshop_courses"`
}

type SelectOutput struct {
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	Exercises int    `json:"exercises"`
	Welcome   string `json:"welcome"`
	Message   string `json:"message"`
}

type BeginInput struct {
	Exercise *int `json:"exercise,omitempty" jsonschema:"description=Zero-based exercise index to jump to (default: first exercise)"`
}

type ExerciseOutput struct {
	Index       int    `json:"index"`
	Total       int    `json:"total"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	StarterCode string `json:"starter_code,omitempty"`
}

type StatusInput struct {
	IncludeExercise bool `json:"include_exercise,omitempty" jsonschema:"description=Include the current exercise text"`
}

type StatusOutput struct {
	State          string             `json:"state"`
	CourseID       string             `json:"course_id,omitempty"`
	CourseTitle    string             `json:"course_title,omitempty"`
	ActiveExercise int                `json:"active_exercise"`
	ExerciseCount  int                `json:"exercise_count"`
	LastFeedback   *workshop.Feedback `json:"last_feedback,omitempty"`
	Exercise       *ExerciseOutput    `json:"exercise,omitempty"`
}

type SubmitInput struct {
	Code string `json:"code" jsonschema:"description=Complete code for the current exercise"`
}

type SubmitOutput struct {
	Passed    bool     `json:"passed"`
	Completed bool     `json:"completed"`
	Message   string   `json:"message"`
	Unmet     []string `json:"unmet,omitempty"`
	Next      *int     `json:"next,omitempty"`
}

type HintInput struct {
	Exercise *int `json:"exercise,omitempty" jsonschema:"description=Must match the current exercise when given"`
}

type HintOutput struct {
	Exercise int    `json:"exercise"`
	Hint     string `json:"hint"`
}

// Tool handlers

func (s *Server) handleCourses(ctx context.Context, input CoursesInput) (CoursesOutput, error) {
	if s.engine == nil {
		return CoursesOutput{}, ErrNoEngine
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	out := CoursesOutput{
		Courses:  []CourseEntry{},
		Selected: s.engine.Carousel.State().SelectedCourseID,
	}
	for _, c := range s.engine.Catalog.List() {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.ID), query) &&
			!strings.Contains(strings.ToLower(c.Title), query) {
			continue
		}
		out.Courses = append(out.Courses, CourseEntry{ID: c.ID, Title: c.Title, Description: c.Description})
	}
	return out, nil
}

func (s *Server) handleSelect(ctx context.Context, input SelectInput) (SelectOutput, error) {
	if s.engine == nil {
		return SelectOutput{}, ErrNoEngine
	}
	if input.CourseID == "" {
		return SelectOutput{}, errors.New("course_id is required")
	}

	if err := s.engine.SelectCourse(ctx, input.CourseID); err != nil {
		return SelectOutput{}, fmt.Errorf("select course: %w", err)
	}

	c := s.engine.Controller.Course()
	out := SelectOutput{
		CourseID:  c.ID,
		Title:     c.Title(),
		Exercises: c.Len(),
		Message:   "Course loaded. Call workshop_begin to start the first exercise.",
	}
	if n := s.engine.Controller.Screen().Region(ui.RegionWelcome); n != nil {
		out.Welcome = view.Text(n)
	}
	return out, nil
}

func (s *Server) handleBegin(ctx context.Context, input BeginInput) (ExerciseOutput, error) {
	if s.engine == nil {
		return ExerciseOutput{}, ErrNoEngine
	}

	var err error
	if input.Exercise != nil {
		err = s.engine.Controller.GoTo(*input.Exercise)
	} else {
		err = s.engine.Controller.Begin()
	}
	if err != nil {
		return ExerciseOutput{}, fmt.Errorf("begin: %w", err)
	}

	ex, ok := s.currentExercise()
	if !ok {
		return ExerciseOutput{}, workshop.ErrNotRunning
	}
	return ex, nil
}

func (s *Server) handleStatus(ctx context.Context, input StatusInput) (StatusOutput, error) {
	if s.engine == nil {
		return StatusOutput{}, ErrNoEngine
	}

	snap := s.engine.Controller.Snapshot()
	out := StatusOutput{
		State:          string(snap.State),
		CourseID:       snap.CourseID,
		CourseTitle:    snap.CourseTitle,
		ActiveExercise: snap.ActiveExercise,
		ExerciseCount:  snap.ExerciseCount,
		LastFeedback:   snap.LastFeedback,
	}
	if input.IncludeExercise && snap.State == workshop.StateRunningExercise {
		if ex, ok := s.currentExercise(); ok {
			out.Exercise = &ex
		}
	}
	return out, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	if s.engine == nil {
		return SubmitOutput{}, ErrNoEngine
	}

	fb, err := s.engine.Controller.Submit(ctx, input.Code)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("submit: %w", err)
	}

	out := SubmitOutput{
		Passed:    fb.Passed,
		Completed: fb.Completed,
		Message:   fb.Message,
		Unmet:     fb.Unmet,
	}
	if fb.Passed && !fb.Completed {
		next := fb.Next
		out.Next = &next
	}
	return out, nil
}

func (s *Server) handleHint(ctx context.Context, input HintInput) (HintOutput, error) {
	if s.engine == nil {
		return HintOutput{}, ErrNoEngine
	}

	active := s.engine.Controller.Snapshot().ActiveExercise
	if input.Exercise != nil && *input.Exercise != active {
		return HintOutput{}, fmt.Errorf("exercise %d is not the current exercise (%d)", *input.Exercise, active)
	}

	hint, err := s.engine.Controller.Hint()
	if err != nil {
		return HintOutput{}, fmt.Errorf("hint: %w", err)
	}
	if hint == "" {
		hint = "This exercise has no hint."
	}
	return HintOutput{Exercise: active, Hint: hint}, nil
}

// currentExercise describes the running exercise as plain text.
func (s *Server) currentExercise() (ExerciseOutput, bool) {
	snap := s.engine.Controller.Snapshot()
	c := s.engine.Controller.Course()
	if c == nil {
		return ExerciseOutput{}, false
	}
	ex, ok := c.Exercise(snap.ActiveExercise)
	if !ok {
		return ExerciseOutput{}, false
	}

	text := ""
	if n := s.engine.Controller.Screen().Region(ui.RegionExercise); n != nil {
		text = view.Text(n)
	}
	return ExerciseOutput{
		Index:       ex.Index,
		Total:       c.Len(),
		Title:       ex.Spec.Title,
		Text:        text,
		StarterCode: ex.Spec.StarterCode,
	}, true
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
