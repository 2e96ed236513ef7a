// Package ui builds the dynamic screen regions of a loaded course and
// dispatches clicks on them.
package ui

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/view"
)

// Region names.
const (
	RegionWelcome    = "welcome"
	RegionOnboarding = "onboarding"
	RegionSidebar    = "sidebar"
	RegionExercise   = "exercise"
	RegionCompletion = "completion"
)

// Click targets with fixed ids.
const (
	TargetStart   = "welcome-start"
	TargetConfirm = "onboarding-confirm"
	TargetHint    = "show-hint"
)

// Navigator receives navigation requests from rendered handlers.
type Navigator interface {
	Begin() error
	GoTo(index int) error
}

// Handler runs when its target is clicked.
type Handler func() error

// Surface is one complete rendering of a course's dynamic regions. A new
// surface replaces the previous one wholesale.
type Surface struct {
	Generation uint64
	CourseID   string
	Welcome    *view.Node
	Onboarding *view.Node
	Sidebar    *view.Node
	handlers   map[string]Handler
}

// Targets returns the clickable ids of the surface in sorted order.
func (s *Surface) Targets() []string {
	out := make([]string, 0, len(s.handlers))
	for id := range s.handlers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Regions returns the surface's regions by name.
func (s *Surface) Regions() map[string]*view.Node {
	return map[string]*view.Node{
		RegionWelcome:    s.Welcome,
		RegionOnboarding: s.Onboarding,
		RegionSidebar:    s.Sidebar,
	}
}

// Builder renders surfaces. Each call to Render issues a new generation.
type Builder struct {
	generation atomic.Uint64
}

// NewBuilder creates a builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Render builds the welcome, onboarding and sidebar regions for c and wires
// their handlers to nav.
func (b *Builder) Render(c *course.Course, nav Navigator) *Surface {
	doc := c.Document
	s := &Surface{
		Generation: b.generation.Add(1),
		CourseID:   c.ID,
		handlers:   make(map[string]Handler),
	}

	s.Welcome = welcome(doc.WelcomeScreen, c.Title())
	s.Onboarding = onboarding(doc.IntroPopup)
	s.Sidebar = sidebar(doc.Sidebar, c.Exercises)

	s.handlers[TargetStart] = nav.Begin
	s.handlers[TargetConfirm] = nav.Begin
	for _, ex := range c.Exercises {
		index := ex.Index
		s.handlers[ExerciseTarget(index)] = func() error {
			return nav.GoTo(index)
		}
	}

	return s
}

// ExerciseTarget returns the sidebar click target for exercise i.
func ExerciseTarget(i int) string {
	return fmt.Sprintf("exercise-%d", i)
}

func welcome(f domain.Fields, fallbackTitle string) *view.Node {
	title := f.String("title")
	if title == "" {
		title = fallbackTitle
	}

	n := view.Section(RegionWelcome, "welcome-screen", view.Heading(title))
	if s := f.String("subtitle"); s != "" {
		n.Append(view.Paragraph(s))
	}
	if s := f.String("description"); s != "" {
		n.Append(view.Paragraph(s))
	}
	n.Append(view.List("features", f.Strings("features")))
	return n.Append(view.Button(TargetStart, label(f, "startButtonText", "Start")))
}

func onboarding(f domain.Fields) *view.Node {
	n := view.Section(RegionOnboarding, "intro-popup")
	if s := f.String("title"); s != "" {
		n.Append(view.Heading(s))
	}
	for _, p := range f.Strings("content") {
		n.Append(view.Paragraph(p))
	}
	if f.Has("audioFile") {
		n.Append(view.Audio(f.String("audioFile")))
	}
	return n.Append(view.Button(TargetConfirm, label(f, "buttonText", "Let's go")))
}

func sidebar(f domain.Fields, exercises []*course.Exercise) *view.Node {
	title := f.String("title")
	if title == "" {
		title = "Exercises"
	}

	list := &view.Node{Kind: view.KindList, Class: "exercise-list"}
	for _, ex := range exercises {
		item := &view.Node{Kind: view.KindItem}
		item.Append(view.Button(ExerciseTarget(ex.Index), fmt.Sprintf("%d. %s", ex.Index+1, ex.Spec.Title)))
		list.Append(item)
	}

	return view.Section(RegionSidebar, "sidebar", view.Heading(title), list)
}

// ExercisePanel builds the main panel for an exercise: preamble, task
// description, objectives and the hint toggle.
func (b *Builder) ExercisePanel(ex *course.Exercise, total int) *view.Node {
	spec := ex.Spec
	n := view.Section(RegionExercise, "exercise-panel", ex.Preamble)
	n.Append(view.Paragraph(fmt.Sprintf("Exercise %d of %d", ex.Index+1, total)))
	n.Append(view.Heading(spec.Title))
	if spec.Description != "" {
		n.Append(view.Paragraph(spec.Description))
	}
	n.Append(view.List("objectives", spec.Objectives))
	if spec.Hint != "" {
		n.Append(view.Button(TargetHint, "Show hint"))
	}
	return n
}

// Completion builds the summary shown after the final exercise.
func (b *Builder) Completion(doc domain.CourseDocument) *view.Node {
	f := doc.CompletionSummary
	title := f.String("title")
	if title == "" {
		title = "Workshop complete"
	}

	n := view.Section(RegionCompletion, "completion-summary", view.Heading(title))
	for _, p := range f.Strings("message") {
		n.Append(view.Paragraph(p))
	}
	n.Append(
		view.List("achievements", f.Strings("achievements")),
		view.List("next-steps", f.Strings("nextSteps")),
	)
	return n
}

func label(f domain.Fields, key, fallback string) string {
	if s := f.String(key); s != "" {
		return s
	}
	return fallback
}
