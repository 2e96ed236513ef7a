package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/workshop/internal/view"
)

func TestScreen_Click(t *testing.T) {
	nav := &recordingNavigator{}
	screen := NewScreen()
	s := NewBuilder().Render(testCourse("css", "A", "B"), nav)
	screen.Mount(s)

	if err := screen.Click(s.Generation, ExerciseTarget(1)); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if err := screen.Click(s.Generation, TargetConfirm); err != nil {
		t.Fatalf("Click() error = %v", err)
	}

	if len(nav.gotos) != 1 || nav.gotos[0] != 1 {
		t.Errorf("gotos = %v, want [1]", nav.gotos)
	}
	if nav.begins != 1 {
		t.Errorf("begins = %d, want 1", nav.begins)
	}
}

func TestScreen_ReplacedHandlersNeverFire(t *testing.T) {
	oldNav := &recordingNavigator{}
	newNav := &recordingNavigator{}
	b := NewBuilder()
	screen := NewScreen()

	old := b.Render(testCourse("css", "A", "B", "C"), oldNav)
	screen.Mount(old)

	fresh := b.Render(testCourse("js", "X"), newNav)
	screen.Mount(fresh)

	err := screen.Click(old.Generation, ExerciseTarget(2))
	if !errors.Is(err, ErrStaleSurface) {
		t.Errorf("Click(old generation) error = %v, want ErrStaleSurface", err)
	}
	if len(oldNav.gotos) != 0 || len(newNav.gotos) != 0 {
		t.Errorf("stale click reached a navigator: old=%v new=%v", oldNav.gotos, newNav.gotos)
	}

	err = screen.Click(fresh.Generation, ExerciseTarget(2))
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Click(missing target) error = %v, want ErrUnknownTarget", err)
	}
}

func TestScreen_NoSurface(t *testing.T) {
	if err := NewScreen().Click(1, TargetStart); !errors.Is(err, ErrNoSurface) {
		t.Errorf("Click() error = %v, want ErrNoSurface", err)
	}
}

func TestScreen_BindAndRegionsResetOnMount(t *testing.T) {
	b := NewBuilder()
	nav := &recordingNavigator{}
	screen := NewScreen()

	screen.Mount(b.Render(testCourse("css", "A"), nav))
	hinted := false
	screen.Bind(TargetHint, func() error {
		hinted = true
		return nil
	})
	screen.SetRegion(RegionExercise, view.Section(RegionExercise, ""))

	if err := screen.Click(screen.Generation(), TargetHint); err != nil {
		t.Fatalf("Click(hint) error = %v", err)
	}
	if !hinted {
		t.Error("bound handler did not run")
	}

	screen.Mount(b.Render(testCourse("js", "X"), nav))
	if screen.Region(RegionExercise) != nil {
		t.Error("exercise region survived a remount")
	}
	if err := screen.Click(screen.Generation(), TargetHint); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Click(hint) after remount error = %v, want ErrUnknownTarget", err)
	}
}

func TestScreen_Unbind(t *testing.T) {
	screen := NewScreen()
	screen.Unbind(TargetHint)

	screen.Mount(NewBuilder().Render(testCourse("css", "A"), &recordingNavigator{}))
	fired := false
	screen.Bind(TargetHint, func() error {
		fired = true
		return nil
	})
	screen.Unbind(TargetHint)

	if err := screen.Click(screen.Generation(), TargetHint); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Click(hint) after Unbind error = %v, want ErrUnknownTarget", err)
	}
	if fired {
		t.Error("unbound handler ran")
	}

	r, err := screen.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, target := range r.Targets {
		if target == TargetHint {
			t.Errorf("targets = %v, still lists %s", r.Targets, TargetHint)
		}
	}
}

func TestScreen_Render(t *testing.T) {
	screen := NewScreen()
	empty, err := screen.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if empty.Generation != 0 || len(empty.Regions) != 0 {
		t.Errorf("empty Render() = %+v", empty)
	}

	s := NewBuilder().Render(testCourse("css", "Selectors"), &recordingNavigator{})
	screen.Mount(s)

	got, err := screen.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got.CourseID != "css" || got.Generation != s.Generation {
		t.Errorf("Render() = %+v", got)
	}
	if !strings.Contains(got.Regions[RegionSidebar], "1. Selectors") {
		t.Errorf("sidebar html = %s", got.Regions[RegionSidebar])
	}
	if len(got.Targets) != 3 {
		t.Errorf("targets = %v, want 3", got.Targets)
	}
}
