package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/felixgeelhaar/workshop/internal/carousel"
	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

const indexJSON = `[
	{"id": "go-basics", "title": "Go Basics"},
	{"id": "rust-intro", "title": "Rust Intro"},
	{"id": "broken", "title": "Broken"}
]`

const goBasics = `{
	"courseInfo": {"id": "go-basics", "title": "Go Basics"},
	"exercises": [
		{"title": "Print", "starterCode": "// start", "validationRules": ["fmt.Println"]}
	]
}`

const rustIntro = `{
	"courseInfo": {"id": "rust-intro", "title": "Rust Intro"},
	"exercises": [
		{"title": "Hello", "validationRules": ["println!"]}
	]
}`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.json":      {Data: []byte(indexJSON)},
		"go-basics.json":  {Data: []byte(goBasics)},
		"rust-intro.json": {Data: []byte(rustIntro)},
		"broken.json":     {Data: []byte(`{"courseInfo":`)},
	}
}

func newTestEngine(t *testing.T, stateDir string, mutate func(*Options)) *Engine {
	t.Helper()
	cfg := config.DefaultLocalConfig()
	opts := Options{
		Config:   cfg,
		Source:   course.NewFSSource(testFS()),
		StateDir: stateDir,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNew_LoadsCatalog(t *testing.T) {
	e := newTestEngine(t, "", nil)

	if e.Catalog.Len() != 3 {
		t.Errorf("Catalog.Len() = %d; want 3", e.Catalog.Len())
	}
	st := e.Carousel.State()
	if st.Index != 0 || st.SelectedCourseID != "go-basics" || !st.Active {
		t.Errorf("carousel state = %+v", st)
	}
	if e.Controller.Snapshot().State != workshop.StateSelectingCourse {
		t.Errorf("controller state = %s", e.Controller.Snapshot().State)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("New() without config should fail")
	}
}

func TestNew_IndexFailure(t *testing.T) {
	_, err := New(context.Background(), Options{
		Config: config.DefaultLocalConfig(),
		Source: course.NewFSSource(fstest.MapFS{}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if !errors.Is(err, domain.ErrFetch) {
		t.Errorf("New() error = %v; want ErrFetch", err)
	}
}

func TestSelectCourse(t *testing.T) {
	stateDir := t.TempDir()
	var snapshots []workshop.Snapshot
	e := newTestEngine(t, stateDir, func(o *Options) {
		o.OnWorkshopChange = func(s workshop.Snapshot) { snapshots = append(snapshots, s) }
	})
	ctx := context.Background()

	if err := e.SelectCourse(ctx, "rust-intro"); err != nil {
		t.Fatalf("SelectCourse() error = %v", err)
	}

	snap := e.Controller.Snapshot()
	if snap.State != workshop.StateOnboarding || snap.CourseID != "rust-intro" {
		t.Errorf("snapshot = %+v; want onboarding rust-intro", snap)
	}
	st := e.Carousel.State()
	if st.SelectedCourseID != "rust-intro" || st.Animating {
		t.Errorf("carousel = %+v; want settled on rust-intro", st)
	}
	if st.Active {
		t.Error("carousel should be inactive once a course is loaded")
	}
	if len(snapshots) == 0 {
		t.Error("OnWorkshopChange not called")
	}

	// A second engine over the same state restores the selection
	restored := newTestEngine(t, stateDir, nil)
	if got := restored.Carousel.State().SelectedCourseID; got != "rust-intro" {
		t.Errorf("restored selection = %q; want rust-intro", got)
	}
}

func TestSelectCourse_Unknown(t *testing.T) {
	e := newTestEngine(t, "", nil)
	err := e.SelectCourse(context.Background(), "cobol")
	if !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("SelectCourse() error = %v; want ErrCourseNotFound", err)
	}
}

func TestSelectCourse_FailedLoadReturnsToSelection(t *testing.T) {
	e := newTestEngine(t, "", nil)
	err := e.SelectCourse(context.Background(), "broken")
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("SelectCourse() error = %v; want ErrParse", err)
	}

	if got := e.Controller.Snapshot().State; got != workshop.StateSelectingCourse {
		t.Errorf("state = %s; want selecting_course", got)
	}
	if !e.Carousel.State().Active {
		t.Error("carousel should stay active after a failed load")
	}
	if n, ok := e.Notices.Latest(); !ok || n.Level != workshop.NoticeError {
		t.Errorf("latest notice = %+v, %v; want an error notice", n, ok)
	}
}

func TestNew_DefaultCourse(t *testing.T) {
	tests := []struct {
		name     string
		stateDir func(t *testing.T) string
	}{
		{"with state dir", func(t *testing.T) string { return t.TempDir() }},
		{"without state dir", func(t *testing.T) string { return "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.stateDir(t), func(o *Options) {
				o.Config.Courses.Default = "rust-intro"
			})
			st := e.Carousel.State()
			if st.SelectedCourseID != "rust-intro" || st.Animating {
				t.Errorf("carousel = %+v; want settled on the default course", st)
			}
		})
	}
}

func TestCarouselHooks(t *testing.T) {
	var states []carousel.State
	e := newTestEngine(t, "", func(o *Options) {
		o.OnCarouselChange = func(s carousel.State) { states = append(states, s) }
	})

	moved, err := e.Carousel.Next()
	if err != nil || !moved {
		t.Fatalf("Next() = %v, %v", moved, err)
	}
	e.Carousel.Settle()

	if len(states) < 2 {
		t.Fatalf("OnCarouselChange called %d times; want start and settle", len(states))
	}
	if !states[0].Animating || states[len(states)-1].Animating {
		t.Errorf("states = %+v; want animating then settled", states)
	}
}
