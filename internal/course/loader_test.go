package course

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/rules"
)

const twoExerciseCourse = `{
  "courseInfo": {"id": "basics", "title": "Basics", "duration": "1h"},
  "welcomeScreen": {"title": "Welcome", "features": ["one", "two"]},
  "introPopup": {"title": "Hi", "audioFile": ""},
  "sidebar": {"title": "Exercises"},
  "exercises": [
    {
      "title": "Foo",
      "starterCode": "// start",
      "keyConcepts": ["foo"],
      "validationRules": ["foo"]
    },
    {
      "title": "Bar or baz",
      "commonPitfalls": ["forgetting baz"],
      "videoFile": "media/bar.mp4",
      "validationRules": [["bar", "baz"]]
    }
  ],
  "completionSummary": {"title": "Done"}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoader(files map[string]string) *Loader {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return NewLoader(NewFSSource(fsys), testLogger())
}

func TestLoader_Load(t *testing.T) {
	loader := newTestLoader(map[string]string{"basics.json": twoExerciseCourse})

	c, err := loader.Load(context.Background(), "basics")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.ID != "basics" {
		t.Errorf("ID = %q, want basics", c.ID)
	}
	if c.Title() != "Basics" {
		t.Errorf("Title() = %q, want Basics", c.Title())
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	first, _ := c.Exercise(0)
	if !first.Validate("foo") || first.Validate("bar") {
		t.Error("exercise 1 predicate does not match rules [\"foo\"]")
	}
	if first.Spec.StarterCode != "// start" {
		t.Errorf("StarterCode = %q", first.Spec.StarterCode)
	}

	second, _ := c.Exercise(1)
	if !second.Validate("baz") || second.Validate("qux") {
		t.Error("exercise 2 predicate does not match rules [[\"bar\",\"baz\"]]")
	}
	if !strings.Contains(second.PreambleHTML, `<video src="media/bar.mp4"`) {
		t.Errorf("PreambleHTML missing video: %s", second.PreambleHTML)
	}
	if strings.Contains(second.PreambleHTML, "Key Concepts") {
		t.Errorf("PreambleHTML has Key Concepts for empty list: %s", second.PreambleHTML)
	}
	if second.Preamble.ID != "preamble-1" {
		t.Errorf("Preamble.ID = %q, want preamble-1", second.Preamble.ID)
	}

	if _, ok := c.Exercise(2); ok {
		t.Error("Exercise(2) ok = true, want false")
	}
	if got := c.Document.WelcomeScreen.Strings("features"); len(got) != 2 {
		t.Errorf("welcome features = %v", got)
	}
}

func TestLoader_Load_MissingRulesFallsBack(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"capstone.json": `{"exercises": [{"title": "Capstone"}]}`,
	})

	c, err := loader.Load(context.Background(), "capstone")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ex, _ := c.Exercise(0)
	if ex.Validate("short") {
		t.Error("exercise without rules passed short code")
	}
	if !ex.Validate(strings.Repeat("a", 501)) {
		t.Error("exercise without rules rejected 501 characters")
	}
}

func TestLoader_Load_MalformedRuleDegrades(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"odd.json": `{"exercises": [{"title": "Odd", "validationRules": ["a", 42]}]}`,
	})

	c, err := loader.Load(context.Background(), "odd")
	if err != nil {
		t.Fatalf("Load() error = %v, want malformed rule to degrade", err)
	}
	ex, _ := c.Exercise(0)
	if ex.Validate("a 42") {
		t.Error("predicate with an invalid rule passed")
	}
	if ex.Rules[1].Kind != rules.KindInvalid {
		t.Errorf("rule 2 kind = %v, want invalid", ex.Rules[1].Kind)
	}
}

func TestLoader_Load_Errors(t *testing.T) {
	files := map[string]string{
		"badjson.json":     `{"exercises": [`,
		"noexercises.json": `{"courseInfo": {"title": "Empty"}, "exercises": []}`,
		"notitle.json":     `{"exercises": [{"title": "ok"}, {"description": "missing title"}]}`,
		"badrules.json":    `{"exercises": [{"title": "x", "validationRules": "foo"}]}`,
	}
	loader := newTestLoader(files)

	tests := []struct {
		name     string
		id       string
		sentinel error
		kind     domain.LoadErrorKind
		exercise int
	}{
		{"missing file", "missing", domain.ErrFetch, domain.LoadErrorFetch, -1},
		{"invalid id", "../etc/passwd", domain.ErrFetch, domain.LoadErrorFetch, -1},
		{"invalid json", "badjson", domain.ErrParse, domain.LoadErrorParse, -1},
		{"no exercises", "noexercises", domain.ErrCompile, domain.LoadErrorCompile, -1},
		{"exercise without title", "notitle", domain.ErrCompile, domain.LoadErrorCompile, 1},
		{"rules not a list", "badrules", domain.ErrCompile, domain.LoadErrorCompile, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := loader.Load(context.Background(), tt.id)
			if err == nil {
				t.Fatalf("Load(%q) = %v, want error", tt.id, c)
			}
			if c != nil {
				t.Error("Load returned a partial course alongside an error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}

			var loadErr *domain.LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("error %T is not a *LoadError", err)
			}
			if loadErr.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", loadErr.Kind, tt.kind)
			}
			if loadErr.Exercise != tt.exercise {
				t.Errorf("Exercise = %d, want %d", loadErr.Exercise, tt.exercise)
			}
		})
	}
}

func TestLoader_Load_CompileMessageNamesField(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"notitle.json": `{"exercises": [{"description": "missing title"}]}`,
	})

	_, err := loader.Load(context.Background(), "notitle")
	if err == nil {
		t.Fatal("Load() error = nil")
	}
	if !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("errors.Is(err, ErrInvalidDocument) = false: %v", err)
	}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("error %q does not name the title field", err)
	}
}

func TestLoader_Load_CanceledContext(t *testing.T) {
	loader := newTestLoader(map[string]string{"basics.json": twoExerciseCourse})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "basics")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoader_LoadIndex(t *testing.T) {
	tests := []struct {
		name    string
		index   string
		want    int
		wantErr bool
	}{
		{"valid", `[{"id":"html","title":"HTML"},{"id":"css","title":"CSS","description":"Style"}]`, 2, false},
		{"empty", `[]`, 0, true},
		{"duplicate ids", `[{"id":"a","title":"A"},{"id":"a","title":"B"}]`, 0, true},
		{"missing title", `[{"id":"a"}]`, 0, true},
		{"bad id", `[{"id":"Not Valid","title":"A"}]`, 0, true},
		{"not a list", `{"id":"a"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newTestLoader(map[string]string{IndexPath: tt.index})

			got, err := loader.LoadIndex(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadIndex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, domain.ErrParse) {
					t.Errorf("errors.Is(err, ErrParse) = false: %v", err)
				}
				return
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestLoader_LoadIndex_Missing(t *testing.T) {
	loader := newTestLoader(nil)

	_, err := loader.LoadIndex(context.Background())
	if !errors.Is(err, domain.ErrFetch) {
		t.Errorf("LoadIndex() error = %v, want fetch error", err)
	}
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("LoadIndex() error = %v, want ErrResourceNotFound", err)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"html", true},
		{"css-grid", true},
		{"js_101", true},
		{"", false},
		{"-lead", false},
		{"Upper", false},
		{"a/b", false},
		{"..", false},
	}

	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
