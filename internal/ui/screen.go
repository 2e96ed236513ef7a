package ui

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/workshop/internal/view"
)

var (
	ErrNoSurface     = errors.New("no surface mounted")
	ErrStaleSurface  = errors.New("surface has been replaced")
	ErrUnknownTarget = errors.New("unknown click target")
)

// Screen holds the mounted surface plus the regions that change while a
// course runs. Mounting a surface discards every previous region and handler.
type Screen struct {
	mu       sync.Mutex
	surface  *Surface
	regions  map[string]*view.Node
	handlers map[string]Handler
}

// NewScreen creates an empty screen.
func NewScreen() *Screen {
	return &Screen{}
}

// Mount replaces the whole screen with s.
func (sc *Screen) Mount(s *Surface) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.surface = s
	sc.regions = s.Regions()
	sc.handlers = make(map[string]Handler, len(s.handlers))
	for id, h := range s.handlers {
		sc.handlers[id] = h
	}
}

// Clear unmounts the current surface.
func (sc *Screen) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.surface = nil
	sc.regions = nil
	sc.handlers = nil
}

// SetRegion replaces one region of the mounted surface. A nil node removes it.
func (sc *Screen) SetRegion(name string, n *view.Node) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.surface == nil {
		return
	}
	if n == nil {
		delete(sc.regions, name)
		return
	}
	sc.regions[name] = n
}

// Bind attaches a handler to the mounted surface. It is dropped on the next
// Mount.
func (sc *Screen) Bind(target string, h Handler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.surface == nil {
		return
	}
	sc.handlers[target] = h
}

// Unbind removes the handler for target from the mounted surface.
func (sc *Screen) Unbind(target string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.handlers, target)
}

// Generation returns the mounted surface generation, or 0.
func (sc *Screen) Generation() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.surface == nil {
		return 0
	}
	return sc.surface.Generation
}

// Region returns a mounted region by name.
func (sc *Screen) Region(name string) *view.Node {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.regions[name]
}

// Click dispatches a click on target. Clicks carrying the generation of a
// replaced surface are rejected without running any handler.
func (sc *Screen) Click(generation uint64, target string) error {
	sc.mu.Lock()
	if sc.surface == nil {
		sc.mu.Unlock()
		return ErrNoSurface
	}
	if generation != sc.surface.Generation {
		sc.mu.Unlock()
		return fmt.Errorf("%w: generation %d, mounted %d", ErrStaleSurface, generation, sc.surface.Generation)
	}
	h, ok := sc.handlers[target]
	sc.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return h()
}

// Rendered is the HTML form of the mounted screen.
type Rendered struct {
	Generation uint64            `json:"generation"`
	CourseID   string            `json:"course_id,omitempty"`
	Regions    map[string]string `json:"regions"`
	Targets    []string          `json:"targets"`
}

// Render renders every mounted region to HTML.
func (sc *Screen) Render() (*Rendered, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := &Rendered{Regions: make(map[string]string)}
	if sc.surface == nil {
		return out, nil
	}

	out.Generation = sc.surface.Generation
	out.CourseID = sc.surface.CourseID
	for name, n := range sc.regions {
		html, err := view.HTML(n)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out.Regions[name] = html
	}
	for id := range sc.handlers {
		out.Targets = append(out.Targets, id)
	}
	sort.Strings(out.Targets)
	return out, nil
}
