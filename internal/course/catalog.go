package course

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/workshop/internal/domain"
)

// Catalog holds the course index for the session.
type Catalog struct {
	loader  *Loader
	mu      sync.RWMutex
	courses []domain.CourseSummary
	byID    map[string]int
	loaded  bool
}

// NewCatalog creates a catalog backed by loader.
func NewCatalog(loader *Loader) *Catalog {
	return &Catalog{
		loader: loader,
		byID:   make(map[string]int),
	}
}

// Load fetches the index into memory.
func (c *Catalog) Load(ctx context.Context) error {
	courses, err := c.loader.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("load course index: %w", err)
	}
	c.Set(courses)
	return nil
}

// Set replaces the catalog contents.
func (c *Catalog) Set(courses []domain.CourseSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.courses = append([]domain.CourseSummary(nil), courses...)
	c.byID = make(map[string]int, len(courses))
	for i, s := range c.courses {
		c.byID[s.ID] = i
	}
	c.loaded = true
}

// Loaded reports whether the index has been loaded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// List returns all courses in index order.
func (c *Catalog) List() []domain.CourseSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.CourseSummary, len(c.courses))
	copy(out, c.courses)
	return out
}

// Get returns a course summary by id.
func (c *Catalog) Get(id string) (domain.CourseSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return domain.CourseSummary{}, fmt.Errorf("%w: %s", domain.ErrCourseNotFound, id)
	}
	return c.courses[i], nil
}

// IndexOf returns the position of id in the index, or -1.
func (c *Catalog) IndexOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of courses.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.courses)
}
