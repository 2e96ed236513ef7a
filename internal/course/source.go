package course

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Source fetches raw course resources by relative path.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// DirSource reads course documents from a filesystem.
type DirSource struct {
	fsys fs.FS
	root string
}

// NewDirSource creates a source over a directory on disk.
func NewDirSource(dir string) *DirSource {
	return &DirSource{fsys: os.DirFS(dir), root: dir}
}

// NewFSSource creates a source over any fs.FS.
func NewFSSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

// Fetch reads path from the underlying filesystem.
func (s *DirSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrResourceNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// String describes the source for logs.
func (s *DirSource) String() string {
	if s.root != "" {
		return "dir:" + s.root
	}
	return "fs"
}

// ErrResourceNotFound is returned when a source has no resource at a path.
var ErrResourceNotFound = errors.New("resource not found")
