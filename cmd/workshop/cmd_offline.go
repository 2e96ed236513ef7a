package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/felixgeelhaar/workshop/internal/config"
	"github.com/felixgeelhaar/workshop/internal/course"
	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/engine"
	"github.com/felixgeelhaar/workshop/internal/ui"
	"github.com/felixgeelhaar/workshop/internal/view"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

// loadCLIConfig reads .env and config.yaml the same way the daemon does.
func loadCLIConfig() (*config.LocalConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// offlineLoader builds a course loader straight from configuration, without
// the daemon. Only warnings reach the terminal.
func offlineLoader(cfg *config.LocalConfig) (*course.Loader, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	src, err := engine.NewSource(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("course source: %w", err)
	}
	return course.NewLoader(src, logger), nil
}

func cmdPreview(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("course id required")
	}
	index := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid exercise index %q", args[1])
		}
		index = n
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	loader, err := offlineLoader(cfg)
	if err != nil {
		return err
	}
	return preview(context.Background(), os.Stdout, loader, args[0], index)
}

// preview renders one exercise of a course as plain text.
func preview(ctx context.Context, w io.Writer, loader *course.Loader, id string, index int) error {
	c, err := loader.Load(ctx, id)
	if err != nil {
		return err
	}
	ex, ok := c.Exercise(index)
	if !ok {
		return fmt.Errorf("%w: %d (course has %d)", workshop.ErrExerciseOutOfRange, index, c.Len())
	}

	fmt.Fprintf(w, "%s, exercise %d/%d\n\n", c.Title(), index+1, c.Len())
	if err := view.RenderText(w, ui.NewBuilder().ExercisePanel(ex, c.Len())); err != nil {
		return fmt.Errorf("render exercise: %w", err)
	}

	fmt.Fprintf(w, "\nValidation rules: %d\n", len(ex.Rules))
	if ex.Spec.Hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", ex.Spec.Hint)
	}
	return nil
}

func cmdValidate(args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	loader, err := offlineLoader(cfg)
	if err != nil {
		return err
	}
	return validateCourses(context.Background(), os.Stdout, loader, args)
}

// validateCourses loads every listed course, or every course in the index
// when ids is empty, and reports each failure with its stage.
func validateCourses(ctx context.Context, w io.Writer, loader *course.Loader, ids []string) error {
	if len(ids) == 0 {
		index, err := loader.LoadIndex(ctx)
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		fmt.Fprintf(w, "Index: %d courses\n", len(index))
		for _, c := range index {
			ids = append(ids, c.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		c, err := loader.Load(ctx, id)
		if err != nil {
			failed++
			var loadErr *domain.LoadError
			if errors.As(err, &loadErr) {
				fmt.Fprintf(w, "✗ %-20s %s error: %v\n", id, loadErr.Kind, loadErr.Err)
			} else {
				fmt.Fprintf(w, "✗ %-20s %v\n", id, err)
			}
			continue
		}
		fmt.Fprintf(w, "✓ %-20s %d exercises\n", id, c.Len())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d courses failed to load", failed, len(ids))
	}
	return nil
}
