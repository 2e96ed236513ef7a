package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/queue"
	"github.com/felixgeelhaar/workshop/internal/storage"
)

// eventWindow is how far back 'workshop events' reads the local event log.
const eventWindow = 24 * time.Hour

// cmdStats shows attempt statistics from the history store
func cmdStats(args []string) error {
	courseID := ""
	if len(args) > 0 {
		courseID = args[0]
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg.Storage)
	if errors.Is(err, storage.ErrDisabled) {
		return fmt.Errorf("attempt history is disabled (storage.driver: none)")
	}
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	return printStats(ctx, os.Stdout, backend.History, courseID)
}

func printStats(ctx context.Context, w io.Writer, history storage.History, courseID string) error {
	stats, err := history.Stats(ctx, courseID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	fmt.Fprintln(w, "Attempt Statistics")
	fmt.Fprintln(w, "==================")

	if len(stats) == 0 {
		fmt.Fprintln(w, "No attempts recorded yet. Start a workshop!")
		return nil
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].CourseID != stats[j].CourseID {
			return stats[i].CourseID < stats[j].CourseID
		}
		return stats[i].ExerciseIndex < stats[j].ExerciseIndex
	})

	var total, passed int
	current := ""
	for _, s := range stats {
		if s.CourseID != current {
			current = s.CourseID
			fmt.Fprintf(w, "\n%s\n", current)
		}
		rate := 0.0
		if s.Attempts > 0 {
			rate = float64(s.Passed) / float64(s.Attempts)
		}
		fmt.Fprintf(w, "  exercise %-3d %s %d/%d passed\n",
			s.ExerciseIndex+1, renderProgressBar(rate, 20), s.Passed, s.Attempts)
		total += s.Attempts
		passed += s.Passed
	}

	fmt.Fprintf(w, "\nTotal Attempts:  %d\n", total)
	fmt.Fprintf(w, "Passed:          %d\n", passed)

	recent, err := history.List(ctx, courseID, 5)
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}
	if len(recent) > 0 {
		fmt.Fprintln(w, "\nRecent Attempts")
		fmt.Fprintln(w, "---------------")
		for _, a := range recent {
			mark := "✗"
			if a.Passed {
				mark = "✓"
			}
			fmt.Fprintf(w, "%s %s %s #%d (%d chars)\n",
				mark, a.SubmittedAt.Local().Format(time.DateTime), a.CourseID, a.ExerciseIndex+1, a.CodeLength)
		}
	}
	return nil
}

// cmdEvents follows progress events. With the event queue enabled it
// consumes from RabbitMQ until interrupted; otherwise it prints the last day
// of the local SQLite event log.
func cmdEvents(args []string) error {
	courseID := ""
	if len(args) > 0 {
		courseID = args[0]
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Events.Enabled {
		return followQueue(ctx, cfg.Events.AMQPURL, courseID)
	}

	backend, err := storage.Open(ctx, cfg.Storage)
	if errors.Is(err, storage.ErrDisabled) {
		return fmt.Errorf("no event source: events are disabled and storage.driver is none")
	}
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	if backend.SQLiteEvents == nil {
		return fmt.Errorf("the %s backend keeps no local event log; enable events to follow the queue", backend.Driver)
	}

	events, err := backend.SQLiteEvents.Since(ctx, courseID, time.Now().Add(-eventWindow), 100)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No events in the last 24 hours.")
		return nil
	}
	for _, e := range events {
		printEvent(os.Stdout, e)
	}
	return nil
}

func followQueue(ctx context.Context, url, courseID string) error {
	conn, err := queue.NewConnection(url)
	if err != nil {
		return fmt.Errorf("connect to event queue: %w", err)
	}
	defer conn.Close()

	consumer := queue.NewConsumer(conn, func(ctx context.Context, e *domain.Event) error {
		if courseID == "" || e.CourseID == courseID {
			printEvent(os.Stdout, e)
		}
		return nil
	}, queue.ConsumerConfig{Workers: 1})

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Following progress events (Ctrl-C to stop)...")

	<-ctx.Done()
	consumer.Stop()
	return nil
}

func printEvent(w io.Writer, e *domain.Event) {
	line := fmt.Sprintf("%s %-18s %s", e.OccurredAt.Local().Format(time.DateTime), e.Type, e.CourseID)
	switch e.Type {
	case domain.EventExercisePassed, domain.EventExerciseFailed:
		line += fmt.Sprintf(" #%d", e.ExerciseIndex+1)
	}
	if e.Message != "" {
		line += ": " + e.Message
	}
	fmt.Fprintln(w, line)
}
