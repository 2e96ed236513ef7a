package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
)

func TestAttemptStore_Record_List(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, passed := range []bool{false, true, true} {
		a := domain.NewAttempt("go-basics", i%2, passed, 10*(i+1))
		a.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	other := domain.NewAttempt("rust-intro", 0, false, 3)
	other.SubmittedAt = base
	if err := store.Record(ctx, other); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	attempts, err := store.List(ctx, "go-basics", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("List() returned %d attempts; want 3", len(attempts))
	}
	// Newest first
	if attempts[0].CodeLength != 30 {
		t.Errorf("attempts[0].CodeLength = %d; want 30", attempts[0].CodeLength)
	}
	if !attempts[0].SubmittedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("attempts[0].SubmittedAt = %v", attempts[0].SubmittedAt)
	}
	if attempts[2].Passed {
		t.Error("oldest attempt should have failed")
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List(all) error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List(all) returned %d attempts; want 4", len(all))
	}

	limited, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(limit=2) returned %d attempts; want 2", len(limited))
	}
}

func TestAttemptStore_Record_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	a := domain.NewAttempt("go-basics", 0, true, 5)
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, a); err == nil {
		t.Error("Record() with duplicate id should fail")
	}
}

func TestAttemptStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	records := []struct {
		course string
		index  int
		passed bool
	}{
		{"go-basics", 0, false},
		{"go-basics", 0, true},
		{"go-basics", 1, false},
		{"rust-intro", 0, true},
	}
	for _, r := range records {
		if err := store.Record(ctx, domain.NewAttempt(r.course, r.index, r.passed, 1)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	stats, err := store.Stats(ctx, "go-basics")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := []domain.AttemptStats{
		{CourseID: "go-basics", ExerciseIndex: 0, Attempts: 2, Passed: 1},
		{CourseID: "go-basics", ExerciseIndex: 1, Attempts: 1, Passed: 0},
	}
	if len(stats) != len(want) {
		t.Fatalf("Stats() returned %d rows; want %d", len(stats), len(want))
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %+v; want %+v", i, stats[i], want[i])
		}
	}

	all, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Stats(all) returned %d rows; want 3", len(all))
	}
}

func TestAttemptStore_Empty(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	attempts, err := store.List(ctx, "go-basics", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("List() = %v; want empty", attempts)
	}
	stats, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Stats() = %v; want empty", stats)
	}
}

func TestEventStore_Publish_Since(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(openTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	types := []domain.EventType{domain.EventCourseLoaded, domain.EventExercisePassed, domain.EventWorkshopCompleted}
	for i, typ := range types {
		e := domain.NewEvent(typ, "go-basics", i-1)
		e.OccurredAt = base.Add(time.Duration(i) * time.Second)
		if err := store.Publish(ctx, e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	other := domain.NewEvent(domain.EventLoadFailed, "broken", -1)
	other.OccurredAt = base.Add(time.Hour)
	if err := store.Publish(ctx, other); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	events, err := store.Since(ctx, "go-basics", base, 0)
	if err != nil {
		t.Fatalf("Since() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Since() returned %d events; want 2", len(events))
	}
	if events[0].Type != domain.EventExercisePassed || events[1].Type != domain.EventWorkshopCompleted {
		t.Errorf("event order = [%s %s]", events[0].Type, events[1].Type)
	}
	if events[0].ExerciseIndex != 0 {
		t.Errorf("ExerciseIndex = %d; want 0", events[0].ExerciseIndex)
	}

	all, err := store.Since(ctx, "", time.Time{}, 0)
	if err != nil {
		t.Fatalf("Since(all) error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Since(all) returned %d events; want 4", len(all))
	}
}
