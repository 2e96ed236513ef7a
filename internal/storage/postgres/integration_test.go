//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/storage/postgres"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its URL
func setupPostgres(t *testing.T) string {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "workshop",
				"POSTGRES_PASSWORD": "workshop",
				"POSTGRES_DB":       "workshop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}
	return fmt.Sprintf("postgres://workshop:workshop@%s:%s/workshop?sslmode=disable", host, port.Port())
}

func TestIntegration_AttemptStore(t *testing.T) {
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, setupPostgres(t), 2)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer pool.Close()

	store := postgres.NewAttemptStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// Idempotent
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, passed := range []bool{false, true, false} {
		a := domain.NewAttempt("go-basics", i/2, passed, i+1)
		a.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	attempts, err := store.List(ctx, "go-basics", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("List() returned %d attempts; want 3", len(attempts))
	}
	if attempts[0].CodeLength != 3 {
		t.Errorf("newest attempt CodeLength = %d; want 3", attempts[0].CodeLength)
	}

	stats, err := store.Stats(ctx, "")
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
}
