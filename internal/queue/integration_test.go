//go:build integration

package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/queue"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_PublishAndConsume(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	var (
		mu       sync.Mutex
		received []*domain.Event
		done     = make(chan struct{})
	)
	handler := func(_ context.Context, e *domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		if len(received) == 3 {
			close(done)
		}
		return nil
	}

	ctx := context.Background()
	consumer := queue.NewConsumer(conn, handler, queue.ConsumerConfig{Workers: 1})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	publisher := queue.NewPublisher(conn)
	sent := []*domain.Event{
		domain.NewEvent(domain.EventCourseLoaded, "go-basics", -1),
		domain.NewEvent(domain.EventExercisePassed, "go-basics", 0),
		domain.NewEvent(domain.EventWorkshopCompleted, "go-basics", 0),
	}
	for _, e := range sent {
		if err := publisher.Publish(ctx, e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	// Single worker, prefetch 1: delivery order is publish order
	for i, e := range received {
		if e.ID != sent[i].ID || e.Type != sent[i].Type {
			t.Errorf("received[%d] = %s %s; want %s %s", i, e.ID, e.Type, sent[i].ID, sent[i].Type)
		}
	}
}

func TestIntegration_Consumer_HandlerErrorRedelivers(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	handler := func(context.Context, *domain.Event) error {
		if calls.Add(1) == 2 {
			close(done)
		}
		return errors.New("sink unavailable")
	}

	ctx := context.Background()
	consumer := queue.NewConsumer(conn, handler, queue.DefaultConsumerConfig())
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	if err := queue.NewPublisher(conn).Publish(ctx, domain.NewEvent(domain.EventExerciseFailed, "go-basics", 0)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for redelivery")
	}

	// Dropped after the redelivery fails
	time.Sleep(500 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("handler calls = %d; want 2", got)
	}
}
