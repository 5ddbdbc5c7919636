//go:build integration

package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/zenpa1/budget-tracker/internal/models"
)

// Integration tests require running brokers.
// Run with: REDIS_URL=... AMQP_URL=... go test -tags=integration ./internal/feed

func roundTrip(t *testing.T, f Feed) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := f.Subscribe(ctx, models.CollectionBudgets)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	ev, _ := NewEvent(EventInsert, testBudget("integration-b1"))
	if err := f.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-sub.Events():
		if got.ID != "integration-b1" || got.Collection != models.CollectionBudgets {
			t.Errorf("unexpected event %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestIntegration_Redis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	f, err := NewRedis(context.Background(), url, "budget-tracker-test")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer f.Close()
	roundTrip(t, f)
}

func TestIntegration_AMQP(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set, skipping integration test")
	}
	f, err := NewAMQP(url, "budget-tracker-test.changes")
	if err != nil {
		t.Fatalf("NewAMQP() error = %v", err)
	}
	defer f.Close()
	roundTrip(t, f)
}
