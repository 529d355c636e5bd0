package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestInMemory_PublishConsume(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body, _ := json.Marshal(NotificationJob{LRN: "123456789012", Event: "time_in", Timestamp: time.Now().UTC()})
	want := Job{ID: "job-1", Type: "notify", Body: body, CreatedAt: time.Now().UTC()}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	jobs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case got := <-jobs:
		if got.ID != want.ID || got.Type != want.Type {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("job not delivered")
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()

	if err := q.Publish(ctx, Job{ID: "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// queue full; a cancelled context must not block forever
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.Publish(cancelled, Job{ID: "b"}); err == nil {
		t.Fatal("publish on full queue with cancelled context returned nil")
	}
}
