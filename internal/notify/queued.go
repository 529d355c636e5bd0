package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"scantrack/internal/queue"
	"scantrack/internal/roster"
)

// QueuedDispatcher publishes a notification job instead of dispatching
// in-request; a worker drains the queue and runs the real dispatcher.
// The attendance record is already committed before Dispatch is called,
// so a publish failure is logged and reported, never escalated.
type QueuedDispatcher struct {
	q queue.Queue
}

var _ Notifier = (*QueuedDispatcher)(nil)

// NewQueuedDispatcher wraps a queue as a Notifier.
func NewQueuedDispatcher(q queue.Queue) *QueuedDispatcher {
	return &QueuedDispatcher{q: q}
}

// JobType marks notification jobs on the queue.
const JobType = "notify"

// Dispatch enqueues the notification and reports it as queued.
func (d *QueuedDispatcher) Dispatch(ctx context.Context, student roster.StudentIdentity, event Event, ts time.Time) Result {
	body, err := json.Marshal(queue.NotificationJob{
		LRN:       student.LRN,
		Event:     string(event),
		Timestamp: ts,
	})
	if err != nil {
		log.Printf("notify: encode job for %s failed: %v", student.LRN, err)
		return Result{}
	}
	job := queue.Job{
		ID:        uuid.NewString(),
		Type:      JobType,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.q.Publish(ctx, job); err != nil {
		log.Printf("notify: enqueue for %s failed: %v", student.LRN, err)
		return Result{}
	}
	return Result{Queued: true}
}
