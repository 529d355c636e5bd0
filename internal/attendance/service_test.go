package attendance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"scantrack/internal/notify"
	"scantrack/internal/roster"
)

type fakeNotifier struct {
	mu     sync.Mutex
	calls  int
	result notify.Result
}

func (f *fakeNotifier) Dispatch(context.Context, roster.StudentIdentity, notify.Event, time.Time) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

func strPtr(s string) *string { return &s }

func newTestRoster() *roster.MemoryStore {
	rs := roster.NewMemoryStore()
	rs.Put(roster.StudentIdentity{
		LRN:             "123456789012",
		RFIDTag:         strPtr("0006518700"),
		FirstName:       "Juan",
		LastName:        "Dela Cruz",
		GradeLevel:      "Grade 7",
		SchoolYear:      "2025-2026",
		GuardianContact: strPtr("09171234567"),
		ParentEmail:     strPtr("parent@example.com"),
	})
	return rs
}

func newTestService(n notify.Notifier) *Service {
	svc := NewService(newTestRoster(), NewMemoryStore(), n)
	svc.now = func() time.Time { return at(7, 0) }
	return svc
}

func TestScan_UnknownTag(t *testing.T) {
	svc := newTestService(nil)

	res, err := svc.Scan(context.Background(), "1234567890", ModeTimeIn)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeNotFound)
	}
	if res.Message != "No student found with RF ID: 1234567890" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestScan_EmptyTagRejected(t *testing.T) {
	svc := newTestService(nil)

	if _, err := svc.Scan(context.Background(), "   ", ModeTimeIn); err != ErrEmptyTag {
		t.Fatalf("err = %v, want ErrEmptyTag", err)
	}
	if _, err := svc.Scan(context.Background(), "0006518700", Mode("bogus")); err != ErrInvalidMode {
		t.Fatalf("err = %v, want ErrInvalidMode", err)
	}
}

func TestScan_DoubleTimeIn(t *testing.T) {
	notifier := &fakeNotifier{result: notify.Result{Delivered: true, Attempts: []notify.Attempt{
		{Channel: "sms", Recipient: "09171234567", Success: true},
	}}}
	svc := newTestService(notifier)
	ctx := context.Background()

	first, err := svc.Scan(ctx, "0006518700", ModeTimeIn)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Outcome != OutcomeSuccess || first.SessionNumber != 1 {
		t.Fatalf("first scan = %+v, want success session 1", first)
	}
	if !strings.Contains(first.Message, "Juan Dela Cruz timed in") {
		t.Fatalf("message = %q", first.Message)
	}
	if !strings.Contains(first.Message, "Parent notified via sms") {
		t.Fatalf("notified channels missing from message: %q", first.Message)
	}

	second, err := svc.Scan(ctx, "0006518700", ModeTimeIn)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Outcome != OutcomeDuplicate || second.SessionNumber != 1 {
		t.Fatalf("second scan = %+v, want duplicate of session 1", second)
	}

	// notification fires for the success only, never for the duplicate
	if notifier.calls != 1 {
		t.Fatalf("notifier called %d times, want 1", notifier.calls)
	}
}

func TestScan_TimeOutDuration(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	clock := at(7, 0)
	svc.now = func() time.Time { return clock }

	if _, err := svc.Scan(ctx, "0006518700", ModeTimeIn); err != nil {
		t.Fatalf("time in: %v", err)
	}

	clock = at(11, 30)
	res, err := svc.Scan(ctx, "0006518700", ModeTimeOut)
	if err != nil {
		t.Fatalf("time out: %v", err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want %s (%s)", res.Outcome, OutcomeSuccess, res.Message)
	}
	if res.DurationHours != 4.5 {
		t.Fatalf("duration = %v hours, want 4.5", res.DurationHours)
	}
}

func TestScan_TimeOutWithoutTimeIn(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(notifier)

	res, err := svc.Scan(context.Background(), "0006518700", ModeTimeOut)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Outcome != OutcomeError {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeError)
	}
	if !strings.Contains(res.Message, "No active time-in found") {
		t.Fatalf("message = %q", res.Message)
	}
	if notifier.calls != 0 {
		t.Fatalf("notifier called %d times for a refused transition", notifier.calls)
	}
}

func TestScan_QueuedNotification(t *testing.T) {
	notifier := &fakeNotifier{result: notify.Result{Queued: true}}
	svc := newTestService(notifier)

	res, err := svc.Scan(context.Background(), "0006518700", ModeTimeIn)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(res.Message, "Parent notification queued") {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestScan_NotificationFailureKeepsSuccess(t *testing.T) {
	notifier := &fakeNotifier{result: notify.Result{Attempts: []notify.Attempt{
		{Channel: "email", Recipient: "parent@example.com", Error: "provider timeout"},
	}}}
	svc := newTestService(notifier)

	res, err := svc.Scan(context.Background(), "0006518700", ModeTimeIn)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("notification failure changed outcome to %s", res.Outcome)
	}
	if strings.Contains(res.Message, "Parent notified") {
		t.Fatalf("failed attempt reported as delivered: %q", res.Message)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].Success {
		t.Fatalf("attempts = %+v, want the single failed attempt", res.Notifications)
	}
}

func TestScan_ConcurrentTimeIns(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	const n = 16

	results := make([]ScanResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Scan(ctx, "0006518700", ModeTimeIn)
			if err != nil {
				t.Errorf("scan %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		if res.Outcome == OutcomeSuccess {
			successes++
		} else if res.Outcome != OutcomeDuplicate {
			t.Errorf("unexpected outcome %s: %s", res.Outcome, res.Message)
		}
	}
	if successes != 1 {
		t.Fatalf("got %d successes, want exactly 1", successes)
	}
}
