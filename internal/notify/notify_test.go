package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scantrack/internal/roster"
)

type fakeEmail struct {
	calls int
	to    string
	html  string
	err   error
}

func (f *fakeEmail) Send(_ context.Context, to, _, htmlBody string) error {
	f.calls++
	f.to = to
	f.html = htmlBody
	return f.err
}

type fakeSMS struct {
	calls  int
	number string
	body   string
	err    error
}

func (f *fakeSMS) Send(_ context.Context, phoneNumber, message, _ string) (string, error) {
	f.calls++
	f.number = phoneNumber
	f.body = message
	if f.err != nil {
		return "", f.err
	}
	return "236434574", nil
}

// blockingSMS waits for the per-channel deadline.
type blockingSMS struct{}

func (blockingSMS) Send(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func strPtr(s string) *string { return &s }

func student() roster.StudentIdentity {
	return roster.StudentIdentity{
		LRN:             "123456789012",
		FirstName:       "Juan",
		LastName:        "Dela Cruz",
		GradeLevel:      "Grade 7",
		SchoolYear:      "2025-2026",
		GuardianContact: strPtr("639171234567"),
		ParentEmail:     strPtr("parent@example.com"),
	}
}

var noon = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func TestDispatch_BothChannels(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := NewDispatcher(email, sms, Config{SenderName: "SCHOOL"})

	res := d.Dispatch(context.Background(), student(), EventTimeIn, noon)
	if !res.Delivered {
		t.Fatal("both channels succeeded but Delivered is false")
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
	if email.calls != 1 || sms.calls != 1 {
		t.Fatalf("email called %d, sms called %d; want 1 each", email.calls, sms.calls)
	}
	if sms.number != "09171234567" {
		t.Fatalf("sms number = %q, want normalized 09171234567", sms.number)
	}
	if !strings.Contains(sms.body, "Juan Dela Cruz") || !strings.Contains(sms.body, "arrived at") {
		t.Fatalf("sms body = %q", sms.body)
	}
	if !strings.Contains(email.html, "Grade 7") {
		t.Fatalf("email body missing grade: %q", email.html)
	}
}

func TestDispatch_Eligibility(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*roster.StudentIdentity)
		wantEmail  int
		wantSMS    int
		wantTotals int
	}{
		{"no parent email", func(s *roster.StudentIdentity) { s.ParentEmail = nil }, 0, 1, 1},
		{"empty parent email", func(s *roster.StudentIdentity) { s.ParentEmail = strPtr("") }, 0, 1, 1},
		{"no guardian contact", func(s *roster.StudentIdentity) { s.GuardianContact = nil }, 1, 0, 1},
		{"no contacts at all", func(s *roster.StudentIdentity) {
			s.ParentEmail = nil
			s.GuardianContact = nil
		}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &fakeEmail{}
			sms := &fakeSMS{}
			d := NewDispatcher(email, sms, Config{})

			st := student()
			tt.mutate(&st)
			res := d.Dispatch(context.Background(), st, EventTimeIn, noon)

			if email.calls != tt.wantEmail || sms.calls != tt.wantSMS {
				t.Fatalf("email called %d (want %d), sms called %d (want %d)", email.calls, tt.wantEmail, sms.calls, tt.wantSMS)
			}
			if len(res.Attempts) != tt.wantTotals {
				t.Fatalf("got %d attempts, want %d", len(res.Attempts), tt.wantTotals)
			}
			if tt.wantTotals == 0 && res.Delivered {
				t.Fatal("no eligible channels must not count as delivered")
			}
		})
	}
}

func TestDispatch_ChannelsAreIsolated(t *testing.T) {
	email := &fakeEmail{err: errors.New("smtp relay down")}
	sms := &fakeSMS{}
	d := NewDispatcher(email, sms, Config{})

	res := d.Dispatch(context.Background(), student(), EventTimeOut, noon)
	if !res.Delivered {
		t.Fatal("sms succeeded but Delivered is false")
	}
	if sms.calls != 1 {
		t.Fatal("email failure cancelled the sms attempt")
	}

	var emailAttempt, smsAttempt *Attempt
	for i := range res.Attempts {
		switch res.Attempts[i].Channel {
		case "email":
			emailAttempt = &res.Attempts[i]
		case "sms":
			smsAttempt = &res.Attempts[i]
		}
	}
	if emailAttempt == nil || emailAttempt.Success || !strings.Contains(emailAttempt.Error, "smtp relay down") {
		t.Fatalf("email attempt = %+v", emailAttempt)
	}
	if smsAttempt == nil || !smsAttempt.Success || smsAttempt.MessageID == "" {
		t.Fatalf("sms attempt = %+v", smsAttempt)
	}
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	email := &fakeEmail{err: errors.New("bad key")}
	sms := &fakeSMS{err: errors.New("no credit")}
	d := NewDispatcher(email, sms, Config{})

	res := d.Dispatch(context.Background(), student(), EventTimeIn, noon)
	if res.Delivered {
		t.Fatal("Delivered true with zero successful attempts")
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
}

func TestDispatch_TimeoutRecordedAsFailure(t *testing.T) {
	d := NewDispatcher(nil, blockingSMS{}, Config{ChannelTimeout: 20 * time.Millisecond})

	start := time.Now()
	res := d.Dispatch(context.Background(), student(), EventTimeIn, noon)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dispatch blocked for %v", elapsed)
	}
	if res.Delivered {
		t.Fatal("timed-out channel reported as delivered")
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Success {
		t.Fatalf("attempts = %+v, want one failed sms attempt", res.Attempts)
	}
	if !strings.Contains(res.Attempts[0].Error, "deadline") {
		t.Fatalf("attempt error = %q, want deadline error", res.Attempts[0].Error)
	}
}

func TestMessages_TimeOutWording(t *testing.T) {
	st := student()
	if body := smsBody(st, EventTimeOut, noon); !strings.Contains(body, "left school") {
		t.Fatalf("sms body = %q", body)
	}
	if subj := emailSubject(st, EventTimeOut); subj != "Juan Left School" {
		t.Fatalf("subject = %q", subj)
	}
	if subj := emailSubject(st, EventTimeIn); subj != "Juan Arrived at School" {
		t.Fatalf("subject = %q", subj)
	}
}
