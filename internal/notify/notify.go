package notify

import (
	"context"
	"log"
	"time"

	"scantrack/internal/roster"
)

// Event is the attendance transition being reported to guardians.
type Event string

const (
	EventTimeIn  Event = "time_in"
	EventTimeOut Event = "time_out"
)

// Attempt records a single delivery attempt on one channel.
type Attempt struct {
	Channel   string `json:"channel"` // "email" or "sms"
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result aggregates the attempts for one scan. Delivered is true when at
// least one attempted channel succeeded; zero eligible channels leave it
// false with an empty Attempts slice. Queued marks the async mode, where
// delivery happens out-of-band and no attempts exist yet.
type Result struct {
	Delivered bool      `json:"delivered"`
	Queued    bool      `json:"queued,omitempty"`
	Attempts  []Attempt `json:"attempts"`
}

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMSSender delivers one text message and returns the provider message id.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message, senderName string) (string, error)
}

// Notifier is what the scan service calls after a committed transition.
type Notifier interface {
	Dispatch(ctx context.Context, student roster.StudentIdentity, event Event, ts time.Time) Result
}

// Config selects the enabled channels. Constructed once at startup from
// app config; a nil sender disables its channel.
type Config struct {
	SenderName     string // SMS sender name registered with the provider
	ChannelTimeout time.Duration
}

var _ Notifier = (*Dispatcher)(nil)

// Dispatcher fans out to the configured channels independently. It runs
// only after the attendance transaction commits and can never affect it;
// every failure is recorded as a normal channel failure.
type Dispatcher struct {
	email EmailSender
	sms   SMSSender
	cfg   Config
}

// NewDispatcher builds a dispatcher. Either sender may be nil, which
// disables that channel.
func NewDispatcher(email EmailSender, sms SMSSender, cfg Config) *Dispatcher {
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = 5 * time.Second
	}
	return &Dispatcher{email: email, sms: sms, cfg: cfg}
}

// Dispatch notifies the student's guardians about the event. Each channel
// is attempted at most once, isolated from the other, and bounded by the
// configured timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, student roster.StudentIdentity, event Event, ts time.Time) Result {
	var res Result

	if d.email != nil && student.ParentEmail != nil && *student.ParentEmail != "" {
		to := *student.ParentEmail
		attempt := Attempt{Channel: "email", Recipient: to}
		err := d.withTimeout(ctx, func(ctx context.Context) error {
			return d.email.Send(ctx, to, emailSubject(student, event), emailBody(student, event, ts))
		})
		if err != nil {
			attempt.Error = err.Error()
			log.Printf("notify: email to %s failed: %v", to, err)
		} else {
			attempt.Success = true
		}
		observeAttempt(attempt)
		res.Attempts = append(res.Attempts, attempt)
	}

	if d.sms != nil && student.GuardianContact != nil && *student.GuardianContact != "" {
		number := NormalizePhone(*student.GuardianContact)
		attempt := Attempt{Channel: "sms", Recipient: number}
		err := d.withTimeout(ctx, func(ctx context.Context) error {
			id, err := d.sms.Send(ctx, number, smsBody(student, event, ts), d.cfg.SenderName)
			attempt.MessageID = id
			return err
		})
		if err != nil {
			attempt.Error = err.Error()
			log.Printf("notify: sms to %s failed: %v", number, err)
		} else {
			attempt.Success = true
		}
		observeAttempt(attempt)
		res.Attempts = append(res.Attempts, attempt)
	}

	for _, a := range res.Attempts {
		if a.Success {
			res.Delivered = true
			break
		}
	}
	return res
}

func (d *Dispatcher) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ChannelTimeout)
	defer cancel()
	return fn(ctx)
}
