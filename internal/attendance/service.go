package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scantrack/internal/notify"
	"scantrack/internal/roster"
)

// ErrEmptyTag is returned when the scanned tag is empty after trimming.
var ErrEmptyTag = errors.New("rf id required")

// ErrInvalidMode is returned for a mode other than time_in/time_out.
var ErrInvalidMode = errors.New("mode must be time_in or time_out")

// ScanResult is the combined response for one scan, returned to the
// operator station.
type ScanResult struct {
	Outcome       Outcome                 `json:"outcome"`
	Message       string                  `json:"message"`
	Student       *roster.StudentIdentity `json:"student,omitempty"`
	SessionNumber int                     `json:"session_number,omitempty"`
	DurationHours float64                 `json:"duration_hours,omitempty"`
	Notifications []notify.Attempt        `json:"notifications"`
}

// Service runs the scan flow: resolve the tag, transition the day's
// session atomically, classify the outcome, and on success notify
// guardians. Notification runs strictly after the attendance mutation
// commits and can never undo it.
type Service struct {
	roster   roster.Store
	sessions Store
	notifier notify.Notifier
	now      func() time.Time
}

// NewService wires the scan flow. notifier may be nil when no channel is
// configured.
func NewService(rosterStore roster.Store, sessionStore Store, notifier notify.Notifier) *Service {
	return &Service{
		roster:   rosterStore,
		sessions: sessionStore,
		notifier: notifier,
		now:      time.Now,
	}
}

// Scan processes one RFID scan. The error return is reserved for
// precondition violations (empty tag, unknown mode); everything else,
// including storage failures, is reported through the outcome.
func (s *Service) Scan(ctx context.Context, rawTag string, mode Mode) (ScanResult, error) {
	tag := strings.TrimSpace(rawTag)
	if tag == "" {
		return ScanResult{}, ErrEmptyTag
	}
	if !mode.Valid() {
		return ScanResult{}, ErrInvalidMode
	}

	student, err := s.roster.ResolveByTag(ctx, tag)
	if err != nil {
		log.Printf("scan: resolve tag %s failed: %v", tag, err)
		return s.finish(mode, ScanResult{
			Outcome: OutcomeError,
			Message: "Error processing scan. Please try again.",
		}), nil
	}
	if student == nil {
		return s.finish(mode, ScanResult{
			Outcome: OutcomeNotFound,
			Message: fmt.Sprintf("No student found with RF ID: %s", tag),
		}), nil
	}

	switch mode {
	case ModeTimeIn:
		return s.finish(mode, s.timeIn(ctx, *student)), nil
	default:
		return s.finish(mode, s.timeOut(ctx, *student)), nil
	}
}

func (s *Service) finish(mode Mode, res ScanResult) ScanResult {
	observeScan(mode, res.Outcome)
	return res
}

func (s *Service) timeIn(ctx context.Context, student roster.StudentIdentity) ScanResult {
	now := s.now()
	res, err := s.sessions.RecordTimeIn(ctx, TimeInParams{
		LRN:        student.LRN,
		RFIDTag:    deref(student.RFIDTag),
		GradeLevel: student.GradeLevel,
		SchoolYear: student.SchoolYear,
	}, now)

	out := ScanResult{
		Outcome:       classifyTimeIn(res, err),
		Student:       &student,
		SessionNumber: res.SessionNumber,
	}
	switch out.Outcome {
	case OutcomeError:
		log.Printf("scan: time in for %s failed: %v", student.LRN, err)
		out.Message = "Error processing scan. Please try again."
	case OutcomeDuplicate:
		out.Message = fmt.Sprintf("%s has already timed in today. Scan in time_out mode to record a time out.", student.FullName())
	default:
		out.Message = fmt.Sprintf("%s timed in.", student.FullName())
		s.notifyGuardians(ctx, &out, student, notify.EventTimeIn, res.TimeIn)
	}
	return out
}

func (s *Service) timeOut(ctx context.Context, student roster.StudentIdentity) ScanResult {
	now := s.now()
	res, err := s.sessions.RecordTimeOut(ctx, student.LRN, now)

	out := ScanResult{
		Outcome:       classifyTimeOut(res, err),
		Student:       &student,
		SessionNumber: res.SessionNumber,
		DurationHours: res.DurationHours,
	}
	if out.Outcome == OutcomeError {
		if err != nil {
			log.Printf("scan: time out for %s failed: %v", student.LRN, err)
			out.Message = "Error processing scan. Please try again."
		} else {
			out.Message = fmt.Sprintf("No active time-in found for %s. The student may have already timed out.", student.FullName())
		}
		return out
	}
	out.Message = fmt.Sprintf("%s timed out. Total time: %.2f hours.", student.FullName(), res.DurationHours)
	s.notifyGuardians(ctx, &out, student, notify.EventTimeOut, res.TimeOut)
	return out
}

// notifyGuardians runs after the transition committed. It only decorates
// the result; a notification failure never changes the Success outcome.
func (s *Service) notifyGuardians(ctx context.Context, out *ScanResult, student roster.StudentIdentity, event notify.Event, ts time.Time) {
	if s.notifier == nil {
		return
	}
	res := s.notifier.Dispatch(ctx, student, event, ts)
	out.Notifications = res.Attempts

	if res.Queued {
		out.Message += " Parent notification queued."
		return
	}
	var delivered []string
	for _, a := range res.Attempts {
		if a.Success {
			delivered = append(delivered, a.Channel)
		}
	}
	if len(delivered) > 0 {
		out.Message += " Parent notified via " + strings.Join(delivered, " and ") + "."
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
