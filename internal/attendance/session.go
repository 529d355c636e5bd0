package attendance

import (
	"context"
	"time"
)

// Mode is the requested transition for a scan.
type Mode string

const (
	ModeTimeIn  Mode = "time_in"
	ModeTimeOut Mode = "time_out"
)

// Valid reports whether the mode is one of the two scan modes.
func (m Mode) Valid() bool { return m == ModeTimeIn || m == ModeTimeOut }

// Session is one time-in/time-out pair for a learner on a given day.
// A day may hold several sessions, numbered 1..N by time-in order.
// Sessions are never deleted; time_out is set once and never cleared.
type Session struct {
	ID            string     `json:"id"`
	LRN           string     `json:"learner_reference_number"`
	Date          time.Time  `json:"date"`
	SessionNumber int        `json:"session_number"`
	TimeIn        time.Time  `json:"time_in"`
	TimeOut       *time.Time `json:"time_out,omitempty"`
	RFIDTag       string     `json:"rfid_tag"`
	GradeLevel    string     `json:"grade_level"`
	SchoolYear    string     `json:"school_year"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Open reports whether the session has no time-out yet.
func (s Session) Open() bool { return s.TimeOut == nil }

// TimeInParams is the identity snapshot recorded with a new session.
type TimeInParams struct {
	LRN        string
	RFIDTag    string
	GradeLevel string
	SchoolYear string
}

// TimeInResult is the outcome of one time-in transition.
type TimeInResult struct {
	SessionNumber int
	TimeIn        time.Time
	Duplicate     bool
	Message       string
}

// TimeOutResult is the outcome of one time-out transition.
type TimeOutResult struct {
	SessionNumber   int
	TimeOut         time.Time
	DurationHours   float64
	NoActiveSession bool
	Message         string
}

// Store persists attendance sessions. RecordTimeIn and RecordTimeOut must
// each run as a single atomic unit per (learner, day): two concurrent
// time-ins for the same learner must never both observe "no open session",
// and two concurrent time-outs must never close the same session twice.
type Store interface {
	RecordTimeIn(ctx context.Context, p TimeInParams, now time.Time) (TimeInResult, error)
	RecordTimeOut(ctx context.Context, lrn string, now time.Time) (TimeOutResult, error)

	// ListDay returns a learner's sessions for one day, ordered by session number.
	ListDay(ctx context.Context, lrn string, day time.Time) ([]Session, error)
	// RecentSessions returns the latest sessions for a day across all learners.
	RecentSessions(ctx context.Context, day time.Time, limit int) ([]Session, error)

	// RegisterStation ensures a scan station record exists.
	RegisterStation(ctx context.Context, stationID string) error
	// SaveRefreshToken stores a station refresh token for rotation checks.
	SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error
}

// dateOf truncates a timestamp to its calendar day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
