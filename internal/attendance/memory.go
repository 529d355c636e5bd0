package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in memory for dev mode and tests. Transitions
// hold a per-(learner, day) mutex across the whole check-and-mutate
// sequence, mirroring the advisory lock the Postgres store takes.
type MemoryStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	sessions map[string][]*Session // keyed by lrn|day, ordered by session number
	stations map[string]bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    make(map[string]*sync.Mutex),
		sessions: make(map[string][]*Session),
		stations: make(map[string]bool),
	}
}

func dayKey(lrn string, day time.Time) string {
	return lrn + "|" + day.Format("2006-01-02")
}

// learnerLock returns the mutex serializing one learner-day.
func (s *MemoryStore) learnerLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// RecordTimeIn opens a new session unless one is already open today.
func (s *MemoryStore) RecordTimeIn(_ context.Context, p TimeInParams, now time.Time) (TimeInResult, error) {
	day := dateOf(now)
	key := dayKey(p.LRN, day)
	lock := s.learnerLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions[key]
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Open() {
			return TimeInResult{
				SessionNumber: sessions[i].SessionNumber,
				Duplicate:     true,
				Message:       "Time in already recorded. The student can now time out.",
			}, nil
		}
	}

	next := len(sessions) + 1
	s.sessions[key] = append(sessions, &Session{
		ID:            uuid.NewString(),
		LRN:           p.LRN,
		Date:          day,
		SessionNumber: next,
		TimeIn:        now,
		RFIDTag:       p.RFIDTag,
		GradeLevel:    p.GradeLevel,
		SchoolYear:    p.SchoolYear,
		CreatedAt:     now,
	})
	return TimeInResult{
		SessionNumber: next,
		TimeIn:        now,
		Message:       fmt.Sprintf("Time in recorded (session %d).", next),
	}, nil
}

// RecordTimeOut closes the open session for today, if any.
func (s *MemoryStore) RecordTimeOut(_ context.Context, lrn string, now time.Time) (TimeOutResult, error) {
	day := dateOf(now)
	key := dayKey(lrn, day)
	lock := s.learnerLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions[key]
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Open() {
			out := now
			sessions[i].TimeOut = &out
			hours := roundHours(now.Sub(sessions[i].TimeIn))
			return TimeOutResult{
				SessionNumber: sessions[i].SessionNumber,
				TimeOut:       now,
				DurationHours: hours,
				Message:       fmt.Sprintf("Time out recorded (session %d, %.2f hours).", sessions[i].SessionNumber, hours),
			}, nil
		}
	}
	return TimeOutResult{
		NoActiveSession: true,
		Message:         "No active time-in found. The student may have already timed out.",
	}, nil
}

// ListDay returns a learner's sessions for one day, ordered by session number.
func (s *MemoryStore) ListDay(_ context.Context, lrn string, day time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Session
	for _, sess := range s.sessions[dayKey(lrn, dateOf(day))] {
		res = append(res, *sess)
	}
	return res, nil
}

// RecentSessions returns the latest sessions for a day across all learners.
func (s *MemoryStore) RecentSessions(_ context.Context, day time.Time, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	suffix := "|" + dateOf(day).Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Session
	for key, sessions := range s.sessions {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			for _, sess := range sessions {
				res = append(res, *sess)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TimeIn.After(res[j].TimeIn) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// RegisterStation records a scan station.
func (s *MemoryStore) RegisterStation(_ context.Context, stationID string) error {
	if stationID == "" {
		return fmt.Errorf("station id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[stationID] = true
	return nil
}

// SaveRefreshToken is a no-op in memory; tokens are not rotated in dev mode.
func (s *MemoryStore) SaveRefreshToken(context.Context, string, string, time.Time) error {
	return nil
}
