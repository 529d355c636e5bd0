package roster

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory roster for dev mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]StudentIdentity // keyed by LRN
}

// NewMemoryStore creates an empty in-memory roster.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{students: make(map[string]StudentIdentity)}
}

// Put adds or replaces a student record.
func (s *MemoryStore) Put(st StudentIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.LRN] = st
}

// ResolveByTag scans for the student currently holding the tag.
func (s *MemoryStore) ResolveByTag(_ context.Context, tag string) (*StudentIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.RFIDTag != nil && *st.RFIDTag == tag {
			copied := st
			return &copied, nil
		}
	}
	return nil, nil
}

// GetByLRN fetches a student by learner reference number.
func (s *MemoryStore) GetByLRN(_ context.Context, lrn string) (*StudentIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.students[lrn]; ok {
		copied := st
		return &copied, nil
	}
	return nil, nil
}
