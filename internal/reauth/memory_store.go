package reauth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps challenges in a process-local map. Single-instance only:
// a challenge created here is invisible to other replicas. Expired entries
// are swept on save rather than by a background timer; Get hands back even
// an expired challenge so the caller can classify expiry before discarding.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*Challenge
	failures   map[uuid.UUID]*failureWindow

	// now is overridable for tests; nil means time.Now.
	now func() time.Time
}

type failureWindow struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		challenges: make(map[uuid.UUID]*Challenge),
		failures:   make(map[uuid.UUID]*failureWindow),
		now:        now,
	}
}

func (s *MemoryStore) Save(_ context.Context, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	cp := *ch
	s.challenges[ch.AccountID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, accountID uuid.UUID) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[accountID]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, accountID)
	return nil
}

func (s *MemoryStore) IncrementPasswordFailures(_ context.Context, accountID uuid.UUID, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	fw, ok := s.failures[accountID]
	if !ok || now.After(fw.expiresAt) {
		fw = &failureWindow{expiresAt: now.Add(window)}
		s.failures[accountID] = fw
	}
	fw.count++
	return fw.count, nil
}

func (s *MemoryStore) ResetPasswordFailures(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, accountID)
	return nil
}

// sweep drops expired entries so abandoned challenges do not accumulate.
// Callers must hold s.mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, ch := range s.challenges {
		if ch.Expired(now) {
			delete(s.challenges, id)
		}
	}
	for id, fw := range s.failures {
		if now.After(fw.expiresAt) {
			delete(s.failures, id)
		}
	}
}
