package memory

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/agent-relay/internal/domain"
)

type entry struct {
	program   domain.Program
	expiresAt time.Time
}

// ProgramStore is an in-process domain.ProgramStore.
type ProgramStore struct {
	mu       sync.RWMutex
	programs map[string]entry
	ttl      time.Duration
}

// NewProgramStore creates an empty store. A zero ttl keeps programs forever.
func NewProgramStore(ttl time.Duration) *ProgramStore {
	return &ProgramStore{
		programs: make(map[string]entry),
		ttl:      ttl,
	}
}

func (s *ProgramStore) Lookup(ctx context.Context, problem string) (*domain.Program, error) {
	key := domain.ProblemKey(problem)

	s.mu.RLock()
	e, ok := s.programs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrProgramNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.programs[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.programs, key)
		}
		s.mu.Unlock()
		return nil, domain.ErrProgramNotFound
	}
	p := e.program
	return &p, nil
}

func (s *ProgramStore) Save(ctx context.Context, program domain.Program) error {
	e := entry{program: program}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	s.programs[program.Key()] = e
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored programs, including expired ones not yet evicted.
func (s *ProgramStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.programs)
}
