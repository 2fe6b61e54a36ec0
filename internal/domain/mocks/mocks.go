package mocks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/agent-relay/internal/domain"
)

// MockProgramStore is a mock implementation of domain.ProgramStore for testing.
type MockProgramStore struct {
	mu        sync.Mutex
	Programs  map[string]domain.Program
	Saved     []domain.Program
	Lookups   int
	LookupErr error
	SaveErr   error
}

func (m *MockProgramStore) Lookup(ctx context.Context, problem string) (*domain.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	p, ok := m.Programs[domain.ProblemKey(problem)]
	if !ok {
		return nil, domain.ErrProgramNotFound
	}
	return &p, nil
}

func (m *MockProgramStore) Save(ctx context.Context, program domain.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Programs == nil {
		m.Programs = make(map[string]domain.Program)
	}
	m.Programs[program.Key()] = program
	m.Saved = append(m.Saved, program)
	return nil
}

// SavedPrograms returns a copy of every saved program.
func (m *MockProgramStore) SavedPrograms() []domain.Program {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Program(nil), m.Saved...)
}

// MockWALRepository is a mock implementation of domain.WALRepository.
type MockWALRepository struct {
	mu          sync.Mutex
	Written     []domain.Program
	Truncated   bool
	WriteErr    error
	ReplayErr   error
	TruncateErr error
}

func (m *MockWALRepository) Write(ctx context.Context, program domain.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Written = append(m.Written, program)
	return nil
}

func (m *MockWALRepository) Replay(ctx context.Context, handler func(program domain.Program) error) error {
	m.mu.Lock()
	programs := append([]domain.Program(nil), m.Written...)
	replayErr := m.ReplayErr
	m.mu.Unlock()
	if replayErr != nil {
		return replayErr
	}
	for _, p := range programs {
		if err := handler(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockWALRepository) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TruncateErr != nil {
		return m.TruncateErr
	}
	m.Written = nil
	m.Truncated = true
	return nil
}

// MockTaskEventPublisher is a mock implementation of domain.TaskEventPublisher.
type MockTaskEventPublisher struct {
	mu         sync.Mutex
	Events     []domain.TaskEvent
	PublishErr error
}

func (m *MockTaskEventPublisher) PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockTaskEventPublisher) Published() []domain.TaskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TaskEvent(nil), m.Events...)
}

// MockAgent is a scriptable domain.Agent. Steps are logged through Logger with
// the call's context before the answer is returned, like a real agent narrating.
type MockAgent struct {
	mu       sync.Mutex
	Answer   string
	Err      error
	Panic    any
	Steps    []string
	Delay    time.Duration
	Logger   *slog.Logger
	Block    chan struct{}
	Problems []string
	Contexts []context.Context
}

func (m *MockAgent) Solve(ctx context.Context, problem string) (string, error) {
	m.mu.Lock()
	m.Problems = append(m.Problems, problem)
	m.Contexts = append(m.Contexts, ctx)
	m.mu.Unlock()

	for _, step := range m.Steps {
		if m.Logger != nil {
			m.Logger.InfoContext(ctx, step)
		}
	}
	if m.Block != nil {
		<-m.Block
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Panic != nil {
		panic(m.Panic)
	}
	return m.Answer, m.Err
}

// Calls returns how many times Solve was invoked.
func (m *MockAgent) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Problems)
}

// LastContext returns the context of the most recent call.
func (m *MockAgent) LastContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Contexts) == 0 {
		return nil
	}
	return m.Contexts[len(m.Contexts)-1]
}
