package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/domain"
)

const programsTable = "programs"

type cacheEntry struct {
	program   *domain.Program
	expiresAt time.Time
}

// ProgramStore implements domain.ProgramStore using PostgreSQL as the source of
// truth and an in-memory, time-based read-through cache.
type ProgramStore struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.RelayMetrics
}

// NewProgramStore creates a new instance of the PostgreSQL program store.
// A zero cacheTTL disables the cache.
func NewProgramStore(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.RelayMetrics) *ProgramStore {
	return &ProgramStore{
		db:       db,
		logger:   logger.With("component", "postgres_program_store"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// EnsureSchema creates the programs table if it does not exist.
func (s *ProgramStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(programsTable) + ` (
		problem_key TEXT PRIMARY KEY,
		problem     TEXT NOT NULL,
		answer      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure %s table: %w", programsTable, err)
	}
	return nil
}

// Lookup checks the local cache first and falls back to the database when the
// entry is missing or expired. Misses are cached too.
func (s *ProgramStore) Lookup(ctx context.Context, problem string) (*domain.Program, error) {
	key := domain.ProblemKey(problem)

	// 1. Check cache with a read lock
	s.mu.RLock()
	entry, found := s.cache[key]
	s.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if s.metrics != nil {
			s.metrics.ProgramCacheHits.Inc()
		}
		return entry.result()
	}

	// 2. Cache miss or expired, query DB and update cache with a write lock
	if s.metrics != nil {
		s.metrics.ProgramCacheMisses.Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check cache in case another goroutine populated it while waiting for the lock
	entry, found = s.cache[key]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.result()
	}

	var p domain.Program
	query := `SELECT problem, answer, created_at FROM ` + pq.QuoteIdentifier(programsTable) + ` WHERE problem_key = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&p.Problem, &p.Answer, &p.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.store(key, nil)
		return nil, domain.ErrProgramNotFound
	case err != nil:
		// Don't cache errors, let the next request retry from the DB
		s.logger.Error("failed to look up program in database", "error", err)
		return nil, fmt.Errorf("failed to query program: %w", err)
	}

	s.store(key, &p)
	cp := p
	return &cp, nil
}

// Save upserts the program and refreshes the cache entry.
func (s *ProgramStore) Save(ctx context.Context, program domain.Program) error {
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	key := program.Key()

	query := `
		INSERT INTO ` + pq.QuoteIdentifier(programsTable) + ` (problem_key, problem, answer, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (problem_key) DO UPDATE SET
			problem = EXCLUDED.problem,
			answer = EXCLUDED.answer,
			created_at = EXCLUDED.created_at;
	`
	if _, err := s.db.ExecContext(ctx, query, key, program.Problem, program.Answer, program.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert program: %w", err)
	}

	s.mu.Lock()
	s.store(key, &program)
	s.mu.Unlock()
	return nil
}

// store must be called with the write lock held.
func (s *ProgramStore) store(key string, p *domain.Program) {
	if s.cacheTTL <= 0 {
		return
	}
	s.cache[key] = cacheEntry{program: p, expiresAt: time.Now().Add(s.cacheTTL)}
}

func (e cacheEntry) result() (*domain.Program, error) {
	if e.program == nil {
		return nil, domain.ErrProgramNotFound
	}
	cp := *e.program
	return &cp, nil
}
