package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/domain"
)

const programKeyPrefix = "agent-relay:program:"

// ProgramStore implements domain.ProgramStore with one JSON value per problem.
// Writes fall back to a Write-Ahead Log while Redis is unreachable.
type ProgramStore struct {
	client      *redis.Client
	logger      *slog.Logger
	wal         domain.WALRepository
	ttl         time.Duration
	metrics     *metrics.RelayMetrics
	isAvailable atomic.Bool
}

// NewProgramStore creates a Redis-backed store. The WAL is optional; pass nil
// to make writes fail while Redis is down.
func NewProgramStore(ctx context.Context, client *redis.Client, logger *slog.Logger, ttl time.Duration, wal domain.WALRepository, m *metrics.RelayMetrics) *ProgramStore {
	s := &ProgramStore{
		client:  client,
		logger:  logger.With("component", "redis_program_store"),
		wal:     wal,
		ttl:     ttl,
		metrics: m,
	}
	s.isAvailable.Store(true) // Assume available initially

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.setAvailable(false)
		s.logger.Error("Redis unavailable on startup", "error", err)
	}
	return s
}

// Available reports whether Redis is currently considered reachable.
func (s *ProgramStore) Available() bool {
	return s.isAvailable.Load()
}

func (s *ProgramStore) setAvailable(ok bool) {
	s.isAvailable.Store(ok)
	if s.metrics != nil {
		if ok {
			s.metrics.WALActive.Set(0)
		} else if s.wal != nil {
			s.metrics.WALActive.Set(1)
		}
	}
}

// StartHealthCheck monitors Redis connectivity and replays the WAL when it recovers.
func (s *ProgramStore) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting Redis health check", "wal", s.wal != nil)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

func (s *ProgramStore) checkHealth(ctx context.Context) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		if s.isAvailable.CompareAndSwap(true, false) {
			s.setAvailable(false)
			s.logger.Error("Redis connection lost", "error", err)
		}
		return
	}
	if s.isAvailable.Load() {
		return
	}

	s.logger.Info("Redis connection recovered")
	if s.wal != nil {
		if err := s.ReplayWAL(ctx); err != nil {
			s.logger.Error("Failed to replay WAL after Redis recovery", "error", err)
			return
		}
	}
	s.setAvailable(true)
}

// ReplayWAL re-saves programs from the WAL to Redis and truncates it on success.
func (s *ProgramStore) ReplayWAL(ctx context.Context) error {
	s.logger.Info("Attempting to replay WAL to Redis")
	replayed := 0
	err := s.wal.Replay(ctx, func(p domain.Program) error {
		replayed++
		return s.saveToRedis(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}
	if err := s.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL after successful replay: %w", err)
	}
	s.logger.Info("WAL replay to Redis completed", "programs", replayed)
	return nil
}

func (s *ProgramStore) Lookup(ctx context.Context, problem string) (*domain.Program, error) {
	if !s.isAvailable.Load() {
		return nil, domain.ErrStoreUnavailable
	}

	raw, err := s.client.Get(ctx, programKeyPrefix+domain.ProblemKey(problem)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProgramNotFound
		}
		if isNetworkError(err) && s.isAvailable.CompareAndSwap(true, false) {
			s.setAvailable(false)
			s.logger.Error("Redis connection lost during read", "error", err)
		}
		return nil, fmt.Errorf("failed to GET program from redis: %w", err)
	}

	var p domain.Program
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal program: %w", err)
	}
	return &p, nil
}

// Save stores the program, falling back to the WAL if Redis is unavailable.
func (s *ProgramStore) Save(ctx context.Context, program domain.Program) error {
	if !s.isAvailable.Load() {
		return s.writeWAL(ctx, program, nil)
	}

	err := s.saveToRedis(ctx, program)
	if err != nil && isNetworkError(err) {
		if s.isAvailable.CompareAndSwap(true, false) {
			s.setAvailable(false)
			s.logger.Error("Redis connection lost during write", "error", err)
		}
		return s.writeWAL(ctx, program, err)
	}
	return err
}

func (s *ProgramStore) writeWAL(ctx context.Context, program domain.Program, cause error) error {
	if s.wal == nil {
		if cause != nil {
			return fmt.Errorf("redis became unavailable and WAL is not configured: %w", cause)
		}
		return fmt.Errorf("redis is unavailable and WAL is not configured: %w", domain.ErrStoreUnavailable)
	}
	s.logger.Warn("Redis is unavailable, writing program to WAL", "key", program.Key())
	return s.wal.Write(ctx, program)
}

func (s *ProgramStore) saveToRedis(ctx context.Context, program domain.Program) error {
	payload, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}
	if err := s.client.Set(ctx, programKeyPrefix+program.Key(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET program in redis: %w", err)
	}
	return nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
