package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/domain"
)

// storeAgent answers from a ProgramStore when it can and records new answers.
type storeAgent struct {
	next     domain.Agent
	store    domain.ProgramStore
	narrator *slog.Logger
	logger   *slog.Logger
	metrics  *metrics.RelayMetrics
}

// WithProgramStore decorates next with program reuse. Store failures are logged
// and never fail the solve.
func WithProgramStore(next domain.Agent, store domain.ProgramStore, logger *slog.Logger, m *metrics.RelayMetrics) domain.Agent {
	return &storeAgent{
		next:     next,
		store:    store,
		narrator: logger,
		logger:   logger.With("component", "program_store"),
		metrics:  m,
	}
}

func (a *storeAgent) Solve(ctx context.Context, problem string) (string, error) {
	p, err := a.store.Lookup(ctx, problem)
	switch {
	case err == nil:
		a.count("hit")
		a.narrator.InfoContext(ctx, "Reusing stored program", "stored_at", p.CreatedAt.Format(time.RFC3339))
		return p.Answer, nil
	case errors.Is(err, domain.ErrProgramNotFound):
		a.count("miss")
	default:
		a.count("error")
		a.logger.WarnContext(ctx, "program lookup failed", "error", err)
	}

	answer, err := a.next.Solve(ctx, problem)
	if err != nil {
		return "", err
	}

	program := domain.Program{Problem: problem, Answer: answer, CreatedAt: time.Now().UTC()}
	if err := a.store.Save(ctx, program); err != nil {
		a.logger.WarnContext(ctx, "failed to save program", "error", err)
	}
	return answer, nil
}

func (a *storeAgent) count(result string) {
	if a.metrics != nil {
		a.metrics.ProgramLookups.WithLabelValues(result).Inc()
	}
}

func (a *storeAgent) Close() error {
	if c, ok := a.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
