package agent

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/adapter/repository/memory"
	"github.com/V4T54L/agent-relay/internal/domain"
)

// FactoryConfig selects and configures the agent implementation.
type FactoryConfig struct {
	// Command is the external agent program; empty selects DemoAgent.
	Command       []string
	WorkDir       string
	KnowledgeDir  string
	DemoStepDelay time.Duration
}

// NewFactory returns a Factory building agents that narrate through logger.
// Agents with UseProgramStore share the given store; the others each get a
// private in-memory one.
func NewFactory(cfg FactoryConfig, shared domain.ProgramStore, logger *slog.Logger, m *metrics.RelayMetrics) Factory {
	return func(opts domain.AgentOptions) (domain.Agent, error) {
		var base domain.Agent
		if len(cfg.Command) == 0 {
			base = &DemoAgent{Logger: logger, StepDelay: cfg.DemoStepDelay, UseKnowledge: opts.UseKnowledge}
		} else {
			if _, err := exec.LookPath(cfg.Command[0]); err != nil {
				return nil, fmt.Errorf("agent command %q not found: %w", cfg.Command[0], err)
			}
			base = &CommandAgent{
				Command:      cfg.Command,
				WorkDir:      cfg.WorkDir,
				KnowledgeDir: cfg.KnowledgeDir,
				UseKnowledge: opts.UseKnowledge,
				Logger:       logger,
			}
		}

		store := shared
		if !opts.UseProgramStore || store == nil {
			store = memory.NewProgramStore(0)
		}
		return WithProgramStore(base, store, logger, m), nil
	}
}
