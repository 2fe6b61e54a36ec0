package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/V4T54L/agent-relay/internal/domain"
)

// Factory builds the agent for one option set.
type Factory func(opts domain.AgentOptions) (domain.Agent, error)

// Registry lazily builds and caches one agent per option set; requests with
// the same flags share an instance for the life of the process.
type Registry struct {
	factory Factory
	logger  *slog.Logger

	mu     sync.Mutex
	agents map[domain.AgentOptions]domain.Agent
}

func NewRegistry(factory Factory, logger *slog.Logger) *Registry {
	return &Registry{
		factory: factory,
		logger:  logger.With("component", "agent_registry"),
		agents:  make(map[domain.AgentOptions]domain.Agent),
	}
}

// Get returns the cached agent for opts, building it on first use. A failed
// build is not cached, so the next call retries.
func (r *Registry) Get(opts domain.AgentOptions) (domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.agents[opts]; ok {
		return a, nil
	}

	a, err := r.factory(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build agent (%s): %w", opts, err)
	}
	r.agents[opts] = a
	r.logger.Info("agent built", "options", opts.String())
	return a, nil
}

// Keys lists the option sets with a cached agent.
func (r *Registry) Keys() []domain.AgentOptions {
	r.mu.Lock()
	keys := make([]domain.AgentOptions, 0, len(r.agents))
	for k := range r.agents {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Close releases every cached agent that holds resources and empties the cache.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for opts, a := range r.agents {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close agent (%s): %w", opts, err))
			}
		}
	}
	r.agents = make(map[domain.AgentOptions]domain.Agent)
	return errors.Join(errs...)
}
