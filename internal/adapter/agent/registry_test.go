package agent

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/agent-relay/internal/domain"
	"github.com/V4T54L/agent-relay/internal/domain/mocks"
)

type closingAgent struct {
	mocks.MockAgent
	closed   bool
	closeErr error
}

func (a *closingAgent) Close() error {
	a.closed = true
	return a.closeErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Get(t *testing.T) {
	builds := 0
	r := NewRegistry(func(opts domain.AgentOptions) (domain.Agent, error) {
		builds++
		return &mocks.MockAgent{Answer: opts.String()}, nil
	}, discardLogger())

	plain := domain.AgentOptions{}
	knowledge := domain.AgentOptions{UseKnowledge: true}

	a1, err := r.Get(plain)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	a2, _ := r.Get(plain)
	if a1 != a2 {
		t.Error("expected the same agent for the same options")
	}
	a3, _ := r.Get(knowledge)
	if a3 == a1 {
		t.Error("expected a different agent for different options")
	}
	if builds != 2 {
		t.Errorf("factory called %d times, want 2", builds)
	}
	if keys := r.Keys(); len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 entries", keys)
	}
}

func TestRegistry_FactoryErrorNotCached(t *testing.T) {
	fail := true
	r := NewRegistry(func(opts domain.AgentOptions) (domain.Agent, error) {
		if fail {
			return nil, errors.New("knowledge dir missing")
		}
		return &mocks.MockAgent{}, nil
	}, discardLogger())

	if _, err := r.Get(domain.AgentOptions{}); err == nil {
		t.Fatal("expected factory error")
	}
	fail = false
	if _, err := r.Get(domain.AgentOptions{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestRegistry_Close(t *testing.T) {
	closer := &closingAgent{closeErr: errors.New("still busy")}
	r := NewRegistry(func(opts domain.AgentOptions) (domain.Agent, error) {
		if opts.UseKnowledge {
			return closer, nil
		}
		return &mocks.MockAgent{}, nil
	}, discardLogger())

	_, _ = r.Get(domain.AgentOptions{})
	_, _ = r.Get(domain.AgentOptions{UseKnowledge: true})

	err := r.Close()
	if err == nil {
		t.Fatal("expected close error to be reported")
	}
	if !closer.closed {
		t.Error("expected closer agent to be closed")
	}
	if len(r.Keys()) != 0 {
		t.Error("expected cache to be emptied")
	}
}
