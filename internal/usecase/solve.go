package usecase

import (
	"context"
	"log/slog"

	"github.com/V4T54L/agent-relay/internal/adapter/worker"
	"github.com/V4T54L/agent-relay/internal/domain"
)

// AgentProvider hands out the agent for an option set.
type AgentProvider interface {
	Get(opts domain.AgentOptions) (domain.Agent, error)
}

// TaskRunner runs agents off the request path.
type TaskRunner interface {
	Submit(ctx context.Context, task *domain.SolveTask, agent domain.Agent) (*worker.Future, error)
}

// SolveUseCase answers questions with an agent.
type SolveUseCase struct {
	agents AgentProvider
	runner TaskRunner
	logger *slog.Logger
}

// NewSolveUseCase creates a new SolveUseCase.
func NewSolveUseCase(agents AgentProvider, runner TaskRunner, logger *slog.Logger) *SolveUseCase {
	return &SolveUseCase{
		agents: agents,
		runner: runner,
		logger: logger.With("component", "solve"),
	}
}

// Solve runs the agent for req and waits for its answer. Agent failures are not
// errors: they come back as an answer prefixed with "ERROR: ", and that includes
// an agent rejecting a blank question. An error is returned only for a closed
// runner or when ctx ends first, in which case the task keeps running in the
// background.
func (uc *SolveUseCase) Solve(ctx context.Context, req domain.SolveRequest) (domain.SolveResult, error) {
	task := domain.NewSolveTask(req)
	result := domain.SolveResult{TaskID: task.ID}

	agent, err := uc.agents.Get(task.Options)
	if err != nil {
		uc.logger.Error("failed to get agent", "task_id", task.ID, "error", err)
		result.Answer = domain.ErrorAnswerPrefix + err.Error()
		return result, nil
	}

	future, err := uc.runner.Submit(ctx, task, agent)
	if err != nil {
		return result, err
	}

	answer, err := future.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			uc.logger.Info("caller left before the answer was ready", "task_id", task.ID)
			return result, ctx.Err()
		}
		result.Answer = domain.ErrorAnswerPrefix + err.Error()
		return result, nil
	}

	result.Answer = answer
	return result, nil
}
