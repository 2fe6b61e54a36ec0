package usecase

import "github.com/V4T54L/agent-relay/internal/domain"

type TaskLister interface {
	Tasks() []domain.SolveTask
}

type StreamInspector interface {
	Stats() domain.StreamStats
}

type AgentLister interface {
	Keys() []domain.AgentOptions
}

// AdminUseCase exposes the relay's runtime state to operators.
type AdminUseCase struct {
	tasks   TaskLister
	streams StreamInspector
	agents  AgentLister
}

// NewAdminUseCase creates a new AdminUseCase.
func NewAdminUseCase(tasks TaskLister, streams StreamInspector, agents AgentLister) *AdminUseCase {
	return &AdminUseCase{tasks: tasks, streams: streams, agents: agents}
}

func (uc *AdminUseCase) Tasks() []domain.SolveTask {
	return uc.tasks.Tasks()
}

func (uc *AdminUseCase) Streams() domain.StreamStats {
	return uc.streams.Stats()
}

func (uc *AdminUseCase) Agents() []domain.AgentOptions {
	return uc.agents.Keys()
}
