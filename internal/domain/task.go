package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorAnswerPrefix marks answers synthesized from agent failures.
const ErrorAnswerPrefix = "ERROR: "

// TaskState is a SolveTask lifecycle state: submitted -> running -> completed | failed.
type TaskState string

const (
	TaskSubmitted TaskState = "submitted"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Agent is the external reasoning collaborator. Solve may block for minutes and
// narrates its progress through the process-wide logger while it runs.
type Agent interface {
	Solve(ctx context.Context, problem string) (string, error)
}

// AgentOptions is the configuration tuple agents are built and cached by.
type AgentOptions struct {
	UseKnowledge    bool `json:"use_knowledge"`
	UseProgramStore bool `json:"use_program_store"`
}

func (o AgentOptions) String() string {
	return fmt.Sprintf("knowledge=%t,program_store=%t", o.UseKnowledge, o.UseProgramStore)
}

// SolveRequest is the body of POST /solve.
type SolveRequest struct {
	Question        string `json:"question"`
	UseKnowledge    bool   `json:"use_knowledge"`
	UseProgramStore bool   `json:"use_program_store"`
	// TaskID lets a client pick the identifier it will tail on /solve/stream.
	TaskID string `json:"task_id,omitempty"`
}

func (r SolveRequest) Options() AgentOptions {
	return AgentOptions{UseKnowledge: r.UseKnowledge, UseProgramStore: r.UseProgramStore}
}

// SolveResult is the body returned by POST /solve.
type SolveResult struct {
	Answer string `json:"answer"`
	TaskID string `json:"-"`
}

// SolveTask is one agent invocation.
type SolveTask struct {
	ID          string       `json:"task_id"`
	Question    string       `json:"question"`
	Options     AgentOptions `json:"options"`
	State       TaskState    `json:"state"`
	Answer      string       `json:"answer,omitempty"`
	Error       string       `json:"error,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
	StartedAt   time.Time    `json:"started_at,omitempty"`
	FinishedAt  time.Time    `json:"finished_at,omitempty"`
}

// NewSolveTask creates a submitted task, generating an ID when the request has none.
func NewSolveTask(req SolveRequest) *SolveTask {
	id := req.TaskID
	if id == "" {
		id = uuid.NewString()
	}
	return &SolveTask{
		ID:          id,
		Question:    req.Question,
		Options:     req.Options(),
		State:       TaskSubmitted,
		SubmittedAt: time.Now().UTC(),
	}
}

// Duration is the running time of a finished task.
func (t *SolveTask) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// TaskEvent is published when a SolveTask finishes.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	Status     TaskState `json:"status"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewTaskEvent builds the lifecycle event for a finished task.
func NewTaskEvent(t SolveTask) TaskEvent {
	return TaskEvent{
		TaskID:     t.ID,
		Status:     t.State,
		Question:   t.Question,
		Answer:     t.Answer,
		DurationMS: t.Duration().Milliseconds(),
		FinishedAt: t.FinishedAt,
	}
}
