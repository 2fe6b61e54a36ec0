package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/adapter/narration"
	"github.com/V4T54L/agent-relay/internal/domain"
	"github.com/V4T54L/agent-relay/internal/domain/mocks"
)

func newTestBridge(size int64, pub domain.TaskEventPublisher) *Bridge {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBridge(size, logger, metrics.NewRelayMetrics(prometheus.NewRegistry()), pub)
}

func newTask(question string) *domain.SolveTask {
	return domain.NewSolveTask(domain.SolveRequest{Question: question})
}

func TestBridge_SubmitAndAwait(t *testing.T) {
	pub := &mocks.MockTaskEventPublisher{}
	b := newTestBridge(2, pub)
	agent := &mocks.MockAgent{Answer: "4"}
	task := newTask("2+2")

	f, err := b.Submit(context.Background(), task, agent)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	answer, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if answer != "4" {
		t.Errorf("answer = %q, want 4", answer)
	}

	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	events := pub.Published()
	if len(events) != 1 {
		t.Fatalf("expected 1 task event, got %d", len(events))
	}
	if events[0].Status != domain.TaskCompleted || events[0].TaskID != task.ID || events[0].Answer != "4" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestBridge_AgentRunsWithTaskID(t *testing.T) {
	b := newTestBridge(1, nil)
	agent := &mocks.MockAgent{Answer: "ok"}
	task := newTask("q")

	f, _ := b.Submit(context.Background(), task, agent)
	if _, err := f.Await(context.Background()); err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if got := narration.TaskIDFromContext(agent.LastContext()); got != task.ID {
		t.Errorf("agent context task id = %q, want %q", got, task.ID)
	}
}

func TestBridge_Failures(t *testing.T) {
	tests := []struct {
		name    string
		agent   *mocks.MockAgent
		wantErr string
	}{
		{
			name:    "agent error",
			agent:   &mocks.MockAgent{Err: errors.New("timeout")},
			wantErr: "timeout",
		},
		{
			name:    "agent panic",
			agent:   &mocks.MockAgent{Panic: "nil map"},
			wantErr: "agent panicked: nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mocks.MockTaskEventPublisher{}
			b := newTestBridge(1, pub)

			f, err := b.Submit(context.Background(), newTask("q"), tt.agent)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			_, err = f.Await(context.Background())
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("Await() error = %v, want %q", err, tt.wantErr)
			}

			_ = b.Shutdown(context.Background())
			if events := pub.Published(); len(events) != 1 || events[0].Status != domain.TaskFailed {
				t.Errorf("expected one failed event, got %+v", events)
			}
		})
	}
}

func TestBridge_CallerLeavesTaskContinues(t *testing.T) {
	b := newTestBridge(1, nil)
	release := make(chan struct{})
	agent := &mocks.MockAgent{Answer: "late", Block: release}

	ctx, cancel := context.WithCancel(context.Background())
	f, err := b.Submit(ctx, newTask("q"), agent)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v, want context.Canceled", err)
	}
	if len(b.Tasks()) != 1 {
		t.Fatalf("expected task to keep running after caller left, got %d tasks", len(b.Tasks()))
	}

	close(release)
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
	if answer, err := f.Await(context.Background()); err != nil || answer != "late" {
		t.Errorf("Await() = %q, %v; want late", answer, err)
	}
}

func TestBridge_PoolLimitsConcurrency(t *testing.T) {
	b := newTestBridge(1, nil)
	release := make(chan struct{})
	first := &mocks.MockAgent{Answer: "1", Block: release}
	second := &mocks.MockAgent{Answer: "2"}

	f1, _ := b.Submit(context.Background(), newTask("a"), first)
	waitFor(t, func() bool { return first.Calls() == 1 })
	f2, _ := b.Submit(context.Background(), newTask("b"), second)

	time.Sleep(50 * time.Millisecond)
	if second.Calls() != 0 {
		t.Fatal("second task should wait for a free slot")
	}

	states := map[domain.TaskState]int{}
	for _, task := range b.Tasks() {
		states[task.State]++
	}
	if states[domain.TaskRunning] != 1 || states[domain.TaskSubmitted] != 1 {
		t.Errorf("unexpected task states %v", states)
	}

	close(release)
	for _, f := range []*Future{f1, f2} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := f.Await(ctx); err != nil {
			t.Errorf("Await() error = %v", err)
		}
		cancel()
	}
}

func TestBridge_Shutdown(t *testing.T) {
	b := newTestBridge(1, nil)
	release := make(chan struct{})
	agent := &mocks.MockAgent{Answer: "x", Block: release}

	if _, err := b.Submit(context.Background(), newTask("q"), agent); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Shutdown(ctx)
	if err == nil || !strings.Contains(err.Error(), "still running") {
		t.Fatalf("expected shutdown timeout, got %v", err)
	}

	if _, err := b.Submit(context.Background(), newTask("late"), agent); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Submit() after shutdown error = %v, want ErrBridgeClosed", err)
	}

	close(release)
	if err := b.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestBridge_PublishFailureDoesNotFailTask(t *testing.T) {
	b := newTestBridge(1, &mocks.MockTaskEventPublisher{PublishErr: errors.New("kafka down")})
	f, _ := b.Submit(context.Background(), newTask("q"), &mocks.MockAgent{Answer: "fine"})
	if answer, err := f.Await(context.Background()); err != nil || answer != "fine" {
		t.Errorf("Await() = %q, %v", answer, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
