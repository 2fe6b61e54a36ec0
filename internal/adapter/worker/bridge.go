package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/adapter/narration"
	"github.com/V4T54L/agent-relay/internal/domain"
)

// ErrBridgeClosed is returned by Submit after Shutdown has begun.
var ErrBridgeClosed = errors.New("worker bridge is shut down")

const eventPublishTimeout = 5 * time.Second

var tracer trace.Tracer = otel.Tracer("agent-relay/worker")

// Future is the pending result of a submitted task.
type Future struct {
	TaskID string

	done   chan struct{}
	answer string
	err    error
}

// Done is closed once the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task finishes or ctx is done. Leaving early does not
// stop the task: the agent keeps running and its result is discarded.
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.answer, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Bridge runs blocking agent calls on a bounded pool of goroutines so the
// request-serving side never waits on an agent itself.
type Bridge struct {
	slots     *semaphore.Weighted
	logger    *slog.Logger
	metrics   *metrics.RelayMetrics
	publisher domain.TaskEventPublisher

	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	seq    uint64
	// keyed by submission sequence; client-chosen task IDs may repeat
	tasks map[uint64]*domain.SolveTask
}

// NewBridge creates a bridge that runs at most size agents at once.
// The publisher and metrics may be nil.
func NewBridge(size int64, logger *slog.Logger, m *metrics.RelayMetrics, publisher domain.TaskEventPublisher) *Bridge {
	if size < 1 {
		size = 1
	}
	return &Bridge{
		slots:     semaphore.NewWeighted(size),
		logger:    logger.With("component", "worker"),
		metrics:   m,
		publisher: publisher,
		tasks:     make(map[uint64]*domain.SolveTask),
	}
}

// Submit schedules task on agent and returns immediately. The agent runs with a
// context that keeps ctx's values, including the narration task ID, but not its
// cancellation.
func (b *Bridge) Submit(ctx context.Context, task *domain.SolveTask, agent domain.Agent) (*Future, error) {
	key, err := b.track(task)
	if err != nil {
		return nil, err
	}
	f := &Future{TaskID: task.ID, done: make(chan struct{})}

	runCtx := narration.WithTaskID(context.WithoutCancel(ctx), task.ID)
	go func() {
		defer b.wg.Done()
		defer close(f.done)
		f.answer, f.err = b.run(runCtx, key, task, agent)
	}()

	b.logger.Debug("task submitted", "task_id", task.ID, "options", task.Options.String())
	return f, nil
}

func (b *Bridge) run(ctx context.Context, key uint64, task *domain.SolveTask, agent domain.Agent) (answer string, err error) {
	if err := b.slots.Acquire(ctx, 1); err != nil {
		b.finish(ctx, key, task, "", err)
		return "", err
	}
	defer b.slots.Release(1)

	b.update(key, func(t *domain.SolveTask) {
		t.State = domain.TaskRunning
		t.StartedAt = time.Now().UTC()
	})

	ctx, span := tracer.Start(ctx, "agent.solve", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Bool("agent.use_knowledge", task.Options.UseKnowledge),
		attribute.Bool("agent.use_program_store", task.Options.UseProgramStore),
	))
	defer span.End()

	var pc panics.Catcher
	pc.Try(func() {
		answer, err = agent.Solve(ctx, task.Question)
	})
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("agent panicked: %v", r.Value)
		b.logger.Error("agent panicked", "task_id", task.ID, "panic", r.String())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	b.finish(ctx, key, task, answer, err)
	return answer, err
}

func (b *Bridge) finish(ctx context.Context, key uint64, task *domain.SolveTask, answer string, err error) {
	var snapshot domain.SolveTask
	b.mu.Lock()
	t := b.tasks[key]
	if t == nil {
		t = task
	}
	t.FinishedAt = time.Now().UTC()
	if err != nil {
		t.State = domain.TaskFailed
		t.Error = err.Error()
	} else {
		t.State = domain.TaskCompleted
		t.Answer = answer
	}
	snapshot = *t
	delete(b.tasks, key)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SolveInFlight.Dec()
		b.metrics.SolveTasks.WithLabelValues(string(snapshot.State)).Inc()
		if d := snapshot.Duration(); d > 0 {
			b.metrics.SolveDuration.Observe(d.Seconds())
		}
	}

	if err != nil {
		b.logger.Warn("task failed", "task_id", snapshot.ID, "error", err, "duration", snapshot.Duration())
	} else {
		b.logger.Info("task completed", "task_id", snapshot.ID, "duration", snapshot.Duration())
	}

	if b.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if perr := b.publisher.PublishTaskEvent(pubCtx, domain.NewTaskEvent(snapshot)); perr != nil {
		b.logger.Error("failed to publish task event", "task_id", snapshot.ID, "error", perr)
		if b.metrics != nil {
			b.metrics.TaskEventsFailed.Inc()
		}
	}
}

func (b *Bridge) track(task *domain.SolveTask) (uint64, error) {
	t := *task
	t.State = domain.TaskSubmitted

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrBridgeClosed
	}
	b.seq++
	key := b.seq
	b.tasks[key] = &t
	b.wg.Add(1)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SolveInFlight.Inc()
	}
	return key, nil
}

func (b *Bridge) update(key uint64, fn func(t *domain.SolveTask)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tasks[key]; ok {
		fn(t)
	}
}

// Tasks returns a snapshot of submitted and running tasks, oldest first.
func (b *Bridge) Tasks() []domain.SolveTask {
	b.mu.RLock()
	out := make([]domain.SolveTask, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, *t)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Shutdown rejects new tasks and waits for running ones until ctx is done.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker bridge shutdown: %d tasks still running: %w", len(b.Tasks()), ctx.Err())
	}
}
