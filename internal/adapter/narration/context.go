package narration

import "context"

// Attribute keys with special meaning to the interceptor.
const (
	// TaskIDKey routes a record to the task-scoped channel of that ID.
	TaskIDKey = "task_id"
	// ComponentKey marks service-internal diagnostics, which are never narrated.
	ComponentKey = "component"
)

type taskIDKey struct{}

// WithTaskID tags every record logged with ctx as belonging to a SolveTask.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskID)
}

// TaskIDFromContext returns the task ID set by WithTaskID, or "".
func TaskIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}
