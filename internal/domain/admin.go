package domain

// TaskChannelInfo describes one task-scoped narration channel.
type TaskChannelInfo struct {
	TaskID   string `json:"task_id"`
	Backlog  int    `json:"backlog"`
	Sessions int    `json:"sessions"`
}

// StreamStats summarizes the narration channels and their stream sessions.
type StreamStats struct {
	SharedBacklog  int               `json:"shared_backlog"`
	SharedSessions int               `json:"shared_sessions"`
	TaskChannels   []TaskChannelInfo `json:"task_channels"`
}
