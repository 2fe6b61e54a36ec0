package narration

import (
	"sort"
	"sync"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/domain"
)

type taskChannel struct {
	ch       *Channel
	sessions int
}

// Hub is the process-wide message registry. Lines are queued only for open
// sessions: the shared channel while a shared session is subscribed, and a
// task's channel while a session is subscribed to that task. Nothing emitted
// before a session connects reaches it.
type Hub struct {
	shared  *Channel
	limit   int
	metrics *metrics.RelayMetrics

	mu             sync.Mutex
	sharedSessions int
	tasks          map[string]*taskChannel
}

func NewHub(backlogLimit int, m *metrics.RelayMetrics) *Hub {
	return &Hub{
		shared:  NewChannel(backlogLimit),
		limit:   backlogLimit,
		metrics: m,
		tasks:   make(map[string]*taskChannel),
	}
}

// Publish implements Sink. Pushes happen under the hub lock so a release
// cannot race a push into a channel it has just drained.
func (h *Hub) Publish(taskID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sharedSessions > 0 {
		h.push(h.shared, line)
	}
	if taskID == "" {
		return
	}
	if tc := h.tasks[taskID]; tc != nil {
		h.push(tc.ch, line)
	}
}

func (h *Hub) push(ch *Channel, line string) {
	if ch.Push(line) && h.metrics != nil {
		h.metrics.NarrationEvicted.Inc()
	}
}

// Shared returns the process-wide channel.
func (h *Hub) Shared() *Channel {
	return h.shared
}

// open subscribes a session. An empty taskID means the shared channel. The
// returned release func drains the channel and is safe to call more than once.
func (h *Hub) open(taskID string) (*Channel, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if taskID == "" {
		h.sharedSessions++
		var once sync.Once
		return h.shared, func() {
			once.Do(func() {
				h.mu.Lock()
				h.sharedSessions--
				h.shared.Drain()
				h.mu.Unlock()
			})
		}
	}

	tc, ok := h.tasks[taskID]
	if !ok {
		tc = &taskChannel{ch: NewChannel(h.limit)}
		h.tasks[taskID] = tc
	}
	tc.sessions++

	var once sync.Once
	return tc.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			tc.sessions--
			if tc.sessions == 0 && h.tasks[taskID] == tc {
				delete(h.tasks, taskID)
			}
			tc.ch.Drain()
			h.mu.Unlock()
		})
	}
}

// Stats reports backlog and subscriber counts for the admin API.
func (h *Hub) Stats() domain.StreamStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := domain.StreamStats{
		SharedBacklog:  h.shared.Len(),
		SharedSessions: h.sharedSessions,
		TaskChannels:   make([]domain.TaskChannelInfo, 0, len(h.tasks)),
	}
	for id, tc := range h.tasks {
		stats.TaskChannels = append(stats.TaskChannels, domain.TaskChannelInfo{
			TaskID:   id,
			Backlog:  tc.ch.Len(),
			Sessions: tc.sessions,
		})
	}
	sort.Slice(stats.TaskChannels, func(i, j int) bool {
		return stats.TaskChannels[i].TaskID < stats.TaskChannels[j].TaskID
	})
	return stats
}
