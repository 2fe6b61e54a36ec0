package narration

import (
	"context"
	"time"
)

// EventWriter delivers narration to one connected client.
type EventWriter interface {
	WriteEvent(data string) error
	WriteKeepAlive() error
}

// Session pumps one channel to one client until the client goes away.
type Session struct {
	TaskID string

	ch        *Channel
	release   func()
	poll      time.Duration
	keepAlive time.Duration
	hub       *Hub
}

// NewSession subscribes to the shared channel, or to the task channel when
// taskID is set. Run must be called to release the subscription.
func (h *Hub) NewSession(taskID string, poll, keepAlive time.Duration) *Session {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ch, release := h.open(taskID)
	return &Session{
		TaskID:    taskID,
		ch:        ch,
		release:   release,
		poll:      poll,
		keepAlive: keepAlive,
		hub:       h,
	}
}

// Run writes queued lines in FIFO order, waiting at most one poll interval
// between checks, until ctx is done or a write fails. The channel is drained on
// return so the next session starts with a clean slate. A failed write is a
// client disconnect and is returned only for diagnostics.
func (s *Session) Run(ctx context.Context, w EventWriter) error {
	defer s.release()

	if m := s.hub.metrics; m != nil {
		m.ActiveStreams.Inc()
		defer m.ActiveStreams.Dec()
	}

	timer := time.NewTimer(s.poll)
	defer timer.Stop()
	lastWrite := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if line, ok := s.ch.TryPop(); ok {
			if err := w.WriteEvent(line); err != nil {
				return err
			}
			if m := s.hub.metrics; m != nil {
				m.StreamEventsSent.Inc()
			}
			lastWrite = time.Now()
			continue
		}

		if s.keepAlive > 0 && time.Since(lastWrite) >= s.keepAlive {
			if err := w.WriteKeepAlive(); err != nil {
				return err
			}
			lastWrite = time.Now()
		}

		timer.Reset(s.poll)
		select {
		case <-ctx.Done():
			return nil
		case <-s.ch.Ready():
		case <-timer.C:
		}
	}
}
