package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/agent-relay/internal/adapter/narration"
)

// StreamHandler serves GET /solve/stream: one narration session per connection.
type StreamHandler struct {
	hub       *narration.Hub
	baseCtx   context.Context
	poll      time.Duration
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a StreamHandler. Sessions also end when baseCtx is
// done, so server shutdown closes open streams.
func NewStreamHandler(baseCtx context.Context, hub *narration.Hub, poll, keepAlive time.Duration, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		baseCtx:   baseCtx,
		poll:      poll,
		keepAlive: keepAlive,
		logger:    logger.With("component", "stream_handler"),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Accepted for compatibility with existing clients; they do not start work.
	for _, name := range []string{"use_knowledge", "use_program_store"} {
		if v := q.Get(name); v != "" {
			if _, ok := parseBool(v); !ok {
				respondWithDetail(w, h.logger, http.StatusUnprocessableEntity, fmt.Sprintf("%s: invalid boolean %q", name, v))
				return
			}
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	// Subscribed before the headers are flushed; clients post once they see them.
	taskID := q.Get("task_id")
	session := h.hub.NewSession(taskID, h.poll, h.keepAlive)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.baseCtx != nil {
		stop := context.AfterFunc(h.baseCtx, cancel)
		defer stop()
	}

	h.logger.Info("stream opened", "task_id", taskID, "question", q.Get("question"), "remote_addr", r.RemoteAddr)

	err := session.Run(ctx, &sseWriter{w: w, flusher: flusher})
	h.logger.Info("stream closed", "task_id", taskID, "client_error", err)
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// WriteEvent sends one event; each line of data becomes its own data field.
func (s *sseWriter) WriteEvent(data string) error {
	var b strings.Builder
	for _, line := range strings.Split(lineBreaks.Replace(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteKeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func parseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	}
	return false, false
}
