package narration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
)

// Sink receives the narration lines that survive the rules.
type Sink interface {
	Publish(taskID, line string)
}

type sinkRef struct{ sink Sink }

// interceptorState is shared by an Interceptor and every handler derived from
// it through WithAttrs or WithGroup, so attaching once covers all loggers.
type interceptorState struct {
	sink    atomic.Pointer[sinkRef]
	rules   *Rules
	metrics *metrics.RelayMetrics

	fallbackMu sync.Mutex
	fallback   io.Writer
}

// Interceptor is a slog.Handler that turns the process's log records into
// narration. Records are always passed on to the wrapped handler according to
// its own level; narration sees everything from DEBUG up while a sink is attached.
type Interceptor struct {
	next  slog.Handler
	state *interceptorState

	prefix   string
	attrs    []slog.Attr
	taskID   string
	internal bool
}

// NewInterceptor wraps next. A nil rules value means DefaultRules and a nil
// metrics value disables instrumentation.
func NewInterceptor(next slog.Handler, rules *Rules, m *metrics.RelayMetrics) *Interceptor {
	if rules == nil {
		rules = DefaultRules()
	}
	if next == nil {
		next = slog.NewTextHandler(io.Discard, nil)
	}
	return &Interceptor{
		next: next,
		state: &interceptorState{
			rules:    rules,
			metrics:  m,
			fallback: os.Stderr,
		},
	}
}

// Attach starts forwarding narration to sink.
func (h *Interceptor) Attach(sink Sink) {
	h.state.sink.Store(&sinkRef{sink: sink})
}

// Detach stops narration. Records keep flowing to the wrapped handler.
func (h *Interceptor) Detach() {
	h.state.sink.Store(nil)
}

// SetFallback redirects the interceptor's own failure reports, stderr by default.
func (h *Interceptor) SetFallback(w io.Writer) {
	h.state.fallbackMu.Lock()
	h.state.fallback = w
	h.state.fallbackMu.Unlock()
}

func (h *Interceptor) attached() Sink {
	if ref := h.state.sink.Load(); ref != nil {
		return ref.sink
	}
	return nil
}

func (h *Interceptor) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelDebug && h.attached() != nil {
		return true
	}
	return h.next.Enabled(ctx, level)
}

func (h *Interceptor) Handle(ctx context.Context, r slog.Record) error {
	if sink := h.attached(); sink != nil {
		h.narrate(ctx, r, sink)
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *Interceptor) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	c.next = h.next.WithAttrs(attrs)
	for _, a := range attrs {
		if h.prefix == "" {
			switch a.Key {
			case TaskIDKey:
				c.taskID = a.Value.Resolve().String()
				continue
			case ComponentKey:
				c.internal = true
				continue
			}
		}
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *Interceptor) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return c
}

func (h *Interceptor) clone() *Interceptor {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

// narrate must never fail the caller's log statement.
func (h *Interceptor) narrate(ctx context.Context, r slog.Record, sink Sink) {
	defer func() {
		if p := recover(); p != nil {
			h.reportFailure(fmt.Errorf("panic: %v", p))
		}
	}()

	taskID, internal := h.taskID, h.internal
	if id := TaskIDFromContext(ctx); id != "" {
		taskID = id
	}

	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" {
			switch a.Key {
			case TaskIDKey:
				taskID = a.Value.Resolve().String()
				return true
			case ComponentKey:
				internal = true
				return true
			}
		}
		writeAttr(&b, h.prefix, a)
		return true
	})

	if internal {
		h.count(metrics.OutcomeInternal)
		return
	}

	line, verdict := h.state.rules.Apply(b.String())
	switch verdict {
	case DropNoise:
		h.count(metrics.OutcomeNoise)
		return
	case DropDecoration:
		h.count(metrics.OutcomeDecoration)
		return
	}

	sink.Publish(taskID, line)
	h.count(metrics.OutcomeQueued)
}

func (h *Interceptor) count(outcome string) {
	if h.state.metrics != nil {
		h.state.metrics.NarrationRecords.WithLabelValues(outcome).Inc()
	}
}

func (h *Interceptor) reportFailure(err error) {
	if h.state.metrics != nil {
		h.state.metrics.NarrationFailures.Inc()
	}
	h.state.fallbackMu.Lock()
	defer h.state.fallbackMu.Unlock()
	fmt.Fprintf(h.state.fallback, "narration: dropped record: %v\n", err)
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			writeAttr(b, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	s := v.String()
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}
	b.WriteString(s)
}
