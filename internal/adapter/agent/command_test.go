package agent

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandAgent_Solve(t *testing.T) {
	requireShell(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := &CommandAgent{
		Command: []string{"sh", "-c", `read q; echo "PLAN(task=$q)" >&2; echo "thinking" >&2; echo "answer to $q"`},
		Logger:  logger,
	}

	answer, err := a.Solve(context.Background(), "2+2\n")
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if answer != "answer to 2+2" {
		t.Errorf("answer = %q", answer)
	}
	out := logs.String()
	if !strings.Contains(out, "PLAN(task=2+2)") || !strings.Contains(out, "thinking") {
		t.Errorf("expected stderr lines to be logged, got %q", out)
	}
}

func TestCommandAgent_Errors(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{
			name:    "exception prefix stripped",
			script:  `echo "working" >&2; echo "RuntimeError: timeout" >&2; exit 1`,
			wantErr: "timeout",
		},
		{
			name:    "plain last line",
			script:  `echo "model unavailable" >&2; exit 2`,
			wantErr: "model unavailable",
		},
		{
			name:    "no stderr",
			script:  `exit 3`,
			wantErr: "agent exited: exit status 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &CommandAgent{Command: []string{"sh", "-c", tt.script}, Logger: discardLogger()}
			_, err := a.Solve(context.Background(), "q")
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Solve() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCommandAgent_KnowledgeFlag(t *testing.T) {
	requireShell(t)

	a := &CommandAgent{
		// "$@" holds the appended flags; sh -c assigns the first extra arg to $0.
		Command:      []string{"sh", "-c", `echo "$@"`, "agent"},
		KnowledgeDir: ".data",
		UseKnowledge: true,
		Logger:       discardLogger(),
	}
	answer, err := a.Solve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if answer != "--knowledge-dir .data" {
		t.Errorf("args = %q, want knowledge flag", answer)
	}
}

func TestCommandAgent_EmptyCommand(t *testing.T) {
	if _, err := (&CommandAgent{}).Solve(context.Background(), "q"); err == nil {
		t.Error("expected error for empty command")
	}
}
