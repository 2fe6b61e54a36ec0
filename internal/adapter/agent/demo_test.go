package agent

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDemoAgent_Solve(t *testing.T) {
	tests := []struct {
		problem string
		want    string
		wantErr bool
	}{
		{problem: "2+2", want: "4"},
		{problem: "What is 2+2?", want: "4"},
		{problem: " 7 * 6 ?", want: "42"},
		{problem: "10 - 15", want: "-5"},
		{problem: "9/2", want: "4"},
		{problem: "1/0", wantErr: true},
		{problem: "what is love", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.problem, func(t *testing.T) {
			a := &DemoAgent{Logger: discardLogger()}
			got, err := a.Solve(context.Background(), tt.problem)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Solve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Solve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDemoAgent_Narrates(t *testing.T) {
	var logs bytes.Buffer
	a := &DemoAgent{Logger: slog.New(slog.NewTextHandler(&logs, nil)), UseKnowledge: true}

	if _, err := a.Solve(context.Background(), "2+2"); err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	for _, want := range []string{"PLAN(task=2+2)", "knowledge base", "ANSWER: 4"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected narration to contain %q, got %q", want, logs.String())
		}
	}
}
