package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
)

const maxStderrLine = 1024 * 1024

// exceptionPrefix matches the "<Name>Error: " style prefix agent runtimes put in
// front of failure messages.
var exceptionPrefix = regexp.MustCompile(`^\w+(Error|Exception):\s*`)

// CommandAgent runs an external agent program once per problem. The problem is
// written to stdin and the answer read from stdout; every stderr line is
// re-logged through Logger with the call's context so it reaches narration.
type CommandAgent struct {
	Command      []string
	WorkDir      string
	KnowledgeDir string
	UseKnowledge bool
	Logger       *slog.Logger
}

func (a *CommandAgent) Solve(ctx context.Context, problem string) (string, error) {
	if len(a.Command) == 0 {
		return "", errors.New("agent command is empty")
	}

	args := append([]string(nil), a.Command[1:]...)
	if a.UseKnowledge && a.KnowledgeDir != "" {
		args = append(args, "--knowledge-dir", a.KnowledgeDir)
	}

	cmd := exec.CommandContext(ctx, a.Command[0], args...)
	cmd.Dir = a.WorkDir
	cmd.Stdin = strings.NewReader(problem)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to attach to agent stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start agent: %w", err)
	}

	last := a.relay(ctx, stderr)

	if err := cmd.Wait(); err != nil {
		if msg := exceptionPrefix.ReplaceAllString(strings.TrimSpace(last), ""); msg != "" {
			return "", errors.New(msg)
		}
		return "", fmt.Errorf("agent exited: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// relay logs each stderr line and returns the last non-blank one.
func (a *CommandAgent) relay(ctx context.Context, r io.Reader) string {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var last string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxStderrLine)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			last = line
		}
		logger.DebugContext(ctx, line)
	}
	// An over-long line stops the scanner; keep the pipe flowing so the child can exit.
	_, _ = io.Copy(io.Discard, r)
	return last
}
