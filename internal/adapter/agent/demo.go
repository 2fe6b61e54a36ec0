package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"
)

// arithmetic finds the first "a op b" in the question, so "What is 2+2?" works.
var arithmetic = regexp.MustCompile(`(-?\d+)\s*([-+*/])\s*(-?\d+)`)

// DemoAgent stands in for a real agent when none is configured. It narrates a
// small fixed plan and answers simple integer arithmetic.
type DemoAgent struct {
	Logger       *slog.Logger
	StepDelay    time.Duration
	UseKnowledge bool
}

func (a *DemoAgent) Solve(ctx context.Context, problem string) (string, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	steps := []string{
		fmt.Sprintf("PLAN(task=%s)", problem),
		"├── subtask=understand the question",
		"├── subtask=compute the result",
		"└",
	}
	if a.UseKnowledge {
		steps = append(steps, "Reasoning with the knowledge base")
	}
	steps = append(steps, "Executing plan")

	for _, step := range steps {
		logger.InfoContext(ctx, step)
		if err := a.pause(ctx); err != nil {
			return "", err
		}
	}

	answer, err := evaluate(problem)
	if err != nil {
		return "", err
	}
	logger.InfoContext(ctx, "ANSWER: "+answer)
	return answer, nil
}

func (a *DemoAgent) pause(ctx context.Context) error {
	if a.StepDelay <= 0 {
		return nil
	}
	t := time.NewTimer(a.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func evaluate(problem string) (string, error) {
	m := arithmetic.FindStringSubmatch(problem)
	if m == nil {
		return "", errors.New("the demo agent only solves integer arithmetic such as 2+2")
	}
	x, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", err
	}
	y, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return "", err
	}

	var r int64
	switch m[2] {
	case "+":
		r = x + y
	case "-":
		r = x - y
	case "*":
		r = x * y
	case "/":
		if y == 0 {
			return "", errors.New("division by zero")
		}
		r = x / y
	}
	return strconv.FormatInt(r, 10), nil
}
