package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/V4T54L/agent-relay/internal/domain"
	"github.com/V4T54L/agent-relay/internal/pkg/logger"
)

// ask posts one question to the relay and prints the agent's narration while
// it waits. Narration goes to stderr, the answer to stdout.
func main() {
	baseURL := flag.String("url", "http://localhost:8000", "Relay base URL")
	useKnowledge := flag.Bool("knowledge", false, "Let the agent use its knowledge directory")
	useProgramStore := flag.Bool("program-store", false, "Reuse and save programs in the shared store")
	quiet := flag.Bool("q", false, "Do not print narration")
	logLevel := flag.String("log-level", "warn", "Log level for client diagnostics")
	flag.Parse()

	log := slog.New(logger.NewHandler(os.Stderr, *logLevel, "text"))

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [flags] <question>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := domain.SolveRequest{
		Question:        question,
		UseKnowledge:    *useKnowledge,
		UseProgramStore: *useProgramStore,
		TaskID:          uuid.NewString(),
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	streamDone := make(chan struct{})
	if *quiet {
		close(streamDone)
	} else {
		body, err := openStream(streamCtx, *baseURL, req.TaskID)
		if err != nil {
			log.Warn("narration unavailable", "error", err)
			close(streamDone)
		} else {
			go func() {
				defer close(streamDone)
				defer body.Close()
				tail(body, os.Stderr)
			}()
		}
	}

	answer, err := solve(ctx, *baseURL, req)
	cancelStream()
	<-streamDone
	if err != nil {
		log.Error("solve failed", "task_id", req.TaskID, "error", err)
		os.Exit(1)
	}

	fmt.Println(answer)
	if strings.HasPrefix(answer, domain.ErrorAnswerPrefix) {
		os.Exit(1)
	}
}

func openStream(ctx context.Context, baseURL, taskID string) (io.ReadCloser, error) {
	u := baseURL + "/solve/stream?" + url.Values{"task_id": {taskID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned %s", resp.Status)
	}
	return resp.Body, nil
}

// tail prints each event's data lines until the stream ends.
func tail(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			fmt.Fprintln(w, data)
		}
	}
}

func solve(ctx context.Context, baseURL string, sr domain.SolveRequest) (string, error) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/solve", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return "", fmt.Errorf("relay returned %s: %s", resp.Status, e.Detail)
	}

	var res domain.SolveResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("failed to decode answer: %w", err)
	}
	return res.Answer, nil
}
