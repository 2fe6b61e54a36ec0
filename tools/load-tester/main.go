package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func main() {
	targetURL := flag.String("url", "http://localhost:8000/solve", "Target URL for solve requests")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Float64("rps", 2, "Requests per second limit")
	timeout := flag.Duration("timeout", 2*time.Minute, "Per-request timeout")
	programStore := flag.Bool("program-store", false, "Set use_program_store on every request")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %.2f", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, agentErrorCount, errorCount atomic.Int64
	var totalLatency atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: *timeout,
			}

			for n := 0; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				payload, _ := json.Marshal(map[string]any{
					"question":          questionFor(workerID, n),
					"use_program_store": *programStore,
					"task_id":           uuid.NewString(),
				})

				// Requests already in flight are allowed to finish after the deadline.
				req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, *targetURL, bytes.NewReader(payload))
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Content-Type", "application/json")

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					errorCount.Add(1)
					continue
				}

				var res struct {
					Answer string `json:"answer"`
				}
				decodeErr := json.NewDecoder(resp.Body).Decode(&res)
				resp.Body.Close()

				switch {
				case resp.StatusCode != http.StatusOK || decodeErr != nil:
					errorCount.Add(1)
				case strings.HasPrefix(res.Answer, "ERROR: "):
					agentErrorCount.Add(1)
				default:
					successCount.Add(1)
					totalLatency.Add(int64(time.Since(start)))
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + agentErrorCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Answered (200 OK): %d", successCount.Load())
	log.Printf("Agent errors (ERROR: answers): %d", agentErrorCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	if n := successCount.Load(); n > 0 {
		log.Printf("Mean answer latency: %s", time.Duration(totalLatency.Load()/n))
	}
}

// questionFor cycles through a few arithmetic problems so the program store
// sees both repeats and new keys.
func questionFor(workerID, n int) string {
	return fmt.Sprintf("%d + %d", workerID+1, n%5)
}
