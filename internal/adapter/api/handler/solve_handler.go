package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/agent-relay/internal/adapter/worker"
	"github.com/V4T54L/agent-relay/internal/domain"
)

// DefaultMaxBodySize caps POST /solve bodies.
const DefaultMaxBodySize = 1 << 20

// TaskIDHeader carries the ID of the task that produced an answer.
const TaskIDHeader = "X-Task-ID"

// solveBody tells a missing question apart from an empty one; the outer
// Question field shadows the embedded one when decoding.
type solveBody struct {
	domain.SolveRequest
	Question *string `json:"question"`
}

type Solver interface {
	Solve(ctx context.Context, req domain.SolveRequest) (domain.SolveResult, error)
}

// SolveHandler handles POST /solve.
type SolveHandler struct {
	solver      Solver
	logger      *slog.Logger
	maxBodySize int64
}

// NewSolveHandler creates a new SolveHandler. A non-positive maxBodySize uses DefaultMaxBodySize.
func NewSolveHandler(solver Solver, logger *slog.Logger, maxBodySize int64) *SolveHandler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &SolveHandler{
		solver:      solver,
		logger:      logger.With("component", "solve_handler"),
		maxBodySize: maxBodySize,
	}
}

func (h *SolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var body solveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithDetail(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithDetail(w, h.logger, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if body.Question == nil {
		respondWithDetail(w, h.logger, http.StatusUnprocessableEntity, "question is required")
		return
	}
	// An empty question still goes to the agent; whatever it says is the answer.
	req := body.SolveRequest
	req.Question = *body.Question

	res, err := h.solver.Solve(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrBridgeClosed):
			respondWithDetail(w, h.logger, http.StatusServiceUnavailable, "server is shutting down")
		case r.Context().Err() != nil:
			// The caller is gone; the task finishes on its own.
			h.logger.Debug("solve caller disconnected", "task_id", res.TaskID)
		default:
			h.logger.Error("solve failed", "task_id", res.TaskID, "error", err)
			respondWithDetail(w, h.logger, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.Header().Set(TaskIDHeader, res.TaskID)
	respondWithJSON(w, h.logger, http.StatusOK, res)
}
