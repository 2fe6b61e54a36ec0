package handler

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/agent-relay/internal/domain"
)

type AdminReader interface {
	Tasks() []domain.SolveTask
	Streams() domain.StreamStats
	Agents() []domain.AgentOptions
}

// AdminHandler handles HTTP requests for relay administration.
type AdminHandler struct {
	uc     AdminReader
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc AdminReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger.With("component", "admin_handler")}
}

// GetTasks lists submitted and running tasks.
// GET /admin/tasks
func (h *AdminHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.uc.Tasks())
}

// GetStreams reports narration channel backlogs and sessions.
// GET /admin/streams
func (h *AdminHandler) GetStreams(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.uc.Streams())
}

// GetAgents lists the option sets with a built agent.
// GET /admin/agents
func (h *AdminHandler) GetAgents(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.uc.Agents())
}
