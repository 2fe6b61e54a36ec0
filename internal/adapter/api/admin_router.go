package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/agent-relay/internal/adapter/api/handler"
	"github.com/V4T54L/agent-relay/internal/adapter/api/middleware"
)

// NewAdminRouter creates and configures the HTTP router for admin operations
// and metrics. A non-empty token protects the /admin routes.
func NewAdminRouter(uc handler.AdminReader, gatherer prometheus.Gatherer, token string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(uc, logger)
	auth := middleware.AdminToken(token, logger)

	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Handle("GET /admin/tasks", auth(http.HandlerFunc(adminHandler.GetTasks)))
	mux.Handle("GET /admin/streams", auth(http.HandlerFunc(adminHandler.GetStreams)))
	mux.Handle("GET /admin/agents", auth(http.HandlerFunc(adminHandler.GetAgents)))

	return mux
}
