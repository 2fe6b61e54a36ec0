package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/V4T54L/agent-relay/internal/adapter/api/handler"
	"github.com/V4T54L/agent-relay/internal/adapter/api/middleware"
	"github.com/V4T54L/agent-relay/internal/adapter/narration"
	"github.com/V4T54L/agent-relay/internal/pkg/config"
)

// NewRouter creates and configures the public HTTP router. Streams end when ctx
// is done.
func NewRouter(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	solver handler.Solver,
	hub *narration.Hub,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{handler.TaskIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Method(http.MethodPost, "/solve", handler.NewSolveHandler(solver, logger, handler.DefaultMaxBodySize))
	r.Method(http.MethodGet, "/solve/stream", handler.NewStreamHandler(ctx, hub, cfg.StreamPollInterval, cfg.StreamKeepAlive, logger))
	r.Get("/health", handler.Health)

	return r
}
