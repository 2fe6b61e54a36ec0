package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/agent-relay/internal/adapter/agent"
	"github.com/V4T54L/agent-relay/internal/adapter/api"
	"github.com/V4T54L/agent-relay/internal/adapter/events/kafka"
	"github.com/V4T54L/agent-relay/internal/adapter/metrics"
	"github.com/V4T54L/agent-relay/internal/adapter/narration"
	"github.com/V4T54L/agent-relay/internal/adapter/repository/memory"
	"github.com/V4T54L/agent-relay/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/agent-relay/internal/adapter/repository/redis"
	"github.com/V4T54L/agent-relay/internal/adapter/repository/wal"
	"github.com/V4T54L/agent-relay/internal/adapter/worker"
	"github.com/V4T54L/agent-relay/internal/domain"
	"github.com/V4T54L/agent-relay/internal/pkg/config"
	"github.com/V4T54L/agent-relay/internal/pkg/logger"
	"github.com/V4T54L/agent-relay/internal/pkg/tracing"
	"github.com/V4T54L/agent-relay/internal/usecase"

	_ "github.com/lib/pq" // postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m := metrics.NewRelayMetrics(prometheus.DefaultRegisterer)

	// --- Narration: every record goes through the interceptor ---
	rules, err := narration.LoadRules(cfg.NarrationRulesFile)
	if err != nil {
		slog.Error("failed to load narration rules", "path", cfg.NarrationRulesFile, "error", err)
		os.Exit(1)
	}
	hub := narration.NewHub(cfg.NarrationBacklogLimit, m)
	interceptor := narration.NewInterceptor(logger.NewHandler(os.Stdout, cfg.LogLevel, cfg.LogFormat), rules, m)
	interceptor.Attach(hub)
	defer interceptor.Detach()

	log := slog.New(interceptor)
	slog.SetDefault(log)
	sysLog := log.With("component", "main")

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName:  "agent-relay",
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Writer:       os.Stdout,
	})
	if err != nil {
		sysLog.Error("failed to initialize tracing", "exporter", cfg.TraceExporter, "error", err)
		os.Exit(1)
	}

	// --- Program Store ---
	store, closeStore, err := openProgramStore(ctx, cfg, log, m)
	if err != nil {
		sysLog.Error("failed to initialize program store", "backend", cfg.ProgramStoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// --- Task Events ---
	var publisher domain.TaskEventPublisher
	if cfg.KafkaEnabled() {
		kp := kafka.NewTaskEventPublisher(cfg.KafkaBrokers, cfg.KafkaTaskTopic, log)
		defer func() {
			if err := kp.Close(); err != nil {
				sysLog.Error("failed to close kafka publisher", "error", err)
			}
		}()
		publisher = kp
		sysLog.Info("publishing task events", "brokers", cfg.KafkaBrokers, "topic", kp.Topic())
	}

	// --- Agents and Use Cases ---
	bridge := worker.NewBridge(cfg.WorkerPoolSize, log, m, publisher)
	factory := agent.NewFactory(agent.FactoryConfig{
		Command:       cfg.AgentCommand,
		WorkDir:       cfg.AgentWorkDir,
		KnowledgeDir:  cfg.KnowledgeDir,
		DemoStepDelay: cfg.DemoStepDelay,
	}, store, log, m)
	registry := agent.NewRegistry(factory, log)
	if len(cfg.AgentCommand) == 0 {
		sysLog.Warn("AGENT_COMMAND is not set, serving the demo agent")
	}

	solveUseCase := usecase.NewSolveUseCase(registry, bridge, log)
	adminUseCase := usecase.NewAdminUseCase(bridge, hub, registry)

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(adminUseCase, prometheus.DefaultGatherer, cfg.AdminToken, log),
	}
	go func() {
		sysLog.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sysLog.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Start Relay Server ---
	// No WriteTimeout: solve requests and streams stay open for as long as the agent runs.
	relayServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     api.NewRouter(ctx, cfg, log, solveUseCase, hub),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	go func() {
		sysLog.Info("starting relay server", "addr", relayServer.Addr, "workers", cfg.WorkerPoolSize)
		if err := relayServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sysLog.Error("relay server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	sysLog.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := relayServer.Shutdown(shutdownCtx); err != nil {
		sysLog.Error("relay server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		sysLog.Error("admin server shutdown failed", "error", err)
	}
	if err := bridge.Shutdown(shutdownCtx); err != nil {
		sysLog.Warn("abandoning running tasks", "error", err)
	}
	if err := registry.Close(); err != nil {
		sysLog.Error("failed to close agents", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		sysLog.Error("failed to flush traces", "error", err)
	}

	sysLog.Info("servers shut down gracefully")
}

// openProgramStore builds the shared program store for the configured backend.
// The returned func releases whatever the store holds open.
func openProgramStore(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.RelayMetrics) (domain.ProgramStore, func(), error) {
	switch cfg.ProgramStoreBackend {
	case config.StoreBackendRedis:
		redisOpts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		walRepo, err := wal.Open(cfg.WALPath, cfg.WALSegmentSize, cfg.WALMaxDiskSize, log)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(redisOpts)
		store := redisrepo.NewProgramStore(ctx, client, log, cfg.ProgramStoreTTL, walRepo, m)

		// Start Redis health check and WAL replay loop
		go store.StartHealthCheck(ctx, 5*time.Second)

		return store, func() {
			_ = client.Close()
			_ = walRepo.Close()
		}, nil

	case config.StoreBackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewProgramStore(db, log, cfg.ProgramCacheTTL, m)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	default:
		return memory.NewProgramStore(cfg.ProgramStoreTTL), func() {}, nil
	}
}
