package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROGRAM_STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ServerAddr != ":8000" {
		t.Errorf("expected default server addr :8000, got %q", cfg.ServerAddr)
	}
	if cfg.StreamPollInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms poll interval, got %s", cfg.StreamPollInterval)
	}
	if cfg.WorkerPoolSize != 4 {
		t.Errorf("expected worker pool size 4, got %d", cfg.WorkerPoolSize)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.KafkaEnabled() {
		t.Error("expected kafka to be disabled without brokers")
	}
}

func TestLoad_AgentCommandSplitsOnSpaces(t *testing.T) {
	t.Setenv("AGENT_COMMAND", "python3 agent.py --max-depth 3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"python3", "agent.py", "--max-depth", "3"}
	if len(cfg.AgentCommand) != len(want) {
		t.Fatalf("expected %d command parts, got %v", len(want), cfg.AgentCommand)
	}
	for i := range want {
		if cfg.AgentCommand[i] != want[i] {
			t.Errorf("part %d: got %q, want %q", i, cfg.AgentCommand[i], want[i])
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "memory backend",
			cfg:  Config{ProgramStoreBackend: StoreBackendMemory, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond},
		},
		{
			name:    "redis without address",
			cfg:     Config{ProgramStoreBackend: StoreBackendRedis, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond},
			wantErr: true,
		},
		{
			name: "redis with address",
			cfg:  Config{ProgramStoreBackend: StoreBackendRedis, RedisAddr: "redis://localhost:6379", WorkerPoolSize: 1, StreamPollInterval: time.Millisecond},
		},
		{
			name:    "postgres without url",
			cfg:     Config{ProgramStoreBackend: StoreBackendPostgres, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     Config{ProgramStoreBackend: "etcd", WorkerPoolSize: 1, StreamPollInterval: time.Millisecond},
			wantErr: true,
		},
		{
			name:    "zero workers",
			cfg:     Config{ProgramStoreBackend: StoreBackendMemory, StreamPollInterval: time.Millisecond},
			wantErr: true,
		},
		{
			name: "stdout tracing",
			cfg:  Config{ProgramStoreBackend: StoreBackendMemory, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond, TraceExporter: "stdout"},
		},
		{
			name:    "unknown trace exporter",
			cfg:     Config{ProgramStoreBackend: StoreBackendMemory, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond, TraceExporter: "jaeger"},
			wantErr: true,
		},
		{
			name:    "negative backlog limit",
			cfg:     Config{ProgramStoreBackend: StoreBackendMemory, WorkerPoolSize: 1, StreamPollInterval: time.Millisecond, NarrationBacklogLimit: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
