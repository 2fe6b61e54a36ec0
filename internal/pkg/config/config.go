package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":8000"`
	AdminServerAddr    string        `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	AdminToken         string        `env:"ADMIN_TOKEN"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	AgentCommand   []string      `env:"AGENT_COMMAND" envSeparator:" "`
	AgentWorkDir   string        `env:"AGENT_WORK_DIR"`
	KnowledgeDir   string        `env:"KNOWLEDGE_DIR" envDefault:".data"`
	DemoStepDelay  time.Duration `env:"DEMO_STEP_DELAY" envDefault:"500ms"`
	WorkerPoolSize int64         `env:"WORKER_POOL_SIZE" envDefault:"4"`

	StreamPollInterval    time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"100ms"`
	StreamKeepAlive       time.Duration `env:"STREAM_KEEPALIVE" envDefault:"15s"`
	NarrationRulesFile    string        `env:"NARRATION_RULES_FILE"`
	NarrationBacklogLimit int           `env:"NARRATION_BACKLOG_LIMIT" envDefault:"0"`

	ProgramStoreBackend string        `env:"PROGRAM_STORE_BACKEND" envDefault:"memory"`
	ProgramStoreTTL     time.Duration `env:"PROGRAM_STORE_TTL" envDefault:"0s"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	PostgresURL         string        `env:"POSTGRES_URL"`
	ProgramCacheTTL     time.Duration `env:"PROGRAM_CACHE_TTL" envDefault:"5m"`
	WALPath             string        `env:"WAL_PATH" envDefault:"./data/wal"`
	WALSegmentSize      int64         `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"10485760"`   // 10MB
	WALMaxDiskSize      int64         `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"104857600"` // 100MB

	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTaskTopic string   `env:"KAFKA_TASK_TOPIC" envDefault:"solve-tasks"`

	// TraceExporter is "", "stdout" or "otlp".
	TraceExporter string `env:"TRACE_EXPORTER"`
	OTLPEndpoint  string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.ProgramStoreBackend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when PROGRAM_STORE_BACKEND=redis")
		}
	case StoreBackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required when PROGRAM_STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown PROGRAM_STORE_BACKEND %q", c.ProgramStoreBackend)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.StreamPollInterval <= 0 {
		return fmt.Errorf("STREAM_POLL_INTERVAL must be positive, got %s", c.StreamPollInterval)
	}
	switch c.TraceExporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown TRACE_EXPORTER %q", c.TraceExporter)
	}
	if c.NarrationBacklogLimit < 0 {
		return fmt.Errorf("NARRATION_BACKLOG_LIMIT must not be negative, got %d", c.NarrationBacklogLimit)
	}
	return nil
}

// KafkaEnabled reports whether task lifecycle events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTaskTopic != ""
}
