package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	Database     DatabaseConfig     `yaml:"database"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Events       EventsConfig       `yaml:"events"`
	Session      SessionConfig      `yaml:"session"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DefaultMaxResponseBytes is the collaborator response cap when none is set.
const DefaultMaxResponseBytes = 10 << 20

// CollaboratorConfig selects where seats and allocations live. In "embedded"
// mode the local database is the collaborator; in "http" mode a remote
// service is called.
type CollaboratorConfig struct {
	Mode           string            `yaml:"mode"`
	BaseURL        string            `yaml:"base_url"`
	Headers        map[string]string `yaml:"headers"`
	HTTPProxy      string            `yaml:"http_proxy"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
	RequestsPerSec float64           `yaml:"requests_per_sec"`
	Burst          int               `yaml:"burst"`
	// MaxResponseBytes caps how much of a response body the client reads.
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
}

const (
	ModeEmbedded = "embedded"
	ModeHTTP     = "http"
)

// RefreshConfig controls how often a board view refetches and recomputes.
type RefreshConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	TickMillis      int           `yaml:"tick_millis"`
	Tick            time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// EventsConfig enables publishing escalation events to RabbitMQ.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
}

// SessionConfig bounds how long an idle staff session and its drafts live.
type SessionConfig struct {
	TTLMinutes      int           `yaml:"ttl_minutes"`
	TTL             time.Duration `yaml:"-"`
	DraftTTLMinutes int           `yaml:"draft_ttl_minutes"`
	DraftTTL        time.Duration `yaml:"-"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitPerSec) * 2
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	switch cfg.Collaborator.Mode {
	case "":
		cfg.Collaborator.Mode = ModeEmbedded
	case ModeEmbedded:
	case ModeHTTP:
		if cfg.Collaborator.BaseURL == "" {
			return fmt.Errorf("collaborator.base_url is required in %s mode", ModeHTTP)
		}
	default:
		return fmt.Errorf("unknown collaborator.mode %q", cfg.Collaborator.Mode)
	}
	if cfg.Collaborator.TimeoutSeconds <= 0 {
		cfg.Collaborator.TimeoutSeconds = 30
	}
	cfg.Collaborator.Timeout = time.Duration(cfg.Collaborator.TimeoutSeconds) * time.Second
	if cfg.Collaborator.RequestsPerSec <= 0 {
		cfg.Collaborator.RequestsPerSec = 20
	}
	if cfg.Collaborator.Burst <= 0 {
		cfg.Collaborator.Burst = 10
	}
	if cfg.Collaborator.MaxResponseBytes <= 0 {
		cfg.Collaborator.MaxResponseBytes = DefaultMaxResponseBytes
	}

	if cfg.Refresh.IntervalSeconds <= 0 {
		cfg.Refresh.IntervalSeconds = 10
	}
	cfg.Refresh.Interval = time.Duration(cfg.Refresh.IntervalSeconds) * time.Second
	if cfg.Refresh.TickMillis <= 0 {
		cfg.Refresh.TickMillis = 1000
	}
	cfg.Refresh.Tick = time.Duration(cfg.Refresh.TickMillis) * time.Millisecond

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	if cfg.Events.Queue == "" {
		cfg.Events.Queue = "allocation.escalated"
	}
	if cfg.Events.Enabled && cfg.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are enabled")
	}

	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 12 * 60
	}
	cfg.Session.TTL = time.Duration(cfg.Session.TTLMinutes) * time.Minute
	if cfg.Session.DraftTTLMinutes <= 0 {
		cfg.Session.DraftTTLMinutes = 30
	}
	cfg.Session.DraftTTL = time.Duration(cfg.Session.DraftTTLMinutes) * time.Minute

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	return nil
}
