// Package config loads an extraction session's Config from YAML with
// environment-variable overrides and default-filling, matching the
// teacher's LoadConfig/applyDefaults/applyEnvironmentOverrides shape
// but retargeted at this engine's own settings instead of the log
// pipeline's.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/log2timeline/plaso-sub000/internal/collector"
	"github.com/log2timeline/plaso-sub000/internal/queue"
	"github.com/log2timeline/plaso-sub000/internal/store"
	"github.com/log2timeline/plaso-sub000/internal/taskmanager"
	"github.com/log2timeline/plaso-sub000/internal/worker"
	"github.com/log2timeline/plaso-sub000/pkg/errors"
)

// Config is the full on-disk/env-overridable configuration for one
// extraction session (spec.md §6's "configuration file or CLI flags").
type Config struct {
	Sources     []string `yaml:"sources"`
	WorkDir     string   `yaml:"work_dir"`
	StorePath   string   `yaml:"store_path"`
	StoreCodec  string   `yaml:"store_codec"`
	WorkerCount int      `yaml:"worker_count"`

	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	ParserFilter    string   `yaml:"parser_filter"`
	EnableVSS       bool     `yaml:"enable_vss"`

	Collector   CollectorConfig   `yaml:"collector"`
	TaskManager TaskManagerConfig `yaml:"task_manager"`
	Worker      WorkerConfig      `yaml:"worker"`
	Queue       QueueConfig       `yaml:"queue"`

	MetricsAddr string `yaml:"metrics_addr"`
	StatusAddr  string `yaml:"status_addr"`
	TracingAddr string `yaml:"tracing_otlp_endpoint"`

	loadedFromFile bool
}

// CollectorConfig mirrors internal/collector.Config's YAML shape.
type CollectorConfig struct {
	EmitDirectoryEvents bool `yaml:"emit_directory_events"`
	HighWatermark       int  `yaml:"high_watermark"`
	LowWatermark        int  `yaml:"low_watermark"`
}

// TaskManagerConfig mirrors internal/taskmanager.Config's YAML shape.
type TaskManagerConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	MinHeartbeatTimeout time.Duration `yaml:"min_heartbeat_timeout"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
}

// WorkerConfig mirrors internal/worker.Config's YAML shape.
type WorkerConfig struct {
	ComputeHashes      bool   `yaml:"compute_hashes"`
	MemoryCeilingBytes uint64 `yaml:"memory_ceiling_bytes"`
	FallbackParser     string `yaml:"fallback_parser"`
	MaxFailures        int64  `yaml:"breaker_max_failures"`
	ResetTimeout       time.Duration `yaml:"breaker_reset_timeout"`
}

// QueueConfig selects and configures the task/heartbeat transport
// (internal/queue): "chan" (default, in-process) or "kafka".
type QueueConfig struct {
	Backend   string              `yaml:"backend"`
	Brokers   []string            `yaml:"brokers"`
	Mechanism queue.AuthMechanism `yaml:"sasl_mechanism"`
	Username  string              `yaml:"username"`
	Password  string              `yaml:"password"`
}

// Load reads configFile (if non-empty) as YAML, applies default
// values for anything left unset, then lets environment variables
// override the result. Load does not validate: callers that still
// have CLI-flag overrides to merge in (e.g. a source list supplied on
// the command line instead of the config file) should apply those
// first and call Validate themselves once the configuration is final.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}
	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)
	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	cfg.loadedFromFile = true
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "session.plaso"
	}
	if cfg.StoreCodec == "" {
		cfg.StoreCodec = "zstd"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.Collector.HighWatermark == 0 {
		cfg.Collector.HighWatermark = 1000
	}
	if cfg.Collector.LowWatermark == 0 {
		cfg.Collector.LowWatermark = cfg.Collector.HighWatermark / 2
	}
	if cfg.TaskManager.HeartbeatInterval == 0 {
		cfg.TaskManager.HeartbeatInterval = 30 * time.Second
	}
	if cfg.TaskManager.MinHeartbeatTimeout == 0 {
		cfg.TaskManager.MinHeartbeatTimeout = 5 * time.Minute
	}
	if cfg.TaskManager.CleanupInterval == 0 {
		cfg.TaskManager.CleanupInterval = time.Minute
	}
	if cfg.Worker.MemoryCeilingBytes == 0 {
		cfg.Worker.MemoryCeilingBytes = 2 << 30
	}
	if cfg.Worker.FallbackParser == "" {
		cfg.Worker.FallbackParser = "filestat"
	}
	if cfg.Worker.MaxFailures == 0 {
		cfg.Worker.MaxFailures = 5
	}
	if cfg.Worker.ResetTimeout == 0 {
		cfg.Worker.ResetTimeout = 30 * time.Second
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "chan"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.WorkDir = getEnvString("PLASO_WORK_DIR", cfg.WorkDir)
	cfg.StorePath = getEnvString("PLASO_STORE_PATH", cfg.StorePath)
	cfg.StoreCodec = getEnvString("PLASO_STORE_CODEC", cfg.StoreCodec)
	cfg.WorkerCount = getEnvInt("PLASO_WORKER_COUNT", cfg.WorkerCount)
	cfg.ParserFilter = getEnvString("PLASO_PARSER_FILTER", cfg.ParserFilter)
	cfg.EnableVSS = getEnvBool("PLASO_ENABLE_VSS", cfg.EnableVSS)
	cfg.IncludePatterns = getEnvStringSlice("PLASO_INCLUDE_PATTERNS", cfg.IncludePatterns)
	cfg.ExcludePatterns = getEnvStringSlice("PLASO_EXCLUDE_PATTERNS", cfg.ExcludePatterns)
	cfg.MetricsAddr = getEnvString("PLASO_METRICS_ADDR", cfg.MetricsAddr)
	cfg.StatusAddr = getEnvString("PLASO_STATUS_ADDR", cfg.StatusAddr)
	cfg.TracingAddr = getEnvString("PLASO_TRACING_ENDPOINT", cfg.TracingAddr)
	cfg.Queue.Backend = getEnvString("PLASO_QUEUE_BACKEND", cfg.Queue.Backend)
	cfg.Queue.Brokers = getEnvStringSlice("PLASO_KAFKA_BROKERS", cfg.Queue.Brokers)
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}

// Validate checks the configuration for internally inconsistent or
// unusable values before a session starts.
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return errors.New(errors.KindConfigError, "config", "validate", "at least one source is required")
	}
	if cfg.WorkerCount <= 0 {
		return errors.New(errors.KindConfigError, "config", "validate", "worker_count must be positive")
	}
	if cfg.Collector.LowWatermark > cfg.Collector.HighWatermark {
		return errors.New(errors.KindConfigError, "config", "validate", "collector.low_watermark cannot exceed high_watermark")
	}
	if _, err := ParseCodec(cfg.StoreCodec); err != nil {
		return err
	}
	switch cfg.Queue.Backend {
	case "chan", "kafka":
	default:
		return errors.New(errors.KindConfigError, "config", "validate", fmt.Sprintf("unknown queue backend %q", cfg.Queue.Backend))
	}
	if cfg.Queue.Backend == "kafka" && len(cfg.Queue.Brokers) == 0 {
		return errors.New(errors.KindConfigError, "config", "validate", "queue.brokers is required for the kafka backend")
	}
	return nil
}

// ParseCodec maps the YAML-facing codec name to a store.Codec value.
func ParseCodec(name string) (store.Codec, error) {
	switch name {
	case "raw":
		return store.CodecRaw, nil
	case "zstd":
		return store.CodecZstd, nil
	case "snappy":
		return store.CodecSnappy, nil
	case "lz4":
		return store.CodecLZ4, nil
	default:
		return 0, errors.New(errors.KindConfigError, "config", "validate", fmt.Sprintf("unknown store_codec %q", name))
	}
}

// ToStoreCodec resolves the configured codec name, falling back to
// zstd if it is invalid. Load does not reject an unknown codec;
// Validate does.
func (c *Config) ToStoreCodec() store.Codec {
	codec, err := ParseCodec(c.StoreCodec)
	if err != nil {
		return store.CodecZstd
	}
	return codec
}

// ToCollectorConfig adapts the YAML-facing shape to collector.Config.
func (c *Config) ToCollectorConfig() collector.Config {
	return collector.Config{
		EnableVSS:           c.EnableVSS,
		EmitDirectoryEvents: c.Collector.EmitDirectoryEvents,
		HighWatermark:       c.Collector.HighWatermark,
		LowWatermark:        c.Collector.LowWatermark,
	}
}

// ToTaskManagerConfig adapts the YAML-facing shape to taskmanager.Config.
func (c *Config) ToTaskManagerConfig() taskmanager.Config {
	return taskmanager.Config{
		HeartbeatInterval:   c.TaskManager.HeartbeatInterval,
		MinHeartbeatTimeout: c.TaskManager.MinHeartbeatTimeout,
		CleanupInterval:     c.TaskManager.CleanupInterval,
	}
}

// ToWorkerConfig adapts the YAML-facing shape to worker.Config.
func (c *Config) ToWorkerConfig() worker.Config {
	return worker.Config{
		ComputeHashes:      c.Worker.ComputeHashes,
		MemoryCeilingBytes: c.Worker.MemoryCeilingBytes,
		FallbackParser:     c.Worker.FallbackParser,
		Breakers: worker.BreakerConfig{
			MaxFailures:  c.Worker.MaxFailures,
			ResetTimeout: c.Worker.ResetTimeout,
		},
	}
}
