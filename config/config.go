package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageBackend selects the object storage adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// RecordsBackend selects the photo record store.
type RecordsBackend string

const (
	RecordsMemory   RecordsBackend = "memory"
	RecordsPostgres RecordsBackend = "postgres"
)

// TriggerMode selects how upload events reach the worker.
type TriggerMode string

const (
	TriggerHTTP  TriggerMode = "http"
	TriggerKafka TriggerMode = "kafka"
	TriggerRedis TriggerMode = "redis"
)

// Config is the top-level configuration struct. All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Worker pool controls.
	WorkerCount int `yaml:"worker_count" validate:"gte=0"` // default: runtime.NumCPU()
	QueueSize   int `yaml:"queue_size" validate:"gte=0"`   // max queued jobs before backpressure; default: 256

	// Per-invocation wall-clock budget and the budget for terminal status
	// writes, which run detached from the invocation deadline.
	InvocationTimeout time.Duration `yaml:"invocation_timeout" validate:"gte=0"`
	CommitTimeout     time.Duration `yaml:"commit_timeout" validate:"gt=0"`

	// Concurrency inside one invocation.
	EncodeWorkers     int `yaml:"encode_workers" validate:"gte=0"` // 0 = min(NumCPU, 4)
	UploadConcurrency int `yaml:"upload_concurrency" validate:"gte=1"`

	// Streaming / memory limits.
	MaxImageBytes int64 `yaml:"max_image_bytes" validate:"gte=0"` // 0 = no limit
	MaxPixels     int64 `yaml:"max_pixels" validate:"gte=0"`      // 0 = no limit
	ChunkSize     int   `yaml:"chunk_size" validate:"gt=0"`       // download chunk size in bytes

	MaxErrorLength int `yaml:"max_error_length" validate:"gt=0"`

	// Variant policy.
	HEICQuality int          `yaml:"heic_quality" validate:"min=1,max=100"`
	WebPQuality int          `yaml:"webp_quality" validate:"min=1,max=100"`
	JPEGQuality int          `yaml:"jpeg_quality" validate:"min=1,max=100"`
	Resolutions []Resolution `yaml:"resolutions" validate:"required,min=1,dive"`

	// Publishing. PublicBaseURL may contain a {bucket} placeholder.
	PublicBaseURL string `yaml:"public_base_url" validate:"required"`
	CacheControl  string `yaml:"cache_control" validate:"required"`

	// Storage.
	Storage StorageBackend `yaml:"storage" validate:"oneof=local s3"`
	Local   LocalConfig    `yaml:"local"`
	S3      S3Config       `yaml:"s3"`

	// Records.
	Records  RecordsBackend `yaml:"records" validate:"oneof=memory postgres"`
	Postgres PostgresConfig `yaml:"postgres"`

	Trigger TriggerConfig `yaml:"trigger"`
	Sentry  SentryConfig  `yaml:"sentry"`

	// Logging.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Resolution names one output width.
type Resolution struct {
	Key   string `yaml:"key" validate:"required"`
	Width int    `yaml:"width" validate:"gt=0"`
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string `yaml:"root_dir"`
	Permissions uint32 `yaml:"permissions"` // default 0644
}

// S3Config configures the S3-compatible storage adapter.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// PostgresConfig configures the Postgres record store.
type PostgresConfig struct {
	DSN           string `yaml:"dsn"`
	MaxConns      int32  `yaml:"max_conns" validate:"gte=0"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// TriggerConfig selects and configures the upload event source.
type TriggerConfig struct {
	Mode     TriggerMode `yaml:"mode" validate:"oneof=http kafka redis"`
	HTTPAddr string      `yaml:"http_addr"`
	Kafka    KafkaConfig `yaml:"kafka"`
	Redis    RedisConfig `yaml:"redis"`
}

// KafkaConfig configures the Kafka consumer.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RedisConfig configures the Redis Streams consumer.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Stream       string        `yaml:"stream"`
	Group        string        `yaml:"group"`
	Consumer     string        `yaml:"consumer"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	MinIdle      time.Duration `yaml:"min_idle"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:       0, // resolved at runtime to NumCPU
		QueueSize:         256,
		InvocationTimeout: 540 * time.Second,
		CommitTimeout:     10 * time.Second,
		EncodeWorkers:     0,
		UploadConcurrency: 4,
		MaxImageBytes:     64 << 20,
		MaxPixels:         100_000_000,
		ChunkSize:         32 * 1024,
		MaxErrorLength:    500,
		HEICQuality:       92,
		WebPQuality:       82,
		JPEGQuality:       85,
		Resolutions: []Resolution{
			{Key: "sm", Width: 512},
			{Key: "md", Width: 1024},
			{Key: "lg", Width: 1600},
		},
		PublicBaseURL: "https://firebasestorage.googleapis.com/v0/b/{bucket}",
		CacheControl:  "public, max-age=31536000, immutable",
		Storage:       StorageLocal,
		Local:         LocalConfig{RootDir: "./data", Permissions: 0o644},
		Records:       RecordsMemory,
		Postgres:      PostgresConfig{MaxConns: 8, RunMigrations: true},
		Trigger: TriggerConfig{
			Mode:     TriggerHTTP,
			HTTPAddr: ":8080",
			Kafka:    KafkaConfig{Topic: "photo-uploads", GroupID: "photo-processor"},
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				Stream:       "photo-uploads",
				Group:        "photo-processor",
				Consumer:     "worker-1",
				BlockTimeout: 5 * time.Second,
				MinIdle:      10 * time.Minute,
			},
		},
		LogLevel: "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	seen := make(map[string]bool, len(c.Resolutions))
	for _, r := range c.Resolutions {
		if seen[r.Key] {
			return fmt.Errorf("config: duplicate resolution key %q", r.Key)
		}
		seen[r.Key] = true
	}
	if c.Storage == StorageLocal && c.Local.RootDir == "" {
		return errors.New("config: Local.RootDir is required for local storage")
	}
	if c.Records == RecordsPostgres && c.Postgres.DSN == "" {
		return errors.New("config: Postgres.DSN is required for the postgres record store")
	}
	switch c.Trigger.Mode {
	case TriggerKafka:
		if len(c.Trigger.Kafka.Brokers) == 0 || c.Trigger.Kafka.Topic == "" {
			return errors.New("config: Kafka.Brokers and Kafka.Topic are required in kafka mode")
		}
	case TriggerRedis:
		if c.Trigger.Redis.Addr == "" || c.Trigger.Redis.Stream == "" || c.Trigger.Redis.Group == "" {
			return errors.New("config: Redis.Addr, Redis.Stream and Redis.Group are required in redis mode")
		}
	}
	if !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return errors.New("config: PublicBaseURL must be an http(s) URL")
	}
	return nil
}
