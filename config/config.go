// Package config loads docvault settings.
//
// Sources are applied lowest priority first: built-in defaults, an optional
// YAML file, a .env file plus the process environment (DOCVAULT_*), and
// finally command line flags, which the CLI applies to the returned Config
// before calling Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config is the complete docvault configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	InMemory  bool            `yaml:"in_memory"`
	Listen    string          `yaml:"listen"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Search    SearchConfig    `yaml:"search"`
	API       APIConfig       `yaml:"api"`
}

// StorageConfig selects where raw artifact bytes live.
type StorageConfig struct {
	Backend  string   `yaml:"backend"`
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
}

// S3Config holds S3 connection settings.
type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
}

// EmbeddingConfig points at an OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	Token             string  `yaml:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// IngestConfig tunes validation, chunking and embedding.
type IngestConfig struct {
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	ChunkStrategy    string `yaml:"chunk_strategy"`
	EmbedBatchSize   int    `yaml:"embed_batch_size"`
	EmbedConcurrency int    `yaml:"embed_concurrency"`
	PreviewLength    int    `yaml:"preview_length"`
}

// SchedulerConfig tunes the job worker pool.
type SchedulerConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// SearchConfig tunes the query service.
type SearchConfig struct {
	OverFetch  int `yaml:"over_fetch"`
	MaxResults int `yaml:"max_results"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "docvault-data",
		Listen:  ":8080",
		Storage: StorageConfig{Backend: BackendLocal},
		Embedding: EmbeddingConfig{
			Host:  "http://localhost:11434/v1",
			Model: "embeddinggemma",
			Token: "none",
			Burst: 1,
		},
		Ingest: IngestConfig{
			MaxUploadBytes:   10 << 20,
			ChunkSize:        1000,
			ChunkOverlap:     200,
			ChunkStrategy:    "window",
			EmbedBatchSize:   16,
			EmbedConcurrency: 4,
			PreviewLength:    500,
		},
		Scheduler: SchedulerConfig{
			Workers:    2,
			QueueSize:  64,
			Timeout:    30 * time.Minute,
			RetryDelay: 5 * time.Second,
		},
		Search: SearchConfig{OverFetch: 4, MaxResults: 100},
		API:    APIConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), the .env file at envFile (".env" when empty; a missing default
// file is ignored) and the process environment. The result is not yet
// validated so that callers can apply flag overrides first.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the configuration and checks its invariants.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.LocalDir == "" && c.DataDir != "" {
		c.Storage.LocalDir = filepath.Join(c.DataDir, "blobs")
	}
	if c.Embedding.Burst < 1 {
		c.Embedding.Burst = 1
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}
	check(c.InMemory || c.DataDir != "", "data_dir is required unless in_memory is set")
	switch c.Storage.Backend {
	case BackendLocal:
		check(c.Storage.LocalDir != "", "storage.local_dir is required for the local backend")
	case BackendS3:
		check(c.Storage.S3.Bucket != "", "storage.s3.bucket is required for the s3 backend")
		check(c.Storage.S3.Region != "", "storage.s3.region is required for the s3 backend")
	default:
		check(false, "unknown storage backend %q", c.Storage.Backend)
	}
	check(c.Embedding.Host != "", "embedding.host is required")
	check(c.Embedding.Model != "", "embedding.model is required")
	check(c.Embedding.RequestsPerSecond >= 0, "embedding.requests_per_second must not be negative")
	check(c.Ingest.MaxUploadBytes > 0, "ingest.max_upload_bytes must be positive")
	check(c.Ingest.ChunkSize > 0, "ingest.chunk_size must be positive")
	check(c.Ingest.ChunkOverlap >= 0 && c.Ingest.ChunkOverlap < c.Ingest.ChunkSize,
		"ingest.chunk_overlap must be in [0, chunk_size)")
	check(c.Ingest.ChunkStrategy == "window" || c.Ingest.ChunkStrategy == "recursive",
		"ingest.chunk_strategy must be window or recursive, got %q", c.Ingest.ChunkStrategy)
	check(c.Ingest.EmbedBatchSize > 0, "ingest.embed_batch_size must be positive")
	check(c.Ingest.EmbedConcurrency > 0, "ingest.embed_concurrency must be positive")
	check(c.Ingest.PreviewLength > 0, "ingest.preview_length must be positive")
	check(c.Scheduler.Workers > 0, "scheduler.workers must be positive")
	check(c.Scheduler.QueueSize > 0, "scheduler.queue_size must be positive")
	check(c.Scheduler.Timeout > 0, "scheduler.timeout must be positive")
	check(c.Scheduler.RetryDelay >= 0, "scheduler.retry_delay must not be negative")
	check(c.Search.OverFetch > 0, "search.over_fetch must be positive")
	check(c.Search.MaxResults > 0, "search.max_results must be positive")
	return errors.Join(errs...)
}
