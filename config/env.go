package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "DOCVAULT_"

type binding struct {
	name string
	set  func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

var bindings = []binding{
	{"DATA_DIR", str(func(c *Config) *string { return &c.DataDir })},
	{"IN_MEMORY", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.InMemory = b
		return err
	}},
	{"LISTEN", str(func(c *Config) *string { return &c.Listen })},
	{"STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"BLOB_DIR", str(func(c *Config) *string { return &c.Storage.LocalDir })},
	{"S3_REGION", str(func(c *Config) *string { return &c.Storage.S3.Region })},
	{"S3_BUCKET", str(func(c *Config) *string { return &c.Storage.S3.Bucket })},
	{"S3_ACCESS_KEY", str(func(c *Config) *string { return &c.Storage.S3.AccessKey })},
	{"S3_SECRET_KEY", str(func(c *Config) *string { return &c.Storage.S3.SecretKey })},
	{"S3_ENDPOINT", str(func(c *Config) *string { return &c.Storage.S3.Endpoint })},
	{"S3_PREFIX", str(func(c *Config) *string { return &c.Storage.S3.Prefix })},
	{"EMBEDDING_HOST", str(func(c *Config) *string { return &c.Embedding.Host })},
	{"EMBEDDING_MODEL", str(func(c *Config) *string { return &c.Embedding.Model })},
	{"EMBEDDING_TOKEN", str(func(c *Config) *string { return &c.Embedding.Token })},
	{"EMBEDDING_RPS", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Embedding.RequestsPerSecond = f
		return err
	}},
	{"EMBEDDING_BURST", integer(func(c *Config) *int { return &c.Embedding.Burst })},
	{"MAX_UPLOAD_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Ingest.MaxUploadBytes = n
		return err
	}},
	{"CHUNK_SIZE", integer(func(c *Config) *int { return &c.Ingest.ChunkSize })},
	{"CHUNK_OVERLAP", integer(func(c *Config) *int { return &c.Ingest.ChunkOverlap })},
	{"CHUNK_STRATEGY", str(func(c *Config) *string { return &c.Ingest.ChunkStrategy })},
	{"WORKERS", integer(func(c *Config) *int { return &c.Scheduler.Workers })},
	{"QUEUE_SIZE", integer(func(c *Config) *int { return &c.Scheduler.QueueSize })},
	{"JOB_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Scheduler.Timeout })},
	{"RETRY_DELAY", duration(func(c *Config) *time.Duration { return &c.Scheduler.RetryDelay })},
	{"JWT_SECRET", str(func(c *Config) *string { return &c.API.JWTSecret })},
	{"ALLOWED_ORIGINS", func(c *Config, v string) error {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.API.AllowedOrigins = origins
		return nil
	}},
}

// ApplyEnv overrides settings from DOCVAULT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range bindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("%w: %s%s=%q: %w", ErrInvalidEnv, EnvPrefix, b.name, v, err)
		}
	}
	return nil
}
