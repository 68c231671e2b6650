package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("docvault-data", "blobs"), cfg.Storage.LocalDir)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, 64, cfg.Scheduler.QueueSize)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/docvault
storage:
  backend: S3
  s3:
    region: eu-west-1
    bucket: uploads
embedding:
  model: nomic-embed-text
scheduler:
  workers: 8
  timeout: 90s
api:
  allowed_origins: [https://app.example.com]
`), 0644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/docvault", cfg.DataDir)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "uploads", cfg.Storage.S3.Bucket)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.Host)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, 64, cfg.Scheduler.QueueSize)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.API.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [unclosed"), 0644))
	_, err := Load(path, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOCVAULT_QUEUE_SIZE=7\nDOCVAULT_JWT_SECRET=from-file\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("DOCVAULT_QUEUE_SIZE")
		os.Unsetenv("DOCVAULT_JWT_SECRET")
	})
	// Process environment wins over the .env file
	t.Setenv("DOCVAULT_JWT_SECRET", "from-env")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scheduler.QueueSize)
	assert.Equal(t, "from-env", cfg.API.JWTSecret)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DOCVAULT_IN_MEMORY":        "true",
		"DOCVAULT_STORAGE_BACKEND":  "s3",
		"DOCVAULT_S3_BUCKET":        "b",
		"DOCVAULT_EMBEDDING_RPS":    "2.5",
		"DOCVAULT_MAX_UPLOAD_BYTES": "2048",
		"DOCVAULT_CHUNK_STRATEGY":   "recursive",
		"DOCVAULT_JOB_TIMEOUT":      "2m",
		"DOCVAULT_ALLOWED_ORIGINS":  "https://a.example, https://b.example,",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.True(t, cfg.InMemory)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "b", cfg.Storage.S3.Bucket)
	assert.Equal(t, 2.5, cfg.Embedding.RequestsPerSecond)
	assert.Equal(t, int64(2048), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, "recursive", cfg.Ingest.ChunkStrategy)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"DOCVAULT_WORKERS":       "many",
		"DOCVAULT_JOB_TIMEOUT":   "soon",
		"DOCVAULT_IN_MEMORY":     "maybe",
		"DOCVAULT_EMBEDDING_RPS": "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := Default().ApplyEnv(func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			})
			assert.ErrorIs(t, err, ErrInvalidEnv)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data dir", func(c *Config) { c.DataDir = ""; c.Storage.LocalDir = "blobs" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3; c.Storage.S3.Region = "us-east-1" }},
		{"s3 without region", func(c *Config) { c.Storage.Backend = BackendS3; c.Storage.S3.Bucket = "b" }},
		{"no embedding model", func(c *Config) { c.Embedding.Model = "" }},
		{"negative rate", func(c *Config) { c.Embedding.RequestsPerSecond = -1 }},
		{"zero max upload", func(c *Config) { c.Ingest.MaxUploadBytes = 0 }},
		{"overlap not below size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"unknown strategy", func(c *Config) { c.Ingest.ChunkStrategy = "sentences" }},
		{"zero workers", func(c *Config) { c.Scheduler.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Scheduler.QueueSize = 0 }},
		{"zero timeout", func(c *Config) { c.Scheduler.Timeout = 0 }},
		{"zero over-fetch", func(c *Config) { c.Search.OverFetch = 0 }},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_InMemoryNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = ""
	cfg.InMemory = true
	cfg.Storage.LocalDir = t.TempDir()
	assert.NoError(t, cfg.Validate())
}
