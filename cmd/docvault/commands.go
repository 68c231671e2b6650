package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docvault"
	"github.com/poiesic/docvault/ai"
	"github.com/poiesic/docvault/ai/openai"
	"github.com/poiesic/docvault/api"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/reembed"
	"github.com/poiesic/docvault/storage/badger"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

var errSecretRequired = errors.New("api.jwt_secret (DOCVAULT_JWT_SECRET) must be set")

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Listen = listen
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Scheduler.Workers = workers
	}
	if cfg.API.JWTSecret == "" {
		return errSecretRequired
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, err := openVault(ctx, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	recovered, err := v.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover unfinished artifacts: %w", err)
	}
	if recovered > 0 {
		fmt.Fprintf(c.App.ErrWriter, "Resumed %d unfinished artifacts\n", recovered)
	}

	server, err := api.NewServer(v, cfg.API.JWTSecret,
		api.WithAllowedOrigins(cfg.API.AllowedOrigins),
		api.WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.Listen)
	}()
	fmt.Fprintf(c.App.ErrWriter, "docvault listening on %s\n", cfg.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func uploadCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	owner := c.String("owner")
	var artifacts []*core.Artifact
	for _, path := range c.Args().Slice() {
		artifact, err := uploadFile(c.Context, v, owner, path)
		if err != nil {
			return err
		}
		if c.Bool("wait") {
			if artifact, err = v.Await(c.Context, artifact.ID); err != nil {
				return fmt.Errorf("waiting for %s: %w", path, err)
			}
		}
		artifacts = append(artifacts, artifact)
	}
	if c.Bool("json") {
		return printJSON(c.App.Writer, artifacts)
	}
	return printArtifacts(c.App.Writer, artifacts)
}

func uploadFile(ctx context.Context, v *docvault.Vault, owner, path string) (*core.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	artifact, err := v.Upload(ctx, owner, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", path, err)
	}
	return artifact, nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one artifact ID is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	artifact, err := v.Status(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, artifact)
}

func listCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	artifacts, err := v.List(c.Context, c.String("owner"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		if artifacts == nil {
			artifacts = []*core.Artifact{}
		}
		return printJSON(c.App.Writer, artifacts)
	}
	return printArtifacts(c.App.Writer, artifacts)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	hits, err := v.Search(c.Context, c.String("owner"), query, c.Int("limit"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		if hits == nil {
			hits = []*core.SearchHit{}
		}
		return printJSON(c.App.Writer, hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(c.App.Writer, "No results")
		return nil
	}
	for i, hit := range hits {
		marker := ""
		if hit.Exact {
			marker = " (exact)"
		}
		fmt.Fprintf(c.App.Writer, "%d. %s [%.4f]%s\n", i+1, hit.Filename, hit.Score, marker)
		fmt.Fprintf(c.App.Writer, "   %s\n\n", hit.Text)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one artifact ID is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	id := c.Args().First()
	if err := v.Delete(c.Context, id, c.String("owner")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func downloadCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one artifact ID is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	artifact, content, err := v.Download(c.Context, c.Args().First(), c.String("owner"))
	if err != nil {
		return err
	}
	defer content.Close()

	path := c.String("output")
	if path == "-" {
		_, err := io.Copy(c.App.Writer, content)
		return err
	}
	if path == "" {
		path = filepath.Base(artifact.Filename)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %d bytes to %s\n", n, path)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one artifact ID is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, err := openVault(c.Context, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	artifact, err := v.Reprocess(c.Context, c.Args().First(), c.String("owner"))
	if err != nil {
		return err
	}
	if c.Bool("wait") {
		if artifact, err = v.Await(c.Context, artifact.ID); err != nil {
			return err
		}
	}
	return printJSON(c.App.Writer, artifact)
}

func tokenCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.API.JWTSecret == "" {
		return errSecretRequired
	}
	auth, err := api.NewAuthenticator(cfg.API.JWTSecret)
	if err != nil {
		return err
	}
	token, err := auth.Issue(c.String("owner"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.InMemory {
		return errors.New("reembed needs a persistent database")
	}

	dbPath := filepath.Join(cfg.DataDir, "db")
	fmt.Fprintf(c.App.ErrWriter, "Opening database: %s\n", dbPath)
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	index, err := badger.NewVectorIndex(backend)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Using embedding model: %s at %s\n", cfg.Embedding.Model, cfg.Embedding.Host)
	provider, err := openai.NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost(cfg.Embedding.Host),
		ai.WithEmbeddingModel(cfg.Embedding.Model),
		ai.WithToken(cfg.Embedding.Token),
		ai.WithRateLimit(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
	))
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	reembedder, err := reembed.NewReembedder(index, provider.Embedder(), &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}, c.App.ErrWriter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return reembedder.Run(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printArtifacts(w io.Writer, artifacts []*core.Artifact) error {
	if len(artifacts) == 0 {
		fmt.Fprintln(w, "No artifacts")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tPROGRESS\tCHUNKS\tCREATED")
	for _, a := range artifacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%d\t%s\n",
			a.ID, a.Filename, a.Status, a.Progress, a.ChunkCount, a.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
