// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/docvault"
	"github.com/poiesic/docvault/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	ownerFlag := &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner the operation acts for",
		Required: true,
	}
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON instead of a table",
	}

	return &cli.App{
		Name:  "docvault",
		Usage: "Document ingestion and semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file (default: ./.env when present)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the database and local blobs",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the processing workers",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address to listen on",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent processing workers",
					},
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload files and queue them for processing (without --wait, unfinished work resumes on the next serve)",
				ArgsUsage: "FILE...",
				Action:    uploadCommand,
				Flags: []cli.Flag{
					ownerFlag,
					jsonFlag,
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for processing to finish before exiting",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the processing record of an artifact",
				ArgsUsage: "ID",
				Action:    statusCommand,
			},
			{
				Name:   "list",
				Usage:  "List an owner's artifacts, newest first",
				Action: listCommand,
				Flags:  []cli.Flag{ownerFlag, jsonFlag},
			},
			{
				Name:      "search",
				Usage:     "Search an owner's documents",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					ownerFlag,
					jsonFlag,
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an artifact with its vectors and bytes",
				ArgsUsage: "ID",
				Action:    deleteCommand,
				Flags:     []cli.Flag{ownerFlag},
			},
			{
				Name:      "download",
				Usage:     "Write an artifact's original bytes to a file",
				ArgsUsage: "ID",
				Action:    downloadCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination path, or - for stdout (default: the uploaded filename)",
					},
				},
			},
			{
				Name:      "reprocess",
				Usage:     "Queue a finished artifact for processing again",
				ArgsUsage: "ID",
				Action:    reprocessCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for processing to finish before exiting",
					},
				},
			},
			{
				Name:   "token",
				Usage:  "Issue an API token for an owner",
				Action: tokenCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime (0 for no expiry)",
						Value: 24 * time.Hour,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every indexed chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// loadConfig reads the configuration sources and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
		cfg.Storage.LocalDir = ""
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.Embedding.Host = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.Embedding.Model = model
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openVault(ctx context.Context, cfg *config.Config) (*docvault.Vault, error) {
	v, err := docvault.Open(ctx, docvault.WithConfig(cfg), docvault.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return v, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
