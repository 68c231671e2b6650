package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docvault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp(t *testing.T) (*cli.App, *bytes.Buffer) {
	t.Helper()
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, out
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		t.Run(level, func(t *testing.T) {
			app, _ := testApp(t)
			app.Action = func(*cli.Context) error { return nil }
			require.NoError(t, app.Run([]string{"docvault", "--log-level", level}))
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		app, _ := testApp(t)
		app.Action = func(*cli.Context) error { return nil }
		err := app.Run([]string{"docvault", "-l", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestCommandFlags(t *testing.T) {
	app, _ := testApp(t)

	t.Run("owner is required", func(t *testing.T) {
		for _, name := range []string{"upload", "list", "search", "delete", "download", "reprocess", "token"} {
			cmd := findCommand(t, app, name)
			var ownerFlag *cli.StringFlag
			for _, flag := range cmd.Flags {
				if f, ok := flag.(*cli.StringFlag); ok && f.Name == "owner" {
					ownerFlag = f
					break
				}
			}
			require.NotNil(t, ownerFlag, name)
			assert.True(t, ownerFlag.Required, name)
		}
	})

	t.Run("search limit defaults to 5", func(t *testing.T) {
		cmd := findCommand(t, app, "search")
		var limitFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "limit" {
				limitFlag = f
				break
			}
		}
		require.NotNil(t, limitFlag)
		assert.Equal(t, 5, limitFlag.Value)
		assert.Contains(t, limitFlag.Aliases, "k")
	})

	t.Run("reembed defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "reembed")
		ints := map[string]int{}
		var retryDelay time.Duration
		for _, flag := range cmd.Flags {
			switch f := flag.(type) {
			case *cli.IntFlag:
				ints[f.Name] = f.Value
			case *cli.DurationFlag:
				if f.Name == "retry-delay" {
					retryDelay = f.Value
				}
			}
		}
		assert.Equal(t, map[string]int{"batch-size": 100, "report-interval": 100, "max-retries": 3}, ints)
		assert.Equal(t, time.Second, retryDelay)
	})

	t.Run("missing owner fails before running", func(t *testing.T) {
		app, _ := testApp(t)
		err := app.Run([]string{"docvault", "token"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner")
	})
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("DOCVAULT_JWT_SECRET", "cli-test-secret")
	app, out := testApp(t)

	require.NoError(t, app.Run([]string{"docvault", "--data-dir", t.TempDir(), "token", "--owner", "alice", "--ttl", "1h"}))

	auth, err := api.NewAuthenticator("cli-test-secret")
	require.NoError(t, err)
	owner, err := auth.Owner(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestTokenCommand_ConfigFile(t *testing.T) {
	t.Setenv("DOCVAULT_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("DOCVAULT_JWT_SECRET"))
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "docvault.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  jwt_secret: from-file\n"), 0o600))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, nil, 0o600))

	app, out := testApp(t)
	require.NoError(t, app.Run([]string{"docvault", "-c", cfgPath, "--env-file", envPath, "token", "-o", "bob"}))

	auth, err := api.NewAuthenticator("from-file")
	require.NoError(t, err)
	owner, err := auth.Owner(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
}

func TestTokenCommand_SecretRequired(t *testing.T) {
	t.Setenv("DOCVAULT_JWT_SECRET", "")
	app, _ := testApp(t)

	err := app.Run([]string{"docvault", "-d", t.TempDir(), "token", "--owner", "alice"})
	require.ErrorIs(t, err, errSecretRequired)
}

func TestListCommand_EmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	app, out := testApp(t)

	require.NoError(t, app.Run([]string{"docvault", "-d", dir, "list", "--owner", "alice"}))
	assert.Equal(t, "No artifacts\n", out.String())
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestListCommand_JSON(t *testing.T) {
	app, out := testApp(t)

	require.NoError(t, app.Run([]string{"docvault", "-d", t.TempDir(), "list", "--owner", "alice", "--json"}))
	assert.JSONEq(t, "[]", out.String())
}

func TestArgumentValidation(t *testing.T) {
	cases := map[string][]string{
		"upload without files": {"upload", "--owner", "alice"},
		"status without id":    {"status"},
		"delete without id":    {"delete", "--owner", "alice"},
		"download without id":  {"download", "--owner", "alice"},
		"download unknown id":  {"download", "--owner", "alice", "missing"},
		"reprocess without id": {"reprocess", "--owner", "alice"},
		"search without query": {"search", "--owner", "alice"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			app, _ := testApp(t)
			err := app.Run(append([]string{"docvault", "-d", t.TempDir()}, args...))
			require.Error(t, err)
		})
	}
}

func TestPrintArtifacts_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printArtifacts(&buf, nil))
	assert.Equal(t, "No artifacts\n", buf.String())
}
