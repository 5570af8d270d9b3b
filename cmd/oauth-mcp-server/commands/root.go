// Package commands wires the CLI surface: the MCP server itself plus a
// couple of interactive helpers for acquiring tokens outside of it.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/config"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	cmd := &cli.Command{
		Name:    "oauth-mcp-server",
		Usage:   "OAuth 2.0 token acquisition over MCP",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "also write logs to this file",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			tokenCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// loadConfig loads the configuration and applies CLI flag overrides,
// which take precedence over both the file and the environment.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"), os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}

	return cfg, nil
}

// instrument sets up the observability layer from the log config.
func instrument(cfg *config.Config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return err
	}

	if err := observability.Instrument(level, cfg.Log.Format, cfg.Log.File); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	return nil
}
