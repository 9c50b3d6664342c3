// Command convexgen checks Convex schema and function modules, generates typed
// Go bindings, and runs document fixtures against a local development store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cmd := &cli.Command{
		Name:  "convexgen",
		Usage: "Work with Convex schemas and function modules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to .convexgen.yaml (default: nearest in cwd or a parent)",
				Sources: cli.EnvVars("CONVEXGEN_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("CONVEXGEN_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (console, json)",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			checkCommand(),
			generateCommand(),
			validateCommand(),
			testCommand(),
			exportCommand(),
			storeCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, base, err := loadConfig(cmd.String("config"))
	if err != nil {
		return ctx, err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	if format := cmd.String("log-format"); format != "" {
		cfg.Log.Format = format
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return ctx, err
	}

	logger.Debug("Loaded config", zap.String("base", base))

	return withEnv(ctx, &env{cfg: cfg, base: base, logger: logger}), nil
}

func teardown(ctx context.Context, _ *cli.Command) error {
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		_ = e.logger.Sync()
	}

	return nil
}
