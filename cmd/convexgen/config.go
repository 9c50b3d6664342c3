package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/module"
)

// ErrUnknownLogFormat is returned for a log format other than console or json.
var ErrUnknownLogFormat = errors.New("unknown log format")

// env is the state shared by every command.
type env struct {
	cfg *convexgen.Config

	// base is the directory config paths are relative to.
	base   string
	logger *zap.Logger
}

type envKey struct{}

func withEnv(ctx context.Context, e *env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

func envFrom(ctx context.Context) *env {
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		return e
	}

	cwd, _ := os.Getwd()

	return &env{cfg: &convexgen.Config{}, base: cwd, logger: zap.NewNop()}
}

// loadConfig loads the config at path, or the nearest one above the working
// directory. A missing config yields defaults relative to the working
// directory.
func loadConfig(path string) (*convexgen.Config, string, error) {
	if path != "" {
		cfg, err := convexgen.LoadConfigFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", err
		}

		return cfg, filepath.Dir(abs), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting cwd: %w", err)
	}

	found, err := convexgen.FindConfig(cwd)
	if errors.Is(err, convexgen.ErrConfigNotFound) {
		return &convexgen.Config{}, cwd, nil
	}

	if err != nil {
		return nil, "", err
	}

	cfg, err := convexgen.LoadConfigFile(found)
	if err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", found, err)
	}

	return cfg, filepath.Dir(found), nil
}

// newLogger builds a development console logger or a production JSON logger,
// both writing to stderr.
func newLogger(cfg convexgen.LogConfig) (*zap.Logger, error) {
	var zc zap.Config

	switch cfg.Format {
	case "", convexgen.LogFormatConsole:
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	case convexgen.LogFormatJSON:
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLogFormat, cfg.Format)
	}

	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}

		zc.Level = zap.NewAtomicLevelAt(level)
	}

	return zc.Build()
}

func (e *env) loadProject(ctx context.Context) (*module.Project, error) {
	loader := module.NewLoader(e.logger)

	return loader.LoadProject(ctx, e.cfg.FunctionsDir(e.base), e.cfg.SchemaPath(e.base))
}

func (e *env) loadSchema() (*convexgen.Schema, error) {
	return module.NewLoader(e.logger).LoadSchema(e.cfg.SchemaPath(e.base))
}
