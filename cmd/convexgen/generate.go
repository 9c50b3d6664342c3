package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/language"

	// Register languages.
	_ "github.com/rlch/convexgen/language/go"
)

// ErrUnknownLanguage is returned for a --lang with no registered generator.
var ErrUnknownLanguage = errors.New("unknown language")

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate typed bindings for the schema and functions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "lang",
				Aliases: []string{"l"},
				Usage:   "target language (go)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output directory (default: <functions>/_generated)",
			},
			&cli.StringFlag{
				Name:    "package",
				Aliases: []string{"p"},
				Usage:   "Go package name (default: directory name)",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	e := envFrom(ctx)
	start := time.Now()

	langName := firstNonEmpty(cmd.String("lang"), e.cfg.Generate.Lang, convexgen.LangGo)
	packageName := firstNonEmpty(cmd.String("package"), e.cfg.Generate.Package)

	// --out is relative to the working directory, generate.out to the config.
	var outputDir string

	switch out := e.cfg.Generate.Out; {
	case cmd.String("out") != "":
		outputDir = cmd.String("out")
	case out != "" && filepath.IsAbs(out):
		outputDir = out
	case out != "":
		outputDir = filepath.Join(e.base, out)
	default:
		outputDir = filepath.Join(e.cfg.FunctionsDir(e.base), convexgen.DefaultGeneratedDir)
	}

	lang := language.Get(langName)
	if lang == nil {
		return fmt.Errorf("%w: %s (available: %v)", ErrUnknownLanguage, langName, language.RegisteredLanguages())
	}

	project, err := e.loadProject(ctx)
	if err != nil {
		return err
	}

	files, err := lang.Generate(&language.GenerateContext{
		Schema:      project.Schema,
		Functions:   project.Registry.Functions(),
		OutputDir:   outputDir,
		PackageName: packageName,
		Logger:      e.logger,
	})
	if err != nil {
		return fmt.Errorf("generating %s: %w", langName, err)
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return err
	}

	for filename, content := range files {
		if content == nil {
			continue
		}

		outPath := filepath.Join(outputDir, filename)

		err := os.WriteFile(outPath, content, 0o644) //nolint:gosec // G306: generated sources are world-readable
		if err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}

		fmt.Printf("wrote %s\n", outPath)
	}

	e.logger.Info("Generated bindings",
		zap.String("lang", langName),
		zap.String("out", outputDir),
		zap.Int("files", len(files)),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
