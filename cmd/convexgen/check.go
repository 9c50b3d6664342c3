package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/convexgen/analysis"
	"github.com/rlch/convexgen/module"
)

// ErrDiagnosticErrors is returned when analysis reports errors.
var ErrDiagnosticErrors = errors.New("files contain errors")

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Analyze the schema and every function module",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "warnings",
				Usage: "also print warnings and hints",
				Value: true,
			},
		},
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	e := envFrom(ctx)

	hasErrors, err := analyzeProject(ctx, e, os.Stderr, cmd.Bool("warnings"))
	if err != nil {
		return err
	}

	if hasErrors {
		return ErrDiagnosticErrors
	}

	// Analysis passed; loading the project also checks cross-module rules
	// such as duplicate function paths.
	project, err := e.loadProject(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("ok: %d tables, %d modules, %d functions\n",
		len(project.Schema.TableNames()), len(project.Modules), len(project.Registry.Functions()))

	return nil
}

// analyzeProject runs the analyzer over the schema and every module, writing
// diagnostics to w. It reports whether any error was found.
func analyzeProject(ctx context.Context, e *env, w io.Writer, warnings bool) (bool, error) {
	schemaPath := e.cfg.SchemaPath(e.base)
	root := e.cfg.FunctionsDir(e.base)

	loader := module.NewLoader(e.logger)

	paths, err := loader.Discover(root)
	if err != nil {
		return false, fmt.Errorf("discovering modules: %w", err)
	}

	analyzer := analysis.NewAnalyzer(nil)

	schemaResult, err := analyzeFile(analyzer, schemaPath)
	if err != nil {
		return false, err
	}

	hasErrors := printDiagnostics(w, schemaResult, warnings)

	// Modules are checked against the schema only when it compiled.
	if schema, err := loader.LoadSchema(schemaPath); err == nil {
		analyzer.SetSchema(schema)
	} else if !schemaResult.HasErrors() {
		fmt.Fprintf(w, "%s: error: %v\n", schemaPath, err)
		hasErrors = true
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		result, err := analyzeFile(analyzer, path)
		if err != nil {
			return false, err
		}

		if printDiagnostics(w, result, warnings) {
			hasErrors = true
		}
	}

	e.logger.Debug("Analyzed project", zap.Int("modules", len(paths)), zap.Bool("errors", hasErrors))

	return hasErrors, nil
}

func analyzeFile(analyzer *analysis.Analyzer, path string) (*analysis.AnalyzedFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: file path from config is expected
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return analyzer.Analyze(path, data), nil
}

func printDiagnostics(w io.Writer, result *analysis.AnalyzedFile, warnings bool) bool {
	for _, diag := range result.Diagnostics {
		if diag.Severity != analysis.SeverityError && !warnings {
			continue
		}

		loc := result.Path + ": "
		if diag.Span.Start.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d: ", result.Path, diag.Span.Start.Line, diag.Span.Start.Column)
		}

		code := ""
		if diag.Code != "" {
			code = " [" + diag.Code + "]"
		}

		fmt.Fprintf(w, "%s%s: %s%s\n", loc, diag.Severity, diag.Message, code)
	}

	return result.HasErrors()
}
