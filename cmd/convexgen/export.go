package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/analysis"
)

// ErrUnknownExportFormat is returned for an export format other than yaml or ts.
var ErrUnknownExportFormat = errors.New("unknown export format")

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Print the schema as YAML or as a formatted schema.ts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format (yaml, ts)",
				Value:   "yaml",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file (default: stdout)",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "read a schema YAML file instead of schema.ts",
			},
		},
		Action: runExport,
	}
}

func runExport(ctx context.Context, cmd *cli.Command) (err error) {
	e := envFrom(ctx)

	var schema *convexgen.Schema

	if from := cmd.String("from"); from != "" {
		schema, err = analysis.LoadSchema(from, "")
	} else {
		schema, err = e.loadSchema()
	}

	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout

	if out := cmd.String("out"); out != "" {
		f, err := os.Create(out) //nolint:gosec // G304: output path from user input is expected
		if err != nil {
			return err
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		w = f
	}

	switch format := cmd.String("format"); format {
	case "yaml", "yml":
		return analysis.WriteSchema(w, schema)
	case "ts":
		_, err := io.WriteString(w, convexgen.Format(schema))
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
}
