package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/convexgen"
)

// Validate command errors.
var (
	ErrValidateTarget  = errors.New("exactly one of --table or --function is required")
	ErrUnknownFunction = errors.New("unknown function")
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a JSON document against a table, or arguments against a function",
		ArgsUsage: "[file.json | -]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "table the document belongs to",
			},
			&cli.StringFlag{
				Name:    "function",
				Aliases: []string{"f"},
				Usage:   "function path (module:name) whose arguments to check",
			},
		},
		Action: runValidate,
	}
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	e := envFrom(ctx)

	table, function := cmd.String("table"), cmd.String("function")
	if (table == "") == (function == "") {
		return ErrValidateTarget
	}

	data, err := readInput(cmd.Args().First())
	if err != nil {
		return err
	}

	doc, err := convexgen.DecodeDocument(data)
	if err != nil {
		return err
	}

	if table != "" {
		schema, err := e.loadSchema()
		if err != nil {
			return err
		}

		if err := schema.Validate(table, doc); err != nil {
			return err
		}

		fmt.Printf("ok: valid %s document\n", table)

		return nil
	}

	project, err := e.loadProject(ctx)
	if err != nil {
		return err
	}

	if _, ok := project.Registry.Lookup(function); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, function)
	}

	if err := project.Registry.ValidateArgs(function, doc); err != nil {
		return err
	}

	fmt.Printf("ok: valid arguments for %s\n", function)

	return nil
}

// readInput reads a file, or stdin when path is empty or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: file path from user input is expected
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}
