package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/convexgen/databases/bolt"
	"github.com/rlch/convexgen/runner"
)

// ErrNoFixtures is returned when no fixture files are found.
var ErrNoFixtures = errors.New("no fixture files found")

func testCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run document fixtures against the schema",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format (dots, verbose, pretty, json, tui; default: pretty on a terminal)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output results as JSON",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose output",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "stop on first failure",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "run only cases whose table/name matches the regular expression",
			},
			&cli.BoolFlag{
				Name:  "store",
				Usage: "insert into the development store instead of memory",
			},
		},
		Action: runTest,
	}
}

func runTest(ctx context.Context, cmd *cli.Command) error {
	e := envFrom(ctx)

	filter, err := runner.ParseFilter(cmd.String("run"))
	if err != nil {
		return err
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		args = []string{e.cfg.FixturesPath(e.base)}
	}

	var files []string

	for _, arg := range args {
		found, err := runner.FindFixtures(arg)
		if err != nil {
			return fmt.Errorf("finding fixtures in %s: %w", arg, err)
		}

		files = append(files, found...)
	}

	if len(files) == 0 {
		return ErrNoFixtures
	}

	fixtures := make([]*runner.Fixture, 0, len(files))

	for _, file := range files {
		f, err := runner.LoadFixture(file)
		if err != nil {
			return err
		}

		fixtures = append(fixtures, f)
	}

	schema, err := e.loadSchema()
	if err != nil {
		return err
	}

	var inserter runner.Inserter = runner.NewMemoryInserter(schema)

	if cmd.Bool("store") {
		store, err := bolt.Open(e.cfg.StorePath(e.base), schema, bolt.WithLogger(e.logger))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		inserter = store
	}

	formatName := cmd.String("format")

	switch {
	case cmd.Bool("json"):
		formatName = "json"
	case cmd.Bool("verbose"):
		formatName = "verbose"
	}

	formatHandler := runner.NewFormatHandler(runner.NewFormatter(formatName, os.Stdout, fixtures...), os.Stderr)

	r := runner.New(
		runner.WithInserter(inserter),
		runner.WithHandler(runner.NewMultiHandler(formatHandler, runner.NewLogHandler(e.logger))),
		runner.WithFailFast(cmd.Bool("fail-fast")),
		runner.WithFilter(filter),
		runner.WithLogger(e.logger),
	)

	result := runner.NewResult()

	for _, f := range fixtures {
		err := r.RunInto(ctx, f, f.Path, result)
		if errors.Is(err, runner.ErrMaxFailures) {
			break
		}

		if err != nil {
			return fmt.Errorf("running %s: %w", f.Path, err)
		}
	}

	result.Finish()

	_ = formatHandler.Summary(result)

	if !result.Ok() {
		return cli.Exit("", 1)
	}

	return nil
}
