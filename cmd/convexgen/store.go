package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/databases/bolt"
)

// ErrMissingArgument is returned when a store command lacks a positional argument.
var ErrMissingArgument = errors.New("missing argument")

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Read and write the local development store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "store file (default: store.path from config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "insert",
				Usage:     "Insert a JSON document and print its ID",
				ArgsUsage: "<table> [file.json | -]",
				Action:    withStore(storeInsert),
			},
			{
				Name:      "get",
				Usage:     "Print a document by ID",
				ArgsUsage: "<id>",
				Action:    withStore(storeGet),
			},
			{
				Name:      "query",
				Usage:     "Print documents of a table, optionally by index",
				ArgsUsage: "<table> [values...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Usage:   "index name; values are JSON and match a prefix of its fields",
					},
				},
				Action: withStore(storeQuery),
			},
			{
				Name:      "delete",
				Usage:     "Delete a document by ID",
				ArgsUsage: "<id>",
				Action:    withStore(storeDelete),
			},
		},
	}
}

type storeAction func(ctx context.Context, cmd *cli.Command, store *bolt.Store) error

// withStore opens the development store for the duration of action.
func withStore(action storeAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e := envFrom(ctx)

		schema, err := e.loadSchema()
		if err != nil {
			return err
		}

		path := cmd.String("path")
		if path == "" {
			path = e.cfg.StorePath(e.base)
		}

		store, err := bolt.Open(path, schema, bolt.WithLogger(e.logger))
		if err != nil {
			return err
		}

		defer func() { _ = store.Close() }()

		return action(ctx, cmd, store)
	}
}

func storeInsert(ctx context.Context, cmd *cli.Command, store *bolt.Store) error {
	table := cmd.Args().Get(0)
	if table == "" {
		return fmt.Errorf("%w: table", ErrMissingArgument)
	}

	data, err := readInput(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	doc, err := convexgen.DecodeDocument(data)
	if err != nil {
		return err
	}

	id, err := store.Insert(ctx, table, doc)
	if err != nil {
		return err
	}

	fmt.Println(id)

	return nil
}

func storeGet(ctx context.Context, cmd *cli.Command, store *bolt.Store) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}

	doc, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	return printDocuments(doc)
}

func storeQuery(ctx context.Context, cmd *cli.Command, store *bolt.Store) error {
	table := cmd.Args().Get(0)
	if table == "" {
		return fmt.Errorf("%w: table", ErrMissingArgument)
	}

	index := cmd.String("index")

	if index == "" {
		var docs []convexgen.Document

		err := store.Scan(ctx, table, func(doc convexgen.Document) bool {
			docs = append(docs, doc)
			return true
		})
		if err != nil {
			return err
		}

		return printDocuments(docs...)
	}

	var values []any

	for _, arg := range cmd.Args().Tail() {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			// Bare words are strings: `query posts -i by_author k17...`
			v = arg
		}

		values = append(values, v)
	}

	docs, err := store.Query(ctx, table, index, values...)
	if err != nil {
		return err
	}

	return printDocuments(docs...)
}

func storeDelete(ctx context.Context, cmd *cli.Command, store *bolt.Store) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Printf("deleted %s\n", id)

	return nil
}

func idArg(cmd *cli.Command) (convexgen.ID, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return "", fmt.Errorf("%w: id", ErrMissingArgument)
	}

	return convexgen.ParseID(arg)
}

func printDocuments(docs ...convexgen.Document) error {
	for _, doc := range docs {
		data, err := convexgen.EncodeDocument(doc)
		if err != nil {
			return err
		}

		fmt.Println(string(data))
	}

	return nil
}
