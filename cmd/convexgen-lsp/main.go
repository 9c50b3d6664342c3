// Command convexgen-lsp is a Language Server Protocol server for Convex schema
// and function module files. It speaks JSON-RPC over stdin and stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/convexgen/lsp"
)

func main() {
	cmd := &cli.Command{
		Name:  "convexgen-lsp",
		Usage: "Language server for Convex schema and function modules",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("CONVEXGEN_LSP_DEBUG"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd.Bool("debug"), os.Stdin, os.Stdout)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, debug bool, in io.Reader, out io.Writer) error {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	// Logs go to stderr; stdout carries the protocol.
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = level

	stderr, err := config.Build()
	if err != nil {
		return err
	}

	defer func() {
		_ = stderr.Sync()
	}()

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&readWriteCloser{in, out}))
	client := protocol.ClientDispatcher(conn, stderr)

	logger, stop := lsp.NewLSPLogger(client, stderr.Core(), level)
	defer stop()

	logger.Info("Starting convexgen-lsp")

	server := lsp.NewServer(client, logger)
	server.OnExit(func() {
		_ = conn.Close()
	})

	conn.Go(ctx, lsp.Handler(server))
	<-conn.Done()

	return conn.Err()
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
