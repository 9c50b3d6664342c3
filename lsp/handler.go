package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// LSP methods the server answers.
const (
	methodInitialize     = "initialize"
	methodInitialized    = "initialized"
	methodShutdown       = "shutdown"
	methodExit           = "exit"
	methodDidOpen        = "textDocument/didOpen"
	methodDidChange      = "textDocument/didChange"
	methodDidClose       = "textDocument/didClose"
	methodDidSave        = "textDocument/didSave"
	methodHover          = "textDocument/hover"
	methodCompletion     = "textDocument/completion"
	methodDocumentSymbol = "textDocument/documentSymbol"
	methodFoldingRange   = "textDocument/foldingRange"
)

// Handler returns a jsonrpc2 handler dispatching requests to s. Unknown
// requests get a method-not-found error; unknown notifications, including
// $/ protocol notifications, are ignored.
func Handler(s *Server) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if s.shutdown && req.Method() != methodExit {
			return reply(ctx, nil, fmt.Errorf("%w: server is shut down", jsonrpc2.ErrInvalidRequest))
		}

		switch req.Method() {
		case methodInitialize:
			return call(ctx, reply, req, s.Initialize)
		case methodInitialized:
			return notify(ctx, reply, req, s.Initialized)
		case methodShutdown:
			return reply(ctx, nil, s.Shutdown(ctx))
		case methodExit:
			return reply(ctx, nil, s.Exit(ctx))
		case methodDidOpen:
			return notify(ctx, reply, req, s.DidOpen)
		case methodDidChange:
			return notify(ctx, reply, req, s.DidChange)
		case methodDidClose:
			return notify(ctx, reply, req, s.DidClose)
		case methodDidSave:
			return reply(ctx, nil, nil)
		case methodHover:
			return call(ctx, reply, req, s.Hover)
		case methodCompletion:
			return call(ctx, reply, req, s.Completion)
		case methodDocumentSymbol:
			return call(ctx, reply, req, s.DocumentSymbols)
		case methodFoldingRange:
			return call(ctx, reply, req, s.FoldingRanges)
		}

		if _, isCall := req.(*jsonrpc2.Call); !isCall || strings.HasPrefix(req.Method(), "$/") {
			s.logger.Debug("Ignoring notification", zap.String("method", req.Method()))
			return reply(ctx, nil, nil)
		}

		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func decode[P any](req jsonrpc2.Request) (*P, error) {
	var params P
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", jsonrpc2.ErrInvalidParams, req.Method(), err)
	}

	return &params, nil
}

func call[P, R any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context, *P) (R, error)) error {
	params, err := decode[P](req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := fn(ctx, params)

	return reply(ctx, result, err)
}

func notify[P any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context, *P) error) error {
	params, err := decode[P](req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, nil, fn(ctx, params))
}
