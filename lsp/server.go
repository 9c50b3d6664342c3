// Package lsp implements a Language Server Protocol server for Convex schema
// and function module files.
package lsp

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/analysis"
	"github.com/rlch/convexgen/module"
)

// Client is the part of the editor connection the server calls back into.
// protocol.Client implements it.
type Client interface {
	PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error
	LogMessage(ctx context.Context, params *protocol.LogMessageParams) error
}

// Server handles LSP requests for schema.ts and function modules.
type Server struct {
	client Client
	logger *zap.Logger

	// Document state
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	// analyzer checks function modules against the project schema and is
	// guarded by mu because that schema changes with the schema document.
	// schemaAnalyzer checks the schema document on its own.
	analyzer       *analysis.Analyzer
	schemaAnalyzer *analysis.Analyzer
	schema         *convexgen.Schema

	// Project layout, resolved from .convexgen.yaml on initialize.
	workspaceRoot string
	functionsDir  string
	schemaPath    string

	onExit func()

	// Server state
	initialized bool
	shutdown    bool
}

// Document represents an open document in the server.
type Document struct {
	URI      protocol.DocumentURI
	Path     string
	Version  int32
	Content  string
	Analysis *analysis.AnalyzedFile

	// LastValidAnalysis holds the most recent analysis that parsed successfully.
	// Used for completion when the current document has parse errors.
	LastValidAnalysis *analysis.AnalyzedFile
}

// NewServer creates a new LSP server.
func NewServer(client Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		client:    client,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*Document),
		analyzer:       analysis.NewAnalyzer(nil),
		schemaAnalyzer: analysis.NewAnalyzer(nil),
	}
}

// OnExit sets the function called when the client sends exit.
func (s *Server) OnExit(fn func()) {
	s.onExit = fn
}

// Initialize resolves the project layout from the workspace root and loads the
// schema so function modules can be checked against its tables.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	defer s.traceHandler("Initialize")()

	switch {
	case params.RootURI != "":
		s.workspaceRoot = URIToPath(params.RootURI)
	case params.RootPath != "":
		s.workspaceRoot = params.RootPath
	}

	if s.workspaceRoot != "" {
		s.loadProjectLayout()
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			// Full document sync - client sends entire content on change
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", `"`, "'"},
			},
			DocumentSymbolProvider: true,
			FoldingRangeProvider:   true,
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "convexgen-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// loadProjectLayout reads .convexgen.yaml above the workspace root, falling
// back to defaults, and loads the schema file if it compiles.
func (s *Server) loadProjectLayout() {
	cfg, base := &convexgen.Config{}, s.workspaceRoot

	if path, err := convexgen.FindConfig(s.workspaceRoot); err == nil {
		if loaded, err := convexgen.LoadConfigFile(path); err == nil {
			cfg, base = loaded, filepath.Dir(path)
		} else {
			s.logger.Warn("Ignoring unreadable config", zap.String("path", path), zap.Error(err))
		}
	} else if !errors.Is(err, convexgen.ErrConfigNotFound) {
		s.logger.Warn("Finding config", zap.Error(err))
	}

	s.functionsDir = cfg.FunctionsDir(base)
	s.schemaPath = cfg.SchemaPath(base)

	schema, err := module.NewLoader(s.logger).LoadSchema(s.schemaPath)
	if err != nil {
		s.logger.Info("No project schema", zap.String("path", s.schemaPath), zap.Error(err))
		return
	}

	s.setSchema(schema)
}

func (s *Server) setSchema(schema *convexgen.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schema = schema
	s.analyzer.SetSchema(schema)
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized", zap.String("root", s.workspaceRoot), zap.String("schema", s.schemaPath))
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")

	if s.onExit != nil {
		s.onExit()
	}

	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	defer s.traceHandler("DidOpen")()

	doc := &Document{
		URI:     params.TextDocument.URI,
		Path:    URIToPath(params.TextDocument.URI),
		Version: params.TextDocument.Version,
		Content: params.TextDocument.Text,
	}

	s.mu.Lock()
	s.analyze(doc)
	s.documents[doc.URI] = doc
	s.mu.Unlock()

	// Publish diagnostics outside the lock to prevent deadlock
	s.publishDiagnostics(ctx, doc)
	s.schemaChanged(ctx, doc)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	start := time.Now()

	// Hold the lock only for document state updates, not for RPC calls.
	// The client may send requests while we're publishing diagnostics.
	s.mu.Lock()

	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))

		return nil
	}

	if len(params.ContentChanges) == 0 {
		s.mu.Unlock()
		return nil
	}

	// Full sync - take the last content change (should only be one with full sync)
	doc.Content = params.ContentChanges[len(params.ContentChanges)-1].Text
	doc.Version = params.TextDocument.Version
	s.analyze(doc)

	snapshot := *doc
	s.mu.Unlock()

	s.publishDiagnostics(ctx, &snapshot)
	s.schemaChanged(ctx, &snapshot)

	s.logger.Debug("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// DidClose handles textDocument/didClose notifications.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Debug("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	delete(s.documents, params.TextDocument.URI)
	s.mu.Unlock()

	// Clear diagnostics outside the lock to prevent deadlock
	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("Failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// analyze re-runs analysis on doc. The caller holds mu.
func (s *Server) analyze(doc *Document) {
	analyzer := s.analyzer
	if s.isSchema(doc.Path) {
		analyzer = s.schemaAnalyzer
	}

	doc.Analysis = analyzer.Analyze(doc.Path, []byte(doc.Content))

	if doc.Analysis.ParseError == nil {
		doc.LastValidAnalysis = doc.Analysis
	}
}

// schemaChanged recompiles the project schema when doc is the schema file and
// re-checks every other open document against it.
func (s *Server) schemaChanged(ctx context.Context, doc *Document) {
	if !s.isSchema(doc.Path) {
		return
	}

	if doc.Analysis == nil || doc.Analysis.File == nil || doc.Analysis.HasErrors() {
		return
	}

	schema, err := convexgen.CompileSchema(doc.Analysis.File)
	if err != nil {
		s.logger.Debug("Schema does not compile", zap.Error(err))
		return
	}

	s.mu.Lock()

	if s.schema != nil && s.schema.Equal(schema) {
		s.mu.Unlock()
		return
	}

	s.schema = schema
	s.analyzer.SetSchema(schema)

	var changed []Document

	for uri, other := range s.documents {
		if uri == doc.URI {
			continue
		}

		s.analyze(other)
		changed = append(changed, *other)
	}

	s.mu.Unlock()

	s.logger.Info("Reloaded schema", zap.Strings("tables", schema.TableNames()), zap.Int("documents", len(changed)))
	s.notifyClient(ctx, protocol.MessageTypeInfo, "convexgen: schema reloaded with %d tables", len(schema.TableNames()))

	for i := range changed {
		s.publishDiagnostics(ctx, &changed[i])
	}
}

func (s *Server) isSchema(path string) bool {
	return s.schemaPath != "" && filepath.Clean(path) == filepath.Clean(s.schemaPath)
}

// getDocument returns a document by URI (read-locked).
func (s *Server) getDocument(uri protocol.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri]
	if !ok {
		return nil, false
	}

	snapshot := *doc

	return &snapshot, true
}

// projectSchema returns the current project schema, or nil.
func (s *Server) projectSchema() *convexgen.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.schema
}

// moduleName returns the function module name of path, or its base name when
// it lies outside the functions directory.
func (s *Server) moduleName(path string) string {
	if s.functionsDir != "" {
		if name, err := module.ModuleName(s.functionsDir, path); err == nil {
			return name
		}
	}

	base := filepath.Base(path)

	return base[:len(base)-len(filepath.Ext(base))]
}
