// Package module discovers, parses and caches the function modules of a project.
package module

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/boyter/gocodewalker"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
)

// Module loading errors.
var (
	ErrModuleNotFound = errors.New("module not found")
	ErrParseError     = errors.New("parse error")
)

// LoadError wraps a failure to load a single file.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Module is a parsed function module.
type Module struct {
	// Name is the module path relative to the functions directory, without
	// extension and with forward slashes, e.g. "admin/posts".
	Name string
	// Path is the absolute file path.
	Path string

	File      *convexgen.File
	Functions []*convexgen.Function
}

// Loader handles loading and caching of schema and function modules.
type Loader struct {
	logger *zap.Logger

	mu sync.Mutex
	// cache stores loaded modules by absolute path.
	cache map[string]*Module

	// Parser is the function used to parse source files.
	// Defaults to convexgen.ParseFile but can be overridden for testing.
	Parser func(filename string, data []byte) (*convexgen.File, error)
}

// NewLoader creates a new module loader. A nil logger discards output.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		logger: logger,
		cache:  make(map[string]*Module),
		Parser: convexgen.ParseFile,
	}
}

// LoadSchema parses and compiles a schema file.
func (l *Loader) LoadSchema(path string) (*convexgen.Schema, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // G304: schema path comes from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: absPath, Cause: fmt.Errorf("%w: %w", convexgen.ErrNoSchema, err)}
		}

		return nil, &LoadError{Path: absPath, Cause: err}
	}

	file, err := l.Parser(absPath, data)
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: fmt.Errorf("%w: %w", ErrParseError, err)}
	}

	schema, err := convexgen.CompileSchema(file)
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: err}
	}

	l.logger.Debug("Loaded schema",
		zap.String("path", absPath),
		zap.Strings("tables", schema.TableNames()))

	return schema, nil
}

// LoadModule loads the function module at path. root is the functions
// directory the module name is derived from. Returns a cached module if
// already loaded.
func (l *Loader) LoadModule(root, path string) (*Module, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	mod, ok := l.cache[absPath]
	l.mu.Unlock()

	if ok {
		return mod, nil
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, &LoadError{Path: absPath, Cause: fmt.Errorf("%w: %w", ErrModuleNotFound, err)}
	}

	name, err := ModuleName(root, absPath)
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: err}
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // G304: discovered under the functions directory
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: err}
	}

	file, err := l.Parser(absPath, data)
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: fmt.Errorf("%w: %w", ErrParseError, err)}
	}

	funcs, err := convexgen.CompileFunctions(name, file)
	if err != nil {
		return nil, &LoadError{Path: absPath, Cause: err}
	}

	mod = &Module{Name: name, Path: absPath, File: file, Functions: funcs}

	l.mu.Lock()
	l.cache[absPath] = mod
	l.mu.Unlock()

	l.logger.Debug("Loaded module",
		zap.String("module", name),
		zap.Int("functions", len(funcs)))

	return mod, nil
}

// ModuleName returns the module name of path relative to root: the relative
// path without extension, using forward slashes.
func ModuleName(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return "", err
	}

	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrModuleNotFound, path, root)
	}

	return strings.TrimSuffix(rel, filepath.Ext(rel)), nil
}

// Discover walks root for function modules, respecting .gitignore. The schema
// file, declaration files and generated or vendored directories are skipped.
// Paths are returned sorted.
func (l *Loader) Discover(root string) ([]string, error) {
	fileListQueue := make(chan *gocodewalker.File, 100)

	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)
	fileWalker.AllowListExtensions = convexgen.ModuleExtensions

	var walkErr error
	fileWalker.SetErrorHandler(func(e error) bool {
		walkErr = e
		return true
	})

	var (
		wg    sync.WaitGroup
		paths []string
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range fileListQueue {
			if isModuleFile(root, f.Location) {
				paths = append(paths, f.Location)
			}
		}
	}()

	if err := fileWalker.Start(); err != nil {
		return nil, err
	}

	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	slices.Sort(paths)

	return paths, nil
}

func isModuleFile(root, path string) bool {
	base := filepath.Base(path)
	if base == convexgen.DefaultSchemaFile || strings.HasSuffix(base, ".d.ts") {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	for _, dir := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if dir == convexgen.DefaultGeneratedDir || dir == "node_modules" {
			return false
		}
	}

	return true
}

// Project is a loaded schema together with every function module.
type Project struct {
	// Root is the functions directory.
	Root     string
	Schema   *convexgen.Schema
	Modules  []*Module
	Registry *convexgen.Registry
	Warnings []MergeWarning
}

// LoadProject loads the schema at schemaPath and every module under root,
// then registers all functions against the schema. Every module is loaded
// even when some fail; the failures are joined.
func (l *Loader) LoadProject(ctx context.Context, root, schemaPath string) (*Project, error) {
	schema, err := l.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	paths, err := l.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("discovering modules: %w", err)
	}

	var (
		modules []*Module
		errs    []error
	)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mod, err := l.LoadModule(root, path)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		modules = append(modules, mod)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	registry, warnings, err := MergeModules(schema, modules)
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		l.logger.Warn(w.Message, zap.String("code", w.Code), zap.String("module", w.Module))
	}

	l.logger.Info("Loaded project",
		zap.String("root", root),
		zap.Int("modules", len(modules)),
		zap.Int("functions", len(registry.Functions())))

	return &Project{
		Root:     root,
		Schema:   schema,
		Modules:  modules,
		Registry: registry,
		Warnings: warnings,
	}, nil
}

// Clear clears the module cache.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*Module)
}

// Cached returns all cached modules.
func (l *Loader) Cached() map[string]*Module {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make(map[string]*Module, len(l.cache))
	maps.Copy(result, l.cache)

	return result
}
