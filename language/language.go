// Package language provides interfaces for code generation from a compiled
// schema and function registry.
//
// Each target language implements the Language interface to generate source
// files for the tables and functions of a project.
package language

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/rlch/convexgen"
)

// Language represents a target language for code generation.
type Language interface {
	// Name returns the language identifier (e.g., "go").
	Name() string

	// InferPackageName determines the appropriate package/module name for a directory.
	// Each language implements this with its own conventions (e.g., Go uses go/build).
	InferPackageName(dir string) (string, error)

	// Generate produces source files from the given context.
	// Returns a map of filename to content.
	Generate(ctx *GenerateContext) (map[string][]byte, error)
}

// GenerateContext provides information needed for code generation.
type GenerateContext struct {
	// Schema is the compiled project schema. Required.
	Schema *convexgen.Schema

	// Functions are the registered entry points, sorted by path. May be empty.
	Functions []*convexgen.Function

	// OutputDir is the directory where files will be written.
	OutputDir string

	// PackageName is the package/module name for generated code.
	// If empty, the language should infer it from OutputDir.
	PackageName string

	// Logger receives generator warnings. May be nil.
	Logger *zap.Logger
}

// Log returns the context logger, or a no-op logger.
func (c *GenerateContext) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}

	return c.Logger
}

var (
	mu        sync.RWMutex
	languages = make(map[string]Language)
)

// Register registers a language by name.
func Register(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	languages[lang.Name()] = lang
}

// Get returns a language by name, or nil if not registered.
func Get(name string) Language { //nolint:ireturn
	mu.RLock()
	defer mu.RUnlock()

	return languages[name]
}

// RegisteredLanguages returns the sorted names of all registered languages.
func RegisteredLanguages() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
