// Package golang provides Go code generation for a compiled schema and its
// functions.
//
// The generator writes two files:
//   - schema.go: an ID type and a document struct per table, plus table and
//     index name constants
//   - functions.go: a string type per module whose constants are function
//     paths, and an args struct per function that declares args
//
// # Usage
//
// The generator is typically invoked via the convexgen CLI:
//
//	convexgen generate --lang go --out ./internal/convexapi
//
// # Output shape
//
// Given a users table and a users:get query:
//
//	type UsersID string
//
//	type Users struct {
//		ID           UsersID `json:"_id"`
//		CreationTime float64 `json:"_creationTime"`
//		Name         string  `json:"name"`
//		Age          *float64 `json:"age,omitempty"`
//	}
//
//	type UsersFunction string
//
//	const UsersGet UsersFunction = "users:get"
//
//	type UsersGetArgs struct {
//		ID UsersID `json:"id"`
//	}
package golang

import (
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/language"
)

// ErrNoSchema is returned when generation is attempted without a schema.
var ErrNoSchema = errors.New("no schema: Go code generation needs a compiled schema")

// Generated file names.
const (
	SchemaFile    = "schema.go"
	FunctionsFile = "functions.go"
)

// GoLanguage implements language.Language for Go code generation.
type GoLanguage struct{}

// Name returns "go".
func (g *GoLanguage) Name() string {
	return convexgen.LangGo
}

// InferPackageName determines the Go package name for a directory.
func (g *GoLanguage) InferPackageName(dir string) (string, error) {
	return InferPackageName(dir)
}

// Generate produces schema.go and, when there are functions, functions.go.
func (g *GoLanguage) Generate(ctx *language.GenerateContext) (map[string][]byte, error) {
	if ctx.Schema == nil {
		return nil, ErrNoSchema
	}

	packageName := ctx.PackageName
	if packageName == "" {
		var err error

		packageName, err = g.InferPackageName(ctx.OutputDir)
		if err != nil {
			packageName = SanitizePackageName(filepath.Base(ctx.OutputDir))
		}

		// Warn if folder name was a Go keyword
		if base := filepath.Base(ctx.OutputDir); IsKeyword(base) {
			ctx.Log().Warn("Output folder is a Go keyword",
				zap.String("folder", base),
				zap.String("package", packageName))
		}
	}

	gen := newGenerator(packageName, ctx.Schema, ctx.Functions)

	return gen.Generate()
}

// New creates a new Go language generator.
func New() *GoLanguage {
	return &GoLanguage{}
}

//nolint:gochecknoinits // Registration pattern requires init.
func init() {
	language.Register(New())
}
