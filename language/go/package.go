package golang

import (
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// packageStrategy returns a package name for dir, or "" to defer to the next one.
type packageStrategy func(dir string) string

// packageLadder is tried in order by InferPackageName:
//  1. go/build.ImportDir, which respects build tags
//  2. the package clause of any non-test .go file, for files hidden by tags
var packageLadder = []packageStrategy{
	importDirPackage,
	parseAnyPackageClause,
}

// InferPackageName determines the Go package name for a generated directory.
// When no strategy finds a package the sanitized folder name is used, so the
// error is reserved for directories that exist but cannot be read.
func InferPackageName(dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	for _, strategy := range packageLadder {
		if name := strategy(dir); name != "" {
			return name, nil
		}
	}

	return SanitizePackageName(filepath.Base(dir)), nil
}

// SanitizePackageName converts a string to a valid Go package name.
//
//	"convex-api" -> "convexapi"
//	"Convex.API" -> "convexapi"
//	"2024"       -> "pkg2024"
//	"func"       -> "funcpkg"
func SanitizePackageName(name string) string {
	var b strings.Builder

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	result := b.String()

	if result == "" || unicode.IsDigit(rune(result[0])) {
		result = "pkg" + result
	}

	if IsKeyword(result) {
		result += "pkg"
	}

	return result
}

// IsKeyword returns true if name is a Go keyword.
func IsKeyword(name string) bool {
	return token.Lookup(name).IsKeyword()
}

func importDirPackage(dir string) string {
	pkg, err := build.ImportDir(dir, 0)
	if err != nil {
		return ""
	}

	return pkg.Name
}

// parseAnyPackageClause reads only the package clause of each non-test .go
// file in dir and returns the first name found.
func parseAnyPackageClause(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	fset := token.NewFileSet()

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}

		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err != nil || f.Name == nil {
			continue
		}

		if f.Name.Name != "" {
			return f.Name.Name
		}
	}

	return ""
}
