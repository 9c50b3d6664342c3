package convexgen_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

// cmpIgnoreAST is a cmp option that ignores AST metadata fields in comparisons.
// This allows tests to compare AST structure without specifying exact source positions
// or tokens.
var cmpIgnoreAST = cmp.Options{
	cmpopts.IgnoreTypes(lexer.Position{}, lexer.Token{}, []lexer.Token{}),
	cmpopts.IgnoreFields(convexgen.Handler{}, "Items"),
}

// ptr returns a pointer to the given value.
func ptr[T any](v T) *T {
	return &v
}

// readTestdata reads a file under testdata/.
func readTestdata(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	return data
}

// mustCompile parses and compiles a schema.ts source.
func mustCompile(t *testing.T, src string) *convexgen.Schema {
	t.Helper()

	file, err := convexgen.ParseFile("schema.ts", []byte(src))
	require.NoError(t, err)

	schema, err := convexgen.CompileSchema(file)
	require.NoError(t, err)

	return schema
}

// usersPosts builds the users/posts schema used across tests.
func usersPosts(t *testing.T) *convexgen.Schema {
	t.Helper()

	b := convexgen.NewSchemaBuilder()

	users, err := b.DefineTable("users",
		convexgen.NewField("name", convexgen.String()),
		convexgen.NewField("email", convexgen.String()),
		convexgen.OptionalField("age", convexgen.Number()),
	)
	require.NoError(t, err)

	_, err = users.DefineIndex("by_email", "email")
	require.NoError(t, err)

	posts, err := b.DefineTable("posts",
		convexgen.NewField("title", convexgen.String()),
		convexgen.NewField("author", convexgen.Reference("users")),
		convexgen.NewField("tags", convexgen.Array(convexgen.String())),
	)
	require.NoError(t, err)

	_, err = posts.DefineIndex("by_author", "author")
	require.NoError(t, err)

	schema, err := b.Build()
	require.NoError(t, err)

	return schema
}
