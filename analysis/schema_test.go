package analysis

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestLoadSchema(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	schemaPath := filepath.Join(tmpDir, "schema.yaml")

	schemaYAML := `
tables:
  users:
    fields:
      name: string
      email: string
      age: number?
    indexes:
      by_email: [email]
  posts:
    fields:
      author: id<users>
      tags: array<string>
      meta:
        type: object
        optional: true
        fields:
          views: number
`

	err := os.WriteFile(schemaPath, []byte(schemaYAML), 0o644)
	require.NoError(t, err)

	schema, err := LoadSchema("schema.yaml", tmpDir)
	require.NoError(t, err)
	require.NotNil(t, schema)

	assert.Equal(t, []string{"users", "posts"}, schema.TableNames())
	assert.True(t, schema.SchemaValidation)

	users, ok := schema.Table("users")
	require.True(t, ok, "users table should exist")
	assert.Len(t, users.Fields, 3)

	age, ok := users.Field("age")
	require.True(t, ok)
	assert.True(t, age.Optional)
	assert.Equal(t, convexgen.KindNumber, age.Type.Kind)

	idx, ok := users.Index("by_email")
	require.True(t, ok)
	assert.Equal(t, []string{"email"}, idx.Fields)

	posts, ok := schema.Table("posts")
	require.True(t, ok)

	author, _ := posts.Field("author")
	assert.Equal(t, "users", author.Type.Table)

	tags, _ := posts.Field("tags")
	assert.Equal(t, "array<string>", tags.Type.String())

	meta, ok := posts.Field("meta")
	require.True(t, ok)
	assert.True(t, meta.Optional)
	assert.Equal(t, "object{views: number}", meta.Type.String())
}

func TestLoadSchema_EmptyPath(t *testing.T) {
	t.Parallel()

	schema, err := LoadSchema("", "")
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestLoadSchema_NotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadSchema("/nonexistent/schema.yaml", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSchema_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "unknown top-level key",
			input:   "models: {}\n",
			wantErr: ErrInvalidSchemaYAML,
		},
		{
			name:    "bad type",
			input:   "tables:\n  users:\n    fields:\n      name: text\n",
			wantErr: ErrInvalidSchemaYAML,
		},
		{
			name:    "unresolved reference",
			input:   "tables:\n  posts:\n    fields:\n      author: id<users>\n",
			wantErr: nil,
		},
		{
			name:    "optional array element",
			input:   "tables:\n  t:\n    fields:\n      tags:\n        type: array\n        elem: string?\n",
			wantErr: convexgen.ErrMisplacedOptional,
		},
		{
			name:    "duplicate index",
			input:   "tables:\n  t:\n    fields:\n      a: string\n    indexes:\n      by_a: [a]\n      by_a: [a]\n",
			wantErr: nil,
		},
		{
			name:    "index on unknown field",
			input:   "tables:\n  t:\n    fields:\n      a: string\n    indexes:\n      by_b: [b]\n",
			wantErr: nil,
		},
		{
			name:    "schemaValidation not a bool",
			input:   "schemaValidation: maybe\n",
			wantErr: ErrInvalidSchemaYAML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadSchema([]byte(tt.input))
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestReadSchema_Empty(t *testing.T) {
	t.Parallel()

	schema, err := ReadSchema(nil)
	require.NoError(t, err)
	assert.Empty(t, schema.Tables())
}

func TestReadSchema_EmptyTable(t *testing.T) {
	t.Parallel()

	schema, err := ReadSchema([]byte("schemaValidation: false\ntables:\n  events:\n"))
	require.NoError(t, err)

	assert.False(t, schema.SchemaValidation)

	events, ok := schema.Table("events")
	require.True(t, ok)
	assert.Empty(t, events.Fields)
}

func TestWriteSchema(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	b.SetSchemaValidation(false)

	users, err := b.DefineTable("users",
		convexgen.NewField("name", convexgen.String()),
		convexgen.OptionalField("age", convexgen.Number()),
	)
	require.NoError(t, err)

	_, err = users.DefineIndex("by_name", "name")
	require.NoError(t, err)

	_, err = b.DefineTable("posts",
		convexgen.NewField("author", convexgen.Reference("users")),
		convexgen.NewField("comments", convexgen.Array(convexgen.Object(
			convexgen.NewField("body", convexgen.String()),
		))),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, b.MustBuild()))

	want := `# Generated by convexgen from schema.ts.

schemaValidation: false
tables:
  users:
    fields:
      name: string
      age: number?
    indexes:
      by_name: [name]
  posts:
    fields:
      author: id<users>
      comments:
        type: array
        elem:
          type: object
          fields:
            body: string
`
	assert.Equal(t, want, buf.String())
}

func TestWriteSchema_RoundTrip(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("..", "testdata", "convex", "schema.ts"))
	require.NoError(t, err)

	file, err := convexgen.ParseFile("schema.ts", data)
	require.NoError(t, err)

	schema, err := convexgen.CompileSchema(file)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, schema))

	got, err := ReadSchema(buf.Bytes())
	require.NoError(t, err)

	assert.True(t, schema.Equal(got), "round trip changed the schema:\n%s", buf.String())
}
