package convexgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestCompileSchema_Testdata(t *testing.T) {
	t.Parallel()

	file, err := convexgen.ParseFile("schema.ts", readTestdata(t, "convex/schema.ts"))
	require.NoError(t, err)

	schema, err := convexgen.CompileSchema(file)
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "posts"}, schema.TableNames())
	assert.True(t, schema.SchemaValidation)

	users, _ := schema.Table("users")
	assert.Equal(t, "object{name: string, email: string, age?: number, profile?: object{bio: string, avatar?: bytes}}",
		convexgen.Object(users.Fields...).String())

	posts, _ := schema.Table("posts")
	require.Len(t, posts.Indexes, 2)
	assert.Equal(t, []string{"author", "published"}, posts.Indexes[1].Fields)

	author, _ := posts.Field("author")
	assert.Equal(t, convexgen.Reference("users"), author.Type)
}

func TestCompileSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		check   func(t *testing.T, s *convexgen.Schema)
		wantErr error
		wantAs  any
		errLine int
	}{
		{
			name: "float64 is number",
			src:  `export default defineSchema({ m: defineTable({ x: v.float64() }) });`,
			check: func(t *testing.T, s *convexgen.Schema) {
				m, _ := s.Table("m")
				assert.Equal(t, convexgen.KindNumber, m.Fields[0].Type.Kind)
			},
		},
		{
			name: "schema validation disabled",
			src:  `export default defineSchema({}, { schemaValidation: false });`,
			check: func(t *testing.T, s *convexgen.Schema) {
				assert.False(t, s.SchemaValidation)
				assert.Empty(t, s.Tables())
			},
		},
		{
			name: "mutual references",
			src: `export default defineSchema({
  a: defineTable({ b: v.optional(v.id("b")) }),
  b: defineTable({ a: v.array(v.id("a")) }),
});`,
			check: func(t *testing.T, s *convexgen.Schema) {
				assert.Len(t, s.Tables(), 2)
			},
		},
		{
			name:    "unknown validator",
			src:     `export default defineSchema({ m: defineTable({ x: v.int64() }) });`,
			wantErr: convexgen.ErrUnknownValidator,
		},
		{
			name:    "other namespace",
			src:     `export default defineSchema({ m: defineTable({ x: z.string() }) });`,
			wantErr: convexgen.ErrUnknownValidator,
		},
		{
			name:    "optional array element",
			src:     `export default defineSchema({ m: defineTable({ x: v.array(v.optional(v.string())) }) });`,
			wantErr: convexgen.ErrMisplacedOptional,
		},
		{
			name:    "nested optional",
			src:     `export default defineSchema({ m: defineTable({ x: v.optional(v.optional(v.string())) }) });`,
			wantErr: convexgen.ErrMisplacedOptional,
		},
		{
			name:    "reserved field",
			src:     `export default defineSchema({ m: defineTable({ _id: v.string() }) });`,
			wantErr: convexgen.ErrInvalidName,
		},
		{
			name:    "duplicate table",
			src:     "export default defineSchema({\n  m: defineTable({}),\n  m: defineTable({}),\n});",
			wantAs:  new(*convexgen.DuplicateTableError),
			errLine: 3,
		},
		{
			name:    "unknown index field",
			src:     "export default defineSchema({\n  m: defineTable({ a: v.string() })\n    .index(\"by_b\", [\"b\"]),\n});",
			wantAs:  new(*convexgen.UnknownIndexFieldError),
			errLine: 3,
		},
		{
			name:    "unresolved reference",
			src:     "export default defineSchema({\n  posts: defineTable({\n    author: v.id(\"users\"),\n  }),\n});",
			wantAs:  new(*convexgen.UnresolvedReferenceError),
			errLine: 3,
		},
		{
			name:    "no schema",
			src:     `import { v } from "convex/values";`,
			wantErr: convexgen.ErrNoSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file, err := convexgen.Parse([]byte(tt.src))
			require.NoError(t, err)

			schema, err := convexgen.CompileSchema(file)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAs != nil:
				require.ErrorAs(t, err, tt.wantAs)

				var decl *convexgen.DeclError
				require.ErrorAs(t, err, &decl)
				assert.Equal(t, tt.errLine, decl.Span.Start.Line)
			default:
				require.NoError(t, err)
				tt.check(t, schema)
			}
		})
	}
}

func TestCompileFunctions(t *testing.T) {
	t.Parallel()

	file, err := convexgen.ParseFile("users.ts", readTestdata(t, "convex/users.ts"))
	require.NoError(t, err)

	fns, err := convexgen.CompileFunctions("users", file)
	require.NoError(t, err)
	require.Len(t, fns, 2)

	get := fns[0]
	assert.Equal(t, "users:get", get.Path())
	assert.Equal(t, convexgen.KindQuery, get.Kind)
	assert.Equal(t, "object{id: id<users>}", convexgen.Object(get.Args...).String())
	assert.Equal(t, "object{name: string, email: string}", get.Returns.String())
	assert.Contains(t, get.Source, "ctx.db.get(args.id)")

	create := fns[1]
	assert.Equal(t, convexgen.KindMutation, create.Kind)
	require.Len(t, create.Args, 3)
	assert.True(t, create.Args[2].Optional)
	assert.Nil(t, create.Returns)
}

func TestCompileFunctions_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		wantErr error
		wantAs  any
	}{
		{
			name:   "duplicate argument",
			src:    `export const f = query({ args: { a: v.string(), a: v.number() }, handler: async () => null });`,
			wantAs: new(*convexgen.DuplicateFieldError),
		},
		{
			name:    "optional returns",
			src:     `export const f = query({ returns: v.optional(v.string()), handler: async () => null });`,
			wantErr: convexgen.ErrMisplacedOptional,
		},
		{
			name: "unknown kind",
			src:  `export const f = httpAction({ handler: async () => null });`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file, err := convexgen.Parse([]byte(tt.src))
			require.NoError(t, err)

			_, err = convexgen.CompileFunctions("m", file)
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			if tt.wantAs != nil {
				assert.ErrorAs(t, err, tt.wantAs)
			}
		})
	}
}

func TestCompileFunctions_NoArgsValidator(t *testing.T) {
	t.Parallel()

	file, err := convexgen.Parse([]byte(`export const a = query({ handler: async () => null });
export const b = query({ args: {}, handler: async () => null });`))
	require.NoError(t, err)

	fns, err := convexgen.CompileFunctions("m", file)
	require.NoError(t, err)
	require.Len(t, fns, 2)

	assert.Nil(t, fns[0].Args)
	assert.NotNil(t, fns[1].Args)
	assert.Empty(t, fns[1].Args)
}
