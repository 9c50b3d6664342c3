package convexgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	expected := `import { defineSchema, defineTable } from "convex/server";
import { v } from "convex/values";

export default defineSchema({
  users: defineTable({
    name: v.string(),
    email: v.string(),
    age: v.optional(v.number()),
  }).index("by_email", ["email"]),
  posts: defineTable({
    title: v.string(),
    author: v.id("users"),
    tags: v.array(v.string()),
  }).index("by_author", ["author"]),
});
`

	assert.Equal(t, expected, convexgen.Format(usersPosts(t)))
}

func TestFormat_Options(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	b.SetSchemaValidation(false)

	_, err := b.DefineTable("empty")
	require.NoError(t, err)

	got := convexgen.Format(b.MustBuild())
	assert.Contains(t, got, "  empty: defineTable({}),\n")
	assert.True(t, strings.HasSuffix(got, "}, { schemaValidation: false });\n"), got)
}

func TestFormat_SplitsWideObjects(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	_, err := b.DefineTable("t", convexgen.NewField("o", convexgen.Object(
		convexgen.NewField("first", convexgen.String()),
		convexgen.NewField("second", convexgen.String()),
	)))
	require.NoError(t, err)

	got := convexgen.FormatWithWidth(b.MustBuild(), 30)
	assert.Contains(t, got, `    o: v.object({
      first: v.string(),
      second: v.string(),
    }),
`)

	got = convexgen.Format(b.MustBuild())
	assert.Contains(t, got, `    o: v.object({ first: v.string(), second: v.string() }),`)
}

func TestFormat_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		src  string
	}{
		{name: "testdata schema", file: "convex/schema.ts"},
		{name: "disabled validation", src: `export default defineSchema({ t: defineTable({ "odd-name": v.null() }) }, { schemaValidation: false });`},
		{name: "nested", src: `export default defineSchema({
  a: defineTable({ deep: v.object({ list: v.array(v.object({ ref: v.id("a"), n: v.optional(v.float64()) })) }) })
    .index("by_ref", ["deep.list"]),
});`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := tt.src
			if tt.file != "" {
				src = string(readTestdata(t, tt.file))
			}

			original := mustCompile(t, src)
			formatted := convexgen.Format(original)
			again := mustCompile(t, formatted)

			assert.True(t, original.Equal(again), "formatted source:\n%s", formatted)
			assert.Equal(t, formatted, convexgen.Format(again))
		})
	}
}
