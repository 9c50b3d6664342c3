package analysis_test

import (
	"strings"
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen/analysis"
)

// positionOf returns the 1-based position of the first occurrence of needle
// after the first occurrence of anchor.
func positionOf(t *testing.T, src, anchor, needle string) lexer.Position {
	t.Helper()

	start := strings.Index(src, anchor)
	require.GreaterOrEqual(t, start, 0, "anchor %q", anchor)

	offset := strings.Index(src[start:], needle)
	require.GreaterOrEqual(t, offset, 0, "needle %q", needle)

	offset += start
	line := strings.Count(src[:offset], "\n") + 1
	col := offset - strings.LastIndex(src[:offset], "\n")

	return lexer.Position{Line: line, Column: col}
}

const locateSchema = schemaHeader + `
export default defineSchema({
  users: defineTable({
    name: v.string(),
    profile: v.optional(v.object({ bio: v.string() })),
    links: v.array(v.object({ url: v.string() })),
  }).index("by_name", ["name"]),
});
`

func TestLocate_Schema(t *testing.T) {
	t.Parallel()

	result := analyze(t, locateSchema)
	require.NoError(t, result.ParseError)

	tests := []struct {
		name      string
		anchor    string
		needle    string
		path      string
		validator string
		index     bool
	}{
		{"field", "name:", "string", "users.name", "string", false},
		{"nested", "bio", "string", "users.profile.bio", "string", false},
		{"optional", "profile", "optional", "users.profile", "optional", false},
		{"array element", "url", "string", "users.links[].url", "string", false},
		{"index", ".index", "by_name", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc := analysis.Locate(result, positionOf(t, locateSchema, tt.anchor, tt.needle))
			require.NotNil(t, loc)
			require.NotNil(t, loc.Table)
			assert.Equal(t, "users", loc.Table.Name)
			assert.Equal(t, tt.path, loc.Path)
			assert.Equal(t, tt.index, loc.Index != nil)

			if tt.validator == "" {
				assert.Nil(t, loc.Validator)
			} else {
				require.NotNil(t, loc.Validator)
				assert.Equal(t, tt.validator, loc.Validator.Kind)
			}
		})
	}
}

func TestLocate_Function(t *testing.T) {
	t.Parallel()

	src := moduleHeader + `
export const get = query({
  args: { id: v.id("users") },
  returns: v.string(),
  handler: async (ctx, args) => "",
});
`

	result := analyze(t, src)
	require.NoError(t, result.ParseError)

	loc := analysis.Locate(result, positionOf(t, src, "args:", "id("))
	require.NotNil(t, loc)
	require.NotNil(t, loc.Function)
	assert.Equal(t, "get", loc.Function.Name)
	assert.Equal(t, "get.id", loc.Path)
	assert.Equal(t, "id", loc.Validator.Kind)

	loc = analysis.Locate(result, positionOf(t, src, "returns", "string"))
	require.NotNil(t, loc)
	assert.Equal(t, "get.returns", loc.Path)
	assert.Equal(t, "string", loc.Validator.Kind)
}

func TestLocate_Outside(t *testing.T) {
	t.Parallel()

	result := analyze(t, locateSchema)

	assert.Nil(t, analysis.Locate(result, lexer.Position{Line: 1, Column: 1}))
	assert.Nil(t, analysis.Locate(nil, lexer.Position{Line: 1, Column: 1}))
}

func TestPositionToLexer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, lexer.Position{Line: 3, Column: 5}, analysis.PositionToLexer(2, 4))
}
