package convexgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestCollectComments(t *testing.T) {
	t.Parallel()

	src := "// header\n\n/* block */\nexport default defineSchema({\n  t: defineTable({\n    // \"email\": v.string(),\n  }),\n});\n"

	comments, err := convexgen.CollectComments("schema.ts", []byte(src))
	require.NoError(t, err)
	require.Len(t, comments, 3)

	assert.Equal(t, "// header", comments[0].Text)
	assert.False(t, comments[0].HasNewlineBefore)

	assert.Equal(t, "/* block */", comments[1].Text)
	assert.True(t, comments[1].HasNewlineBefore)

	assert.Equal(t, 6, comments[2].Span.Start.Line)
	assert.Equal(t, comments[2].Span.Start.Offset+len(comments[2].Text), comments[2].Span.End.Offset)
	assert.True(t, comments[2].Span.Contains(comments[2].Span.Start))
}

func TestDisabledFields(t *testing.T) {
	t.Parallel()

	comments, err := convexgen.CollectComments("schema.ts", readTestdata(t, "convex/schema.ts"))
	require.NoError(t, err)

	disabled := convexgen.DisabledFields(comments)
	require.Len(t, disabled, 1)
	assert.Equal(t, "nickname", disabled[0].Name)
	assert.Equal(t, "v.string()", disabled[0].Validator)
	assert.Equal(t, 9, disabled[0].Span.Start.Line)

	none := convexgen.DisabledFields([]convexgen.Trivia{
		{Text: "// TODO: add more fields"},
		{Text: "/* name: v.string() */"},
	})
	assert.Empty(t, none)
}

func TestCollectComments_LexError(t *testing.T) {
	t.Parallel()

	_, err := convexgen.CollectComments("x.ts", []byte("/* open"))
	assert.ErrorIs(t, err, convexgen.ErrUnterminatedComment)
}
