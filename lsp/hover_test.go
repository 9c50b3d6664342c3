package lsp_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func hoverAt(t *testing.T, name, needle string, delta int) string {
	t.Helper()

	server, _ := newTestServer(t)
	initProject(t, server, filepath.Join("..", "testdata", "convex"))

	u, content := readTestdata(t, name)
	open(t, server, u, content)

	hover, err := server.Hover(context.Background(), &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: u},
			Position:     positionOf(t, content, needle, delta),
		},
	})
	require.NoError(t, err)

	if hover == nil {
		return ""
	}

	assert.NotNil(t, hover.Range)

	return hover.Contents.Value
}

func TestHover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		file   string
		needle string
		delta  int
		want   []string
	}{
		{
			name:   "table",
			file:   "schema.ts",
			needle: "users: defineTable",
			want:   []string{"**Table** `users`", "_id: id<users>", "_creationTime: number", "age?: number", "`by_email` (email)"},
		},
		{
			name:   "field",
			file:   "schema.ts",
			needle: "email: v.string()",
			want:   []string{"**Field** `users.email`", "email: string"},
		},
		{
			name:   "nested field",
			file:   "schema.ts",
			needle: "bio: v.string()",
			want:   []string{"**Field** `users.profile.bio`"},
		},
		{
			name:   "reference",
			file:   "schema.ts",
			needle: `author: v.id("users")`,
			want:   []string{"author: id<users>", "References table `users`", "name: string"},
		},
		{
			name:   "index",
			file:   "schema.ts",
			needle: `.index("by_author_published"`,
			delta:  1,
			want:   []string{"**Index** `by_author_published` on `posts`", "`author`, `published`"},
		},
		{
			name:   "function",
			file:   "users.ts",
			needle: "query({",
			want:   []string{"**query** `users:get`", "id: id<users>", "Returns `object{name: string, email: string}`"},
		},
		{
			name:   "argument",
			file:   "users.ts",
			needle: "age: v.optional",
			want:   []string{"**Argument** `create.age`", "age?: number"},
		},
		{
			name:   "internal function in subdirectory",
			file:   filepath.Join("admin", "posts.ts"),
			needle: "internalMutation({",
			want:   []string{"**internalMutation** `admin/posts:purge` (internal)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := hoverAt(t, tt.file, tt.needle, tt.delta)
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestHover_Outside(t *testing.T) {
	t.Parallel()

	assert.Empty(t, hoverAt(t, "schema.ts", "import {", 0))
}
