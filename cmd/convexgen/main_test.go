package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rlch/convexgen"
)

func testEnv(t *testing.T, base string) *env {
	t.Helper()

	cfg, err := convexgen.LoadConfigFile(filepath.Join(base, ".convexgen.yaml"))
	require.NoError(t, err)

	return &env{cfg: cfg, base: base, logger: zaptest.NewLogger(t)}
}

func TestLoadConfig_Explicit(t *testing.T) {
	t.Parallel()

	cfg, base, err := loadConfig("../../testdata/convex/.convexgen.yaml")
	require.NoError(t, err)

	abs, err := filepath.Abs("../../testdata/convex")
	require.NoError(t, err)

	assert.Equal(t, abs, base)
	assert.Equal(t, convexgen.LangGo, cfg.Generate.Lang)
	assert.Equal(t, filepath.Join(abs, "schema.ts"), cfg.SchemaPath(base))
	assert.Equal(t, filepath.Join(abs, "fixtures"), cfg.FixturesPath(base))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, cfg := range []convexgen.LogConfig{
		{},
		{Level: "debug", Format: convexgen.LogFormatConsole},
		{Level: "error", Format: convexgen.LogFormatJSON},
	} {
		logger, err := newLogger(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}

	_, err := newLogger(convexgen.LogConfig{Format: "xml"})
	require.ErrorIs(t, err, ErrUnknownLogFormat)

	_, err = newLogger(convexgen.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestAnalyzeProject(t *testing.T) {
	t.Parallel()

	e := testEnv(t, "../../testdata/convex")

	var buf bytes.Buffer

	hasErrors, err := analyzeProject(context.Background(), e, &buf, false)
	require.NoError(t, err)
	assert.False(t, hasErrors, buf.String())
	assert.Empty(t, buf.String())
}

func TestAnalyzeProject_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	files := map[string]string{
		".convexgen.yaml": "functions: .\n",
		"schema.ts": `import { defineSchema, defineTable } from "convex/server";
import { v } from "convex/values";

export default defineSchema({
  users: defineTable({ name: v.string() }),
});
`,
		"posts.ts": `import { query } from "./_generated/server";
import { v } from "convex/values";

export const get = query({
  args: { id: v.id("posts") },
  handler: async (ctx, args) => null,
});
`,
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	var buf bytes.Buffer

	hasErrors, err := analyzeProject(context.Background(), testEnv(t, dir), &buf, false)
	require.NoError(t, err)
	assert.True(t, hasErrors)
	assert.Contains(t, buf.String(), "posts.ts:5:")
	assert.Contains(t, buf.String(), "[unresolved-reference]")
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}
