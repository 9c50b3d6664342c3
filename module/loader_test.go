package module_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/module"
)

const testdataRoot = "../testdata/convex"

func TestLoader_LoadProject(t *testing.T) {
	t.Parallel()

	loader := module.NewLoader(zaptest.NewLogger(t))

	project, err := loader.LoadProject(context.Background(), testdataRoot, filepath.Join(testdataRoot, "schema.ts"))
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "posts"}, project.Schema.TableNames())
	require.Len(t, project.Modules, 2)
	assert.Equal(t, "admin/posts", project.Modules[0].Name)
	assert.Equal(t, "users", project.Modules[1].Name)
	assert.Empty(t, project.Warnings)

	var paths []string
	for _, fn := range project.Registry.Functions() {
		paths = append(paths, fn.Path())
	}

	assert.Equal(t, []string{"admin/posts:purge", "users:create", "users:get"}, paths)
	assert.Equal(t, []string{"admin/posts", "users"}, project.Registry.Modules())

	purge, ok := project.Registry.Lookup("admin/posts:purge")
	require.True(t, ok)
	assert.Equal(t, convexgen.KindInternalMutation, purge.Kind)
}

func TestLoader_Discover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"schema.ts":                 "",
		"users.ts":                  "",
		"admin/posts.js":            "",
		"types.d.ts":                "",
		"_generated/api.ts":         "",
		"node_modules/lib/index.js": "",
		"notes.md":                  "",
	})

	paths, err := module.NewLoader(nil).Discover(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "admin", "posts.js"),
		filepath.Join(root, "users.ts"),
	}, paths)
}

func TestLoader_LoadModule_Cached(t *testing.T) {
	t.Parallel()

	loader := module.NewLoader(zaptest.NewLogger(t))
	calls := 0
	loader.Parser = func(filename string, data []byte) (*convexgen.File, error) {
		calls++
		return convexgen.ParseFile(filename, data)
	}

	path := filepath.Join(testdataRoot, "users.ts")

	first, err := loader.LoadModule(testdataRoot, path)
	require.NoError(t, err)

	second, err := loader.LoadModule(testdataRoot, path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Len(t, loader.Cached(), 1)

	loader.Clear()
	assert.Empty(t, loader.Cached())
}

func TestLoader_LoadModule_Errors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"broken.ts": "export const get = query({",
	})

	loader := module.NewLoader(nil)

	_, err := loader.LoadModule(root, filepath.Join(root, "missing.ts"))
	require.ErrorIs(t, err, module.ErrModuleNotFound)

	_, err = loader.LoadModule(root, filepath.Join(root, "broken.ts"))
	require.ErrorIs(t, err, module.ErrParseError)

	var loadErr *module.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(root, "broken.ts"), loadErr.Path)
}

func TestLoader_LoadSchema_Missing(t *testing.T) {
	t.Parallel()

	_, err := module.NewLoader(nil).LoadSchema(filepath.Join(t.TempDir(), "schema.ts"))
	require.ErrorIs(t, err, convexgen.ErrNoSchema)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_LoadProject_Conflicts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"schema.ts": `import { defineSchema, defineTable } from "convex/server";
import { v } from "convex/values";

export default defineSchema({
  users: defineTable({ name: v.string() }),
});
`,
		"users.ts": `import { query } from "./_generated/server";
import { v } from "convex/values";

export const get = query({ args: { id: v.id("teams") }, handler: async () => null });
`,
		"empty.ts": `import { v } from "convex/values";
`,
	})

	loader := module.NewLoader(zaptest.NewLogger(t))

	_, err := loader.LoadProject(context.Background(), root, filepath.Join(root, "schema.ts"))
	require.Error(t, err)

	var mergeErr *module.MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, "invalid-function", mergeErr.Code)

	var unresolved *convexgen.UnresolvedReferenceError
	assert.ErrorAs(t, err, &unresolved)
}

func TestLoader_LoadProject_PlainModules(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"schema.ts": `import { defineSchema, defineTable } from "convex/server";
import { v } from "convex/values";

export default defineSchema({
  users: defineTable({ name: v.string() }),
});
`,
		"users.ts": `import { query } from "./_generated/server";
import { v } from "convex/values";

export const get = query({ args: { id: v.id("users") }, handler: async () => null });
`,
		"http.ts": `import { httpRouter } from "convex/server";

const http = httpRouter();
export default http;
`,
		"lib/limits.ts": `export const LIMIT = 5;

export function clamp(n) {
  return Math.min(n, LIMIT);
}
`,
	})

	project, err := module.NewLoader(zaptest.NewLogger(t)).LoadProject(context.Background(), root, filepath.Join(root, "schema.ts"))
	require.NoError(t, err)

	var paths []string
	for _, fn := range project.Registry.Functions() {
		paths = append(paths, fn.Path())
	}

	assert.Equal(t, []string{"users:get"}, paths)
}

func TestLoader_LoadProject_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := module.NewLoader(nil).LoadProject(ctx, testdataRoot, filepath.Join(testdataRoot, "schema.ts"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "users.ts"), "users"},
		{filepath.Join(root, "admin", "posts.js"), "admin/posts"},
		{filepath.Join(root, "a", "b", "c.ts"), "a/b/c"},
	}

	for _, tt := range tests {
		got, err := module.ModuleName(root, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := module.ModuleName(root, filepath.Join(filepath.Dir(root), "x.ts"))
	assert.ErrorIs(t, err, module.ErrModuleNotFound)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
