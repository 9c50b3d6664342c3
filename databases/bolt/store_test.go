package bolt_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rlch/convexgen"
	"github.com/rlch/convexgen/databases/bolt"
)

func testSchema(t *testing.T, validation bool) *convexgen.Schema {
	t.Helper()

	b := convexgen.NewSchemaBuilder()
	b.SetSchemaValidation(validation)

	users, err := b.DefineTable("users",
		convexgen.NewField("name", convexgen.String()),
		convexgen.OptionalField("age", convexgen.Number()),
		convexgen.OptionalField("avatar", convexgen.Bytes()),
		convexgen.OptionalField("profile", convexgen.Object(
			convexgen.NewField("city", convexgen.String()),
		)),
	)
	require.NoError(t, err)

	_, err = users.DefineIndex("by_name_age", "name", "age")
	require.NoError(t, err)

	_, err = users.DefineIndex("by_city", "profile.city")
	require.NoError(t, err)

	_, err = b.DefineTable("posts",
		convexgen.NewField("author", convexgen.Reference("users")),
		convexgen.NewField("tags", convexgen.Array(convexgen.String())),
	)
	require.NoError(t, err)

	return b.MustBuild()
}

func openStore(t *testing.T, schema *convexgen.Schema) *bolt.Store {
	t.Helper()

	clock := time.UnixMilli(1_700_000_000_000)

	store, err := bolt.Open(filepath.Join(t.TempDir(), "data", "dev.db"), schema,
		bolt.WithLogger(zaptest.NewLogger(t)),
		bolt.WithNoSync(),
		bolt.WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_InsertGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	id, err := store.Insert(ctx, "users", convexgen.Document{
		"name":    "Ada",
		"age":     36,
		"avatar":  []byte{1, 2, 3},
		"profile": map[string]any{"city": "London"},
	})
	require.NoError(t, err)
	assert.True(t, convexgen.IsValidID(string(id), "users"))

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)

	want := convexgen.Document{
		"_id":           string(id),
		"_creationTime": float64(1_700_000_000_001),
		"name":          "Ada",
		"age":           float64(36),
		"avatar":        []byte{1, 2, 3},
		"profile":       map[string]any{"city": "London"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	// The stored document passes validation, system fields included.
	require.NoError(t, store.Schema().Validate("users", doc))
}

func TestStore_InsertRejectsInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	_, err := store.Insert(ctx, "users", convexgen.Document{"name": 1})

	var verr *convexgen.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name"}, verr.Paths())

	_, err = store.Insert(ctx, "users", convexgen.Document{"name": "x", "_id": "y"})
	require.ErrorIs(t, err, bolt.ErrSystemField)

	_, err = store.Insert(ctx, "comments", convexgen.Document{})
	require.ErrorIs(t, err, convexgen.ErrUnknownTable)

	n, err := store.Count(ctx, "users")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_SchemaValidationDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, false))

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": 1, "extra": true})
	require.NoError(t, err)

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc["name"])
	assert.Equal(t, true, doc["extra"])
}

func TestStore_Patch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": "Ada", "age": 36})
	require.NoError(t, err)

	require.NoError(t, store.Patch(ctx, id, convexgen.Document{"name": "Ada L.", "age": bolt.Unset}))

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", doc["name"])
	assert.NotContains(t, doc, "age")
	assert.Equal(t, string(id), doc["_id"])

	// A failed validation leaves the stored document unchanged.
	err = store.Patch(ctx, id, convexgen.Document{"name": false})
	var verr *convexgen.ValidationError
	require.ErrorAs(t, err, &verr)

	after, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, doc, after)

	err = store.Patch(ctx, id, convexgen.Document{"_creationTime": 1})
	require.ErrorIs(t, err, bolt.ErrSystemField)
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": "Ada", "age": 36})
	require.NoError(t, err)

	before, err := store.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, store.Replace(ctx, id, convexgen.Document{"name": "Grace"}))

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, convexgen.Document{
		"_id":           before["_id"],
		"_creationTime": before["_creationTime"],
		"name":          "Grace",
	}, doc)

	err = store.Replace(ctx, id, convexgen.Document{})
	require.Error(t, err)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": "Ada"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, bolt.ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, id), bolt.ErrNotFound)

	// An ID for a table the schema does not declare is never found.
	_, err = store.Get(ctx, convexgen.NewID("comments"))
	require.ErrorIs(t, err, bolt.ErrNotFound)
}

func TestStore_ScanOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	for _, name := range []string{"c", "a", "b"} {
		_, err := store.Insert(ctx, "users", convexgen.Document{"name": name})
		require.NoError(t, err)
	}

	var names []any

	require.NoError(t, store.Scan(ctx, "users", func(doc convexgen.Document) bool {
		names = append(names, doc["name"])

		return len(names) < 2
	}))

	assert.Equal(t, []any{"c", "a"}, names)
}

func TestStore_Query(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	insert := func(doc convexgen.Document) convexgen.ID {
		id, err := store.Insert(ctx, "users", doc)
		require.NoError(t, err)

		return id
	}

	insert(convexgen.Document{"name": "b", "age": 2})
	insert(convexgen.Document{"name": "a", "age": 3})
	insert(convexgen.Document{"name": "a"})
	insert(convexgen.Document{"name": "a", "age": 1, "profile": map[string]any{"city": "Oslo"}})

	names := func(docs []convexgen.Document) []string {
		var out []string
		for _, d := range docs {
			age := "-"
			if a, ok := d["age"].(float64); ok {
				age = string(rune('0' + int(a)))
			}

			out = append(out, d["name"].(string)+age)
		}

		return out
	}

	all, err := store.Query(ctx, "users", "by_name_age")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-", "a1", "a3", "b2"}, names(all))

	prefix, err := store.Query(ctx, "users", "by_name_age", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-", "a1", "a3"}, names(prefix))

	exact, err := store.Query(ctx, "users", "by_name_age", "a", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, names(exact))

	nested, err := store.Query(ctx, "users", "by_city", "Oslo")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, names(nested))

	_, err = store.Query(ctx, "users", "by_nothing")
	require.ErrorIs(t, err, bolt.ErrUnknownIndex)

	_, err = store.Query(ctx, "users", "by_city", "a", "b")
	require.ErrorIs(t, err, bolt.ErrTooManyValues)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	schema := testSchema(t, true)
	path := filepath.Join(t.TempDir(), "dev.db")

	store, err := bolt.Open(path, schema, bolt.WithNoSync())
	require.NoError(t, err)

	id, err := store.Insert(ctx, "posts", convexgen.Document{
		"author": convexgen.NewID("users"),
		"tags":   []string{"go"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = bolt.Open(path, schema)
	require.NoError(t, err)

	defer store.Close()

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []any{"go"}, doc["tags"])
}

func TestStore_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := openStore(t, testSchema(t, true))

	_, err := store.Insert(ctx, "users", convexgen.Document{"name": "x"})
	require.ErrorIs(t, err, context.Canceled)

	err = store.Scan(ctx, "users", func(convexgen.Document) bool { return true })
	assert.NoError(t, err, "an empty scan never checks the context")
}

func TestStore_EmptyBytesRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, testSchema(t, true))

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": "Ada", "avatar": []byte(nil)})
	require.NoError(t, err)

	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, doc["avatar"])
	require.NoError(t, store.Schema().Validate("users", doc))

	// Later writes validate the whole stored document, the blob included.
	require.NoError(t, store.Patch(ctx, id, convexgen.Document{"name": "Ada L."}))
	require.NoError(t, store.Patch(ctx, id, convexgen.Document{"avatar": []byte(nil)}))
}

func TestStore_Closed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	schema := testSchema(t, true)

	store, err := bolt.Open(filepath.Join(t.TempDir(), "dev.db"), schema, bolt.WithNoSync())
	require.NoError(t, err)

	id, err := store.Insert(ctx, "users", convexgen.Document{"name": "Ada"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Insert(ctx, "users", convexgen.Document{"name": "Bob"})
	require.ErrorIs(t, err, bolt.ErrClosed)

	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, bolt.ErrClosed)

	require.ErrorIs(t, store.Patch(ctx, id, convexgen.Document{"name": "x"}), bolt.ErrClosed)

	_, err = store.Count(ctx, "users")
	require.ErrorIs(t, err, bolt.ErrClosed)
}
