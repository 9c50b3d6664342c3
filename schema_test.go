package convexgen_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestSchemaBuilder(t *testing.T) {
	t.Parallel()

	schema := usersPosts(t)

	assert.Equal(t, []string{"users", "posts"}, schema.TableNames())
	assert.True(t, schema.SchemaValidation)

	posts, ok := schema.Table("posts")
	require.True(t, ok)

	author, ok := posts.Field("author")
	require.True(t, ok)
	assert.Equal(t, "id<users>", author.Type.String())
	assert.False(t, author.Optional)

	users, _ := schema.Table("users")
	age, ok := users.Field("age")
	require.True(t, ok)
	assert.True(t, age.Optional)

	idx, ok := users.Index("by_email")
	require.True(t, ok)
	assert.Equal(t, []string{"email"}, idx.Fields)

	_, ok = schema.Table("comments")
	assert.False(t, ok)
}

func TestSchemaBuilder_ForwardReference(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()

	_, err := b.DefineTable("posts", convexgen.NewField("author", convexgen.Reference("users")))
	require.NoError(t, err)

	_, err = b.DefineTable("users", convexgen.NewField("name", convexgen.String()))
	require.NoError(t, err)

	_, err = b.Build()
	assert.NoError(t, err)
}

func TestSchemaBuilder_Errors(t *testing.T) {
	t.Parallel()

	t.Run("duplicate table", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, err := b.DefineTable("users")
		require.NoError(t, err)

		_, err = b.DefineTable("users")

		var dup *convexgen.DuplicateTableError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "users", dup.Table)

		_, err = b.Build()
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("duplicate nested field", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, err := b.DefineTable("users",
			convexgen.NewField("profile", convexgen.Object(
				convexgen.NewField("bio", convexgen.String()),
				convexgen.NewField("bio", convexgen.Number()),
			)),
		)

		var dup *convexgen.DuplicateFieldError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "users.profile.bio", dup.Path)
	})

	t.Run("reserved field name", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, err := b.DefineTable("users", convexgen.NewField("_id", convexgen.String()))
		assert.ErrorIs(t, err, convexgen.ErrInvalidName)
	})

	t.Run("reserved table name", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, err := b.DefineTable("_storage")
		assert.ErrorIs(t, err, convexgen.ErrInvalidName)

		_, err = b.DefineTable("")
		assert.ErrorIs(t, err, convexgen.ErrInvalidName)
	})

	t.Run("unknown index field", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		users, err := b.DefineTable("users", convexgen.NewField("name", convexgen.String()))
		require.NoError(t, err)

		_, err = users.DefineIndex("by_email", "email")

		var unknown *convexgen.UnknownIndexFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "users", unknown.Table)
		assert.Equal(t, "by_email", unknown.Index)
		assert.Equal(t, "email", unknown.Field)

		_, err = b.Build()
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("duplicate index", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		users, err := b.DefineTable("users", convexgen.NewField("name", convexgen.String()))
		require.NoError(t, err)

		_, err = users.DefineIndex("by_name", "name")
		require.NoError(t, err)

		_, err = users.DefineIndex("by_name", "name")

		var dup *convexgen.DuplicateIndexError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("reserved index name", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		users, err := b.DefineTable("users", convexgen.NewField("name", convexgen.String()))
		require.NoError(t, err)

		_, err = users.DefineIndex("by_creation_time", "name")
		assert.ErrorIs(t, err, convexgen.ErrInvalidName)
	})

	t.Run("unresolved reference", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, err := b.DefineTable("posts",
			convexgen.NewField("meta", convexgen.Object(
				convexgen.NewField("editors", convexgen.Array(convexgen.Reference("editors"))),
			)),
		)
		require.NoError(t, err)

		_, err = b.Build()

		var unresolved *convexgen.UnresolvedReferenceError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "posts.meta.editors[]", unresolved.Path)
		assert.Equal(t, "editors", unresolved.Table)
	})

	t.Run("all errors are reported", func(t *testing.T) {
		t.Parallel()

		b := convexgen.NewSchemaBuilder()
		_, _ = b.DefineTable("users")
		_, _ = b.DefineTable("users")
		_, _ = b.DefineTable("_bad")

		_, err := b.Build()

		var dup *convexgen.DuplicateTableError
		assert.ErrorAs(t, err, &dup)
		assert.ErrorIs(t, err, convexgen.ErrInvalidName)
	})
}

func TestSchemaBuilder_Sealed(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	users, err := b.DefineTable("users", convexgen.NewField("name", convexgen.String()))
	require.NoError(t, err)

	_, err = b.Build()
	require.NoError(t, err)

	_, err = users.DefineIndex("by_name", "name")
	assert.ErrorIs(t, err, convexgen.ErrSealed)

	_, err = b.DefineTable("posts")
	assert.ErrorIs(t, err, convexgen.ErrSealed)
}

func TestTable_FieldPath(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	users, err := b.DefineTable("users",
		convexgen.NewField("profile", convexgen.Object(
			convexgen.NewField("address", convexgen.Object(
				convexgen.NewField("city", convexgen.String()),
			)),
		)),
	)
	require.NoError(t, err)

	f, ok := users.FieldPath("profile.address.city")
	require.True(t, ok)
	assert.Equal(t, convexgen.KindString, f.Type.Kind)

	_, ok = users.FieldPath("profile.city")
	assert.False(t, ok)

	_, err = users.DefineIndex("by_city", "profile.address.city")
	require.NoError(t, err)

	_, err = b.Build()
	assert.NoError(t, err)
}

func TestSchema_Equal(t *testing.T) {
	t.Parallel()

	a := usersPosts(t)
	b := usersPosts(t)
	assert.True(t, a.Equal(b))

	other := convexgen.NewSchemaBuilder()
	_, _ = other.DefineTable("users", convexgen.NewField("name", convexgen.String()))
	c := other.MustBuild()
	assert.False(t, a.Equal(c))
}

func TestMustBuild_Panics(t *testing.T) {
	t.Parallel()

	b := convexgen.NewSchemaBuilder()
	_, _ = b.DefineTable("posts", convexgen.NewField("author", convexgen.Reference("users")))

	assert.Panics(t, func() { b.MustBuild() })
}

func TestErrors_Unwrap(t *testing.T) {
	t.Parallel()

	decl := &convexgen.DeclError{Err: &convexgen.DuplicateTableError{Table: "users"}}

	var dup *convexgen.DuplicateTableError
	assert.True(t, errors.As(decl, &dup))
	assert.Contains(t, decl.Error(), `duplicate table "users"`)
}
