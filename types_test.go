package convexgen_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func TestParseTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    *convexgen.Type
		wantErr error
	}{
		{in: "string", want: convexgen.String()},
		{in: " number ", want: convexgen.Number()},
		{in: "bytes", want: convexgen.Bytes()},
		{in: "id<users>", want: convexgen.Reference("users")},
		{in: "array<array<boolean>>", want: convexgen.Array(convexgen.Array(convexgen.Boolean()))},
		{in: "array<id<posts>>", want: convexgen.Array(convexgen.Reference("posts"))},
		{in: "object", want: convexgen.Object()},
		{in: "", wantErr: convexgen.ErrEmptyTypeString},
		{in: "array", wantErr: convexgen.ErrInvalidArrayType},
		{in: "array<string", wantErr: convexgen.ErrInvalidArrayType},
		{in: "array<wat>", wantErr: convexgen.ErrInvalidArrayType},
		{in: "id", wantErr: convexgen.ErrInvalidIDType},
		{in: "id<>", wantErr: convexgen.ErrInvalidIDType},
		{in: "int64", wantErr: convexgen.ErrUnrecognizedType},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := convexgen.ParseTypeString(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTypeString(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	t.Parallel()

	typ := convexgen.Object(
		convexgen.NewField("a", convexgen.Array(convexgen.Reference("users"))),
		convexgen.OptionalField("b", convexgen.Null()),
	)

	assert.Equal(t, "object{a: array<id<users>>, b?: null}", typ.String())

	f, ok := typ.Field("b")
	require.True(t, ok)
	assert.True(t, f.Optional)

	_, ok = convexgen.String().Field("b")
	assert.False(t, ok)
}

func TestType_Equal(t *testing.T) {
	t.Parallel()

	a := convexgen.Object(convexgen.NewField("x", convexgen.Reference("users")))
	b := convexgen.Object(convexgen.NewField("x", convexgen.Reference("users")))
	c := convexgen.Object(convexgen.OptionalField("x", convexgen.Reference("users")))
	d := convexgen.Object(convexgen.NewField("x", convexgen.Reference("posts")))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
	assert.True(t, convexgen.Array(convexgen.Bytes()).Equal(convexgen.Array(convexgen.Bytes())))
}
