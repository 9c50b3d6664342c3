package golang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"users", "Users"},
		{"by_email", "ByEmail"},
		{"admin/posts", "AdminPosts"},
		{"userId", "UserID"},
		{"id", "ID"},
		{"apiKey", "APIKey"},
		{"default", "Default"},
		{"2fa", "X2fa"},
		{"", "X"},
		{"already-Exported", "AlreadyExported"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExportedName(tt.input))
		})
	}
}

func TestNamerUnique(t *testing.T) {
	t.Parallel()

	n := newNamer("ID")

	assert.Equal(t, "ID2", n.unique("ID"))
	assert.Equal(t, "Users", n.unique("Users"))
	assert.Equal(t, "Users2", n.unique("Users"))
	assert.Equal(t, "Users3", n.unique("Users"))
}
