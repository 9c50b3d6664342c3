package convexgen

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
)

// ID is a document identifier. It is a 32-character lowercase Crockford base32
// string: a 26-character ULID followed by a 6-character tag derived from the
// owning table's name, so an ID can be checked against a table without a lookup.
type ID string

const (
	ulidLen = 26
	tagLen  = 6
	idLen   = ulidLen + tagLen

	crockford = "0123456789abcdefghjkmnpqrstvwxyz"
)

// NewID returns a fresh ID for a document in table.
func NewID(table string) ID {
	return ID(strings.ToLower(ulid.Make().String()) + tableTag(table))
}

// ParseID checks that s is a well-formed ID for any table.
func ParseID(s string) (ID, error) {
	if len(s) != idLen {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidID, s, len(s), idLen)
	}

	for _, r := range s {
		if !strings.ContainsRune(crockford, r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidID, s, r)
		}
	}

	if _, err := ulid.ParseStrict(strings.ToUpper(s[:ulidLen])); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidID, s, err)
	}

	return ID(s), nil
}

// IsValidID reports whether s is a well-formed ID for a document in table.
func IsValidID(s, table string) bool {
	id, err := ParseID(s)
	if err != nil {
		return false
	}

	return id.BelongsTo(table)
}

// BelongsTo reports whether the ID carries the tag of table.
func (id ID) BelongsTo(table string) bool {
	return len(id) == idLen && string(id[ulidLen:]) == tableTag(table)
}

// Time returns the creation time encoded in the ID as Unix milliseconds.
func (id ID) Time() uint64 {
	u, err := ulid.ParseStrict(strings.ToUpper(string(id[:min(len(id), ulidLen)])))
	if err != nil {
		return 0
	}

	return u.Time()
}

func (id ID) String() string {
	return string(id)
}

// TableForID returns the table whose tag the ID carries.
func (s *Schema) TableForID(id ID) (*Table, bool) {
	if _, err := ParseID(string(id)); err != nil {
		return nil, false
	}

	for _, t := range s.tables {
		if id.BelongsTo(t.Name) {
			return t, true
		}
	}

	return nil, false
}

// tableTag encodes 30 bits of the table name's hash in base32.
func tableTag(table string) string {
	h := xxhash.Sum64String(table)

	var b [tagLen]byte
	for i := range tagLen {
		b[i] = crockford[(h>>(5*uint(i)))&0x1f]
	}

	return string(b[:])
}
