package convexgen

import (
	"errors"
	"fmt"
	"strings"
)

// Type parsing errors.
var (
	ErrEmptyTypeString  = errors.New("empty type string")
	ErrInvalidArrayType = errors.New("invalid array type")
	ErrInvalidIDType    = errors.New("invalid id type")
	ErrUnrecognizedType = errors.New("unrecognized type")
)

// Kind is the tag of a Type.
type Kind string

// Kind constants.
const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindBytes   Kind = "bytes"
	KindID      Kind = "id"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Type is a recursive tagged union describing the shape of a value.
type Type struct {
	Kind Kind

	// Table is the referenced table for KindID.
	Table string

	// Elem is the element type for KindArray.
	Elem *Type

	// Fields are the ordered sub-fields for KindObject.
	Fields []*Field
}

// Field is a named, typed attribute of a table, object or argument list.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
}

// String returns a compact representation such as "array<id<posts>>".
func (t *Type) String() string {
	if t == nil {
		return ""
	}

	switch t.Kind {
	case KindID:
		return "id<" + t.Table + ">"
	case KindArray:
		return "array<" + t.Elem.String() + ">"
	case KindObject:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, f.String())
		}

		return "object{" + strings.Join(parts, ", ") + "}"
	default:
		return string(t.Kind)
	}
}

// String returns "name: type" or "name?: type" for optional fields.
func (f *Field) String() string {
	if f.Optional {
		return f.Name + "?: " + f.Type.String()
	}

	return f.Name + ": " + f.Type.String()
}

// Field returns the object sub-field with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	if t == nil || t.Kind != KindObject {
		return nil, false
	}

	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return nil, false
}

// Equal reports whether two types have the same structure.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}

	if t.Kind != o.Kind || t.Table != o.Table {
		return false
	}

	if t.Kind == KindArray {
		return t.Elem.Equal(o.Elem)
	}

	if len(t.Fields) != len(o.Fields) {
		return false
	}

	for i, f := range t.Fields {
		g := o.Fields[i]
		if f.Name != g.Name || f.Optional != g.Optional || !f.Type.Equal(g.Type) {
			return false
		}
	}

	return true
}

// walk calls fn for t and every nested type, with a dotted path relative to base.
func (t *Type) walk(base string, fn func(path string, t *Type)) {
	if t == nil {
		return
	}

	fn(base, t)

	switch t.Kind {
	case KindArray:
		t.Elem.walk(base+"[]", fn)
	case KindObject:
		for _, f := range t.Fields {
			f.Type.walk(joinPath(base, f.Name), fn)
		}
	}
}

// Primitive types.
func String() *Type  { return &Type{Kind: KindString} }
func Number() *Type  { return &Type{Kind: KindNumber} }
func Boolean() *Type { return &Type{Kind: KindBoolean} }
func Null() *Type    { return &Type{Kind: KindNull} }
func Bytes() *Type   { return &Type{Kind: KindBytes} }

// Reference creates an id<table> type: a reference to a document in table. The
// table is resolved when the schema is built, so tables may reference each other
// in any order.
func Reference(table string) *Type {
	return &Type{Kind: KindID, Table: table}
}

// Array creates an array type.
func Array(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

// Object creates an object type with ordered fields.
func Object(fields ...*Field) *Type {
	return &Type{Kind: KindObject, Fields: fields}
}

// NewField creates a required field.
func NewField(name string, typ *Type) *Field {
	return &Field{Name: name, Type: typ}
}

// OptionalField creates a field that may be absent.
func OptionalField(name string, typ *Type) *Field {
	return &Field{Name: name, Type: typ, Optional: true}
}

// ParseTypeString parses the compact representation produced by Type.String for
// non-object types, e.g. "string", "id<users>", "array<array<number>>".
// "object" parses to an object type without fields.
func ParseTypeString(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyTypeString
	}

	switch Kind(s) {
	case KindString, KindNumber, KindBoolean, KindNull, KindBytes:
		return &Type{Kind: Kind(s)}, nil
	case KindObject:
		return Object(), nil
	case KindArray:
		return nil, fmt.Errorf("%w: %s (missing element type)", ErrInvalidArrayType, s)
	case KindID:
		return nil, fmt.Errorf("%w: %s (missing table)", ErrInvalidIDType, s)
	}

	if inner, ok := strings.CutPrefix(s, "id<"); ok {
		table, ok := strings.CutSuffix(inner, ">")
		if !ok || table == "" || strings.ContainsAny(table, "<> ") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidIDType, s)
		}

		return Reference(table), nil
	}

	if inner, ok := strings.CutPrefix(s, "array<"); ok {
		elemStr, ok := strings.CutSuffix(inner, ">")
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidArrayType, s)
		}

		elem, err := ParseTypeString(elemStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArrayType, s, err)
		}

		return Array(elem), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnrecognizedType, s)
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}

	return base + "." + name
}
