package convexgen

import (
	"errors"
	"fmt"
	"strings"
)

// Schema is a validated, immutable set of tables.
type Schema struct {
	tables []*Table
	byName map[string]*Table

	// SchemaValidation reports whether documents are validated on write.
	// It mirrors the defineSchema option of the same name and defaults to true.
	SchemaValidation bool
}

// Table is a named collection of documents with an ordered field set.
type Table struct {
	Name    string
	Fields  []*Field
	Indexes []*Index

	builder *SchemaBuilder
	sealed  bool
}

// Index is a named, ordered list of field paths on a table.
type Index struct {
	Name   string
	Fields []string
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.byName[name]

	return t, ok
}

// Tables returns the tables in declaration order.
func (s *Schema) Tables() []*Table {
	return s.tables
}

// TableNames returns the table names in declaration order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}

	return names
}

// HasTable reports whether the schema declares the table.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.byName[name]

	return ok
}

// Equal reports whether two schemas declare the same tables, fields and indexes.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}

	if s.SchemaValidation != o.SchemaValidation || len(s.tables) != len(o.tables) {
		return false
	}

	for i, t := range s.tables {
		u := o.tables[i]
		if t.Name != u.Name || !Object(t.Fields...).Equal(Object(u.Fields...)) {
			return false
		}

		if len(t.Indexes) != len(u.Indexes) {
			return false
		}

		for j, idx := range t.Indexes {
			if idx.Name != u.Indexes[j].Name || strings.Join(idx.Fields, ",") != strings.Join(u.Indexes[j].Fields, ",") {
				return false
			}
		}
	}

	return true
}

// Field returns the top-level field with the given name.
func (t *Table) Field(name string) (*Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return nil, false
}

// Index returns the index with the given name.
func (t *Table) Index(name string) (*Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}

	return nil, false
}

// FieldPath resolves a dotted path such as "obj.foo" through nested objects.
func (t *Table) FieldPath(path string) (*Field, bool) {
	fields := t.Fields

	var found *Field

	for _, part := range strings.Split(path, ".") {
		found = nil

		for _, f := range fields {
			if f.Name == part {
				found = f

				break
			}
		}

		if found == nil {
			return nil, false
		}

		fields = nil
		if found.Type != nil && found.Type.Kind == KindObject {
			fields = found.Type.Fields
		}
	}

	return found, found != nil
}

// DefineIndex adds an index over the given fields. Every field must exist on the
// table; dotted paths address nested object fields.
func (t *Table) DefineIndex(name string, fields ...string) (*Index, error) {
	if t.sealed {
		return nil, fmt.Errorf("%w: cannot add index %q to table %q", ErrSealed, name, t.Name)
	}

	idx, err := t.defineIndex(name, fields)
	if err != nil {
		t.builder.fail(err)

		return nil, err
	}

	return idx, nil
}

func (t *Table) defineIndex(name string, fields []string) (*Index, error) {
	if err := CheckIndexName(name); err != nil {
		return nil, err
	}

	if _, ok := t.Index(name); ok {
		return nil, &DuplicateIndexError{Table: t.Name, Index: name}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: index %q on table %q has no fields", ErrInvalidName, name, t.Name)
	}

	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if _, ok := t.FieldPath(f); !ok {
			return nil, &UnknownIndexFieldError{Table: t.Name, Index: name, Field: f}
		}

		if seen[f] {
			return nil, &DuplicateFieldError{Path: t.Name + "." + name + "." + f}
		}

		seen[f] = true
	}

	idx := &Index{Name: name, Fields: append([]string(nil), fields...)}
	t.Indexes = append(t.Indexes, idx)

	return idx, nil
}

// SchemaBuilder assembles tables and produces a Schema. Any error reported by a
// definition call makes Build fail: a schema is either fully valid or not built.
type SchemaBuilder struct {
	tables           []*Table
	byName           map[string]*Table
	errs             []error
	schemaValidation bool
	built            bool
}

// NewSchemaBuilder creates an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{
		byName:           make(map[string]*Table),
		schemaValidation: true,
	}
}

// SetSchemaValidation toggles document validation for the built schema.
func (b *SchemaBuilder) SetSchemaValidation(enabled bool) {
	b.schemaValidation = enabled
}

// DefineTable declares a table with ordered fields. References to other tables
// are not checked until Build.
func (b *SchemaBuilder) DefineTable(name string, fields ...*Field) (*Table, error) {
	if b.built {
		return nil, fmt.Errorf("%w: cannot define table %q", ErrSealed, name)
	}

	if err := CheckTableName(name); err != nil {
		b.fail(err)

		return nil, err
	}

	if _, ok := b.byName[name]; ok {
		err := &DuplicateTableError{Table: name}
		b.fail(err)

		return nil, err
	}

	if err := checkFields(name, fields); err != nil {
		b.fail(err)

		return nil, err
	}

	t := &Table{Name: name, Fields: fields, builder: b}
	b.tables = append(b.tables, t)
	b.byName[name] = t

	return t, nil
}

// Build resolves every table reference and returns the finished schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	var errs []error

	for _, t := range b.tables {
		for _, f := range t.Fields {
			f.Type.walk(t.Name+"."+f.Name, func(path string, typ *Type) {
				if typ.Kind == KindID {
					if _, ok := b.byName[typ.Table]; !ok {
						errs = append(errs, &UnresolvedReferenceError{Path: path, Table: typ.Table})
					}
				}
			})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	b.built = true

	s := &Schema{
		tables:           b.tables,
		byName:           b.byName,
		SchemaValidation: b.schemaValidation,
	}

	for _, t := range s.tables {
		t.sealed = true
	}

	return s, nil
}

// MustBuild is like Build but panics on error. It is intended for schemas
// declared in Go source.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}

	return s
}

func (b *SchemaBuilder) fail(err error) {
	b.errs = append(b.errs, err)
}

// checkFields verifies names and structure of a field list and every nested
// object, reporting the first problem.
func checkFields(base string, fields []*Field) error {
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if f == nil {
			return fmt.Errorf("%w: nil field in %s", ErrInvalidName, base)
		}

		path := joinPath(base, f.Name)

		if err := checkFieldName(path, f.Name); err != nil {
			return err
		}

		if seen[f.Name] {
			return &DuplicateFieldError{Path: path}
		}

		seen[f.Name] = true

		if err := checkType(path, f.Type); err != nil {
			return err
		}
	}

	return nil
}

func checkType(path string, t *Type) error {
	if t == nil {
		return fmt.Errorf("%s: missing type", path)
	}

	switch t.Kind {
	case KindString, KindNumber, KindBoolean, KindNull, KindBytes:
		return nil
	case KindID:
		if t.Table == "" {
			return fmt.Errorf("%s: %w", path, ErrInvalidIDType)
		}

		return nil
	case KindArray:
		if t.Elem == nil {
			return fmt.Errorf("%s: %w", path, ErrInvalidArrayType)
		}

		return checkType(path+"[]", t.Elem)
	case KindObject:
		return checkFields(path, t.Fields)
	default:
		return fmt.Errorf("%s: %w: %s", path, ErrUnrecognizedType, t.Kind)
	}
}

// CheckTableName reports an error wrapping ErrInvalidName if name cannot name a table.
func CheckTableName(name string) error {
	if !isIdentifier(name) || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: table %q", ErrInvalidName, name)
	}

	return nil
}

// CheckFieldName reports an error wrapping ErrInvalidName if name cannot name a field.
func CheckFieldName(name string) error {
	return checkFieldName(name, name)
}

func checkFieldName(path, name string) error {
	if name == "" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, "$") || strings.ContainsAny(name, ".[]") {
		return fmt.Errorf("%w: field %q", ErrInvalidName, path)
	}

	return nil
}

// CheckIndexName reports an error wrapping ErrInvalidName for empty and reserved
// index names.
func CheckIndexName(name string) error {
	if !isIdentifier(name) || strings.HasPrefix(name, "_") || name == "by_id" || name == "by_creation_time" {
		return fmt.Errorf("%w: index %q", ErrInvalidName, name)
	}

	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}
