package convexgen

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Document is a single table record: field names mapped to values. Values are
// strings, numbers, booleans, nil, []byte, slices and nested maps.
type Document = map[string]any

// System fields present on every stored document.
const (
	FieldID           = "_id"
	FieldCreationTime = "_creationTime"
)

// MaxBytesLength is the largest accepted bytes value.
const MaxBytesLength = 1 << 20

// Validate checks doc against the fields of table. System fields are accepted
// when well-formed.
func (s *Schema) Validate(table string, doc Document) error {
	t, ok := s.Table(table)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	issues := validateRecord(t.Fields, doc, "", func(name string, value any) ([]Issue, bool) {
		switch name {
		case FieldID:
			str, ok := value.(string)
			if id, isID := value.(ID); isID {
				str, ok = string(id), true
			}

			if !ok || !IsValidID(str, table) {
				return []Issue{mismatch(FieldID, Reference(table), value)}, true
			}

			return nil, true
		case FieldCreationTime:
			if _, ok := toNumber(value); !ok {
				return []Issue{mismatch(FieldCreationTime, Number(), value)}, true
			}

			return nil, true
		}

		return nil, false
	})

	if len(issues) > 0 {
		return &ValidationError{Table: table, Issues: issues}
	}

	return nil
}

// ValidateFields checks a record such as an argument list against fields.
// The returned error is a *ValidationError; label names the record in messages.
func ValidateFields(label string, fields []*Field, record map[string]any) error {
	issues := validateRecord(fields, record, "", nil)
	if len(issues) > 0 {
		return &ValidationError{Table: label, Issues: issues}
	}

	return nil
}

// systemFieldFunc handles names outside the declared fields. It returns handled
// false for names it does not know.
type systemFieldFunc func(name string, value any) (issues []Issue, handled bool)

// validateRecord validates a top-level record. It stops at the first offending
// top-level field but reports every nested issue within that field.
func validateRecord(fields []*Field, record map[string]any, base string, system systemFieldFunc) []Issue {
	for _, f := range fields {
		if issues := validateField(f, record, base); len(issues) > 0 {
			return issues
		}
	}

	for _, name := range extraKeys(fields, record) {
		if system != nil {
			if issues, handled := system(name, record[name]); handled {
				if len(issues) > 0 {
					return issues
				}

				continue
			}
		}

		return []Issue{unknownField(joinPath(base, name), record[name])}
	}

	return nil
}

func validateField(f *Field, record map[string]any, base string) []Issue {
	path := joinPath(base, f.Name)

	value, present := record[f.Name]
	if !present {
		if f.Optional {
			return nil
		}

		return []Issue{{Path: path, Expected: f.Type.String(), Actual: "missing", Message: "missing required field"}}
	}

	return validateValue(f.Type, value, path)
}

// validateValue collects every issue in value, recursing into objects and arrays.
func validateValue(t *Type, value any, path string) []Issue {
	switch t.Kind {
	case KindString:
		switch value.(type) {
		case string, ID:
		default:
			return []Issue{mismatch(path, t, value)}
		}
	case KindNumber:
		if _, ok := toNumber(value); !ok {
			return []Issue{mismatch(path, t, value)}
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return []Issue{mismatch(path, t, value)}
		}
	case KindNull:
		if value != nil {
			return []Issue{mismatch(path, t, value)}
		}
	case KindBytes:
		b, ok := value.([]byte)
		if !ok {
			return []Issue{mismatch(path, t, value)}
		}

		if len(b) > MaxBytesLength {
			return []Issue{{
				Path:     path,
				Expected: fmt.Sprintf("at most %d bytes", MaxBytesLength),
				Actual:   fmt.Sprintf("%d bytes", len(b)),
				Message:  "bytes value too large",
			}}
		}
	case KindID:
		s, ok := value.(string)
		if id, isID := value.(ID); isID {
			s, ok = string(id), true
		}

		if !ok || !IsValidID(s, t.Table) {
			return []Issue{{
				Path:     path,
				Expected: t.String(),
				Actual:   describe(value),
				Message:  "not a valid document id for table " + strconv.Quote(t.Table),
			}}
		}
	case KindArray:
		elems, ok := toSlice(value)
		if !ok {
			return []Issue{mismatch(path, t, value)}
		}

		var issues []Issue
		for i, elem := range elems {
			issues = append(issues, validateValue(t.Elem, elem, path+"["+strconv.Itoa(i)+"]")...)
		}

		return issues
	case KindObject:
		obj, ok := toMap(value)
		if !ok {
			return []Issue{mismatch(path, t, value)}
		}

		var issues []Issue
		for _, f := range t.Fields {
			issues = append(issues, validateField(f, obj, path)...)
		}

		for _, name := range extraKeys(t.Fields, obj) {
			issues = append(issues, unknownField(joinPath(path, name), obj[name]))
		}

		return issues
	}

	return nil
}

func mismatch(path string, expected *Type, value any) Issue {
	return Issue{Path: path, Expected: expected.String(), Actual: describe(value), Message: "type mismatch"}
}

func unknownField(path string, value any) Issue {
	return Issue{Path: path, Expected: "no field", Actual: describe(value), Message: "unknown field"}
}

// extraKeys returns the keys of record not declared in fields, sorted.
func extraKeys(fields []*Field, record map[string]any) []string {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}

	var extra []string

	for k := range record {
		if !declared[k] {
			extra = append(extra, k)
		}
	}

	sort.Strings(extra)

	return extra
}

// describe names the kind of a runtime value.
func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "string " + strconv.Quote(v)
	case ID:
		return "string " + strconv.Quote(string(v))
	case bool:
		return "boolean"
	case []byte:
		return "bytes"
	}

	if _, ok := toNumber(value); ok {
		return "number"
	}

	if _, ok := toSlice(value); ok {
		return "array"
	}

	if _, ok := toMap(value); ok {
		return "object"
	}

	return fmt.Sprintf("%T", value)
}

// toNumber converts any Go numeric value to float64.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	}

	return 0, false
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []byte, string, nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func toMap(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}

	if value == nil {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := make(map[string]any, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}

	return out, true
}

// Normalize returns a copy of doc with every number converted to float64,
// typed slices and maps converted to []any and map[string]any, and IDs to strings.
func Normalize(doc Document) Document {
	out, _ := normalizeValue(doc).(map[string]any)

	return out
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil, string, bool:
		return v
	case []byte:
		if v == nil {
			return []byte{}
		}

		return v
	case ID:
		return string(v)
	}

	if n, ok := toNumber(value); ok {
		return n
	}

	if m, ok := toMap(value); ok {
		out := make(map[string]any, len(m))
		for k, elem := range m {
			out[k] = normalizeValue(elem)
		}

		return out
	}

	if s, ok := toSlice(value); ok {
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = normalizeValue(elem)
		}

		return out
	}

	return value
}
