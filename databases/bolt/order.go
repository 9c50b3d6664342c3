package bolt

import (
	"bytes"
	"cmp"
	"slices"
	"strings"

	"github.com/rlch/convexgen"
)

// Value ranks in index order: missing < null < number < boolean < string <
// bytes < array < object.
const (
	rankMissing = iota
	rankNull
	rankNumber
	rankBoolean
	rankString
	rankBytes
	rankArray
	rankObject
)

// indexValue is a field value read for index comparison. present is false
// when the document does not have the field.
type indexValue struct {
	value   any
	present bool
}

func rank(v indexValue) int {
	if !v.present {
		return rankMissing
	}

	switch v.value.(type) {
	case nil:
		return rankNull
	case float64:
		return rankNumber
	case bool:
		return rankBoolean
	case string:
		return rankString
	case []byte:
		return rankBytes
	case []any:
		return rankArray
	default:
		return rankObject
	}
}

// compareValues orders two normalized values.
func compareValues(a, b indexValue) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNumber:
		return cmp.Compare(a.value.(float64), b.value.(float64))
	case rankBoolean:
		x, y := a.value.(bool), b.value.(bool)
		if x == y {
			return 0
		}

		if !x {
			return -1
		}

		return 1
	case rankString:
		return strings.Compare(a.value.(string), b.value.(string))
	case rankBytes:
		return bytes.Compare(a.value.([]byte), b.value.([]byte))
	case rankArray:
		x, y := a.value.([]any), b.value.([]any)
		for i := range min(len(x), len(y)) {
			if c := compareValues(indexValue{x[i], true}, indexValue{y[i], true}); c != 0 {
				return c
			}
		}

		return cmp.Compare(len(x), len(y))
	case rankObject:
		return compareObjects(a.value, b.value)
	default:
		return 0
	}
}

func compareObjects(a, b any) int {
	x, _ := a.(map[string]any)
	y, _ := b.(map[string]any)

	kx := convexgen.SortedKeys(x)
	ky := convexgen.SortedKeys(y)

	for i := range min(len(kx), len(ky)) {
		if c := strings.Compare(kx[i], ky[i]); c != 0 {
			return c
		}

		if c := compareValues(indexValue{x[kx[i]], true}, indexValue{y[ky[i]], true}); c != 0 {
			return c
		}
	}

	return cmp.Compare(len(kx), len(ky))
}

// lookup reads a dotted field path from doc.
func lookup(doc map[string]any, path string) indexValue {
	var cur any = doc

	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return indexValue{}
		}

		if cur, ok = m[part]; !ok {
			return indexValue{}
		}
	}

	return indexValue{value: cur, present: true}
}

// sortByIndex orders docs by the index fields, then creation time, then ID.
func sortByIndex(docs []convexgen.Document, fields []string) {
	keys := append(slices.Clone(fields), convexgen.FieldCreationTime, convexgen.FieldID)

	slices.SortStableFunc(docs, func(a, b convexgen.Document) int {
		for _, k := range keys {
			if c := compareValues(lookup(a, k), lookup(b, k)); c != 0 {
				return c
			}
		}

		return 0
	})
}
