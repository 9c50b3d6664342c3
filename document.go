package convexgen

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// bytesKey marks a JSON object that encodes a bytes value: {"$bytes": "<base64>"}.
const bytesKey = "$bytes"

// DecodeDocument parses a JSON object into a Document. Numbers become float64
// and {"$bytes": "..."} objects become []byte.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode document: expected a JSON object, got %s", describe(raw))
	}

	out, err := decodeValue(obj)
	if err != nil {
		return nil, err
	}

	doc, _ := out.(map[string]any)

	return doc, nil
}

func decodeValue(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}

		return f, nil
	case []any:
		for i, elem := range v {
			decoded, err := decodeValue(elem)
			if err != nil {
				return nil, err
			}

			v[i] = decoded
		}

		return v, nil
	case map[string]any:
		if enc, ok := v[bytesKey].(string); ok && len(v) == 1 {
			b, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("decode document: %s: %w", bytesKey, err)
			}

			return b, nil
		}

		for k, elem := range v {
			decoded, err := decodeValue(elem)
			if err != nil {
				return nil, err
			}

			v[k] = decoded
		}

		return v, nil
	default:
		return v, nil
	}
}

// EncodeDocument renders a Document as indented JSON with sorted keys; bytes
// values are written as {"$bytes": "..."}.
func EncodeDocument(doc Document) ([]byte, error) {
	return json.MarshalIndent(encodeValue(Normalize(doc)), "", "  ")
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return map[string]any{bytesKey: base64.StdEncoding.EncodeToString(v)}
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = encodeValue(elem)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = encodeValue(elem)
		}

		return out
	default:
		return v
	}
}

// SortedKeys returns the keys of doc in lexical order.
func SortedKeys(doc Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
