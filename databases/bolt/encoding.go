package bolt

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rlch/convexgen"
)

// encodeDocument encodes doc as msgpack with sorted map keys, so equal
// documents encode to equal bytes.
func encodeDocument(doc convexgen.Document) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	enc.Reset(&buf)
	enc.SetSortMapKeys(true)

	if err := enc.Encode(map[string]any(doc)); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeDocument(table string, key, data []byte) (convexgen.Document, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	dec.Reset(bytes.NewReader(data))

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &DataError{Table: table, Key: append([]byte(nil), key...), Err: err}
	}

	// msgpack keeps the narrowest integer encoding; numbers are always float64.
	return convexgen.Normalize(doc), nil
}
