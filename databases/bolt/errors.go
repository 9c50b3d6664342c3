package bolt

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrNotFound      = errors.New("document not found")
	ErrSystemField   = errors.New("system fields cannot be written")
	ErrUnknownIndex  = errors.New("unknown index")
	ErrTooManyValues = errors.New("more values than index fields")
	ErrClosed        = errors.New("store is closed")
)

// DataError reports a stored value that could not be decoded.
type DataError struct {
	Table string
	Key   []byte
	Err   error
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	return fmt.Sprintf("decoding %s/%s: %v", e.Table, e.Key, e.Err)
}
