// Package bolt is a local development document store for a compiled schema.
//
// Each table is a bbolt bucket keyed by document ID. Documents are stored as
// msgpack-encoded maps that include the system fields _id and _creationTime.
// Because IDs begin with a ULID, bucket order is creation order.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/rlch/convexgen"
)

// Options configures Open.
type Options struct {
	Logger *zap.Logger

	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration

	// NoSync skips fsync after each write. Intended for tests.
	NoSync bool

	// Now returns the current time for _creationTime. Defaults to time.Now.
	Now func() time.Time
}

// Option modifies Options.
type Option func(*Options)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithTimeout sets the file lock timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithNoSync disables fsync.
func WithNoSync() Option {
	return func(o *Options) { o.NoSync = true }
}

// WithClock sets the time source for _creationTime.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// Unset removes a field when used as a value in Patch.
var Unset = unset{}

type unset struct{}

// Store is a bbolt-backed document store.
type Store struct {
	bdb    *bbolt.DB
	schema *convexgen.Schema
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the store at path and ensures a bucket for every
// table in schema.
func Open(path string, schema *convexgen.Schema, opts ...Option) (*Store, error) {
	o := Options{Timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = o.Timeout
	bopt.NoSync = o.NoSync
	bopt.NoFreelistSync = o.NoSync

	bdb, err := bbolt.Open(path, 0o600, &bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range schema.TableNames() {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %q: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = bdb.Close()

		return nil, fmt.Errorf("bolt: %w", err)
	}

	o.Logger.Debug("Opened store",
		zap.String("path", path),
		zap.Strings("tables", schema.TableNames()))

	return &Store{
		bdb:    bdb,
		schema: schema,
		logger: o.Logger,
		now:    o.Now,
	}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.bdb.Close()
}

// Schema returns the schema the store validates against.
func (s *Store) Schema() *convexgen.Schema {
	return s.schema
}

// Insert validates doc against the table and stores it under a new ID. The
// returned ID and the creation time are added to the stored document.
func (s *Store) Insert(ctx context.Context, table string, doc convexgen.Document) (convexgen.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, ok := s.schema.Table(table); !ok {
		return "", fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	if err := checkNoSystemFields(doc); err != nil {
		return "", err
	}

	if err := s.validate(table, doc); err != nil {
		return "", err
	}

	id := convexgen.NewID(table)

	stored := convexgen.Normalize(doc)
	if stored == nil {
		stored = convexgen.Document{}
	}

	stored[convexgen.FieldID] = string(id)
	stored[convexgen.FieldCreationTime] = float64(s.now().UnixMicro()) / 1000

	if err := s.put(table, id, stored); err != nil {
		return "", err
	}

	s.logger.Debug("Inserted document", zap.String("table", table), zap.String("id", string(id)))

	return id, nil
}

// Get returns the document with the given ID.
func (s *Store) Get(ctx context.Context, id convexgen.ID) (convexgen.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := s.tableFor(id)
	if err != nil {
		return nil, err
	}

	var doc convexgen.Document

	err = s.view(func(tx *bbolt.Tx) error {
		doc, err = getDocument(tx, table, id)

		return err
	})

	return doc, err
}

// Patch shallow-merges fields into the document. A field set to Unset is
// removed. The merged document must validate; on failure nothing changes.
func (s *Store) Patch(ctx context.Context, id convexgen.ID, fields convexgen.Document) error {
	return s.update(ctx, id, func(current convexgen.Document) (convexgen.Document, error) {
		if err := checkNoSystemFields(fields); err != nil {
			return nil, err
		}

		merged := make(convexgen.Document, len(current)+len(fields))
		for k, v := range current {
			merged[k] = v
		}

		for k, v := range fields {
			if v == Unset {
				delete(merged, k)

				continue
			}

			merged[k] = v
		}

		return merged, nil
	})
}

// Replace swaps the document's fields for doc, keeping its system fields.
func (s *Store) Replace(ctx context.Context, id convexgen.ID, doc convexgen.Document) error {
	return s.update(ctx, id, func(current convexgen.Document) (convexgen.Document, error) {
		if err := checkNoSystemFields(doc); err != nil {
			return nil, err
		}

		next := make(convexgen.Document, len(doc)+2)
		for k, v := range doc {
			next[k] = v
		}

		next[convexgen.FieldID] = current[convexgen.FieldID]
		next[convexgen.FieldCreationTime] = current[convexgen.FieldCreationTime]

		return next, nil
	})
}

// update runs fn on the stored document and writes its result after
// validation, all in one write transaction.
func (s *Store) update(ctx context.Context, id convexgen.ID, fn func(convexgen.Document) (convexgen.Document, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	table, err := s.tableFor(id)
	if err != nil {
		return err
	}

	err = s.write(func(tx *bbolt.Tx) error {
		current, err := getDocument(tx, table, id)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if err := s.validate(table, next); err != nil {
			return err
		}

		return putDocument(tx, table, id, convexgen.Normalize(next))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Updated document", zap.String("table", table), zap.String("id", string(id)))

	return nil
}

// Delete removes the document with the given ID.
func (s *Store) Delete(ctx context.Context, id convexgen.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	table, err := s.tableFor(id)
	if err != nil {
		return err
	}

	err = s.write(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Deleted document", zap.String("table", table), zap.String("id", string(id)))

	return nil
}

// Scan calls fn for every document of table in creation order until fn
// returns false.
func (s *Store) Scan(ctx context.Context, table string, fn func(convexgen.Document) bool) error {
	if _, ok := s.schema.Table(table); !ok {
		return fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	return s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(table)).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := decodeDocument(table, k, v)
			if err != nil {
				return err
			}

			if !fn(doc) {
				return nil
			}
		}

		return nil
	})
}

// Count returns the number of documents in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, ok := s.schema.Table(table); !ok {
		return 0, fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	var n int

	err := s.view(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(table)).Stats().KeyN

		return nil
	})

	return n, err
}

// Query returns the documents of table whose index fields equal values, in
// order. values may cover a prefix of the index fields; results are ordered
// by the index fields, then by creation time.
func (s *Store) Query(ctx context.Context, table, index string, values ...any) ([]convexgen.Document, error) {
	t, ok := s.schema.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	idx, ok := t.Index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %q on table %q", ErrUnknownIndex, index, table)
	}

	if len(values) > len(idx.Fields) {
		return nil, fmt.Errorf("%w: index %q has %d fields, got %d values",
			ErrTooManyValues, index, len(idx.Fields), len(values))
	}

	want := make([]indexValue, len(values))
	for i, v := range values {
		want[i] = indexValue{value: convexgen.Normalize(convexgen.Document{"v": v})["v"], present: true}
	}

	var docs []convexgen.Document

	err := s.Scan(ctx, table, func(doc convexgen.Document) bool {
		for i, w := range want {
			if compareValues(lookup(doc, idx.Fields[i]), w) != 0 {
				return true
			}
		}

		docs = append(docs, doc)

		return true
	})
	if err != nil {
		return nil, err
	}

	sortByIndex(docs, idx.Fields)

	return docs, nil
}

func (s *Store) view(fn func(*bbolt.Tx) error) error {
	return closedErr(s.bdb.View(fn))
}

func (s *Store) write(fn func(*bbolt.Tx) error) error {
	return closedErr(s.bdb.Update(fn))
}

func closedErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}

	return err
}

func (s *Store) validate(table string, doc convexgen.Document) error {
	if !s.schema.SchemaValidation {
		return nil
	}

	return s.schema.Validate(table, doc)
}

func (s *Store) tableFor(id convexgen.ID) (string, error) {
	t, ok := s.schema.TableForID(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return t.Name, nil
}

func (s *Store) put(table string, id convexgen.ID, doc convexgen.Document) error {
	return s.write(func(tx *bbolt.Tx) error {
		return putDocument(tx, table, id, doc)
	})
}

func putDocument(tx *bbolt.Tx, table string, id convexgen.ID, doc convexgen.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	return tx.Bucket([]byte(table)).Put([]byte(id), data)
}

func getDocument(tx *bbolt.Tx, table string, id convexgen.ID) (convexgen.Document, error) {
	b := tx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	data := b.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return decodeDocument(table, []byte(id), data)
}

func checkNoSystemFields(doc convexgen.Document) error {
	var errs []error

	for _, name := range []string{convexgen.FieldID, convexgen.FieldCreationTime} {
		if _, ok := doc[name]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrSystemField, name))
		}
	}

	return errors.Join(errs...)
}
