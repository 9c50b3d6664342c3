package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rlch/convexgen"
)

// Inserter stores a document and returns its new ID. *bolt.Store implements
// Inserter.
type Inserter interface {
	Insert(ctx context.Context, table string, doc convexgen.Document) (convexgen.ID, error)
}

// MemoryInserter validates documents against a schema and keeps them in
// memory. It lets fixtures run without opening a store.
type MemoryInserter struct {
	schema *convexgen.Schema

	mu   sync.Mutex
	docs map[convexgen.ID]convexgen.Document
}

// NewMemoryInserter creates an empty MemoryInserter for schema.
func NewMemoryInserter(schema *convexgen.Schema) *MemoryInserter {
	return &MemoryInserter{
		schema: schema,
		docs:   make(map[convexgen.ID]convexgen.Document),
	}
}

// Insert validates doc when schema validation is enabled and records it.
func (m *MemoryInserter) Insert(ctx context.Context, table string, doc convexgen.Document) (convexgen.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, ok := m.schema.Table(table); !ok {
		return "", fmt.Errorf("%w: %q", convexgen.ErrUnknownTable, table)
	}

	if m.schema.SchemaValidation {
		if err := m.schema.Validate(table, doc); err != nil {
			return "", err
		}
	}

	id := convexgen.NewID(table)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[id] = convexgen.Normalize(doc)

	return id, nil
}

// Len returns the number of inserted documents.
func (m *MemoryInserter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.docs)
}
