package store

import (
	"context"
	"strconv"
	"sync"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
)

// MemoryStore is an in-process Store used by tests and the reference host.
type MemoryStore struct {
	mu       sync.Mutex
	data     document.Data
	maxBatch int
	writes   [][]Field
}

// NewMemoryStore returns a store seeded with a copy of data.
func NewMemoryStore(data document.Data) *MemoryStore {
	if data == nil {
		data = document.Data{}
	}
	return &MemoryStore{data: data.Clone(), maxBatch: DefaultMaxBatch}
}

// WithMaxBatch overrides the batch limit.
func (m *MemoryStore) WithMaxBatch(n int) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxBatch = n
	return m
}

// Read returns a copy of the document.
func (m *MemoryStore) Read(ctx context.Context) (document.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone(), nil
}

// Get returns a copy of the value at key.
func (m *MemoryStore) Get(ctx context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return document.CloneValue(v), ok, nil
}

// WriteBatch applies fields in order.
func (m *MemoryStore) WriteBatch(ctx context.Context, fields []Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fields) > m.maxBatch {
		return apperrors.WrapWithMetadata(apperrors.CodeBatchTooLarge, "write rejected",
			map[string]string{"size": strconv.Itoa(len(fields)), "max": strconv.Itoa(m.maxBatch)}, ErrBatchTooLarge)
	}
	recorded := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Value == nil {
			delete(m.data, f.Key)
		} else {
			m.data[f.Key] = document.CloneValue(f.Value)
		}
		recorded = append(recorded, Field{Key: f.Key, Value: document.CloneValue(f.Value)})
	}
	m.writes = append(m.writes, recorded)
	return nil
}

// MaxBatch implements Store.
func (m *MemoryStore) MaxBatch() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxBatch
}

// Writes returns every batch written so far.
func (m *MemoryStore) Writes() [][]Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Field(nil), m.writes...)
}

// ResetWrites forgets the recorded write history.
func (m *MemoryStore) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}
