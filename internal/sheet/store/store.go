// Package store defines the persistence port for sheet documents and the
// batching helpers that every write path goes through.
package store

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
)

// DefaultMaxBatch is the largest number of fields a single write may carry.
const DefaultMaxBatch = 20

// ErrBatchTooLarge is returned by stores when a write exceeds MaxBatch.
var ErrBatchTooLarge = apperrors.New(apperrors.CodeBatchTooLarge, "write batch too large")

// Field is one key/value pair in a write batch.
type Field struct {
	Key   string
	Value any
}

// Store is the key-value persistence of a single sheet instance.
//
// WriteBatch applies the fields in order as one host write. A nil value
// removes the key.
type Store interface {
	Read(ctx context.Context) (document.Data, error)
	Get(ctx context.Context, key string) (any, bool, error)
	WriteBatch(ctx context.Context, fields []Field) error
	MaxBatch() int
}

// Updates is an insertion-ordered set of pending field writes. Setting a key
// twice keeps its first position and the last value.
type Updates struct {
	keys   []string
	values map[string]any
}

// NewUpdates returns an empty update set.
func NewUpdates() *Updates {
	return &Updates{values: map[string]any{}}
}

// Set stages value under key.
func (u *Updates) Set(key string, value any) {
	if u.values == nil {
		u.values = map[string]any{}
	}
	if _, ok := u.values[key]; !ok {
		u.keys = append(u.keys, key)
	}
	u.values[key] = value
}

// Get returns the staged value for key.
func (u *Updates) Get(key string) (any, bool) {
	if u == nil {
		return nil, false
	}
	v, ok := u.values[key]
	return v, ok
}

// Merge stages every field of other after the fields already present.
func (u *Updates) Merge(other *Updates) {
	if other == nil {
		return
	}
	for _, key := range other.keys {
		u.Set(key, other.values[key])
	}
}

// Len returns the number of staged keys.
func (u *Updates) Len() int {
	if u == nil {
		return 0
	}
	return len(u.keys)
}

// Keys returns the staged keys in order.
func (u *Updates) Keys() []string {
	if u == nil {
		return nil
	}
	return append([]string(nil), u.keys...)
}

// Fields returns the staged writes in order.
func (u *Updates) Fields() []Field {
	if u == nil {
		return nil
	}
	out := make([]Field, 0, len(u.keys))
	for _, key := range u.keys {
		out = append(out, Field{Key: key, Value: u.values[key]})
	}
	return out
}

// Chunk splits fields into consecutive groups of at most size, keeping order.
func Chunk(fields []Field, size int) [][]Field {
	if size <= 0 {
		size = DefaultMaxBatch
	}
	var out [][]Field
	for start := 0; start < len(fields); start += size {
		end := min(start+size, len(fields))
		out = append(out, fields[start:end])
	}
	return out
}

// ApplyUpdates writes u to s in chunks of at most s.MaxBatch() keys. It returns
// the number of writes issued.
func ApplyUpdates(ctx context.Context, s Store, u *Updates) (int, error) {
	if u.Len() == 0 {
		return 0, nil
	}
	size := s.MaxBatch()
	if size <= 0 || size > DefaultMaxBatch {
		size = DefaultMaxBatch
	}
	writes := 0
	for _, batch := range Chunk(u.Fields(), size) {
		if err := s.WriteBatch(ctx, batch); err != nil {
			return writes, fmt.Errorf("write batch %d: %w", writes+1, err)
		}
		writes++
	}
	return writes, nil
}

// CleanRepeater forces the host to drop stale repeater entries by writing the
// empty repeater clears times and then restoring the current value. A clears
// of zero or less means ceil(len/2).
func CleanRepeater(ctx context.Context, s Store, id string, clears int) error {
	value, ok, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("read repeater %s: %w", id, err)
	}
	if !ok {
		return nil
	}
	rep, ok := value.(*document.Repeater)
	if !ok || rep == nil {
		return nil
	}
	if clears <= 0 {
		clears = (rep.Len() + 1) / 2
	}
	restore := rep.Clone()
	for i := 0; i < clears; i++ {
		if err := s.WriteBatch(ctx, []Field{{Key: id, Value: document.NewRepeater()}}); err != nil {
			return fmt.Errorf("clear repeater %s: %w", id, err)
		}
	}
	if err := s.WriteBatch(ctx, []Field{{Key: id, Value: restore}}); err != nil {
		return fmt.Errorf("restore repeater %s: %w", id, err)
	}
	return nil
}
