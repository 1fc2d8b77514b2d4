package arc

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
)

// ErrOutOfBounds is returned for an index past the end of a table.
var ErrOutOfBounds = errors.New("index out of bounds")

// Table is a bounds-checked view of one resident table. Readers load the
// current storage once and keep using it; Swap publishes new storage without
// touching the old one, which stays valid for those readers.
type Table[T any] struct {
	name  string
	items atomic.Pointer[[]T]
}

// NewTable creates a table over items.
func NewTable[T any](name string, items []T) *Table[T] {
	t := &Table[T]{name: name}
	t.items.Store(&items)
	return t
}

// Name returns the table name used in errors and logs.
func (t *Table[T]) Name() string {
	return t.name
}

// Load returns the current storage. Callers must not modify it.
func (t *Table[T]) Load() []T {
	p := t.items.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Len returns the length of the current storage.
func (t *Table[T]) Len() int {
	return len(t.Load())
}

// Get returns a copy of the entry at index.
func (t *Table[T]) Get(index uint32) (T, error) {
	items := t.Load()
	if uint64(index) >= uint64(len(items)) {
		var zero T
		return zero, fmt.Errorf("%s[%d] of %d: %w", t.name, index, len(items), ErrOutOfBounds)
	}
	return items[index], nil
}

// Grow returns new storage holding a copy of the current entries followed by
// extra. The table itself is not changed.
func (t *Table[T]) Grow(extra ...T) []T {
	return Grow(t.Load(), extra...)
}

// Grow returns new storage holding a copy of items followed by extra.
func Grow[T any](items []T, extra ...T) []T {
	grown := make([]T, len(items), len(items)+len(extra))
	copy(grown, items)
	return append(grown, extra...)
}

// Clone returns a private copy of the current storage.
func (t *Table[T]) Clone() []T {
	return slices.Clone(t.Load())
}

// Swap publishes items as the new storage and returns the previous storage.
func (t *Table[T]) Swap(items []T) []T {
	old := t.items.Swap(&items)
	if old == nil {
		return nil
	}
	return *old
}
