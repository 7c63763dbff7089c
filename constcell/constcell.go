// Package constcell provides a trivial read-only wrapper for values that
// are fully known at construction time and never mutate, grounded on
// original_source/src/sync/const_cell.rs's ConstCell<T>.
//
// Unlike initcell.Cell, there is no write phase at all: the value is
// supplied once, by Go's normal initialization, and the wrapper exists
// only to mark call sites that intentionally treat a value as immutable
// kernel configuration (e.g. a linker-supplied segment bound).
package constcell

// Cell wraps a value that is read-only for its entire lifetime.
type Cell[T any] struct {
	value T
}

// New wraps value as a constant cell.
func New[T any](value T) Cell[T] { return Cell[T]{value: value} }

// Get returns the wrapped value.
func (c Cell[T]) Get() T { return c.value }
