// Package initcell implements the single-writer-during-init,
// many-reader-after-finalize cell used for the CPU map (package cpu) and
// the trap-handler registry (package trap); the kernel address space and
// the page-allocator bitmap are not held in one. Grounded on
// original_source/src/sync/init_cell.rs's InitCell<T>.
//
// Mutation is gated on the Initialization level token; after Finalize no
// further mutation is possible through this type, so concurrent reads
// from multiple harts are safe without further locking.
package initcell

import "rvos/level"

// Cell holds a T that starts life unwritten and becomes permanently
// read-only once Finalize runs.
type Cell[T any] struct {
	initialized bool
	value       T
}

// GetMut grants exclusive mutable access during initialization. Safe to
// call repeatedly before Finalize: the Initialization token's uniqueness
// (there is exactly one hart, exactly one thread of control, before any
// concurrency exists) is what makes overlapping access impossible.
func (c *Cell[T]) GetMut(token level.Initialization) (*T, level.Initialization) {
	if c.initialized {
		panic("initcell: GetMut after Finalize")
	}
	return &c.value, token
}

// Finalize marks the cell read-only. Panics if called twice.
func (c *Cell[T]) Finalize(token level.Initialization) level.Initialization {
	if c.initialized {
		panic("initcell: Finalize called twice")
	}
	c.initialized = true
	return token
}

// AsRef returns a read-only reference. Panics if the cell has not been
// finalized yet — reading before Finalize would observe a partially
// initialized value.
func (c *Cell[T]) AsRef() *T {
	if !c.initialized {
		panic("initcell: AsRef before Finalize")
	}
	return &c.value
}

// IsFinalized reports whether Finalize has run.
func (c *Cell[T]) IsFinalized() bool { return c.initialized }
