// Package ticketlock implements the kernel's FIFO spin lock, parameterized
// by the lock-hierarchy levels it transitions between, plus an
// interrupt-disabling variant for the bottom of the chain.
//
// Grounded on original_source/src/sync/ticketlock.rs: a fetch-add ticket
// counter and an acquire-ordered serving counter, acquire spinning until
// they match, release incrementing serving with release ordering.
package ticketlock

import (
	"sync/atomic"

	"rvos/csr"
	"rvos/level"
)

// Ticketlock protects a T, acquired at level H and releasing the caller
// into level L (L must rank below H — checked once at construction via
// the zero values of the type parameters, since Go cannot express the
// ordering as a compile-time bound across independently named levels).
type Ticketlock[T any, H level.Level, L level.Level] struct {
	ticket  uint64
	serving atomic.Uint64
	value   T
}

// New constructs a lock around value. Panics if H does not rank strictly
// above L.
func New[T any, H level.Level, L level.Level](value T) *Ticketlock[T, H, L] {
	var h H
	var l L
	if h.Rank() <= l.Rank() {
		panic("ticketlock: upper level must rank above lower level")
	}
	return &Ticketlock[T, H, L]{value: value}
}

// Guard is held while the lock is owned; it provides the only access path
// to the protected value.
type Guard[T any, H level.Level, L level.Level] struct {
	lock *Ticketlock[T, H, L]
}

// Lock acquires the lock, consuming the upper-level token and returning a
// guard plus the lower-level token it now proves.
func (tl *Ticketlock[T, H, L]) Lock(token H) (*Guard[T, H, L], L) {
	my := atomic.AddUint64(&tl.ticket, 1) - 1
	for tl.serving.Load() != my {
		// busy-wait; no backoff, matching the teacher's spin primitives
	}
	_ = token
	var lower L
	return &Guard[T, H, L]{lock: tl}, lower
}

// TryLock attempts a non-blocking acquire via CAS on ticket==serving.
func (tl *Ticketlock[T, H, L]) TryLock(token H) (*Guard[T, H, L], L, bool) {
	serving := tl.serving.Load()
	if !atomic.CompareAndSwapUint64(&tl.ticket, serving, serving+1) {
		var zero L
		return nil, zero, false
	}
	_ = token
	var lower L
	return &Guard[T, H, L]{lock: tl}, lower, true
}

// Unlock releases the guard, consuming the lower-level token and handing
// back the upper one.
func (g *Guard[T, H, L]) Unlock(token L) H {
	_ = token
	g.lock.serving.Add(1)
	var upper H
	return upper
}

// Value returns a pointer to the protected data. Valid only while the
// guard is held.
func (g *Guard[T, H, L]) Value() *T { return &g.lock.value }

// InitValue grants direct, unlocked access to the protected value during
// single-threaded initialization — the "guarded init_lock usable with the
// Initialization level" spec.md §4.2 describes. Safe because no other
// hart is running yet.
func (tl *Ticketlock[T, H, L]) InitValue(token level.Initialization) (*T, level.Initialization) {
	return &tl.value, token
}

// IRQTicketlock wraps a Ticketlock[T, H, L], folding interrupt-disabling
// into the acquire/release pair: acquire saves and clears sstatus.SIE,
// release restores it verbatim, so nested acquisitions compose correctly
// even though only one hardware flag exists. spec.md §4.2 describes the
// fixed (Prologue, LockedPrologue) instance; §5 additionally calls for an
// IRQ-disabling lock at the Mapping level for the kernel L2 tables, so the
// type is generalized over the level pair instead of hardcoding one.
type IRQTicketlock[T any, H level.Level, L level.Level] struct {
	inner *Ticketlock[T, H, L]
}

// NewIRQ constructs an interrupt-disabling lock around value.
func NewIRQ[T any, H level.Level, L level.Level](value T) *IRQTicketlock[T, H, L] {
	return &IRQTicketlock[T, H, L]{inner: New[T, H, L](value)}
}

// IRQGuard is held while an IRQTicketlock is owned.
type IRQGuard[T any, H level.Level, L level.Level] struct {
	guard    *Guard[T, H, L]
	savedSIE bool
}

// Lock disables interrupts, saving the prior state, then acquires the
// inner lock.
func (l *IRQTicketlock[T, H, L]) Lock(token H) (*IRQGuard[T, H, L], L) {
	prior := (csr.Sstatus{}).SetSIE(false)
	guard, lower := l.inner.Lock(token)
	return &IRQGuard[T, H, L]{guard: guard, savedSIE: prior}, lower
}

// Unlock releases the inner lock then restores the saved interrupt state.
func (g *IRQGuard[T, H, L]) Unlock(token L) H {
	upper := g.guard.Unlock(token)
	csr.Sstatus{}.SetSIE(g.savedSIE)
	return upper
}

// Value returns a pointer to the protected data.
func (g *IRQGuard[T, H, L]) Value() *T { return g.guard.Value() }

// InitValue grants direct, unlocked access to the protected value during
// single-threaded initialization, passing through to the inner lock — see
// Ticketlock.InitValue.
func (l *IRQTicketlock[T, H, L]) InitValue(token level.Initialization) (*T, level.Initialization) {
	return l.inner.InitValue(token)
}

// PrologueIRQTicketlock is the fixed (Prologue, LockedPrologue) instance
// spec.md §4.2 names directly: a lock whose critical section also
// guarantees non-preemptibility.
type PrologueIRQTicketlock[T any] = IRQTicketlock[T, level.Prologue, level.LockedPrologue]

// NewPrologueIRQ constructs a PrologueIRQTicketlock around value.
func NewPrologueIRQ[T any](value T) *PrologueIRQTicketlock[T] {
	return NewIRQ[T, level.Prologue, level.LockedPrologue](value)
}
