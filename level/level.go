// Package level implements the kernel's lock-hierarchy typestate.
//
// Go has no affine types, so the hierarchy is simulated the way spec.md §9
// prescribes for languages without them: an explicit token value is
// threaded through every public entry point that touches a leveled
// resource, and the type checker rejects an acquisition that is missing
// the input token it requires. Each level is a one-byte struct with no
// exported fields; the intended ways to obtain one are to receive it as a
// parameter, to transition from an adjacent level via Enter/Leave, or to
// call one of the unsafe root constructors (NewInitialization at boot,
// NewPrologue on the trap and epilogue-drain paths, NewEpilogue after a
// successful epilogue entry). Go does not stop another package from
// writing a composite literal such as level.Driver{}; that is a
// convention, not a type-system guarantee.
//
//	Epilogue (7) -- enter/leave --> Driver (6) -- ... --> LockedPrologue (0)
//
// Adapter lets a caller skip several levels at once (a lock that inherently
// spans Driver..Memory, say) without threading through every intermediate
// token. Go generics cannot verify the level ordering at compile time the
// way Rust's associated-type bound does, so Adapter additionally asserts
// it at construction — the "failing that, at runtime" fallback spec.md §9
// describes.
package level

// Level is implemented by every token type in the hierarchy.
type Level interface {
	// Rank returns the level's position in the total order: lower ranks
	// are innermost (held with interrupts already off), higher ranks are
	// outermost.
	Rank() int
}

// Initialization is a standalone level used only before any concurrency
// exists: during the single-threaded boot sequence on the boot hart.
type Initialization struct{ _ byte }

// Rank panics: Initialization does not participate in the numeric chain.
func (Initialization) Rank() int { panic("level: Initialization has no rank") }

// NewInitialization mints the one token that exists before any lock or
// per-hart state does. Call this exactly once, at the very start of
// kernel_init on the boot hart.
//
// Safety: the caller must guarantee no other hart is running and no lock
// in the hierarchy has ever been touched.
func NewInitialization() Initialization { return Initialization{} }

// LockedPrologue is the innermost level: held while interrupts are
// disabled inside a prologue that also needs a lock (see
// ticketlock.IRQTicketlock).
type LockedPrologue struct{ _ byte }

func (LockedPrologue) Rank() int { return 0 }

// Leave transitions back up to Prologue.
func (LockedPrologue) Leave() Prologue { return Prologue{} }

// Prologue is held for the duration of a trap's prologue phase: interrupts
// are masked by hardware, the code must not block.
type Prologue struct{ _ byte }

func (Prologue) Rank() int { return 1 }

// NewPrologue mints the one Prologue token that exists per trap entry.
//
// Safety: the caller must be the Rust-analogue of the single place the
// kernel synthesizes this level from nothing — the raw trap entry path,
// where hardware has just masked interrupts on entry. See trapDispatch in
// package trap.
func NewPrologue() Prologue { return Prologue{} }

// Enter transitions down to LockedPrologue.
func (Prologue) Enter() LockedPrologue { return LockedPrologue{} }

// Leave transitions back up to Paging.
func (Prologue) Leave() Paging { return Paging{} }

// Paging is required to touch the page-frame allocator.
type Paging struct{ _ byte }

func (Paging) Rank() int { return 2 }

func (Paging) Enter() Prologue { return Prologue{} }
func (Paging) Leave() Mapping  { return Mapping{} }

// Mapping is required to touch the Sv39 mapping engine.
type Mapping struct{ _ byte }

func (Mapping) Rank() int { return 3 }

func (Mapping) Enter() Paging { return Paging{} }
func (Mapping) Leave() Memory { return Memory{} }

// Memory is required to interact with generic memory-management
// interfaces above the mapping engine.
type Memory struct{ _ byte }

func (Memory) Rank() int { return 4 }

func (Memory) Enter() Mapping   { return Mapping{} }
func (Memory) Leave() Scheduler { return Scheduler{} }

// Scheduler is required to interact with the scheduling/task-management
// interface. The core does not implement a scheduler (spec.md Non-goals);
// the level still exists so the hierarchy's shape matches the original
// design and per-core storage can be gated below it.
type Scheduler struct{ _ byte }

func (Scheduler) Rank() int { return 5 }

func (Scheduler) Enter() Memory { return Memory{} }
func (Scheduler) Leave() Driver { return Driver{} }

// Driver is required for device-driver locking.
type Driver struct{ _ byte }

func (Driver) Rank() int { return 6 }

func (Driver) Enter() Scheduler { return Scheduler{} }
func (Driver) Leave() Epilogue { return Epilogue{} }

// Epilogue is the outermost level: the default execution level outside of
// trap handling, where blocking and arbitrary locking are permitted.
type Epilogue struct{ _ byte }

func (Epilogue) Rank() int { return 7 }

func (Epilogue) Enter() Driver { return Driver{} }

// NewEpilogue mints the one Epilogue token that exists per try_enter_epilogue
// success. See the epilogue package.
//
// Safety: the caller must hold proof that try_enter succeeded for the
// current hart and no other Epilogue token for this hart is outstanding.
func NewEpilogue() Epilogue { return Epilogue{} }

// Adapter lets a caller skip from level H directly to level L without
// threading through every intermediate token, for a lock that inherently
// spans several levels (e.g. a driver lock that also needs Memory).
type Adapter[H Level, L Level] struct{}

// AdapterGuard is returned by Adapter.Enter and proves L is held; Leave
// converts it back to H.
type AdapterGuard[H Level, L Level] struct{}

// Enter consumes h and produces an AdapterGuard proving L, asserting
// H.Rank() > L.Rank() — the ordering Go's type system cannot itself
// enforce across independently-named levels.
func (Adapter[H, L]) Enter(h H) AdapterGuard[H, L] {
	var hi H
	var lo L
	if hi.Rank() <= lo.Rank() {
		panic("level: adapter requires a strictly descending level pair")
	}
	_ = h
	return AdapterGuard[H, L]{}
}

// Leave consumes l and hands back H.
func (AdapterGuard[H, L]) Leave(l L) H {
	_ = l
	var h H
	return h
}
