package trap

import (
	"fmt"

	"rvos/initcell"
	"rvos/level"
	"rvos/percore"
)

// registryState is the InitCell-guarded payload: two handler tables keyed
// by cause index, filled with a default handler at Initialize and
// overwritten one slot at a time by Register.
type registryState struct {
	interruptHandlers [numInterruptHandlers]Handler
	exceptionHandlers [numExceptionHandlers]Handler
}

// Registry is the write-once-during-init, read-only-after-finalize trap
// dispatch table plus the per-hart pending-epilogue bit arrays, grounded
// on handlers.rs's TrapHandlers.
type Registry struct {
	state   initcell.Cell[registryState]
	pending *percore.PerCore[pendingBits]
}

// pendingBits is one hart's deferred-epilogue bookkeeping: a bit per
// interrupt cause and a bit per exception cause.
type pendingBits struct {
	interrupts [numInterruptHandlers]bool
	exceptions [numExceptionHandlers]bool
}

// Global is the kernel's single trap-handler registry.
var Global Registry

// Initialize fills every slot with def (the panic-filler handler — see
// package drivers/panic) and resets the per-hart pending arrays. def is
// injected rather than imported directly so this package never depends
// on a concrete driver. Register may be called any number of times after
// Initialize; Finalize must run once, after every driver has had a
// chance to register, before any trap can be dispatched.
func (r *Registry) Initialize(token level.Initialization, def Handler) level.Initialization {
	state, token := r.state.GetMut(token)
	for i := range state.interruptHandlers {
		state.interruptHandlers[i] = def
	}
	for i := range state.exceptionHandlers {
		state.exceptionHandlers[i] = def
	}
	r.pending = percore.NewCopy(pendingBits{})
	return token
}

// Finalize makes the registry read-only. Must run after every driver has
// registered its handlers and before interrupts are unmasked, matching
// spec.md §4.8's "finalize registry" boot step.
func (r *Registry) Finalize(token level.Initialization) level.Initialization {
	return r.state.Finalize(token)
}

// Register installs handler for trap, consuming one slot in the
// appropriate table. Panics if trap's slot was already written to
// something other than the default filler, or if called after
// finalization — registration is strictly a boot-time operation.
func (r *Registry) Register(trap Trap, handler Handler, def Handler, token level.Initialization) level.Initialization {
	state, token := r.state.GetMut(token)
	idx := trap.index()
	if trap.IsInterrupt() {
		if state.interruptHandlers[idx] != nil && state.interruptHandlers[idx] != def {
			panic(fmt.Sprintf("trap: handler for %s already registered", trap))
		}
		state.interruptHandlers[idx] = handler
	} else {
		if state.exceptionHandlers[idx] != nil && state.exceptionHandlers[idx] != def {
			panic(fmt.Sprintf("trap: handler for %s already registered", trap))
		}
		state.exceptionHandlers[idx] = handler
	}
	return token
}

// Get returns the handler registered for trap.
func (r *Registry) Get(trap Trap, token level.Prologue) (Handler, level.Prologue) {
	state := r.state.AsRef()
	if trap.IsInterrupt() {
		return state.interruptHandlers[trap.index()], token
	}
	return state.exceptionHandlers[trap.index()], token
}

// Enqueue marks trap's slot pending in the calling hart's per-hart queue.
func (r *Registry) Enqueue(trap Trap, token level.Prologue) level.Prologue {
	bits, token := percore.Get(r.pending, token)
	if trap.IsInterrupt() {
		bits.interrupts[trap.index()] = true
	} else {
		bits.exceptions[trap.index()] = true
	}
	return token
}

// Dequeue clears and returns the first pending trap on the calling hart:
// interrupts before exceptions, lowest index first, per spec's ordering
// policy. Returns ok=false when nothing is pending.
func (r *Registry) Dequeue(token level.Prologue) (Trap, bool, level.Prologue) {
	bits, token := percore.Get(r.pending, token)
	for i, pending := range bits.interrupts {
		if pending {
			bits.interrupts[i] = false
			return InterruptTrap(Interrupt(i)), true, token
		}
	}
	for i, pending := range bits.exceptions {
		if pending {
			bits.exceptions[i] = false
			return ExceptionTrap(Exception(i)), true, token
		}
	}
	return Trap{}, false, token
}

// Initialize populates the global registry. See (*Registry).Initialize.
func Initialize(token level.Initialization, def Handler) level.Initialization {
	return Global.Initialize(token, def)
}

// Register installs handler for trap in the global registry.
func Register(trap Trap, handler Handler, def Handler, token level.Initialization) level.Initialization {
	return Global.Register(trap, handler, def, token)
}

// Finalize makes the global registry read-only. See (*Registry).Finalize.
func Finalize(token level.Initialization) level.Initialization {
	return Global.Finalize(token)
}
