package trap

import "rvos/level"

// Handler implements one trap cause's prologue/epilogue pair, grounded on
// original_source/src/trap/handlers.rs's TrapHandler trait.
type Handler interface {
	// Prologue runs with interrupts masked; it must not block or acquire
	// any lock above LockedPrologue, and must be bounded in time. The
	// returned bool requests an epilogue be scheduled.
	Prologue(token level.Prologue) (bool, level.Prologue)

	// Epilogue runs with interrupts enabled, outside any lock. ctx is
	// currently always nil: the drain loop (package epilogue) runs
	// decoupled from any particular trap frame, and no registered
	// epilogue inspects one. The parameter stays so a handler that does
	// need the interrupted frame can be wired without changing every
	// implementation.
	Epilogue(ctx *Context, token level.Epilogue) level.Epilogue
}

// BaseHandler supplies the no-op Epilogue every handler that never
// requests one can embed, matching handler_interface.rs's default trait
// method (Go interfaces have no default methods, so embedding stands in
// for it).
type BaseHandler struct{}

// Epilogue does nothing and returns token unchanged.
func (BaseHandler) Epilogue(ctx *Context, token level.Epilogue) level.Epilogue {
	_ = ctx
	return token
}

// Controller is the subset of the interrupt-controller driver trap
// dispatch needs: claiming the real interrupt source behind
// ExternalInterrupt and acknowledging it once the prologue has run.
// Defined here (rather than imported from package plic) so trap has no
// dependency on any concrete controller — plic implements this interface
// and is wired in by SetController during boot.
type Controller interface {
	Source(token level.Prologue) (Interrupt, level.Prologue)
	EndOfInterrupt(i Interrupt, token level.Prologue) level.Prologue
}

var controller Controller

// SetController installs the interrupt controller used to claim/complete
// external interrupts. Called once during boot after the controller
// driver has initialized itself.
func SetController(c Controller) { controller = c }

// epilogueDrain is invoked at the end of every dispatch to attempt
// entering epilogue level and draining any pending epilogues. Installed
// by package boot during bring-up (pointing at epilogue.TryEnterAndDrain):
// epilogue needs the registry's Dequeue/Get (defined here), so trap
// cannot import epilogue directly without a cycle — this function
// variable inverts the dependency.
var epilogueDrain func()

// SetEpilogueDrain installs the callback trapDispatch invokes after every
// prologue to drain deferred work. See package epilogue.
func SetEpilogueDrain(f func()) { epilogueDrain = f }
