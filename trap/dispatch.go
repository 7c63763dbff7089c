package trap

import "rvos/level"

// trapDispatch is trapEntry's sole call target: the low-level vector has
// already saved the full Context into ctx and masked interrupts in
// hardware by the time this runs. Implements spec's seven-step trap
// pipeline (§4.5); steps are numbered in comments to match.
//
// fromUser is always 0 in this core — there is no user-mode trap source
// (no user processes, per the Non-goals) — and a nonzero value indicates
// a vector/assembly bug, not a runtime condition.
func trapDispatch(ctx *Context, fromUser uint64) {
	if fromUser != 0 {
		panic("trap: user-mode traps are not supported")
	}

	// 1. Manufacture the Prologue token: the one place the kernel
	// synthesizes the top of the chain, justified because hardware has
	// just masked interrupts on trap entry.
	token := level.NewPrologue()

	// 2. Decode scause; claim the real interrupt source if this is the
	// external-interrupt line.
	cause := DecodeCause(ctx.Scause)
	if cause.IsInterrupt() && cause.Interrupt() == ExternalInterrupt {
		if controller == nil {
			panic("trap: external interrupt before controller is wired")
		}
		var claimed Interrupt
		claimed, token = controller.Source(token)
		cause = InterruptTrap(claimed)
	}

	// 3. Look up and run the registered handler's prologue.
	handler, token := Global.Get(cause, token)
	if handler == nil {
		panic("trap: no handler registered for " + cause.String())
	}
	var epilogueRequested bool
	epilogueRequested, token = handler.Prologue(token)

	// 4. Acknowledge the interrupt at the controller.
	if cause.IsInterrupt() {
		token = controller.EndOfInterrupt(cause.Interrupt(), token)
	}

	// 5. Defer the epilogue if requested.
	if epilogueRequested {
		token = Global.Enqueue(cause, token)
	}

	// 6. Drain pending epilogues (package epilogue owns the drain loop;
	// see SetEpilogueDrain).
	if epilogueDrain != nil {
		epilogueDrain()
	}

	// 7. trapEntry restores ctx and executes sret.
	_ = token
}
