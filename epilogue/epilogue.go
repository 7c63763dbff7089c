// Package epilogue implements entering and draining epilogue level: the
// per-hart "in progress" flag and the loop that runs deferred handler
// epilogues with interrupts re-enabled.
//
// Grounded on original_source/src/sync/epilogue.rs's try_enter/leave.
package epilogue

import (
	"sync/atomic"

	"rvos/cpu"
	"rvos/csr"
	"rvos/level"
	"rvos/trap"
)

// inProgress holds one flag per logical CPU: true while that hart is
// already draining epilogues, so a prologue that fires mid-drain only
// enqueues new pending bits rather than recursing into a second drain.
var inProgress [cpu.MaxCPUNum]atomic.Bool

// TryEnter attempts to claim epilogue level for the calling hart. Returns
// ok=false if this hart is already draining (try_enter is not
// reentrant: spec's "try_enter_epilogue on a single hart returns Some
// exactly once until the corresponding leave runs").
func TryEnter() (level.Epilogue, bool) {
	wasEnabled := csr.Sstatus{}.SetSIE(false)
	ok := inProgress[cpu.Current()].CompareAndSwap(false, true)
	if wasEnabled {
		csr.Sstatus{}.SetSIE(true)
	}
	if !ok {
		return level.Epilogue{}, false
	}
	return level.NewEpilogue(), true
}

// Leave drains every pending epilogue on the calling hart, then releases
// the "in progress" flag. The caller's token is consumed. Leave masks
// interrupts around each dequeue, runs each handler's epilogue with
// interrupts enabled, and on exit restores the interrupt state it found
// when it was called, as the drain loop in spec §4.7 describes.
func Leave(token level.Epilogue) {
	wasEnabled := csr.Sstatus{}.SetSIE(false)

	for {
		// Dequeue needs a Prologue token; interrupts are off for the
		// duration of this call, matching the invariant NewPrologue
		// requires.
		pending, ok, _ := trap.Global.Dequeue(level.NewPrologue())
		if !ok {
			break
		}
		handler, _ := trap.Global.Get(pending, level.NewPrologue())

		csr.Sstatus{}.SetSIE(true)
		token = handler.Epilogue(nil, token)
		csr.Sstatus{}.SetSIE(false)
	}

	inProgress[cpu.Current()].Store(false)
	if wasEnabled {
		csr.Sstatus{}.SetSIE(true)
	}
}

// TryEnterAndDrain attempts to enter epilogue level and, on success,
// drains it immediately. Installed as package trap's epilogue-drain
// callback (trap.SetEpilogueDrain) during boot: trap needs to trigger a
// drain at the end of every dispatch but cannot import this package
// directly without an import cycle (this package needs trap's registry),
// so boot wires the two together through a function variable instead.
func TryEnterAndDrain() {
	token, ok := TryEnter()
	if !ok {
		return
	}
	Leave(token)
}
