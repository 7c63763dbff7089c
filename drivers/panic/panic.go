// Package panic implements the registry's default filler handler: every
// trap slot not explicitly claimed by a real driver dispatches here, and
// taking one is itself the bug report.
//
// Grounded on original_source/src/drivers/panic.rs's Panic/PANIC: a
// zero-sized Driver whose Initialize is a trivial no-op and whose
// Prologue unconditionally panics. Epilogue is never reached in practice
// (Prologue never returns true), but per spec.md a Handler's Epilogue
// must still satisfy trap.Handler's embedding, so it panics too, matching
// the original's epilogue/enqueue/dequeue all panicking as "must never be
// called".
package panic

import (
	"sync/atomic"

	"rvos/csr"
	"rvos/drivers/uart"
	"rvos/level"
	"rvos/trap"
)

// Panic is the registry's filler handler. The zero value is ready to use.
type Panic struct{}

// Global is the kernel's single panic handler instance, installed as the
// default in trap.Initialize and registered nowhere else — any slot still
// pointing at it when a trap arrives is an unhandled cause.
var Global = Panic{}

// Initialize does nothing; the panic handler carries no state and probes
// no device. Implements drivers.Driver.
func (Panic) Initialize(token level.Initialization) (level.Initialization, error) {
	return token, nil
}

// Prologue always panics: reaching it means a trap cause had no real
// handler registered. Implements trap.Handler.
func (Panic) Prologue(token level.Prologue) (bool, level.Prologue) {
	_ = token
	panic("PANIC! Unexpected interrupt!")
}

// Epilogue always panics: Prologue never requests one, so this must never
// run. Implements trap.Handler.
func (Panic) Epilogue(ctx *trap.Context, token level.Epilogue) level.Epilogue {
	_ = ctx
	panic("panic: the panic handler must never run an epilogue")
}

// reported is set by whichever hart first reaches Halt; every later
// caller skips the message and goes straight to the WFI loop.
var reported atomic.Bool

// Halt implements the kernel-wide panic policy (spec.md §7): the first
// hart to call it writes an emergency message to the serial port, then
// every calling hart disables interrupts and halts forever in a
// wait-for-interrupt loop. message should already contain the recovered
// panic value rendered as text; Halt never returns.
//
// Called from the deferred recover in boot.KernelInit and
// boot.KernelAPInit, not from Prologue itself: a panic raised while one
// of those functions is on the hart's stack (including a Prologue run
// during bring-up) unwinds back to that recover. A panic raised after
// those functions have returned is not routed here.
func Halt(message string) {
	csr.Sie{}.Disable(^uint64(0))
	csr.Sstatus{}.SetSIE(false)

	if reported.CompareAndSwap(false, true) {
		uart.Global.WriteUnchecked('\n')
		for i := 0; i < len(message); i++ {
			uart.Global.WriteUnchecked(message[i])
		}
		uart.Global.WriteUnchecked('\n')
	}

	for {
		csr.Wfi()
	}
}
