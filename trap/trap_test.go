package trap

import (
	"testing"

	"rvos/level"
)

func TestDecodeCause(t *testing.T) {
	cases := []struct {
		name      string
		raw       uint64
		wantIntr  bool
		wantCause uint64
	}{
		{"timer interrupt", interruptCauseMask | uint64(TimerInterrupt), true, uint64(TimerInterrupt)},
		{"external interrupt", interruptCauseMask | uint64(ExternalInterrupt), true, uint64(ExternalInterrupt)},
		{"illegal instruction", uint64(IllegalInstruction), false, uint64(IllegalInstruction)},
		{"env call from s-mode", uint64(EnvCallSupervisor), false, uint64(EnvCallSupervisor)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			trap := DecodeCause(c.raw)
			if trap.IsInterrupt() != c.wantIntr {
				t.Fatalf("IsInterrupt() = %v, want %v", trap.IsInterrupt(), c.wantIntr)
			}
			if trap.interrupt {
				if uint64(trap.Interrupt()) != c.wantCause {
					t.Fatalf("Interrupt() = %d, want %d", trap.Interrupt(), c.wantCause)
				}
			} else {
				if uint64(trap.Exception()) != c.wantCause {
					t.Fatalf("Exception() = %d, want %d", trap.Exception(), c.wantCause)
				}
			}
		})
	}
}

type stubHandler struct {
	BaseHandler
	requestEpilogue bool
	calls           int
}

func (h *stubHandler) Prologue(token level.Prologue) (bool, level.Prologue) {
	h.calls++
	return h.requestEpilogue, token
}

func TestRegistryRegisterAndGet(t *testing.T) {
	var reg Registry
	def := &stubHandler{}
	token := reg.Initialize(level.NewInitialization(), def)

	handler := &stubHandler{requestEpilogue: true}
	trap := ExceptionTrap(IllegalInstruction)
	token = reg.Register(trap, handler, def, token)
	token = reg.Finalize(token)

	got, ptoken := reg.Get(trap, level.NewPrologue())
	if got != Handler(handler) {
		t.Fatalf("Get returned wrong handler")
	}

	other, _ := reg.Get(ExceptionTrap(Breakpoint), ptoken)
	if other != Handler(def) {
		t.Fatalf("unregistered cause did not fall back to the default handler")
	}
	_ = token
}

func TestRegistryRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected double-registration to panic")
		}
	}()
	var reg Registry
	def := &stubHandler{}
	token := reg.Initialize(level.NewInitialization(), def)
	trap := ExceptionTrap(Breakpoint)
	token = reg.Register(trap, &stubHandler{}, def, token)
	reg.Register(trap, &stubHandler{}, def, token)
}

// Enqueue/Dequeue route through percore, which reads the calling hart's
// logical ID out of the thread-pointer CSR — exercising it needs a real
// or emulated RISC-V hart, so (matching ticketlock_test.go's choice to
// leave IRQTicketlock untested on the host) it is left to on-target
// integration testing rather than this package's unit tests.
