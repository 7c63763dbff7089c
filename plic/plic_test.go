package plic

import (
	"sync"
	"testing"
	"unsafe"

	"rvos/addr"
	"rvos/cpu"
	"rvos/level"
	"rvos/trap"
)

// alwaysUp answers every StatusHart probe affirmatively, registering
// hart IDs 0..n-1 in ascending order — enough to exercise the
// hart-iteration logic without any real SBI/HSM backing.
type alwaysUp struct{}

func (alwaysUp) StatusHart(cpu.HartID) bool { return true }

var cpuMapOnce sync.Once

// initGlobalCPUMap populates cpu.Global with 3 harts (0, 1, 2) the first
// time any test calls it: cpu.Map is write-once-then-immutable, and
// every test in this file that needs hart topology wants the same
// topology, so a sync.Once makes call order between tests irrelevant.
func initGlobalCPUMap(t *testing.T) {
	t.Helper()
	cpuMapOnce.Do(func() {
		cpu.Initialize(level.NewInitialization(), alwaysUp{}, 3)
	})
}

func backingSpace(t *testing.T, size int) unsafe.Pointer {
	t.Helper()
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}

func TestSupervisorContext(t *testing.T) {
	cases := []struct {
		hart cpu.HartID
		want uintptr
	}{
		{1, 2},
		{2, 4},
		{3, 6},
	}
	for _, c := range cases {
		if got := supervisorContext(c.hart); got != c.want {
			t.Fatalf("supervisorContext(%d) = %d, want %d", c.hart, got, c.want)
		}
	}
}

func TestSupervisorContextHartZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected hart 0 to panic")
		}
	}()
	supervisorContext(0)
}

func TestMaskUnmaskSetPriorityRegister(t *testing.T) {
	p := New()
	state, token := p.lock.InitValue(level.NewInitialization())
	base := backingSpace(t, numInterruptSources*4)
	state.space.Relocate(addr.NewVirtual[byte](uintptr(base)), numInterruptSources*4)

	const source = trap.Interrupt(7)
	token = p.Unmask(source, token)
	if got, _ := state.space.LoadU32(priorityOffset + 7*4); got != 1 {
		t.Fatalf("priority after Unmask = %d, want 1", got)
	}
	token = p.Mask(source, token)
	if got, _ := state.space.LoadU32(priorityOffset + 7*4); got != 0 {
		t.Fatalf("priority after Mask = %d, want 0", got)
	}
	_ = token
}

func TestConfigureProgramsEnableBits(t *testing.T) {
	initGlobalCPUMap(t) // hart 0 (no supervisor context), hart 1, hart 2

	p := New()
	state, token := p.lock.InitValue(level.NewInitialization())
	size := int(enableOffset + enableStride*8 + 4)
	base := backingSpace(t, size)
	state.space.Relocate(addr.NewVirtual[byte](uintptr(base)), uintptr(size))

	t.Run("broadcast enables every non-zero hart", func(t *testing.T) {
		const source = trap.Interrupt(3)
		token = p.Configure(source, Broadcast, token)
		for _, ctx := range []uintptr{supervisorContext(1), supervisorContext(2)} {
			word, _ := state.space.LoadU32(enableOffset + ctx*enableStride)
			if word&(1<<3) == 0 {
				t.Fatalf("context %d: source 3 not enabled", ctx)
			}
		}
	})

	t.Run("unicast enables exactly one hart, round robin", func(t *testing.T) {
		const sourceA = trap.Interrupt(10)
		const sourceB = trap.Interrupt(11)
		token = p.Configure(sourceA, Unicast, token)
		token = p.Configure(sourceB, Unicast, token)

		ctx1 := supervisorContext(1)
		ctx2 := supervisorContext(2)
		w1, _ := state.space.LoadU32(enableOffset + ctx1*enableStride)
		w2, _ := state.space.LoadU32(enableOffset + ctx2*enableStride)

		enabledOn1A, enabledOn2A := w1&(1<<10) != 0, w2&(1<<10) != 0
		enabledOn1B, enabledOn2B := w1&(1<<11) != 0, w2&(1<<11) != 0

		if enabledOn1A == enabledOn2A {
			t.Fatalf("source A enabled on both or neither context: ctx1=%v ctx2=%v", enabledOn1A, enabledOn2A)
		}
		if enabledOn1B == enabledOn2B {
			t.Fatalf("source B enabled on both or neither context: ctx1=%v ctx2=%v", enabledOn1B, enabledOn2B)
		}
		if enabledOn1A == enabledOn1B {
			t.Fatalf("round robin did not alternate hart target between successive Unicast sources")
		}
		_ = token
	})
}

func TestConfigureTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected re-configuring a source to panic")
		}
	}()
	initGlobalCPUMap(t)
	p := New()
	_, token := p.lock.InitValue(level.NewInitialization())
	token = p.Configure(trap.Interrupt(1), Broadcast, token)
	p.Configure(trap.Interrupt(1), Broadcast, token)
}
