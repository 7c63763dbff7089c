package cpu

import (
	"testing"

	"rvos/level"
)

type fakeProbe struct {
	online map[HartID]bool
}

func (f fakeProbe) StatusHart(id HartID) bool { return f.online[id] }

func TestInitializeRegistersInDiscoveryOrder(t *testing.T) {
	var mp Map
	probe := fakeProbe{online: map[HartID]bool{0: true, 2: true, 3: true}}
	mp.Initialize(level.NewInitialization(), probe, 3)

	if mp.Count() != 3 {
		t.Fatalf("Count(): got %d, want 3", mp.Count())
	}
	want := []HartID{0, 2, 3}
	for i, h := range want {
		if got := mp.LookupHartID(LogicalCPUID(i)); got != h {
			t.Fatalf("LookupHartID(%d): got %d, want %d", i, got, h)
		}
		if got := mp.LookupLogicalID(h); got != LogicalCPUID(i) {
			t.Fatalf("LookupLogicalID(%d): got %d, want %d", h, got, i)
		}
	}
}

func TestInitializePanicsOverMaxCPUNum(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Initialize to panic when cpuCount exceeds MaxCPUNum")
		}
	}()
	var mp Map
	mp.Initialize(level.NewInitialization(), fakeProbe{}, MaxCPUNum+1)
}

func TestLookupHartIDOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected out-of-range LookupHartID to panic")
		}
	}()
	var mp Map
	probe := fakeProbe{online: map[HartID]bool{0: true}}
	mp.Initialize(level.NewInitialization(), probe, 1)
	mp.LookupHartID(LogicalCPUID(5))
}
