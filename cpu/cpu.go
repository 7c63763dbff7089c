// Package cpu maintains the bidirectional table between hardware hart IDs
// (opaque 64-bit SBI identifiers) and dense logical CPU IDs, and the
// per-hart thread-pointer identity used by package percore.
//
// Grounded on original_source/src/kernel/cpu_map.rs: probe SBI HSM status
// for hart 0..∞, register every hart the firmware acknowledges (regardless
// of its exact state — see Initialize) until cpu-count distinct harts are
// found, then never mutate the table again.
package cpu

import (
	"fmt"

	"rvos/config"
	"rvos/csr"
	"rvos/initcell"
	"rvos/level"
)

// MaxCPUNum bounds the logical ID space, generated from config/kernel.yaml
// by cmd/genconfig into config.MaxCPUNum.
const MaxCPUNum = config.MaxCPUNum

// HartID is the opaque hardware identifier SBI uses to address a hart.
type HartID uint64

// LogicalCPUID is a dense index in [0, N) assigned at boot.
type LogicalCPUID uint64

func (id LogicalCPUID) String() string { return fmt.Sprintf("cpu%d", uint64(id)) }

// HartStatusProbe is satisfied by the SBI client; kept as an interface so
// this package does not import sbi directly and create a cycle (sbi has no
// reason to depend on cpu, but keeping the dependency one-directional
// keeps both packages freestanding-testable in isolation).
type HartStatusProbe interface {
	// StatusHart reports whether the given hart ID is known to the
	// firmware at all; ok is false once the firmware reports it doesn't
	// exist.
	StatusHart(id HartID) (ok bool)
}

type cpuMap struct {
	count int
	harts [MaxCPUNum]HartID
}

// Map is the bidirectional hart-ID/logical-ID table. The zero value is
// ready to Initialize. Production code uses the package-level Global
// instance; tests construct their own so state doesn't leak between
// cases.
type Map struct {
	cell initcell.Cell[cpuMap]
}

// Initialize probes probe for hart IDs 0..∞ until cpuCount distinct harts
// have responded, recording each in ascending discovery order as
// successive logical IDs. Panics if cpuCount exceeds MaxCPUNum.
//
// This mirrors cpu_map.rs's initialize: every StatusHart call that
// succeeds is treated as "this hart exists," without distinguishing
// Started from Stopped/Suspended/etc — spec.md §3 describes the same
// probing contract ("probing hart 0..∞ ... until cpu-count distinct harts
// are registered") without requiring a particular HSM state, so a hart
// parked in any state still counts as present.
func (mp *Map) Initialize(token level.Initialization, probe HartStatusProbe, cpuCount int) level.Initialization {
	if cpuCount > MaxCPUNum {
		panic("cpu: cpu-count exceeds MaxCPUNum")
	}
	m, token := mp.cell.GetMut(token)
	m.count = 0
	for hart := HartID(0); m.count < cpuCount; hart++ {
		if probe.StatusHart(hart) {
			m.harts[m.count] = hart
			m.count++
		}
		if uint64(hart) > 1<<20 {
			panic("cpu: exhausted hart ID space before finding cpu-count harts")
		}
	}
	return mp.cell.Finalize(token)
}

// Count returns the number of registered harts.
func (mp *Map) Count() int {
	return mp.cell.AsRef().count
}

// LookupLogicalID returns the logical ID assigned to hart, panicking if
// hart was never registered.
func (mp *Map) LookupLogicalID(hart HartID) LogicalCPUID {
	m := mp.cell.AsRef()
	for i := 0; i < m.count; i++ {
		if m.harts[i] == hart {
			return LogicalCPUID(i)
		}
	}
	panic("cpu: unregistered hart ID")
}

// LookupHartID returns the hart ID backing a logical ID, panicking if out
// of range.
func (mp *Map) LookupHartID(id LogicalCPUID) HartID {
	m := mp.cell.AsRef()
	if uint64(id) >= uint64(m.count) {
		panic("cpu: logical CPU ID out of range")
	}
	return m.harts[id]
}

// Global is the kernel's single CPU map, populated once during boot.
var Global Map

// Initialize populates the global CPU map. See (*Map).Initialize.
func Initialize(token level.Initialization, probe HartStatusProbe, cpuCount int) level.Initialization {
	return Global.Initialize(token, probe, cpuCount)
}

// Count returns the number of harts registered in the global CPU map.
func Count() int { return Global.Count() }

// LookupLogicalID looks up hart in the global CPU map.
func LookupLogicalID(hart HartID) LogicalCPUID { return Global.LookupLogicalID(hart) }

// LookupHartID looks up id in the global CPU map.
func LookupHartID(id LogicalCPUID) HartID { return Global.LookupHartID(id) }

// SetCurrentLogicalID writes id into the thread-pointer CSR. Called
// exactly once per hart during bring-up, before any per-core storage
// access on that hart.
func SetCurrentLogicalID(id LogicalCPUID) {
	csr.ThreadPointer{}.Write(uint64(id))
}

// Current reads the calling hart's logical ID out of the thread pointer.
func Current() LogicalCPUID {
	return LogicalCPUID(csr.ThreadPointer{}.Read())
}
