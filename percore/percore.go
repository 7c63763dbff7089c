// Package percore implements per-hart storage indexed by the calling
// hart's LogicalCPUID, gated to levels below Scheduler so a reference can
// never be held across an operation that might migrate the logical task
// to another hart (there is no scheduler in this core, but the gate keeps
// the shape spec.md describes and the registry's pending arrays honest).
//
// Grounded on original_source/src/sync/per_core.rs for the storage shape
// (a fixed array indexed by the thread-pointer-derived ID) and on
// original_source/src/trap/handlers.rs's usage site for the level gating,
// which per_core.rs's own signature omits.
package percore

import (
	"rvos/cpu"
	"rvos/level"
)

// schedulerRank is level.Scheduler{}.Rank(), duplicated as a constant so
// the gate check has no import cycle with package level's concrete types
// (level already exports Scheduler; this just names the invariant).
const schedulerRank = 5

// PerCore holds one T per possible logical CPU.
type PerCore[T any] struct {
	slots [cpu.MaxCPUNum]T
}

// NewCopy initializes every slot to a copy of initial.
func NewCopy[T any](initial T) *PerCore[T] {
	pc := &PerCore[T]{}
	for i := range pc.slots {
		pc.slots[i] = initial
	}
	return pc
}

func assertBelowScheduler[L level.Level](token L) {
	if token.Rank() >= schedulerRank {
		panic("percore: access requires a level below Scheduler")
	}
}

// Get returns a pointer to the calling hart's slot. L must rank below
// Scheduler; callers pass whatever token they hold (level.Prologue,
// level.LockedPrologue, ...). Go methods cannot introduce their own type
// parameters, so Get is a package-level function rather than a method on
// PerCore[T].
func Get[T any, L level.Level](pc *PerCore[T], token L) (*T, L) {
	assertBelowScheduler(token)
	return &pc.slots[cpu.Current()], token
}
