package trap

import (
	"unsafe"

	"rvos/cpu"
)

// trapEntryAddr returns the address of trapEntry, implemented in
// trap_riscv64.s; Go has no portable way to take a function's address as
// an integer, so the lookup itself is a one-instruction asm stub.
func trapEntryAddr() uint64

// frameAddr returns a pointer to the trap frame belonging to logical CPU
// id.
func frameAddr(id cpu.LogicalCPUID) unsafe.Pointer {
	return unsafe.Pointer(&frames[id])
}
