package trap

import (
	"rvos/cpu"
	"rvos/csr"
)

// Context is the trap frame the assembly vector (trapEntry, in
// trap_riscv64.s) fills on every trap: all 31 general-purpose registers
// x1..x31 (x0 is hardwired zero and never saved) plus the five CSRs the
// handler needs to decode and, if necessary, resume past the trap.
//
// Field order matches the offsets trapEntry stores into; do not reorder
// without updating trap_riscv64.s.
type Context struct {
	X1, X2, X3, X4, X5, X6, X7, X8, X9, X10          uint64
	X11, X12, X13, X14, X15, X16, X17, X18, X19, X20 uint64
	X21, X22, X23, X24, X25, X26, X27, X28, X29, X30 uint64
	X31                                              uint64

	Sstatus, Sscratch, Sepc, Scause, Stval uint64
}

// frames holds one Context per logical CPU. Each hart's sscratch is
// pointed at its own slot during bring-up (see InitHart), exactly as the
// frame-pointed-to-by-sscratch trick every RISC-V supervisor kernel uses
// to locate save space without already having a usable stack pointer.
var frames [cpu.MaxCPUNum]Context

// InitHart points the calling hart's sscratch at its trap frame. Must run
// once per hart before trapEntry can ever be reached — i.e. before
// InstallVector — since trapEntry assumes sscratch is already valid.
func InitHart(id cpu.LogicalCPUID) {
	csr.Sscratch{}.Write(uint64(uintptr(frameAddr(id))))
}

// InstallVector writes trapEntry's address into stvec in Direct mode.
// Must run after InitHart on the calling hart.
func InstallVector() {
	csr.Stvec{}.Write(trapEntryAddr())
}
