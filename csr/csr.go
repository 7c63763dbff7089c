// Package csr provides typed wrappers over the RISC-V supervisor control
// and status registers the kernel touches: sstatus, sie, sip, sepc, scause,
// stval, sscratch, stvec, satp, scounteren, stimecmp, time, cycle, instret,
// and the thread-pointer register tp used for per-hart identity.
//
// Every register access goes through one of the typed wrappers here rather
// than a raw csrr/csrw, mirroring the teacher's convention of never letting
// unsafe/asm-level primitives leak past a package boundary (see
// biscuit/src/mem/mem.go, where every bit constant and accessor is wrapped
// instead of inlined at call sites). The actual CSRRS/CSRRW instructions
// live in csr_riscv64.s; this file is architecture-neutral bit plumbing.
package csr

// readSstatus/writeSstatus and friends are implemented in csr_riscv64.s.
// They are declared here so the rest of the kernel only ever sees the
// typed wrapper types below.
func readSstatus() uint64
func writeSstatus(v uint64)
func readSie() uint64
func writeSie(v uint64)
func readSip() uint64
func readSepc() uint64
func writeSepc(v uint64)
func readScause() uint64
func readStval() uint64
func readSscratch() uint64
func writeSscratch(v uint64)
func writeStvec(v uint64)
func readSatp() uint64
func writeSatp(v uint64)
func readScounteren() uint64
func writeScounteren(v uint64)
func writeStimecmp(v uint64)
func readTime() uint64
func readCycle() uint64
func readInstret() uint64
func readTp() uint64
func writeTp(v uint64)

// sfenceVMA is implemented in csr_riscv64.s; it flushes the TLB for the
// whole address space on the current hart. The core never issues a
// cross-hart shootdown (spec §9 open question (a)); a single hart calls
// this after installing or changing its own mapping.
func sfenceVMA()

// wfi is implemented in csr_riscv64.s; it executes the WFI instruction,
// suspending the hart until the next interrupt (which, with SIE clear,
// merely wakes it rather than taking a trap).
func wfi()

// Wfi suspends the calling hart until the next interrupt arrives. Used by
// the panic handler's halt loop (spec.md §7).
func Wfi() { wfi() }

// SstatusSIEBit is the supervisor interrupt-enable bit in sstatus.
const SstatusSIEBit = 1 << 1

// SstatusSPIEBit is the prior interrupt-enable bit, restored into SIE on
// sret.
const SstatusSPIEBit = 1 << 5

// SstatusSPPBit selects the privilege mode sret returns to (0=U, 1=S).
const SstatusSPPBit = 1 << 8

// Sstatus reads and writes the sstatus CSR through named bit operations
// instead of raw masks at call sites.
type Sstatus struct{}

// Read returns the raw sstatus value.
func (Sstatus) Read() uint64 { return readSstatus() }

// Write stores v into sstatus verbatim.
func (Sstatus) Write(v uint64) { writeSstatus(v) }

// SIE reports the supervisor interrupt-enable bit.
func (s Sstatus) SIE() bool { return readSstatus()&SstatusSIEBit != 0 }

// SetSIE sets or clears the supervisor interrupt-enable bit, returning the
// prior value so callers can restore it later (ticketlock's IRQ-disabling
// variant relies on this).
func (s Sstatus) SetSIE(on bool) (prior bool) {
	v := readSstatus()
	prior = v&SstatusSIEBit != 0
	if on {
		v |= SstatusSIEBit
	} else {
		v &^= SstatusSIEBit
	}
	writeSstatus(v)
	return prior
}

// Interrupt-enable/pending bits in sie/sip for the supervisor-level
// interrupt sources: bit 1=software, 5=timer, 9=external.
const (
	SoftwareInterruptBit = 1 << 1
	TimerInterruptBit    = 1 << 5
	ExternalInterruptBit = 1 << 9
)

// Sie reads and writes the supervisor interrupt-enable CSR.
type Sie struct{}

func (Sie) Read() uint64   { return readSie() }
func (Sie) Write(v uint64) { writeSie(v) }

// Enable sets the given interrupt-enable bits (e.g. ExternalInterruptBit).
func (s Sie) Enable(bits uint64) { writeSie(readSie() | bits) }

// Disable clears the given interrupt-enable bits.
func (s Sie) Disable(bits uint64) { writeSie(readSie() &^ bits) }

// Sip reads the supervisor interrupt-pending CSR.
type Sip struct{}

func (Sip) Read() uint64 { return readSip() }

// Sepc reads and writes the exception-return PC.
type Sepc struct{}

func (Sepc) Read() uint64   { return readSepc() }
func (Sepc) Write(v uint64) { writeSepc(v) }

// Scause reads the trap cause register. Decoding into a level/trap.Cause
// value happens in package trap; this wrapper only exposes the raw bits.
type Scause struct{}

func (Scause) Read() uint64 { return readScause() }

// Stval reads the trap value register (faulting address or bad
// instruction, depending on cause).
type Stval struct{}

func (Stval) Read() uint64 { return readStval() }

// Sscratch reads and writes the scratch register, used by the trap vector
// to stash a pointer to the per-hart trap frame before GPRs are saved.
type Sscratch struct{}

func (Sscratch) Read() uint64   { return readSscratch() }
func (Sscratch) Write(v uint64) { writeSscratch(v) }

// StvecModeDirect selects direct dispatch (all traps go to the base
// address; the core never uses vectored mode).
const StvecModeDirect = 0

// Stvec writes the trap-vector base address, always in Direct mode.
type Stvec struct{}

// Write installs base as the trap vector in Direct mode. base must be
// 4-byte aligned.
func (Stvec) Write(base uint64) {
	writeStvec(base | StvecModeDirect)
}

// SatpModeSv39 is the paging-mode nibble for three-level Sv39 translation.
const SatpModeSv39 = uint64(8) << 60

// SatpASIDShift is the bit offset of the address-space identifier field.
// The core always uses ASID 0 (no ASID-based TLB retention across
// address-space switches).
const SatpASIDShift = 44

// Satp reads and writes the address-translation-and-protection register.
type Satp struct{}

func (Satp) Read() uint64 { return readSatp() }

// Install writes rootPPN (the root page-table physical page number) with
// Sv39 mode and ASID 0, then flushes the local TLB.
func (Satp) Install(rootPPN uint64) {
	writeSatp(SatpModeSv39 | rootPPN)
	sfenceVMA()
}

// Scounteren reads and writes the supervisor counter-enable register,
// which gates user-mode rdcycle/rdtime/rdinstret.
type Scounteren struct{}

func (Scounteren) Read() uint64   { return readScounteren() }
func (Scounteren) Write(v uint64) { writeScounteren(v) }

// Stimecmp writes the next supervisor timer-interrupt deadline (Sstc
// extension).
type Stimecmp struct{}

func (Stimecmp) Write(v uint64) { writeStimecmp(v) }

// Time, Cycle and Instret are the read-only unprivileged counters exposed
// through scounteren.
type Time struct{}

func (Time) Read() uint64 { return readTime() }

type Cycle struct{}

func (Cycle) Read() uint64 { return readCycle() }

type Instret struct{}

func (Instret) Read() uint64 { return readInstret() }

// ThreadPointer wraps tp, used to hold the current hart's LogicalCPUID
// (package cpu writes it once during bring-up and reads it on every
// per-core access).
type ThreadPointer struct{}

func (ThreadPointer) Read() uint64   { return readTp() }
func (ThreadPointer) Write(v uint64) { writeTp(v) }

// SFenceVMA flushes the local hart's TLB for the whole address space.
func SFenceVMA() { sfenceVMA() }
