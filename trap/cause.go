// Package trap implements the two-phase (prologue/epilogue) trap dispatch
// pipeline: cause decoding, the handler registry keyed by cause, and the
// entry point the assembly trap vector calls into.
//
// Grounded on original_source/src/trap/{cause,handler_interface,
// handlers}.rs: cause.rs's Interrupt/Exception/Trap enums and their
// Table-4.2 numeric encoding, handler_interface.rs's TrapContext layout and
// trap_handler dispatch sequence, handlers.rs's TrapHandlers registry.
package trap

import "fmt"

// Interrupt identifies a supervisor-level interrupt source by its scause
// exception-code bits (Table 4.2, Volume II: RISC-V Privileged
// Architectures).
type Interrupt uint64

const (
	SoftwareInterrupt Interrupt = 1
	TimerInterrupt    Interrupt = 5
	ExternalInterrupt Interrupt = 9
)

func (i Interrupt) String() string {
	switch i {
	case SoftwareInterrupt:
		return "supervisor software interrupt"
	case TimerInterrupt:
		return "supervisor timer interrupt"
	case ExternalInterrupt:
		return "supervisor external interrupt"
	default:
		return fmt.Sprintf("supervisor interrupt %d", uint64(i))
	}
}

// Exception identifies a supervisor-level exception by its scause
// exception-code bits.
type Exception uint64

const (
	InstructionMisalignedAddr Exception = 0
	InstructionAccessFault    Exception = 1
	IllegalInstruction        Exception = 2
	Breakpoint                Exception = 3
	LoadMisalignedAddr        Exception = 4
	LoadAccessFault           Exception = 5
	StoreMisalignedAddr       Exception = 6
	StoreAccessFault          Exception = 7
	EnvCallUser               Exception = 8
	EnvCallSupervisor         Exception = 9
	InstructionPageFault      Exception = 12
	LoadPageFault             Exception = 13
	StorePageFault            Exception = 15
)

func (e Exception) String() string {
	switch e {
	case InstructionMisalignedAddr:
		return "instruction address misaligned"
	case InstructionAccessFault:
		return "instruction access fault"
	case IllegalInstruction:
		return "illegal instruction"
	case Breakpoint:
		return "breakpoint"
	case LoadMisalignedAddr:
		return "load address misaligned"
	case LoadAccessFault:
		return "load access fault"
	case StoreMisalignedAddr:
		return "store/AMO address misaligned"
	case StoreAccessFault:
		return "store/AMO access fault"
	case EnvCallUser:
		return "environment call from U-mode"
	case EnvCallSupervisor:
		return "environment call from S-mode"
	case InstructionPageFault:
		return "instruction page fault"
	case LoadPageFault:
		return "load page fault"
	case StorePageFault:
		return "store page fault"
	default:
		return fmt.Sprintf("exception %d", uint64(e))
	}
}

// numInterruptHandlers/numExceptionHandlers size the registry's two
// handler tables and the per-hart pending-bit arrays. 256 covers every
// cause RISC-V's standard and platform-specific encodings are expected to
// use; a cause at or past this index is a configuration bug, not a
// runtime condition to recover from.
const (
	numInterruptHandlers = 256
	numExceptionHandlers = 256
)

// Trap is a decoded scause value: either an Interrupt or an Exception.
type Trap struct {
	interrupt bool
	code      uint64
}

// InterruptTrap wraps i as a Trap.
func InterruptTrap(i Interrupt) Trap { return Trap{interrupt: true, code: uint64(i)} }

// ExceptionTrap wraps e as a Trap.
func ExceptionTrap(e Exception) Trap { return Trap{interrupt: false, code: uint64(e)} }

// IsInterrupt reports whether t is an Interrupt.
func (t Trap) IsInterrupt() bool { return t.interrupt }

// Interrupt returns t's interrupt source. Only meaningful if IsInterrupt.
func (t Trap) Interrupt() Interrupt { return Interrupt(t.code) }

// Exception returns t's exception source. Only meaningful if !IsInterrupt.
func (t Trap) Exception() Exception { return Exception(t.code) }

// index returns the slot t occupies in the registry's interrupt/exception
// table, panicking if it is out of range.
func (t Trap) index() int {
	if t.code >= numInterruptHandlers {
		panic("trap: cause index exceeds registry table size")
	}
	return int(t.code)
}

func (t Trap) String() string {
	if t.interrupt {
		return Interrupt(t.code).String()
	}
	return Exception(t.code).String()
}

// interruptCauseMask is scause's top bit (bit 63 on rv64): set for
// interrupts, clear for exceptions.
const interruptCauseMask = uint64(1) << 63

// DecodeCause interprets a raw scause value as a Trap.
func DecodeCause(raw uint64) Trap {
	return Trap{
		interrupt: raw&interruptCauseMask != 0,
		code:      raw &^ interruptCauseMask,
	}
}
