// Package pte implements the Sv39 page-table entry bit layout: a 64-bit
// word with V, R, W, X, U, G, A, D flag bits and a 44-bit physical page
// number at bit 10.
//
// Grounded on original_source/src/mm/pte.rs's PageTableEntry, and on
// biscuit/src/mem/mem.go's style of one densely-commented accessor per
// bit field (PTE_P/PTE_W/PTE_U/...) rather than a single bitmask constant
// pile — adapted here to the Sv39 field layout instead of x86-64's.
package pte

const (
	bitV = 1 << 0
	bitR = 1 << 1
	bitW = 1 << 2
	bitX = 1 << 3
	bitU = 1 << 4
	bitG = 1 << 5
	bitA = 1 << 6
	bitD = 1 << 7
)

// ppnShift is the bit offset of the physical page number field.
const ppnShift = 10

// ppnBits is the width of the physical page number field.
const ppnBits = 44

// ppnMask covers all 44 PPN bits once shifted into place.
const ppnMask = (1<<ppnBits - 1) << ppnShift

// Entry is a single Sv39 page-table entry.
type Entry uint64

// IsValid reports the V bit.
func (e Entry) IsValid() bool { return e&bitV != 0 }

// MarkValid sets the V bit.
func (e *Entry) MarkValid() { *e |= bitV }

// IsReadable reports the R bit.
func (e Entry) IsReadable() bool { return e&bitR != 0 }

// MarkReadable sets the R bit.
func (e *Entry) MarkReadable() { *e |= bitR }

// IsWritable reports the W bit.
func (e Entry) IsWritable() bool { return e&bitW != 0 }

// MarkWritable sets the W bit.
func (e *Entry) MarkWritable() { *e |= bitW }

// IsExecutable reports the X bit.
func (e Entry) IsExecutable() bool { return e&bitX != 0 }

// MarkExecutable sets the X bit.
func (e *Entry) MarkExecutable() { *e |= bitX }

// IsInnerPageTable reports whether e is a pointer to the next page-table
// level: true iff none of R, W, X is set.
func (e Entry) IsInnerPageTable() bool {
	return !e.IsReadable() && !e.IsWritable() && !e.IsExecutable()
}

// MarkInnerPageTable clears R, W and X, leaving e a pure next-level
// pointer entry.
func (e *Entry) MarkInnerPageTable() { *e &^= bitR | bitW | bitX }

// IsUserAccessible reports the U bit.
func (e Entry) IsUserAccessible() bool { return e&bitU != 0 }

// MarkUserAccessible sets the U bit.
func (e *Entry) MarkUserAccessible() { *e |= bitU }

// IsGlobal reports the G bit.
func (e Entry) IsGlobal() bool { return e&bitG != 0 }

// MarkGlobal sets the G bit.
func (e *Entry) MarkGlobal() { *e |= bitG }

// IsAccessed reports the A bit.
func (e Entry) IsAccessed() bool { return e&bitA != 0 }

// ClearAccessFlag clears the A bit.
func (e *Entry) ClearAccessFlag() { *e &^= bitA }

// IsDirty reports the D bit.
func (e Entry) IsDirty() bool { return e&bitD != 0 }

// ClearDirtyFlag clears the D bit.
func (e *Entry) ClearDirtyFlag() { *e &^= bitD }

// PhysicalPageNumber extracts the 44-bit PPN field.
func (e Entry) PhysicalPageNumber() uint64 {
	return uint64(e&ppnMask) >> ppnShift
}

// SetPhysicalPageNumber writes ppn into the PPN field, panicking if it
// does not fit in 44 bits.
func (e *Entry) SetPhysicalPageNumber(ppn uint64) {
	if ppn >= 1<<ppnBits {
		panic("pte: physical page number does not fit in 44 bits")
	}
	*e = (*e &^ ppnMask) | Entry(ppn<<ppnShift)
}

// Protection is the access-permission triple a leaf PTE grants.
type Protection int

const (
	ProtR Protection = iota
	ProtRW
	ProtX
	ProtRX
	ProtRWX
)

// IsReadable reports whether p grants read access.
func (p Protection) IsReadable() bool {
	switch p {
	case ProtR, ProtRW, ProtRX, ProtRWX:
		return true
	default:
		return false
	}
}

// IsWritable reports whether p grants write access.
func (p Protection) IsWritable() bool {
	switch p {
	case ProtRW, ProtRWX:
		return true
	default:
		return false
	}
}

// IsExecutable reports whether p grants execute access.
func (p Protection) IsExecutable() bool {
	switch p {
	case ProtX, ProtRX, ProtRWX:
		return true
	default:
		return false
	}
}

// bits returns the literal R/W/X bits p sets on a leaf PTE.
func (p Protection) bits() Entry {
	var e Entry
	if p.IsReadable() {
		e |= bitR
	}
	if p.IsWritable() {
		e |= bitW
	}
	if p.IsExecutable() {
		e |= bitX
	}
	return e
}

// ProtectionFromBits reconstructs a Protection from a leaf's R/W/X bits,
// panicking on the invalid combination R=0,W=1 (write-only, never
// produced by create and never legal to observe in lookup — spec.md §7
// lists it as a non-recoverable invariant violation).
func ProtectionFromBits(readable, writable, executable bool) Protection {
	switch {
	case !readable && writable:
		panic("pte: invalid leaf permissions R=0,W=1")
	case readable && !writable && !executable:
		return ProtR
	case readable && writable && !executable:
		return ProtRW
	case !readable && !writable && executable:
		return ProtX
	case readable && !writable && executable:
		return ProtRX
	case readable && writable && executable:
		return ProtRWX
	default:
		panic("pte: unreachable permission combination")
	}
}

// Mode selects which half of the address space a mapping belongs to.
type Mode int

const (
	ModeKernel Mode = iota
	ModeUser
)

// MakeLeaf builds a valid leaf entry pointing at ppn with the given
// protection and mode.
func MakeLeaf(ppn uint64, prot Protection, mode Mode) Entry {
	var e Entry
	e.SetPhysicalPageNumber(ppn)
	e |= prot.bits()
	if mode == ModeUser {
		e.MarkUserAccessible()
	}
	e.MarkValid()
	return e
}

// MakeInner builds a valid, non-user-accessible pointer entry to the next
// page-table level at ppn.
func MakeInner(ppn uint64) Entry {
	var e Entry
	e.SetPhysicalPageNumber(ppn)
	e.MarkValid()
	e.MarkInnerPageTable()
	return e
}
