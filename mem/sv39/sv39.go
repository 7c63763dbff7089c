// Package sv39 implements the three-level Sv39 virtual-memory mapping
// engine: VPN[0] indexes L1, VPN[1] indexes L2, VPN[2] indexes L3, with a
// shared-by-reference kernel upper half and a per-address-space user
// lower half.
//
// Grounded on original_source/src/mm/mapping.rs for the walk/allocate/
// assert pattern (create, lookup, the VPN[0] half split) and on
// biscuit/src/mem/dmap.go for the direct-map access idiom (a physical
// frame is only ever touched through a translated, page-table-shaped
// pointer, never a raw address) — adapted from x86-64's PML4/recursive
// mapping to Sv39's flatter three levels. mapping.rs's own create/lookup
// implement only a single shared root with no kernel/user L2 split and
// leave new/update/remove as unimplemented stubs; this package instead
// implements spec.md §4.4's fuller design (one L1 root, four shared
// kernel L2 frames, four per-AS user L2 frames) in full — see DESIGN.md.
package sv39

import (
	"errors"
	"unsafe"

	"rvos/addr"
	"rvos/level"
	"rvos/mem/pagealloc"
	"rvos/mem/pte"
	"rvos/ticketlock"
)

// Errors surfaced by the mapping engine, per spec.md §7.
var (
	ErrOutOfMemory         = pagealloc.ErrOutOfMemory
	ErrAddressAlreadyInUse = errors.New("sv39: address already in use")
	ErrNoSuchAddress       = errors.New("sv39: no such address")
	ErrInvalidAddress      = errors.New("sv39: invalid address (half mismatch)")
)

// KernelL2Min/KernelL2Max and UserL2Min/UserL2Max bound the VPN[0] ranges
// reserved for the kernel and user halves respectively.
const (
	KernelL2Min = 508
	KernelL2Max = 511
	UserL2Min   = 0
	UserL2Max   = 3
)

const entriesPerTable = 512

// vpn extracts the index for the given page-table level (0=L1, 1=L2,
// 2=L3) from a virtual address.
func vpn(tableLevel int, virt uint64) uint64 {
	shift := uint(30 - 9*tableLevel)
	return (virt >> shift) & 0x1ff
}

func ppnOf(phys addr.PhysicalAddress[byte]) uint64 {
	return uint64(phys.Addr()) / pagealloc.PageSize
}

func physFromPPN(ppn uint64) addr.PhysicalAddress[byte] {
	return addr.NewPhysical[byte](uintptr(ppn * pagealloc.PageSize))
}

func table(alloc *pagealloc.Allocator, phys addr.PhysicalAddress[byte]) *[entriesPerTable]pte.Entry {
	v := alloc.PhysToVirt(phys)
	return (*[entriesPerTable]pte.Entry)(unsafe.Pointer(v.Addr()))
}

// tableLock protects the mutable contents of a half's L2/L3 tables. The
// lock carries no payload of its own (the protected data is physical
// memory reached through the allocator's direct map, not a Go value);
// acquiring it at Mapping yields a Paging token usable to call the
// allocator directly inside the critical section, matching spec.md §5's
// "ticket lock at Paging level" / "IRQ-disabling ticket lock at Mapping
// level" shared-kernel-table discipline.
type tableLock = ticketlock.IRQTicketlock[struct{}, level.Mapping, level.Paging]

func newTableLock() *tableLock {
	return ticketlock.NewIRQ[struct{}, level.Mapping, level.Paging](struct{}{})
}

// KernelHalf holds the four L2 frames shared by every address space's
// kernel half (VPN[0] ∈ {508..511}), built once during boot.
type KernelHalf struct {
	l2   [4]addr.PhysicalAddress[byte]
	lock *tableLock
}

// NewKernelHalf allocates the four shared kernel L2 frames. Called once,
// during single-threaded boot, before any AddressSpace exists.
func NewKernelHalf(token level.Initialization, alloc *pagealloc.Allocator) (*KernelHalf, level.Initialization) {
	kh := &KernelHalf{lock: newTableLock()}
	for i := range kh.l2 {
		phys, tok, err := alloc.EarlyAllocate(token)
		token = tok
		if err != nil {
			panic("sv39: out of memory allocating kernel L2 frames")
		}
		kh.l2[i] = phys
	}
	return kh, token
}

// AddressSpace is the root L1 frame plus references to the kernel and
// user L2 halves.
type AddressSpace struct {
	root     addr.PhysicalAddress[byte]
	userL2   [4]addr.PhysicalAddress[byte]
	kernel   *KernelHalf
	userLock *tableLock
	alloc    *pagealloc.Allocator
}

// New builds a fresh address space: one L1 root frame linking the four
// per-AS user L2 frames at VPN[0]∈{0..3} and the four shared kernel L2
// frames at VPN[0]∈{508..511}.
func New(token level.Initialization, alloc *pagealloc.Allocator, kernel *KernelHalf) (*AddressSpace, level.Initialization) {
	as := &AddressSpace{kernel: kernel, alloc: alloc, userLock: newTableLock()}

	rootPhys, tok, err := alloc.EarlyAllocate(token)
	token = tok
	if err != nil {
		panic("sv39: out of memory allocating L1 root")
	}
	as.root = rootPhys
	root := table(alloc, as.root)

	for i := range as.userL2 {
		l2phys, tok, err := alloc.EarlyAllocate(token)
		token = tok
		if err != nil {
			panic("sv39: out of memory allocating user L2 frame")
		}
		as.userL2[i] = l2phys
		root[UserL2Min+i] = pte.MakeInner(ppnOf(l2phys))
	}
	for i, phys := range kernel.l2 {
		root[KernelL2Min+i] = pte.MakeInner(ppnOf(phys))
	}
	return as, token
}

// RootPPN returns the root frame's physical page number, for installing
// into SATP.
func (as *AddressSpace) RootPPN() uint64 { return ppnOf(as.root) }

func halfForVPN0(vpn0 uint64, mode pte.Mode) error {
	switch mode {
	case pte.ModeKernel:
		if vpn0 < KernelL2Min || vpn0 > KernelL2Max {
			return ErrInvalidAddress
		}
	case pte.ModeUser:
		if vpn0 < UserL2Min || vpn0 > UserL2Max {
			return ErrInvalidAddress
		}
	}
	return nil
}

func (as *AddressSpace) l2FrameFor(vpn0 uint64, mode pte.Mode) addr.PhysicalAddress[byte] {
	if mode == pte.ModeKernel {
		return as.kernel.l2[vpn0-KernelL2Min]
	}
	return as.userL2[vpn0-UserL2Min]
}

func (as *AddressSpace) lockFor(mode pte.Mode) *tableLock {
	if mode == pte.ModeKernel {
		return as.kernel.lock
	}
	return as.userLock
}

// Create installs a leaf mapping from virt to phys with the given
// protection, in the half selected by mode.
func (as *AddressSpace) Create(phys addr.PhysicalAddress[byte], virt addr.VirtualAddress[byte], prot pte.Protection, mode pte.Mode, token level.Mapping) (level.Mapping, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	if err := halfForVPN0(vpn0, mode); err != nil {
		return token, err
	}

	guard, paging := as.lockFor(mode).Lock(token)

	l2 := table(as.alloc, as.l2FrameFor(vpn0, mode))
	l2entry := &l2[vpn(1, uint64(virt.Addr()))]

	var l3 *[entriesPerTable]pte.Entry
	if !l2entry.IsValid() {
		l3phys, p, err := as.alloc.Allocate(paging)
		paging = p
		if err != nil {
			mapping := guard.Unlock(paging)
			return mapping, err
		}
		*l2entry = pte.MakeInner(ppnOf(l3phys))
		l3 = table(as.alloc, l3phys)
	} else {
		if !l2entry.IsInnerPageTable() {
			panic("sv39: L2 entry is a leaf where an inner pointer was expected")
		}
		if l2entry.IsUserAccessible() {
			panic("sv39: inner PTE must not be user-accessible")
		}
		l3 = table(as.alloc, physFromPPN(l2entry.PhysicalPageNumber()))
	}

	vpn2 := vpn(2, uint64(virt.Addr()))
	if l3[vpn2].IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrAddressAlreadyInUse
	}
	l3[vpn2] = pte.MakeLeaf(ppnOf(phys), prot, mode)

	mapping := guard.Unlock(paging)
	return mapping, nil
}

// lookupResult is the decoded contents of a resolved leaf.
type lookupResult struct {
	phys addr.PhysicalAddress[byte]
	prot pte.Protection
	mode pte.Mode
}

func (as *AddressSpace) lookup(virt addr.VirtualAddress[byte], mode pte.Mode) (lookupResult, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	if err := halfForVPN0(vpn0, mode); err != nil {
		return lookupResult{}, ErrNoSuchAddress
	}

	l2 := table(as.alloc, as.l2FrameFor(vpn0, mode))
	l2entry := l2[vpn(1, uint64(virt.Addr()))]
	if !l2entry.IsValid() {
		return lookupResult{}, ErrNoSuchAddress
	}
	l3 := table(as.alloc, physFromPPN(l2entry.PhysicalPageNumber()))
	l3entry := l3[vpn(2, uint64(virt.Addr()))]
	if !l3entry.IsValid() {
		return lookupResult{}, ErrNoSuchAddress
	}
	prot := pte.ProtectionFromBits(l3entry.IsReadable(), l3entry.IsWritable(), l3entry.IsExecutable())
	gotMode := pte.ModeKernel
	if l3entry.IsUserAccessible() {
		gotMode = pte.ModeUser
	}
	return lookupResult{phys: physFromPPN(l3entry.PhysicalPageNumber()), prot: prot, mode: gotMode}, nil
}

// Lookup resolves virt: VPN[0] determines which half applies, so an
// address only ever belongs to one.
func (as *AddressSpace) Lookup(virt addr.VirtualAddress[byte]) (addr.PhysicalAddress[byte], pte.Protection, pte.Mode, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	var mode pte.Mode
	switch {
	case vpn0 >= KernelL2Min && vpn0 <= KernelL2Max:
		mode = pte.ModeKernel
	case vpn0 >= UserL2Min && vpn0 <= UserL2Max:
		mode = pte.ModeUser
	default:
		return addr.PhysicalAddress[byte]{}, 0, 0, ErrNoSuchAddress
	}
	res, err := as.lookup(virt, mode)
	if err != nil {
		return addr.PhysicalAddress[byte]{}, 0, 0, err
	}
	return res.phys, res.prot, res.mode, nil
}

// IsKernelReadable, IsKernelWritable, IsKernelExecutable, IsUserReadable,
// IsUserWritable and IsUserExecutable are lookup + mode + permission-bit
// convenience predicates, per spec.md §4.4.
func (as *AddressSpace) IsKernelReadable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeKernel, pte.Protection.IsReadable)
}
func (as *AddressSpace) IsKernelWritable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeKernel, pte.Protection.IsWritable)
}
func (as *AddressSpace) IsKernelExecutable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeKernel, pte.Protection.IsExecutable)
}
func (as *AddressSpace) IsUserReadable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeUser, pte.Protection.IsReadable)
}
func (as *AddressSpace) IsUserWritable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeUser, pte.Protection.IsWritable)
}
func (as *AddressSpace) IsUserExecutable(virt addr.VirtualAddress[byte]) bool {
	return as.permission(virt, pte.ModeUser, pte.Protection.IsExecutable)
}

func (as *AddressSpace) permission(virt addr.VirtualAddress[byte], mode pte.Mode, test func(pte.Protection) bool) bool {
	res, err := as.lookup(virt, mode)
	if err != nil || res.mode != mode {
		return false
	}
	return test(res.prot)
}

// Update rewrites an existing leaf's protection and mode, per spec.md
// §4.4 ("Update rewrites the leaf's R/W/X/U").
func (as *AddressSpace) Update(virt addr.VirtualAddress[byte], prot pte.Protection, mode pte.Mode, token level.Mapping) (level.Mapping, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	if err := halfForVPN0(vpn0, mode); err != nil {
		return token, err
	}
	guard, paging := as.lockFor(mode).Lock(token)

	l2 := table(as.alloc, as.l2FrameFor(vpn0, mode))
	l2entry := l2[vpn(1, uint64(virt.Addr()))]
	if !l2entry.IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrNoSuchAddress
	}
	l3 := table(as.alloc, physFromPPN(l2entry.PhysicalPageNumber()))
	idx := vpn(2, uint64(virt.Addr()))
	if !l3[idx].IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrNoSuchAddress
	}
	l3[idx] = pte.MakeLeaf(l3[idx].PhysicalPageNumber(), prot, mode)

	mapping := guard.Unlock(paging)
	return mapping, nil
}

// Remove clears a leaf's valid bit. No TLB shootdown is performed (core
// Non-goal, spec.md §9 open question (a)); the caller is responsible for
// a local SFENCE.VMA if immediate local effect is required.
func (as *AddressSpace) Remove(virt addr.VirtualAddress[byte], mode pte.Mode, token level.Mapping) (level.Mapping, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	if err := halfForVPN0(vpn0, mode); err != nil {
		return token, err
	}
	guard, paging := as.lockFor(mode).Lock(token)

	l2 := table(as.alloc, as.l2FrameFor(vpn0, mode))
	l2entry := l2[vpn(1, uint64(virt.Addr()))]
	if !l2entry.IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrNoSuchAddress
	}
	l3 := table(as.alloc, physFromPPN(l2entry.PhysicalPageNumber()))
	idx := vpn(2, uint64(virt.Addr()))
	if !l3[idx].IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrNoSuchAddress
	}
	l3[idx] &^= pte.Entry(1)

	mapping := guard.Unlock(paging)
	return mapping, nil
}

// CreateHuge installs a 2 MiB leaf directly at the L2 level, skipping the
// L3 table entirely. Used only for the one-shot boot mapping of the page
// pool (spec.md §4.4: "map the entire page pool as 2 MiB RW huge pages
// (leaf at L2) in the kernel half"); the core has no general huge-page
// policy (spec.md §1 Non-goals), so this is exposed as a distinct,
// narrowly-scoped entry point rather than a mode flag on Create.
func (as *AddressSpace) CreateHuge(phys addr.PhysicalAddress[byte], virt addr.VirtualAddress[byte], prot pte.Protection, mode pte.Mode, token level.Mapping) (level.Mapping, error) {
	vpn0 := vpn(0, uint64(virt.Addr()))
	if err := halfForVPN0(vpn0, mode); err != nil {
		return token, err
	}

	guard, paging := as.lockFor(mode).Lock(token)
	_ = paging

	l2 := table(as.alloc, as.l2FrameFor(vpn0, mode))
	l2entry := &l2[vpn(1, uint64(virt.Addr()))]
	if l2entry.IsValid() {
		mapping := guard.Unlock(paging)
		return mapping, ErrAddressAlreadyInUse
	}
	*l2entry = pte.MakeLeaf(ppnOf(phys), prot, mode)

	mapping := guard.Unlock(paging)
	return mapping, nil
}

// EarlyCreateDev maps an MMIO range [phys, phys+size) RW/Kernel, rounding
// the base down and the size up to page boundaries, and returns a virtual
// base at a fixed offset from the physical base. Used only during boot,
// before concurrency exists, hence the Initialization token.
func (as *AddressSpace) EarlyCreateDev(token level.Initialization, phys addr.PhysicalAddress[byte], size uintptr, virtOffset uintptr) (addr.VirtualAddress[byte], level.Initialization, error) {
	base := phys.Addr() &^ (pagealloc.PageSize - 1)
	end := (phys.Addr() + size + pagealloc.PageSize - 1) &^ (pagealloc.PageSize - 1)

	// single-threaded: synthesize the Mapping token the way trap entry
	// synthesizes Prologue — no other hart can be contending during boot.
	mtok := initMappingToken(token)

	for cur := base; cur < end; cur += pagealloc.PageSize {
		virt := addr.NewVirtual[byte](cur + virtOffset)
		m, err := as.Create(addr.NewPhysical[byte](cur), virt, pte.ProtRW, pte.ModeKernel, mtok)
		mtok = m
		if err != nil && err != ErrAddressAlreadyInUse {
			return addr.VirtualAddress[byte]{}, token, err
		}
	}
	return addr.NewVirtual[byte](base + virtOffset), token, nil
}

// EarlySegmentMap maps every 4 KiB page of [phys, phys+size) to
// [virt, virt+size) with prot/mode, for the one-shot boot mapping of a
// linker-provided segment (spec.md §4.4: "map, as 4 KiB RX/R/RW pages
// respectively, the .text/.rodata/.data/.bss segments from their physical
// to their virtual bounds"). phys, virt and size must already be
// page-aligned — segment bounds the linker script emits always are.
func (as *AddressSpace) EarlySegmentMap(token level.Initialization, phys addr.PhysicalAddress[byte], virt addr.VirtualAddress[byte], size uintptr, prot pte.Protection, mode pte.Mode) level.Initialization {
	if phys.Addr()%pagealloc.PageSize != 0 || virt.Addr()%pagealloc.PageSize != 0 || size%pagealloc.PageSize != 0 {
		panic("sv39: segment bounds must be page-aligned")
	}
	mtok := initMappingToken(token)
	for off := uintptr(0); off < size; off += pagealloc.PageSize {
		m, err := as.Create(phys.ByteAdd(off), virt.ByteAdd(off), prot, mode, mtok)
		mtok = m
		if err != nil {
			panic("sv39: segment mapping failed: " + err.Error())
		}
	}
	return token
}

// EarlyHugeMap installs one or more 2 MiB CreateHuge leaves covering
// [phys, phys+size), for the one-shot boot mapping of the page pool
// (spec.md §4.4: "map the entire page pool as 2 MiB RW huge pages").
// phys, virt and size must be 2 MiB-aligned.
func (as *AddressSpace) EarlyHugeMap(token level.Initialization, phys addr.PhysicalAddress[byte], virt addr.VirtualAddress[byte], size uintptr, prot pte.Protection, mode pte.Mode) level.Initialization {
	const hugePageSize = 2 << 20
	if phys.Addr()%hugePageSize != 0 || virt.Addr()%hugePageSize != 0 || size%hugePageSize != 0 {
		panic("sv39: huge-page bounds must be 2 MiB-aligned")
	}
	mtok := initMappingToken(token)
	for off := uintptr(0); off < size; off += hugePageSize {
		m, err := as.CreateHuge(phys.ByteAdd(off), virt.ByteAdd(off), prot, mode, mtok)
		mtok = m
		if err != nil {
			panic("sv39: huge-page pool mapping failed: " + err.Error())
		}
	}
	return token
}

// initMappingToken synthesizes a Mapping token from Initialization. Like
// trap entry's Prologue synthesis, it manufactures a level token outside
// the normal chain: boot is
// single-threaded, so the invariants a Mapping token represents (no
// concurrent mutator) trivially hold.
func initMappingToken(level.Initialization) level.Mapping {
	return level.Mapping{}
}
