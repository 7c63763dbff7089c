package sv39

import (
	"testing"
	"unsafe"

	"rvos/addr"
	"rvos/level"
	"rvos/mem/pagealloc"
	"rvos/mem/pte"
)

// newTestFixture wires a pagealloc.Allocator over real, page-aligned Go
// memory (same technique as pagealloc's own tests) so sv39's table walks
// touch addressable memory, plus a KernelHalf and one AddressSpace built
// over it.
func newTestFixture(t *testing.T, numFrames int) (*pagealloc.Allocator, *AddressSpace) {
	t.Helper()
	raw := make([]byte, (numFrames+1)*pagealloc.PageSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + pagealloc.PageSize - 1) &^ (pagealloc.PageSize - 1)
	phys := addr.NewPhysical[byte](aligned)
	virt := addr.NewVirtual[byte](aligned)
	alloc := pagealloc.New(phys, virt, numFrames)

	token := level.NewInitialization()
	kernel, token := NewKernelHalf(token, alloc)
	as, _ := New(token, alloc, kernel)
	return alloc, as
}

func TestMappingRoundTrip(t *testing.T) {
	_, as := newTestFixture(t, 64)

	virt := addr.NewVirtual[byte](uintptr(KernelL2Min) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	mapping := level.Mapping{}
	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeKernel, mapping); err != nil {
		t.Fatalf("Create: %v", err)
	}
	gotPhys, prot, mode, err := as.Lookup(virt)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotPhys.Addr() != phys.Addr() {
		t.Fatalf("Lookup phys: got %#x, want %#x", gotPhys.Addr(), phys.Addr())
	}
	if prot != pte.ProtRW {
		t.Fatalf("Lookup prot: got %v, want ProtRW", prot)
	}
	if mode != pte.ModeKernel {
		t.Fatalf("Lookup mode: got %v, want ModeKernel", mode)
	}
}

func TestUserVPN0OutOfRangeRejected(t *testing.T) {
	_, as := newTestFixture(t, 64)

	virt := addr.NewVirtual[byte](uintptr(KernelL2Min) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeUser, level.Mapping{}); err != ErrInvalidAddress {
		t.Fatalf("Create with ModeUser at a kernel VPN[0]: got %v, want ErrInvalidAddress", err)
	}
}

func TestKernelVPN0OutOfRangeRejected(t *testing.T) {
	_, as := newTestFixture(t, 64)

	virt := addr.NewVirtual[byte](uintptr(UserL2Max) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeKernel, level.Mapping{}); err != ErrInvalidAddress {
		t.Fatalf("Create with ModeKernel at a user VPN[0]: got %v, want ErrInvalidAddress", err)
	}
}

func TestDoubleCreateRejected(t *testing.T) {
	_, as := newTestFixture(t, 64)

	virt := addr.NewVirtual[byte](uintptr(UserL2Min) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeUser, level.Mapping{}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeUser, level.Mapping{}); err != ErrAddressAlreadyInUse {
		t.Fatalf("second Create: got %v, want ErrAddressAlreadyInUse", err)
	}
}

func TestLookupMissingAddressFails(t *testing.T) {
	_, as := newTestFixture(t, 64)
	virt := addr.NewVirtual[byte](uintptr(UserL2Min) << 30)
	if _, _, _, err := as.Lookup(virt); err != ErrNoSuchAddress {
		t.Fatalf("Lookup of unmapped address: got %v, want ErrNoSuchAddress", err)
	}
}

func TestUpdateChangesProtection(t *testing.T) {
	_, as := newTestFixture(t, 64)
	virt := addr.NewVirtual[byte](uintptr(UserL2Min) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	if _, err := as.Create(phys, virt, pte.ProtR, pte.ModeUser, level.Mapping{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !as.IsUserReadable(virt) || as.IsUserWritable(virt) {
		t.Fatal("expected read-only before Update")
	}
	if _, err := as.Update(virt, pte.ProtRW, pte.ModeUser, level.Mapping{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !as.IsUserWritable(virt) {
		t.Fatal("expected writable after Update")
	}
}

func TestRemoveInvalidatesLeaf(t *testing.T) {
	_, as := newTestFixture(t, 64)
	virt := addr.NewVirtual[byte](uintptr(UserL2Min) << 30)
	phys := addr.NewPhysical[byte](0x8000_0000)

	if _, err := as.Create(phys, virt, pte.ProtRW, pte.ModeUser, level.Mapping{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := as.Remove(virt, pte.ModeUser, level.Mapping{}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, _, _, err := as.Lookup(virt); err != ErrNoSuchAddress {
		t.Fatalf("Lookup after Remove: got %v, want ErrNoSuchAddress", err)
	}
}

func TestEarlyCreateDevMapsWholeRange(t *testing.T) {
	_, as := newTestFixture(t, 64)
	phys := addr.NewPhysical[byte](0x1000_0000)
	const size = pagealloc.PageSize*2 + 1
	// Offset chosen so the mapped range lands in the kernel half
	// (EarlyCreateDev always maps ModeKernel).
	const virtOffset = uintptr(KernelL2Min) << 30

	token := level.NewInitialization()
	virt, _, err := as.EarlyCreateDev(token, phys, size, virtOffset)
	if err != nil {
		t.Fatalf("EarlyCreateDev: %v", err)
	}
	if virt.Addr() != phys.Addr()+virtOffset {
		t.Fatalf("EarlyCreateDev base: got %#x, want %#x", virt.Addr(), phys.Addr()+virtOffset)
	}
	got, _, _, err := as.Lookup(virt)
	if err != nil {
		t.Fatalf("Lookup first page: %v", err)
	}
	if got.Addr() != phys.Addr() {
		t.Fatalf("Lookup first page phys: got %#x, want %#x", got.Addr(), phys.Addr())
	}
	lastPage := addr.NewVirtual[byte](virt.Addr() + 2*pagealloc.PageSize)
	if _, _, _, err := as.Lookup(lastPage); err != nil {
		t.Fatalf("Lookup third page: %v", err)
	}
}
