package addr

import "testing"

func TestAddrRoundTrip(t *testing.T) {
	p := NewPhysical[uint64](0x8020_0000)
	if p.Addr() != 0x8020_0000 {
		t.Fatalf("Addr() round trip failed: got %#x", p.Addr())
	}
}

func TestAddArithmeticUsesElementSize(t *testing.T) {
	base := NewPhysical[uint64](0x1000)
	next := base.Add(2)
	if next.Addr() != 0x1000+16 {
		t.Fatalf("Add(2) on uint64 elements: got %#x, want %#x", next.Addr(), 0x1000+16)
	}
}

func TestByteArithmeticRoundTrip(t *testing.T) {
	base := NewVirtual[byte](0x2000)
	up := base.ByteAdd(0x100)
	down := up.ByteSub(0x100)
	if down.Addr() != base.Addr() {
		t.Fatalf("ByteAdd/ByteSub did not round trip: got %#x, want %#x", down.Addr(), base.Addr())
	}
}

func TestSubDistance(t *testing.T) {
	a := NewPhysical[byte](0x3000)
	b := NewPhysical[byte](0x1000)
	if a.Sub(b) != 0x2000 {
		t.Fatalf("Sub: got %#x, want %#x", a.Sub(b), 0x2000)
	}
}

func TestOrdering(t *testing.T) {
	lo := NewVirtual[byte](0x1000)
	hi := NewVirtual[byte](0x2000)
	if !lo.Less(hi) || hi.Less(lo) {
		t.Fatal("Less did not order by numeric address")
	}
}

func TestIsNull(t *testing.T) {
	if !(PhysicalAddress[byte]{}).IsNull() {
		t.Fatal("zero value PhysicalAddress should be null")
	}
	if NewPhysical[byte](1).IsNull() {
		t.Fatal("non-zero PhysicalAddress should not be null")
	}
}
