package pte

import "testing"

func TestFlagSetGetRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		set  func(e *Entry)
		get  func(e Entry) bool
	}{
		{"V", func(e *Entry) { e.MarkValid() }, Entry.IsValid},
		{"R", func(e *Entry) { e.MarkReadable() }, Entry.IsReadable},
		{"W", func(e *Entry) { e.MarkWritable() }, Entry.IsWritable},
		{"X", func(e *Entry) { e.MarkExecutable() }, Entry.IsExecutable},
		{"U", func(e *Entry) { e.MarkUserAccessible() }, Entry.IsUserAccessible},
		{"G", func(e *Entry) { e.MarkGlobal() }, Entry.IsGlobal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var e Entry
			if c.get(e) {
				t.Fatalf("%s bit set before Mark", c.name)
			}
			c.set(&e)
			if !c.get(e) {
				t.Fatalf("%s bit not set after Mark", c.name)
			}
		})
	}
}

func TestAccessedDirtyClear(t *testing.T) {
	var e Entry
	e |= bitA | bitD
	if !e.IsAccessed() || !e.IsDirty() {
		t.Fatal("expected A and D set")
	}
	e.ClearAccessFlag()
	if e.IsAccessed() {
		t.Fatal("A bit not cleared")
	}
	e.ClearDirtyFlag()
	if e.IsDirty() {
		t.Fatal("D bit not cleared")
	}
}

func TestPhysicalPageNumberRoundTrip(t *testing.T) {
	var e Entry
	const ppn = uint64(0x1234_5678_9)
	e.SetPhysicalPageNumber(ppn)
	if got := e.PhysicalPageNumber(); got != ppn {
		t.Fatalf("PhysicalPageNumber round trip: got %#x, want %#x", got, ppn)
	}
}

func TestSetPhysicalPageNumberPanicsOnOverflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a PPN wider than 44 bits")
		}
	}()
	var e Entry
	e.SetPhysicalPageNumber(1 << 44)
}

func TestIsInnerPageTable(t *testing.T) {
	var e Entry
	if !e.IsInnerPageTable() {
		t.Fatal("zero entry should be an inner page table")
	}
	e.MarkReadable()
	if e.IsInnerPageTable() {
		t.Fatal("readable entry should not be an inner page table")
	}
}

func TestProtectionPredicates(t *testing.T) {
	cases := []struct {
		p                          Protection
		readable, writable, execok bool
	}{
		{ProtR, true, false, false},
		{ProtRW, true, true, false},
		{ProtX, false, false, true},
		{ProtRX, true, false, true},
		{ProtRWX, true, true, true},
	}
	for _, c := range cases {
		if got := c.p.IsReadable(); got != c.readable {
			t.Errorf("%v.IsReadable(): got %v, want %v", c.p, got, c.readable)
		}
		if got := c.p.IsWritable(); got != c.writable {
			t.Errorf("%v.IsWritable(): got %v, want %v", c.p, got, c.writable)
		}
		if got := c.p.IsExecutable(); got != c.execok {
			t.Errorf("%v.IsExecutable(): got %v, want %v", c.p, got, c.execok)
		}
	}
}

func TestProtectionFromBitsRoundTrip(t *testing.T) {
	for _, p := range []Protection{ProtR, ProtRW, ProtX, ProtRX, ProtRWX} {
		got := ProtectionFromBits(p.IsReadable(), p.IsWritable(), p.IsExecutable())
		if got != p {
			t.Fatalf("ProtectionFromBits round trip: got %v, want %v", got, p)
		}
	}
}

func TestProtectionFromBitsPanicsOnWriteOnly(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for R=0,W=1")
		}
	}()
	ProtectionFromBits(false, true, false)
}

func TestMakeLeafSetsUserBitForUserMode(t *testing.T) {
	e := MakeLeaf(0x100, ProtRW, ModeUser)
	if !e.IsUserAccessible() {
		t.Fatal("expected U bit set for ModeUser")
	}
	if !e.IsValid() {
		t.Fatal("expected V bit set")
	}
}

func TestMakeInnerIsNotUserAccessibleOrLeaf(t *testing.T) {
	e := MakeInner(0x200)
	if e.IsUserAccessible() {
		t.Fatal("inner entries must not be user accessible")
	}
	if !e.IsInnerPageTable() {
		t.Fatal("MakeInner should produce an inner page-table entry")
	}
	if !e.IsValid() {
		t.Fatal("expected V bit set")
	}
}
