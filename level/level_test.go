package level

import "testing"

func TestRankOrdering(t *testing.T) {
	cases := []struct {
		name string
		rank int
	}{
		{"LockedPrologue", LockedPrologue{}.Rank()},
		{"Prologue", Prologue{}.Rank()},
		{"Paging", Paging{}.Rank()},
		{"Mapping", Mapping{}.Rank()},
		{"Memory", Memory{}.Rank()},
		{"Scheduler", Scheduler{}.Rank()},
		{"Driver", Driver{}.Rank()},
		{"Epilogue", Epilogue{}.Rank()},
	}
	for i := 1; i < len(cases); i++ {
		if cases[i].rank <= cases[i-1].rank {
			t.Fatalf("%s.Rank()=%d is not greater than %s.Rank()=%d",
				cases[i].name, cases[i].rank, cases[i-1].name, cases[i-1].rank)
		}
	}
}

func TestChainRoundTrip(t *testing.T) {
	e := NewEpilogue()
	d := e.Enter()
	s := d.Enter()
	m := s.Enter()
	mp := m.Enter()
	pg := mp.Enter()
	p := pg.Enter()
	lp := p.Enter()

	p2 := lp.Leave()
	pg2 := p2.Leave()
	mp2 := pg2.Leave()
	m2 := mp2.Leave()
	s2 := m2.Leave()
	d2 := s2.Leave()
	e2 := d2.Leave()

	_ = e2 // round trip reconstructs an Epilogue token
}

func TestInitializationRankPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Rank() on Initialization to panic")
		}
	}()
	NewInitialization().Rank()
}

func TestAdapterSkip(t *testing.T) {
	var a Adapter[Driver, Memory]
	guard := a.Enter(Driver{})
	back := guard.Leave(Memory{})
	_ = back
}

func TestAdapterRejectsAscendingPair(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Adapter to panic on an ascending level pair")
		}
	}()
	var a Adapter[Memory, Driver]
	a.Enter(Memory{})
}
