package initcell

import (
	"testing"

	"rvos/level"
)

func TestGetMutThenFinalizeThenAsRef(t *testing.T) {
	var c Cell[int]
	token := level.NewInitialization()
	v, token := c.GetMut(token)
	*v = 7
	token = c.Finalize(token)
	_ = token
	if got := *c.AsRef(); got != 7 {
		t.Fatalf("AsRef after Finalize: got %d, want 7", got)
	}
}

func TestAsRefBeforeFinalizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected AsRef before Finalize to panic")
		}
	}()
	var c Cell[int]
	c.AsRef()
}

func TestFinalizeTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected second Finalize to panic")
		}
	}()
	var c Cell[int]
	token := level.NewInitialization()
	token = c.Finalize(token)
	c.Finalize(token)
}

func TestGetMutAfterFinalizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected GetMut after Finalize to panic")
		}
	}()
	var c Cell[int]
	token := level.NewInitialization()
	token = c.Finalize(token)
	c.GetMut(token)
}
