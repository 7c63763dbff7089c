package constcell

import "testing"

func TestGetReturnsWrappedValue(t *testing.T) {
	c := New(1234)
	if c.Get() != 1234 {
		t.Fatalf("Get: got %d, want 1234", c.Get())
	}
}
