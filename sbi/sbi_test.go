package sbi

import "testing"

func TestErrorBijectionOverDefinedValues(t *testing.T) {
	defined := []Error{
		ErrFailed, ErrNotSupported, ErrInvalidParam, ErrDenied,
		ErrInvalidAddress, ErrAlreadyAvailable, ErrAlreadyStarted, ErrAlreadyStopped,
	}
	for _, e := range defined {
		got := errorFromRaw(int64(e))
		if got == nil {
			t.Fatalf("errorFromRaw(%d) returned nil", int64(e))
		}
		if got.(Error) != e {
			t.Fatalf("errorFromRaw(%d): got %v, want %v", int64(e), got, e)
		}
	}
}

func TestErrorFromRawSuccessIsNil(t *testing.T) {
	if err := errorFromRaw(0); err != nil {
		t.Fatalf("errorFromRaw(0): got %v, want nil", err)
	}
}

func TestErrorMessagesAreDistinct(t *testing.T) {
	defined := []Error{
		ErrFailed, ErrNotSupported, ErrInvalidParam, ErrDenied,
		ErrInvalidAddress, ErrAlreadyAvailable, ErrAlreadyStarted, ErrAlreadyStopped,
	}
	seen := map[string]bool{}
	for _, e := range defined {
		msg := e.Error()
		if seen[msg] {
			t.Fatalf("duplicate error message %q", msg)
		}
		seen[msg] = true
	}
}

func TestDecodeVersion(t *testing.T) {
	// major=2, minor=3 packed per the base extension's encoding.
	raw := int64(2)<<24 | 3
	v := decodeVersion(raw)
	if v.Major != 2 || v.Minor != 3 {
		t.Fatalf("decodeVersion(%#x): got %+v, want {Major:2 Minor:3}", raw, v)
	}
}

func TestHartStateStrings(t *testing.T) {
	states := []HartState{
		HartStarted, HartStopped, HartStartPending, HartStopPending,
		HartSuspended, HartSuspendPending, HartResumePending,
	}
	seen := map[string]bool{}
	for _, s := range states {
		str := s.String()
		if str == "" {
			t.Fatalf("empty string for state %d", s)
		}
		if seen[str] {
			t.Fatalf("duplicate HartState string %q", str)
		}
		seen[str] = true
	}
}
