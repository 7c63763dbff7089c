// Package sbi implements the Supervisor Binary Interface client: the
// ECALL-based ABI between supervisor software and firmware. Extension ID
// goes in a7, function ID in a6, arguments in a0.., error comes back in
// a0, value in a1.
//
// Grounded on original_source/src/kernel/sbi.rs for the exact extension
// IDs, function IDs, error codes and hart-state enumeration; spec.md §6
// names only the two scenario-tested functions (HSM start/status, base
// probe/version) but the full SBIError/SBIHartState surface is carried
// over per SPEC_FULL.md §12, since every SBI call (not just the two
// tested ones) must surface its errors through the same typed value.
package sbi

import (
	"fmt"

	"rvos/addr"
	"rvos/cpu"
)

func sbiEcall0(eid, fid uint64) (errval int64, value int64)
func sbiEcall1(eid, fid, arg0 uint64) (errval int64, value int64)
func sbiEcall3(eid, fid, arg0, arg1, arg2 uint64) (errval int64, value int64)

// Error mirrors the standard SBI errno set.
type Error int64

const (
	ErrSuccess          Error = 0
	ErrFailed           Error = -1
	ErrNotSupported     Error = -2
	ErrInvalidParam     Error = -3
	ErrDenied           Error = -4
	ErrInvalidAddress   Error = -5
	ErrAlreadyAvailable Error = -6
	ErrAlreadyStarted   Error = -7
	ErrAlreadyStopped   Error = -8
)

func (e Error) Error() string {
	switch e {
	case ErrSuccess:
		return "sbi: success"
	case ErrFailed:
		return "sbi: failed"
	case ErrNotSupported:
		return "sbi: not supported"
	case ErrInvalidParam:
		return "sbi: invalid parameter"
	case ErrDenied:
		return "sbi: denied"
	case ErrInvalidAddress:
		return "sbi: invalid address"
	case ErrAlreadyAvailable:
		return "sbi: already available"
	case ErrAlreadyStarted:
		return "sbi: already started"
	case ErrAlreadyStopped:
		return "sbi: already stopped"
	default:
		return fmt.Sprintf("sbi: unknown error %d", int64(e))
	}
}

// errorFromRaw converts a raw a0 return value to an error, nil on
// success. Values outside the defined enum are preserved as an Error so
// callers still see the numeric code (the bijection tested in §8 only
// covers the eight defined values).
func errorFromRaw(raw int64) error {
	if raw == 0 {
		return nil
	}
	return Error(raw)
}

// ExtensionID identifies an SBI extension.
type ExtensionID uint64

const (
	ExtensionBase ExtensionID = 0x10
	ExtensionHSM  ExtensionID = 0x48534D
)

// Base extension function IDs.
const (
	baseFuncSpecificationVersion uint64 = 0x00
	baseFuncProbeExtension       uint64 = 0x03
)

// HSM extension function IDs.
const (
	hsmFuncHartStart  uint64 = 0x00
	hsmFuncHartStatus uint64 = 0x02
)

// Version is the SBI specification version, split into major and minor
// components per the base extension's encoding.
type Version struct {
	Major uint32
	Minor uint32
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// decodeVersion splits a base-extension spec_version return value into
// its major/minor fields.
func decodeVersion(value int64) Version {
	return Version{
		Minor: uint32(value & 0xffffff),
		Major: uint32((value >> 24) & 0x7f),
	}
}

// SpecificationVersion queries the firmware's SBI spec version.
func SpecificationVersion() (Version, error) {
	errval, value := sbiEcall0(uint64(ExtensionBase), baseFuncSpecificationVersion)
	if err := errorFromRaw(errval); err != nil {
		return Version{}, err
	}
	return decodeVersion(value), nil
}

// ProbeExtension reports whether the firmware implements ext.
func ProbeExtension(ext ExtensionID) (bool, error) {
	errval, value := sbiEcall1(uint64(ExtensionBase), baseFuncProbeExtension, uint64(ext))
	if err := errorFromRaw(errval); err != nil {
		return false, err
	}
	return value == 1, nil
}

// HartState is the firmware-reported state of a hart, per the HSM
// extension's hart_get_status call.
type HartState uint64

const (
	HartStarted        HartState = 0
	HartStopped        HartState = 1
	HartStartPending   HartState = 2
	HartStopPending    HartState = 3
	HartSuspended      HartState = 4
	HartSuspendPending HartState = 5
	HartResumePending  HartState = 6
)

func (s HartState) String() string {
	switch s {
	case HartStarted:
		return "started"
	case HartStopped:
		return "stopped"
	case HartStartPending:
		return "start-pending"
	case HartStopPending:
		return "stop-pending"
	case HartSuspended:
		return "suspended"
	case HartSuspendPending:
		return "suspend-pending"
	case HartResumePending:
		return "resume-pending"
	default:
		return fmt.Sprintf("hart-state(%d)", uint64(s))
	}
}

// StatusHart queries the HSM state of hart.
func StatusHart(hart cpu.HartID) (HartState, error) {
	errval, value := sbiEcall1(uint64(ExtensionHSM), hsmFuncHartStatus, uint64(hart))
	if err := errorFromRaw(errval); err != nil {
		return 0, err
	}
	return HartState(value), nil
}

// StartHart requests the firmware start hart at startAddr (a physical
// entry point taking (hartID, arg) as its first two registers) with the
// given opaque arg, per the HSM hart_start call.
func StartHart(hart cpu.HartID, startAddr addr.PhysicalAddress[byte], arg uint64) error {
	errval, _ := sbiEcall3(uint64(ExtensionHSM), hsmFuncHartStart, uint64(hart), uint64(startAddr.Addr()), arg)
	return errorFromRaw(errval)
}

// Client adapts the package-level SBI calls to cpu.HartStatusProbe: a
// hart counts as registered if the firmware acknowledges any status for
// it at all (see cpu.Initialize's doc comment for why every HSM state is
// accepted, not just Started).
type Client struct{}

// StatusHart implements cpu.HartStatusProbe.
func (Client) StatusHart(hart cpu.HartID) bool {
	_, err := StatusHart(hart)
	return err == nil
}
