// Package drivers defines the interface every device driver implements
// and the errors a driver's initialization can surface, grounded on
// original_source/src/drivers/driver.rs.
package drivers

import (
	"errors"

	"rvos/addr"
	"rvos/dtb"
	"rvos/level"
)

// ErrNonCompatibleDevice is returned when a driver cannot find a matching
// device-tree node or a required property on it.
var ErrNonCompatibleDevice = errors.New("drivers: non-compatible device")

// ErrNoDataAvailable is returned by a read with an empty buffer or no
// pending data, per spec.md §7.
var ErrNoDataAvailable = errors.New("drivers: no data available")

// Driver is implemented by every device driver the boot sequence probes.
// Initialize runs once, single-threaded, during boot; drivers that
// handle interrupts register their trap.Handler as part of it.
type Driver interface {
	Initialize(token level.Initialization) (level.Initialization, error)
}

// deviceTree and mapDevice are boot-time injections every concrete driver
// needs (the parsed device tree, and a way to turn an MMIO "reg" range
// into a live virtual address) without this package or any driver
// importing the boot package directly — boot imports the drivers, not
// the other way around, so the wiring has to run through package
// variables, the same inversion trap uses for SetController.
var (
	deviceTree *dtb.Tree
	mapDevice  func(phys addr.PhysicalAddress[byte], size uintptr) (addr.VirtualAddress[byte], error)
)

// SetDeviceTree installs the parsed device tree every driver's
// Initialize consults to find its node. Called once, by boot, before any
// driver is initialized.
func SetDeviceTree(t *dtb.Tree) { deviceTree = t }

// DeviceTree returns the tree installed by SetDeviceTree.
func DeviceTree() *dtb.Tree { return deviceTree }

// SetMapDevice installs the function drivers use to map a physical MMIO
// range into kernel virtual address space. Called once, by boot, before
// any driver is initialized.
func SetMapDevice(f func(phys addr.PhysicalAddress[byte], size uintptr) (addr.VirtualAddress[byte], error)) {
	mapDevice = f
}

// MapDevice maps [phys, phys+size) and returns its virtual base.
func MapDevice(phys addr.PhysicalAddress[byte], size uintptr) (addr.VirtualAddress[byte], error) {
	return mapDevice(phys, size)
}
