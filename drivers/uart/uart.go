// Package uart implements the driver for a 16550A-compatible UART: the
// kernel's sole output sink (there is no structured logging package, per
// SPEC_FULL.md §10 — everything goes through Write/WriteString here).
//
// Grounded on original_source/src/drivers/uart.rs's UARTNS16550a: register
// offsets, the data-bits/stop-bits/parity LCR encoding, the baud-rate
// divisor-latch sequence, and the locked-vs-unchecked write split. The
// original's read() is an unimplemented todo!(); this package implements
// it against the LSR "receiver ready" bit and ErrNoDataAvailable
// (drivers.ErrNoDataAvailable, per spec.md §7) when nothing is pending,
// since a receive interrupt with no readable byte would otherwise have
// nothing to report to its prologue.
package uart

import (
	"rvos/addr"
	"rvos/constcell"
	"rvos/drivers"
	"rvos/drivers/mmio"
	"rvos/level"
	"rvos/ticketlock"
)

// Register offsets, relative to the configuration space base.
const (
	regRHR = 0 // Receive Holding Register (read) / Transmit Holding (write)
	regIER = 1 // Interrupt Enable Register
	regLCR = 3 // Line Control Register
	regLSR = 5 // Line Status Register
)

// Interrupt-enable bits in IER.
const (
	ierRHRI = 1 << 0 // Receive Holding Register Interrupt
	ierTHRI = 1 << 1 // Transmit Holding Register Interrupt
	ierRLSI = 1 << 2 // Receive Line Status Interrupt
	ierMSI  = 1 << 3 // Modem Status Interrupt
)

// Line Status Register bits.
const (
	lsrRHRNonEmpty         = 1 << 0
	lsrTransmitBufferEmpty = 1 << 5
)

// Line Control Register field positions/values.
const (
	lcrDataBitsShift   = 0
	lcrStopBitsShift   = 2
	lcrParityModeShift = 3
	lcrDLREnabled      = 1 << 7

	dataBitsEight = 0b11
	stopBitsOne   = 0b0
	parityNone    = 0b000
)

// baseClockDivisorConstant is the 16550A's fixed UART_CLOCK/16 divisor
// base (1.8432 MHz / 16), matching the original's hardcoded 0x1c200.
const baseClockDivisorConstant = 0x1c200

type uartState struct {
	space mmio.Space
}

func (u *uartState) loadReg(off uintptr) byte {
	v, err := u.space.LoadByte(off)
	if err != nil {
		panic("uart: register load out of bounds")
	}
	return v
}

func (u *uartState) storeReg(off uintptr, v byte) {
	if err := u.space.StoreByte(off, v); err != nil {
		panic("uart: register store out of bounds")
	}
}

func (u *uartState) setIER(mask byte, enable bool) {
	v := u.loadReg(regIER)
	if enable {
		v |= mask
	} else {
		v &^= mask
	}
	u.storeReg(regIER, v)
}

func (u *uartState) configureBaudrate(baud uint32) {
	lcr := u.loadReg(regLCR)
	u.storeReg(regLCR, lcr|lcrDLREnabled)

	divisor := baseClockDivisorConstant / baud
	u.storeReg(regRHR, byte(divisor))
	u.storeReg(regIER, byte(divisor>>8))

	u.storeReg(regLCR, lcr&^lcrDLREnabled)
}

func (u *uartState) configureFraming() {
	lcr := u.loadReg(regLCR) &^ (0b11 | 0b1<<lcrStopBitsShift | 0b111<<lcrParityModeShift)
	lcr |= dataBitsEight << lcrDataBitsShift
	lcr |= stopBitsOne << lcrStopBitsShift
	lcr |= parityNone << lcrParityModeShift
	u.storeReg(regLCR, lcr)
}

// driverLock acquires at Driver and releases to Scheduler: the UART's
// lock sits where spec.md's generic "driver lock" sits in the hierarchy,
// one step above per-core storage's Scheduler gate.
type driverLock = ticketlock.Ticketlock[uartState, level.Driver, level.Scheduler]

// UART is the driver for a single 16550A instance.
type UART struct {
	lock *driverLock
}

// Global is the kernel's single UART driver instance.
var Global = New()

// New constructs an uninitialized UART driver; Initialize must run before
// any other method.
func New() *UART {
	return &UART{lock: ticketlock.New[uartState, level.Driver, level.Scheduler](uartState{})}
}

// compatible and defaultBaudrate are fixed driver configuration, held in
// const cells to mark them immutable for the kernel's whole lifetime.
var (
	compatible      = constcell.New("ns16550a")
	defaultBaudrate = constcell.New[uint32](115200)
)

// Initialize locates the ns16550a device-tree node, maps its
// configuration space, disables every interrupt source, configures
// 115200-8N1 framing, and re-enables the receive-holding interrupt.
// Implements drivers.Driver.
func (u *UART) Initialize(token level.Initialization) (level.Initialization, error) {
	tree := drivers.DeviceTree()
	node, ok := tree.NodeByCompatible(compatible.Get())
	if !ok {
		return token, drivers.ErrNonCompatibleDevice
	}
	addressCells, sizeCells := tree.AddressSizeCells(node)
	regs, ok := node.Reg(addressCells, sizeCells)
	if !ok || len(regs) == 0 {
		return token, drivers.ErrNonCompatibleDevice
	}

	phys := addr.NewPhysical[byte](uintptr(regs[0].Address))
	size := uintptr(regs[0].Length)
	virt, err := drivers.MapDevice(phys, size)
	if err != nil {
		return token, err
	}

	state, token := u.lock.InitValue(token)
	state.space.Relocate(virt, size)

	state.setIER(ierRHRI|ierTHRI|ierRLSI|ierMSI, false)
	state.configureBaudrate(defaultBaudrate.Get())
	state.configureFraming()
	state.setIER(ierRHRI, true)

	return token, nil
}

// Write sends one byte, spinning until the transmit holding register is
// empty.
func (u *UART) Write(value byte, token level.Driver) (level.Driver, error) {
	guard, lower := u.lock.Lock(token)
	for guard.Value().loadReg(regLSR)&lsrTransmitBufferEmpty == 0 {
	}
	guard.Value().storeReg(regRHR, value)
	return guard.Unlock(lower), nil
}

// WriteString writes every byte of s via Write.
func (u *UART) WriteString(s string, token level.Driver) (level.Driver, error) {
	for i := 0; i < len(s); i++ {
		var err error
		token, err = u.Write(s[i], token)
		if err != nil {
			return token, err
		}
	}
	return token, nil
}

// WriteUnchecked writes a single byte bypassing the caller's actual
// position in the lock hierarchy, for the panic path (spec.md §7: "the
// first hart to panic writes an emergency message to the serial port").
// Safety/contract: the caller guarantees exclusive access to the device —
// every other hart is either halting or about to — matching spec.md §9
// open question (c), "not enforced by types". Grounded on uart.rs's
// write_unchecked, which manufactures its own LevelDriver token for
// exactly this reason rather than threading one through the panic path.
func (u *UART) WriteUnchecked(value byte) {
	_, _ = u.Write(value, level.Driver{})
}

// Read returns the next received byte, or ErrNoDataAvailable if the
// receive-holding register has nothing pending.
func (u *UART) Read(token level.Driver) (byte, level.Driver, error) {
	guard, lower := u.lock.Lock(token)
	if guard.Value().loadReg(regLSR)&lsrRHRNonEmpty == 0 {
		upper := guard.Unlock(lower)
		return 0, upper, drivers.ErrNoDataAvailable
	}
	b := guard.Value().loadReg(regRHR)
	return b, guard.Unlock(lower), nil
}
