// Package plic implements the RISC-V Platform-Level Interrupt Controller
// driver: source priority configuration, per-hart supervisor-context
// enable bits, and the claim/complete handshake trap dispatch drives
// through trap.Controller.
//
// Grounded on original_source/src/trap/intc.rs's PLIC/InterruptController
// shape (register offsets, configure/mask/unmask, Driver::initiailize's
// device-tree lookup and per-hart threshold setup) and on the SiFive
// U54-MC Core Complex Manual / RISC-V PLIC specification the original
// cites for the register map. Two defects in the original are not
// reproduced: unmask wrote the same priority (0) as mask,
// permanently masking every configured source, and the per-context
// register base was computed from the Priority offset (0x0) rather than
// the PriorityThreshold offset (0x200000), aliasing threshold/claim
// writes onto the priority array. The original also left enable-bit
// programming and the claim/complete handshake as a todo!(); this
// package implements both, since without them no interrupt could ever
// reach a hart.
package plic

import (
	"rvos/addr"
	"rvos/constcell"
	"rvos/cpu"
	"rvos/drivers"
	"rvos/drivers/mmio"
	"rvos/level"
	"rvos/ticketlock"
	"rvos/trap"
)

// Register offsets (bytes, relative to the configuration space base) per
// the RISC-V PLIC specification and the SiFive U54-MC memory map.
const (
	priorityOffset uintptr = 0x0
	pendingOffset  uintptr = 0x1000
	enableOffset   uintptr = 0x2000
	enableStride   uintptr = 0x80

	contextOffset uintptr = 0x200000
	contextStride uintptr = 0x1000
	thresholdRel  uintptr = 0x0
	claimCompRel  uintptr = 0x4
)

// numInterruptSources bounds the source-ID space (Chapter 3 of the PLIC
// specification).
const numInterruptSources = 1024

// DeliveryMode selects how a configured source's enable bits are
// programmed across the registered harts' supervisor contexts.
type DeliveryMode int

const (
	// Unicast enables the source on exactly one hart's context, chosen
	// round-robin among the harts with a supervisor context.
	Unicast DeliveryMode = iota
	// Broadcast enables the source on every hart's supervisor context.
	Broadcast
)

// configuredSource tracks the one-time delivery-mode assignment for a
// single interrupt source, matching intc.rs's deliviery_modes array
// (write-once, asserted in configure).
type configuredSource struct {
	mode DeliveryMode
	set  bool
}

type plicState struct {
	space            mmio.Space
	numSources       int
	sources          [numInterruptSources]configuredSource
	nextUnicastIndex int
}

// Plic is the driver for a single PLIC instance.
type Plic struct {
	lock *ticketlock.PrologueIRQTicketlock[plicState]
}

// Global is the kernel's single PLIC driver instance.
var Global = New()

// New constructs an uninitialized PLIC driver; Initialize must run
// before any other method.
func New() *Plic {
	return &Plic{lock: ticketlock.NewPrologueIRQ(plicState{})}
}

// supervisorContext returns the PLIC context index used to reach hart's
// supervisor-mode interrupt target. Hart 0 has only a machine-mode
// context on this platform layout (see intc.rs's
// set_context_priority_threashold special case) — it can never be given
// a supervisor PLIC context, so the boot hart structurally cannot take
// external interrupts through this controller. Callers must route
// around hart 0 (e.g. configure delivery to skip it, as Initialize
// does); reaching this function with hart 0 is a configuration bug.
func supervisorContext(hart cpu.HartID) uintptr {
	if hart == 0 {
		panic("plic: hart 0 has no supervisor PLIC context")
	}
	return uintptr(2 * hart)
}

func contextBase(ctx uintptr) uintptr {
	return contextOffset + ctx*contextStride
}

func (p *plicState) setPriority(source int, priority uint32) {
	if err := p.space.StoreU32(priorityOffset+uintptr(source)*4, priority); err != nil {
		panic("plic: priority register store out of bounds")
	}
}

func (p *plicState) setThreshold(ctx uintptr, threshold uint32) {
	if err := p.space.StoreU32(contextBase(ctx)+thresholdRel, threshold); err != nil {
		panic("plic: threshold register store out of bounds")
	}
}

func (p *plicState) setEnable(ctx uintptr, source int, enabled bool) {
	word := enableOffset + ctx*enableStride + uintptr(source/32)*4
	bit, err := p.space.LoadU32(word)
	if err != nil {
		panic("plic: enable register load out of bounds")
	}
	mask := uint32(1) << uint(source%32)
	if enabled {
		bit |= mask
	} else {
		bit &^= mask
	}
	if err := p.space.StoreU32(word, bit); err != nil {
		panic("plic: enable register store out of bounds")
	}
}

// harts returns every registered hart that has a supervisor PLIC
// context, i.e. every hart except hart 0.
func harts() []cpu.HartID {
	var out []cpu.HartID
	for i := 0; i < cpu.Count(); i++ {
		h := cpu.LookupHartID(cpu.LogicalCPUID(i))
		if h != 0 {
			out = append(out, h)
		}
	}
	return out
}

// Configure assigns interrupt's delivery mode and programs the
// corresponding enable bits. May be called exactly once per interrupt
// source; a second call panics, matching intc.rs's configure assert.
func (p *Plic) Configure(interrupt trap.Interrupt, mode DeliveryMode, token level.Initialization) level.Initialization {
	state, token := p.lock.InitValue(token)
	idx := int(interrupt)
	if state.sources[idx].set {
		panic("plic: interrupt source already configured")
	}
	state.sources[idx] = configuredSource{mode: mode, set: true}

	all := harts()
	if len(all) == 0 {
		return token
	}
	switch mode {
	case Broadcast:
		for _, h := range all {
			state.setEnable(supervisorContext(h), idx, true)
		}
	case Unicast:
		target := all[state.nextUnicastIndex%len(all)]
		state.nextUnicastIndex++
		state.setEnable(supervisorContext(target), idx, true)
	}
	return token
}

// Mask disables delivery of interrupt by dropping its source priority to
// 0 (priority 0 means "never interrupts", per the PLIC specification).
func (p *Plic) Mask(interrupt trap.Interrupt, token level.Initialization) level.Initialization {
	state, token := p.lock.InitValue(token)
	state.setPriority(int(interrupt), 0)
	return token
}

// Unmask enables delivery of interrupt at priority 1, the lowest
// priority that still clears every hart's default threshold of 0.
func (p *Plic) Unmask(interrupt trap.Interrupt, token level.Initialization) level.Initialization {
	state, token := p.lock.InitValue(token)
	state.setPriority(int(interrupt), 1)
	return token
}

// Source claims the highest-priority pending interrupt on the calling
// hart's supervisor context. Implements trap.Controller.
func (p *Plic) Source(token level.Prologue) (trap.Interrupt, level.Prologue) {
	guard, locked := p.lock.Lock(token)
	state := guard.Value()
	hart := cpu.LookupHartID(cpu.Current())
	claimed, err := state.space.LoadU32(contextBase(supervisorContext(hart)) + claimCompRel)
	if err != nil {
		panic("plic: claim register load out of bounds")
	}
	if claimed == 0 {
		panic("plic: claim returned 0 (no pending source) on an asserted external interrupt")
	}
	token = guard.Unlock(locked)
	return trap.Interrupt(claimed), token
}

// EndOfInterrupt completes interrupt i on the calling hart's supervisor
// context, re-arming it to be claimed again. Implements trap.Controller.
func (p *Plic) EndOfInterrupt(i trap.Interrupt, token level.Prologue) level.Prologue {
	guard, locked := p.lock.Lock(token)
	state := guard.Value()
	hart := cpu.LookupHartID(cpu.Current())
	if err := state.space.StoreU32(contextBase(supervisorContext(hart))+claimCompRel, uint32(i)); err != nil {
		panic("plic: complete register store out of bounds")
	}
	token = guard.Unlock(locked)
	return token
}

// compatible is the device-tree "compatible" string the PLIC node on
// the SiFive U5 Coreplex (and QEMU's virt machine) advertises, held in a
// const cell to mark it immutable for the kernel's whole lifetime.
var compatible = constcell.New("sifive,plic-1.0.0")

// Initialize locates the PLIC node in the device tree, maps its
// configuration space, zeroes every source's priority, and sets every
// non-zero hart's supervisor-context threshold to 0 so any nonzero
// priority source can interrupt it. Implements drivers.Driver.
//
// Grounded on intc.rs's Driver::initiailize: hart 0 is skipped in the
// threshold-setup loop there because it has no supervisor context (see
// supervisorContext); this port skips it for the same reason.
func (p *Plic) Initialize(token level.Initialization) (level.Initialization, error) {
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
	ndevProp, ok := node.Property("riscv,ndev")
	if !ok {
		return token, drivers.ErrNonCompatibleDevice
	}
	ndev, ok := ndevProp.AsU32()
	if !ok {
		return token, drivers.ErrNonCompatibleDevice
	}

	phys := addr.NewPhysical[byte](uintptr(regs[0].Address))
	size := uintptr(regs[0].Length)
	virt, err := drivers.MapDevice(phys, size)
	if err != nil {
		return token, err
	}

	state, token := p.lock.InitValue(token)
	state.space.Relocate(virt, size)
	state.numSources = int(ndev)

	for i := 1; i < numInterruptSources; i++ {
		state.setPriority(i, 0)
	}
	for _, h := range harts() {
		state.setThreshold(supervisorContext(h), 0)
	}

	return token, nil
}
