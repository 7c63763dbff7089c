// Boot and hart bring-up: kernel_init on the boot hart and kernel_ap_init
// on every secondary, implementing spec.md §4.8's sequence end to end by
// wiring together every other package in the module. This is the one
// package allowed to import all of them (everything else routes through
// narrow interfaces — trap.Controller, drivers.Driver — to avoid import
// cycles); boot is where those interfaces get their concrete wiring.
//
// Grounded on original_source/src/kernel/{boot,boot_ap}.rs's kernel_init/
// kernel_ap_init for the exact step order.
package boot

import (
	"fmt"
	"unsafe"

	"rvos/addr"
	"rvos/cpu"
	"rvos/csr"
	"rvos/drivers"
	panicdrv "rvos/drivers/panic"
	"rvos/drivers/uart"
	"rvos/dtb"
	"rvos/epilogue"
	"rvos/level"
	"rvos/mem/pagealloc"
	"rvos/mem/pte"
	"rvos/mem/sv39"
	"rvos/plic"
	"rvos/sbi"
	"rvos/trap"
)

// kernelAS is the one kernel address space every hart installs into SATP.
// Built once on the boot hart; secondary harts only read RootPPN.
var kernelAS *sv39.AddressSpace

// devVirtOffset is the fixed virtual-minus-physical offset used for every
// boot-time device/DTB mapping, reusing .data's own offset per spec.md
// §4.4's "Device MMIO helper ... returns a virtual base at a fixed offset
// from the physical base (the linker's .data phys↔virt offset is
// reused)".
func devVirtOffset() uintptr {
	d := DataSegment()
	return d.VirtStart.Addr() - d.PhysStart.Addr()
}

// mapSegments installs the one-shot boot mappings spec.md §4.4 describes:
// 4 KiB pages for .text/.rodata/.data/.bss at their linker-given
// virtual/physical bounds, and the entire page pool as 2 MiB huge pages.
func mapSegments(token level.Initialization) level.Initialization {
	text := TextSegment()
	token = kernelAS.EarlySegmentMap(token, text.PhysStart, text.VirtStart, text.Size(), pte.ProtRX, pte.ModeKernel)

	rodata := RodataSegment()
	token = kernelAS.EarlySegmentMap(token, rodata.PhysStart, rodata.VirtStart, rodata.Size(), pte.ProtR, pte.ModeKernel)

	data := DataSegment()
	token = kernelAS.EarlySegmentMap(token, data.PhysStart, data.VirtStart, data.Size(), pte.ProtRW, pte.ModeKernel)

	bss := BSSSegment()
	token = kernelAS.EarlySegmentMap(token, bss.PhysStart, bss.VirtStart, bss.Size(), pte.ProtRW, pte.ModeKernel)

	pages := PagesSegment()
	token = kernelAS.EarlyHugeMap(token, pages.PhysStart, pages.VirtStart, pages.Size(), pte.ProtRW, pte.ModeKernel)

	return token
}

// mapDeviceBootTime builds the MapDevice closure drivers.SetMapDevice
// installs. tokenCell threads the Initialization token through calls
// drivers.Driver.Initialize makes indirectly (via drivers.MapDevice,
// whose signature carries no token) — boot is single-threaded at this
// point, so a mutable cell stands in for the token the way spec.md §9
// prescribes falling back to a runtime check where the type system
// can't express the thread.
func mapDeviceBootTime(tokenCell *level.Initialization) func(addr.PhysicalAddress[byte], uintptr) (addr.VirtualAddress[byte], error) {
	offset := devVirtOffset()
	return func(phys addr.PhysicalAddress[byte], size uintptr) (addr.VirtualAddress[byte], error) {
		virt, token, err := kernelAS.EarlyCreateDev(*tokenCell, phys, size, offset)
		*tokenCell = token
		return virt, err
	}
}

// mapAndParseDTB maps the DTB blob into kernel virtual space and decodes
// it, per spec.md §4.8's "map+parse device tree" step.
func mapAndParseDTB(token level.Initialization, dtbPhys addr.PhysicalAddress[byte], dtbSize uintptr) (*dtb.Tree, level.Initialization) {
	virt, token, err := kernelAS.EarlyCreateDev(token, dtbPhys, dtbSize, devVirtOffset())
	if err != nil {
		panic("boot: failed to map device tree blob: " + err.Error())
	}
	blob := unsafe.Slice(virt.AsPointer(), dtbSize)
	tree, err := dtb.Parse(blob)
	if err != nil {
		panic("boot: failed to parse device tree: " + err.Error())
	}
	return tree, token
}

// uartHandler adapts the UART driver to trap.Handler. The UART's lock
// sits at Driver level, far above anything a prologue may acquire, so
// the prologue only requests an epilogue; the epilogue then drains and
// discards the RX FIFO under the normal lock discipline (the core has no
// upper consumer for received bytes — no console, no user processes, per
// spec.md §1 Non-goals). This is the `Handler` wiring spec.md §9's
// "Dynamic dispatch" design note describes as a small tagged interface.
type uartHandler struct{}

// Prologue defers all work to the epilogue. Runs masked, per spec.md
// §4.5 step 3.
func (uartHandler) Prologue(token level.Prologue) (bool, level.Prologue) {
	return true, token
}

// Epilogue drains every byte the UART's receive-holding register has
// pending, discarding them. Runs with interrupts enabled; a byte that
// arrives mid-drain either lands before the empty check or re-raises
// the interrupt and schedules a fresh epilogue.
func (uartHandler) Epilogue(ctx *trap.Context, token level.Epilogue) level.Epilogue {
	_ = ctx
	driver := token.Enter()
	for {
		_, next, err := uart.Global.Read(driver)
		driver = next
		if err != nil {
			break
		}
	}
	return driver.Leave()
}

// physicalEntryAddr undoes the kernel .text virt↔phys shift, turning the
// secondary-hart entry point's virtual address into the physical address
// SBI's hart_start requires (SBI runs before any hart has paging
// enabled), per spec.md §4.8.
func physicalEntryAddr(virtEntry addr.VirtualAddress[byte]) addr.PhysicalAddress[byte] {
	text := TextSegment()
	shift := text.VirtStart.Addr() - text.PhysStart.Addr()
	return addr.NewPhysical[byte](virtEntry.Addr() - shift)
}

// apEntryAddr is implemented in assembly external to this module's scope
// (spec.md §1: "the boot assembly ... [is] out of scope"): it must return
// the virtual address of the per-hart bring-up routine the bootloader's
// secondary-hart trampoline jumps to, which ultimately calls
// KernelAPInit.
func apEntryAddr() uint64

// initDrivers probes and initializes every driver the controller and the
// device tree describe, registering whatever trap handlers they need
// before the registry is finalized. Implements spec.md §4.8's "initialize
// controller + drivers (each registers handlers)".
func initDrivers(token level.Initialization) level.Initialization {
	token, err := uart.Global.Initialize(token)
	if err != nil {
		panic("boot: uart initialization failed: " + err.Error())
	}

	token, err = plic.Global.Initialize(token)
	if err != nil {
		panic("boot: plic initialization failed: " + err.Error())
	}
	trap.SetController(plic.Global)

	if node, ok := drivers.DeviceTree().NodeByCompatible("ns16550a"); ok {
		if irqs, ok := node.Property("interrupts"); ok {
			if source, ok := irqs.AsU32(); ok {
				cause := trap.InterruptTrap(trap.Interrupt(source))
				token = plic.Global.Configure(cause.Interrupt(), plic.Unicast, token)
				token = plic.Global.Unmask(cause.Interrupt(), token)
				token = trap.Register(cause, uartHandler{}, &panicdrv.Global, token)
			}
		}
	}

	return token
}

// KernelInit runs once, on the boot hart, with the arguments the boot
// assembly's entry trampoline received from firmware: the hart's own SBI
// hart ID and the physical location of the flattened device tree.
// Implements spec.md §2's control-flow summary and §4.8's boot-hart
// sequence in full.
func KernelInit(hartID cpu.HartID, dtbPhys addr.PhysicalAddress[byte], dtbSize uintptr) {
	defer func() {
		if r := recover(); r != nil {
			panicdrv.Halt(recoveredMessage(r))
		}
	}()

	token := level.NewInitialization()

	// 1. Page-frame allocator over the linker-provided pool.
	pages := PagesSegment()
	numFrames := int(pages.Size() / pagealloc.PageSize)
	alloc := pagealloc.New(pages.PhysStart, pages.VirtStart, numFrames)

	// 2. Kernel address space: shared L2 halves, root, and the one-shot
	// segment/pool mappings.
	kernelHalf, token := sv39.NewKernelHalf(token, alloc)
	kernelAS, token = sv39.New(token, alloc, kernelHalf)
	token = mapSegments(token)

	// 3. Install SATP so the boot hart itself runs translated from here
	// on, matching spec.md §4.8's ordering (SATP before DTB mapping).
	csr.Satp{}.Install(kernelAS.RootPPN())

	// 4. Map and parse the device tree.
	tree, token := mapAndParseDTB(token, dtbPhys, dtbSize)
	drivers.SetDeviceTree(tree)
	tokenCell := token
	drivers.SetMapDevice(mapDeviceBootTime(&tokenCell))
	token = tokenCell

	// 5. SBI probe: the core requires the Base and HSM extensions.
	if _, err := sbi.SpecificationVersion(); err != nil {
		panic("boot: sbi base extension unavailable: " + err.Error())
	}
	hsmPresent, err := sbi.ProbeExtension(sbi.ExtensionHSM)
	if err != nil || !hsmPresent {
		panic("boot: sbi HSM extension unavailable")
	}

	// 6. Populate the CPU map by HSM-probing until cpu-count harts are
	// found.
	token = cpu.Initialize(token, sbi.Client{}, tree.CPUCount)

	// 7. Write this hart's own logical ID into the thread pointer.
	selfID := cpu.LookupLogicalID(hartID)
	cpu.SetCurrentLogicalID(selfID)

	// 8. Install the trap vector.
	trap.InitHart(selfID)
	trap.InstallVector()

	// 9. Initialize the handler registry with the panic filler.
	token = trap.Initialize(token, &panicdrv.Global)

	// 10. Probe and initialize drivers; each registers its own handlers.
	token = initDrivers(token)
	kprintf("boot: hart %d drivers ready, %d cpus seen in device tree\n", hartID, cpu.Count())

	// 11. Finalize the registry — no further Register calls are valid
	// past this point.
	token = trap.Finalize(token)

	// 12. Start every other registered hart via SBI HSM hart_start.
	entryPhys := physicalEntryAddr(addr.NewVirtual[byte](uintptr(apEntryAddr())))
	for id := cpu.LogicalCPUID(0); uint64(id) < uint64(cpu.Count()); id++ {
		if id == selfID {
			continue
		}
		target := cpu.LookupHartID(id)
		if err := sbi.StartHart(target, entryPhys, uint64(target)); err != nil {
			panic(fmt.Sprintf("boot: failed to start hart %d: %s", uint64(target), err))
		}
	}

	// 13/14. Descend to epilogue level and unmask interrupts.
	epilogueToken, ok := epilogue.TryEnter()
	if !ok {
		panic("boot: epilogue level already claimed on boot hart")
	}
	trap.SetEpilogueDrain(epilogue.TryEnterAndDrain)
	csr.Sie{}.Enable(csr.SoftwareInterruptBit | csr.TimerInterruptBit | csr.ExternalInterruptBit)
	csr.Sstatus{}.SetSIE(true)
	kprintf("Finished initialization of CPU %d\n", uint64(selfID))
	epilogue.Leave(epilogueToken)
}

// KernelAPInit runs once on every secondary hart, after the boot hart has
// already built kernelAS, populated the CPU map, and started this hart
// via SBI. Implements spec.md §4.8's "Secondaries" sequence.
func KernelAPInit(hartID cpu.HartID) {
	defer func() {
		if r := recover(); r != nil {
			panicdrv.Halt(recoveredMessage(r))
		}
	}()

	selfID := cpu.LookupLogicalID(hartID)
	cpu.SetCurrentLogicalID(selfID)

	trap.InitHart(selfID)
	trap.InstallVector()

	csr.Satp{}.Install(kernelAS.RootPPN())

	epilogueToken, ok := epilogue.TryEnter()
	if !ok {
		panic("boot: epilogue level already claimed on this hart")
	}
	csr.Sie{}.Enable(csr.SoftwareInterruptBit | csr.TimerInterruptBit | csr.ExternalInterruptBit)
	csr.Sstatus{}.SetSIE(true)
	kprintf("Finished initialization of CPU %d\n", uint64(selfID))
	epilogue.Leave(epilogueToken)
}

// recoveredMessage renders a recovered panic value as text for
// panic.Halt, which expects a plain string (spec.md §7: "the first hart
// to panic writes an emergency message to the serial port").
func recoveredMessage(r any) string {
	if s, ok := r.(string); ok {
		return s
	}
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "kernel panic (unprintable value)"
}
