// Linker-symbol accessors: the kernel .text/.rodata/.data/.bss and the
// page-pool range all come from symbols the linker script defines, each
// segment giving both its virtual bounds (where the kernel runs,
// mapped high) and physical bounds (where it was loaded), per spec.md
// §6 ("Pairs {__virt, __phys} × {text, rodata, data, bss, pages} ×
// {_start, _end}").
//
// original_source/src/kernel/compiler.rs only exposes the virtual side
// of this (a single extern block of {name}_start/{name}_end); the phys
// side boot_ap.rs calls (text_segment_phys_start/virt_start) is never
// actually defined anywhere in that source tree, so this file's phys
// accessors are this repository's own addition rather than a port —
// see DESIGN.md.
package boot

import "rvos/addr"

func virtTextStart() uint64
func virtTextEnd() uint64
func physTextStart() uint64
func physTextEnd() uint64

func virtRodataStart() uint64
func virtRodataEnd() uint64
func physRodataStart() uint64
func physRodataEnd() uint64

func virtDataStart() uint64
func virtDataEnd() uint64
func physDataStart() uint64
func physDataEnd() uint64

func virtBssStart() uint64
func virtBssEnd() uint64
func physBssStart() uint64
func physBssEnd() uint64

func virtPagesStart() uint64
func virtPagesEnd() uint64
func physPagesStart() uint64
func physPagesEnd() uint64

// Segment is one linker-provided region's virtual and physical bounds.
type Segment struct {
	VirtStart addr.VirtualAddress[byte]
	VirtEnd   addr.VirtualAddress[byte]
	PhysStart addr.PhysicalAddress[byte]
	PhysEnd   addr.PhysicalAddress[byte]
}

// Size returns the segment's length in bytes (virtual and physical
// sizes coincide; the linker script never stretches a segment).
func (s Segment) Size() uintptr { return s.VirtEnd.Sub(s.VirtStart) }

// TextSegment, RodataSegment, DataSegment, BSSSegment and PagesSegment
// read their bounds directly out of the linker script's symbols every
// call; they carry no state of their own to go stale.
func TextSegment() Segment {
	return Segment{
		VirtStart: addr.NewVirtual[byte](uintptr(virtTextStart())),
		VirtEnd:   addr.NewVirtual[byte](uintptr(virtTextEnd())),
		PhysStart: addr.NewPhysical[byte](uintptr(physTextStart())),
		PhysEnd:   addr.NewPhysical[byte](uintptr(physTextEnd())),
	}
}

func RodataSegment() Segment {
	return Segment{
		VirtStart: addr.NewVirtual[byte](uintptr(virtRodataStart())),
		VirtEnd:   addr.NewVirtual[byte](uintptr(virtRodataEnd())),
		PhysStart: addr.NewPhysical[byte](uintptr(physRodataStart())),
		PhysEnd:   addr.NewPhysical[byte](uintptr(physRodataEnd())),
	}
}

func DataSegment() Segment {
	return Segment{
		VirtStart: addr.NewVirtual[byte](uintptr(virtDataStart())),
		VirtEnd:   addr.NewVirtual[byte](uintptr(virtDataEnd())),
		PhysStart: addr.NewPhysical[byte](uintptr(physDataStart())),
		PhysEnd:   addr.NewPhysical[byte](uintptr(physDataEnd())),
	}
}

func BSSSegment() Segment {
	return Segment{
		VirtStart: addr.NewVirtual[byte](uintptr(virtBssStart())),
		VirtEnd:   addr.NewVirtual[byte](uintptr(virtBssEnd())),
		PhysStart: addr.NewPhysical[byte](uintptr(physBssStart())),
		PhysEnd:   addr.NewPhysical[byte](uintptr(physBssEnd())),
	}
}

// PagesSegment bounds the physical page-frame pool pagealloc.New draws
// frames from.
func PagesSegment() Segment {
	return Segment{
		VirtStart: addr.NewVirtual[byte](uintptr(virtPagesStart())),
		VirtEnd:   addr.NewVirtual[byte](uintptr(virtPagesEnd())),
		PhysStart: addr.NewPhysical[byte](uintptr(physPagesStart())),
		PhysEnd:   addr.NewPhysical[byte](uintptr(physPagesEnd())),
	}
}
