// Package pagealloc implements the physical page-frame allocator: a fixed
// bit array over a contiguous page pool (up to 16 MiB, 4096 frames), where
// bit=1 means free.
//
// Grounded on original_source/src/mm/page_allocator.rs's bitmap shape and
// virt_to_phys offset translation; the bitmap-initialization loop's
// apparent index bug there (computing the same word index twice instead
// of a word/bit split) is not reproduced: New splits each frame index
// into a word and a bit.
package pagealloc

import (
	"errors"
	"math/bits"
	"unsafe"

	"rvos/addr"
	"rvos/config"
	"rvos/level"
	"rvos/ticketlock"
)

// PageSize is the frame size in bytes, generated from config/kernel.yaml
// by cmd/genconfig into config.PageSize.
const PageSize = config.PageSize

// NumWords holds enough 64-bit words for MaxFrames bits.
const NumWords = 64

// MaxFrames is the largest pool this allocator can track: 64 words * 64
// bits = 4096 frames = 16 MiB.
const MaxFrames = NumWords * 64

// ErrOutOfMemory is returned when no bit is set in the bitmap.
var ErrOutOfMemory = errors.New("pagealloc: out of memory")

type bitmap struct {
	words [NumWords]uint64
}

func (b *bitmap) alloc() (int, bool) {
	for w := 0; w < NumWords; w++ {
		if b.words[w] == 0 {
			continue
		}
		bit := bits.TrailingZeros64(b.words[w])
		b.words[w] &^= uint64(1) << uint(bit)
		return w*64 + bit, true
	}
	return 0, false
}

func (b *bitmap) free(frame int) {
	w, bit := frame/64, uint(frame%64)
	if b.words[w]&(uint64(1)<<bit) != 0 {
		panic("pagealloc: double free")
	}
	b.words[w] |= uint64(1) << bit
}

// bitmapLock acquires with a Paging token and, since this is the lock
// adjacent below Paging in the hierarchy, releases to Prologue — the
// bitmap's own critical section never needs to drop further.
type bitmapLock = ticketlock.Ticketlock[bitmap, level.Paging, level.Prologue]

// Allocator is a bitmap allocator over a page pool whose physical and
// virtual bounds are fixed at construction (supplied by the linker in a
// real boot, or by a test harness).
type Allocator struct {
	lock          *bitmapLock
	poolPhysStart addr.PhysicalAddress[byte]
	poolVirtStart addr.VirtualAddress[byte]
	numFrames     int
}

// New constructs an allocator over numFrames frames starting at
// physStart/virtStart, all initially free. Panics if numFrames exceeds
// MaxFrames or either bound is not page-aligned.
func New(physStart addr.PhysicalAddress[byte], virtStart addr.VirtualAddress[byte], numFrames int) *Allocator {
	if numFrames > MaxFrames {
		panic("pagealloc: numFrames exceeds MaxFrames")
	}
	if physStart.Addr()%PageSize != 0 || virtStart.Addr()%PageSize != 0 {
		panic("pagealloc: pool bounds must be page-aligned")
	}
	var bm bitmap
	for frame := 0; frame < numFrames; frame++ {
		w, bit := frame/64, uint(frame%64)
		bm.words[w] |= uint64(1) << bit
	}
	return &Allocator{
		lock:          ticketlock.New[bitmap, level.Paging, level.Prologue](bm),
		poolPhysStart: physStart,
		poolVirtStart: virtStart,
		numFrames:     numFrames,
	}
}

func (a *Allocator) frameToPhys(frame int) addr.PhysicalAddress[byte] {
	return a.poolPhysStart.ByteAdd(uintptr(frame) * PageSize)
}

func (a *Allocator) physToFrame(p addr.PhysicalAddress[byte]) int {
	off := p.Sub(a.poolPhysStart)
	if off%PageSize != 0 {
		panic("pagealloc: address not page-aligned")
	}
	frame := int(off / PageSize)
	if frame < 0 || frame >= a.numFrames {
		panic("pagealloc: address outside pool bounds")
	}
	return frame
}

func (a *Allocator) zero(phys addr.PhysicalAddress[byte]) {
	v := a.VirtToPhysInverse(phys)
	page := (*[PageSize]byte)(unsafe.Pointer(v.Addr()))
	for i := range page {
		page[i] = 0
	}
}

// VirtToPhysInverse is phys_to_virt: pure offset arithmetic from the
// physical pool base to the virtual pool base.
func (a *Allocator) VirtToPhysInverse(phys addr.PhysicalAddress[byte]) addr.VirtualAddress[byte] {
	off := phys.Sub(a.poolPhysStart)
	return a.poolVirtStart.ByteAdd(off)
}

// PhysToVirt is an alias kept for readers scanning for the name spec.md
// uses ("virt_to_phys / phys_to_virt").
func (a *Allocator) PhysToVirt(phys addr.PhysicalAddress[byte]) addr.VirtualAddress[byte] {
	return a.VirtToPhysInverse(phys)
}

// VirtToPhys converts a pool virtual address back to physical, asserting
// page alignment and pool bounds.
func (a *Allocator) VirtToPhys(virt addr.VirtualAddress[byte]) addr.PhysicalAddress[byte] {
	off := virt.Sub(a.poolVirtStart)
	if off%PageSize != 0 {
		panic("pagealloc: address not page-aligned")
	}
	frame := int(off / PageSize)
	if frame < 0 || frame >= a.numFrames {
		panic("pagealloc: address outside pool bounds")
	}
	return a.poolPhysStart.ByteAdd(off)
}

// Allocate scans for a free frame, clears its bit, zeroes it, and returns
// its physical address.
func (a *Allocator) Allocate(token level.Paging) (addr.PhysicalAddress[byte], level.Paging, error) {
	guard, lower := a.lock.Lock(token)
	frame, ok := guard.Value().alloc()
	upper := guard.Unlock(lower)
	if !ok {
		return addr.PhysicalAddress[byte]{}, upper, ErrOutOfMemory
	}
	phys := a.frameToPhys(frame)
	a.zero(phys)
	return phys, upper, nil
}

// Free returns phys to the pool, panicking if it is already free, not
// page-aligned, or outside the pool.
func (a *Allocator) Free(phys addr.PhysicalAddress[byte], token level.Paging) level.Paging {
	frame := a.physToFrame(phys)
	guard, lower := a.lock.Lock(token)
	guard.Value().free(frame)
	return guard.Unlock(lower)
}

// EarlyAllocate is Allocate's single-threaded counterpart, used during
// boot before any other hart or lock contention exists.
func (a *Allocator) EarlyAllocate(token level.Initialization) (addr.PhysicalAddress[byte], level.Initialization, error) {
	state, token := a.lock.InitValue(token)
	frame, ok := state.alloc()
	if !ok {
		return addr.PhysicalAddress[byte]{}, token, ErrOutOfMemory
	}
	phys := a.frameToPhys(frame)
	a.zero(phys)
	return phys, token, nil
}

// EarlyFree is Free's single-threaded counterpart.
func (a *Allocator) EarlyFree(phys addr.PhysicalAddress[byte], token level.Initialization) level.Initialization {
	frame := a.physToFrame(phys)
	state, token := a.lock.InitValue(token)
	state.free(frame)
	return token
}
