// Package addr provides phantom-typed physical and virtual address
// wrappers: two numerically identical but type-distinct pointer kinds with
// no implicit conversion between them, grounded on
// original_source/src/kernel/address.rs's Address<T>/VirtualAddress<T>/
// PhysicalAddress<T> trio. Go has no raw-pointer-with-phantom-type idiom as
// direct as Rust's, so both wrappers are backed by a plain uintptr and
// carry their element type as a generic parameter purely for arithmetic
// units and API distinctness.
package addr

import "unsafe"

// PhysicalAddress is a physical address to a value of type T.
type PhysicalAddress[T any] struct {
	raw uintptr
}

// VirtualAddress is a virtual address to a value of type T.
type VirtualAddress[T any] struct {
	raw uintptr
}

// NewPhysical wraps a raw address as a PhysicalAddress.
func NewPhysical[T any](raw uintptr) PhysicalAddress[T] { return PhysicalAddress[T]{raw: raw} }

// NewVirtual wraps a raw address as a VirtualAddress.
func NewVirtual[T any](raw uintptr) VirtualAddress[T] { return VirtualAddress[T]{raw: raw} }

// Addr returns the underlying numeric address.
func (p PhysicalAddress[T]) Addr() uintptr { return p.raw }

// Addr returns the underlying numeric address.
func (v VirtualAddress[T]) Addr() uintptr { return v.raw }

// IsNull reports whether the address is the zero address.
func (p PhysicalAddress[T]) IsNull() bool { return p.raw == 0 }

// IsNull reports whether the address is the zero address.
func (v VirtualAddress[T]) IsNull() bool { return v.raw == 0 }

func elemSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Add advances the address by n elements of T.
func (p PhysicalAddress[T]) Add(n int) PhysicalAddress[T] {
	return PhysicalAddress[T]{raw: p.raw + uintptr(n)*elemSize[T]()}
}

// Add advances the address by n elements of T.
func (v VirtualAddress[T]) Add(n int) VirtualAddress[T] {
	return VirtualAddress[T]{raw: v.raw + uintptr(n)*elemSize[T]()}
}

// ByteAdd advances the address by n bytes.
func (p PhysicalAddress[T]) ByteAdd(n uintptr) PhysicalAddress[T] {
	return PhysicalAddress[T]{raw: p.raw + n}
}

// ByteAdd advances the address by n bytes.
func (v VirtualAddress[T]) ByteAdd(n uintptr) VirtualAddress[T] {
	return VirtualAddress[T]{raw: v.raw + n}
}

// ByteSub moves the address back by n bytes.
func (p PhysicalAddress[T]) ByteSub(n uintptr) PhysicalAddress[T] {
	return PhysicalAddress[T]{raw: p.raw - n}
}

// ByteSub moves the address back by n bytes.
func (v VirtualAddress[T]) ByteSub(n uintptr) VirtualAddress[T] {
	return VirtualAddress[T]{raw: v.raw - n}
}

// Sub returns the byte distance from other to p.
func (p PhysicalAddress[T]) Sub(other PhysicalAddress[T]) uintptr { return p.raw - other.raw }

// Sub returns the byte distance from other to v.
func (v VirtualAddress[T]) Sub(other VirtualAddress[T]) uintptr { return v.raw - other.raw }

// And returns the address with mask applied bitwise.
func (p PhysicalAddress[T]) And(mask uintptr) PhysicalAddress[T] {
	return PhysicalAddress[T]{raw: p.raw & mask}
}

// And returns the address with mask applied bitwise.
func (v VirtualAddress[T]) And(mask uintptr) VirtualAddress[T] {
	return VirtualAddress[T]{raw: v.raw & mask}
}

// Or returns the address bitwise-or'd with mask.
func (p PhysicalAddress[T]) Or(mask uintptr) PhysicalAddress[T] {
	return PhysicalAddress[T]{raw: p.raw | mask}
}

// Or returns the address bitwise-or'd with mask.
func (v VirtualAddress[T]) Or(mask uintptr) VirtualAddress[T] {
	return VirtualAddress[T]{raw: v.raw | mask}
}

// Shr shifts the numeric address right by n bits.
func (p PhysicalAddress[T]) Shr(n uint) uintptr { return p.raw >> n }

// Shr shifts the numeric address right by n bits.
func (v VirtualAddress[T]) Shr(n uint) uintptr { return v.raw >> n }

// Shl shifts the numeric address left by n bits.
func (p PhysicalAddress[T]) Shl(n uint) uintptr { return p.raw << n }

// Shl shifts the numeric address left by n bits.
func (v VirtualAddress[T]) Shl(n uint) uintptr { return v.raw << n }

// Less orders by numeric address.
func (p PhysicalAddress[T]) Less(other PhysicalAddress[T]) bool { return p.raw < other.raw }

// Less orders by numeric address.
func (v VirtualAddress[T]) Less(other VirtualAddress[T]) bool { return v.raw < other.raw }

// Cast reinterprets the address as pointing to a value of type U at the
// same numeric location.
func CastPhysical[T, U any](p PhysicalAddress[T]) PhysicalAddress[U] {
	return PhysicalAddress[U]{raw: p.raw}
}

// Cast reinterprets the address as pointing to a value of type U at the
// same numeric location.
func CastVirtual[T, U any](v VirtualAddress[T]) VirtualAddress[U] {
	return VirtualAddress[U]{raw: v.raw}
}

// AsPointer reinterprets a virtual address as a live *T. The caller must
// guarantee the address is actually mapped and aligned for T.
func (v VirtualAddress[T]) AsPointer() *T {
	return (*T)(unsafe.Pointer(v.raw))
}

// FromPointer captures the address of a live value as a VirtualAddress.
func FromPointer[T any](p *T) VirtualAddress[T] {
	return VirtualAddress[T]{raw: uintptr(unsafe.Pointer(p))}
}
