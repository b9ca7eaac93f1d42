// Package layout includes helpers for working with type layouts.
//
// It is separate from xunsafe, because nothing in this package is actually
// unsafe.
package layout

import (
	"unsafe"

	"github.com/flier/goheap/internal/debug"
)

// Int is any integer type.
type Int interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64 | uintptr
}

// Size returns T's size in bytes.
func Size[T any]() int {
	var z T

	return int(unsafe.Sizeof(z))
}

// Align returns T's alignment in bytes.
func Align[T any]() int {
	var z T
	return int(unsafe.Alignof(z))
}

// RoundDown rounds v down to a multiple of align, which must be a power of
// two.
func RoundDown[T Int](v, align T) T {
	debug.Assert(align > 0, "align must be greater than 0")

	return v &^ (align - 1)
}

// RoundUp rounds v up to a multiple of align, which must be a power of two.
func RoundUp[T Int](v, align T) T {
	debug.Assert(align > 0, "align must be greater than 0")

	return (v + align - 1) &^ (align - 1)
}

// Padding returns [RoundUp](v, align) - v.
func Padding[T Int](v, align T) T {
	debug.Assert(align > 0, "align must be greater than 0")

	return (align - v) & (align - 1)
}
