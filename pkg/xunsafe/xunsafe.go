// Package xunsafe provides a more convenient interface for performing unsafe
// operations than Go's built-in package unsafe.
package xunsafe

import (
	"unsafe"

	"github.com/flier/goheap/pkg/xunsafe/layout"
)

// Int is any integer type.
type Int = layout.Int

// Cast casts one pointer type to another.
func Cast[To, From any](p *From) *To {
	return (*To)(unsafe.Pointer(p))
}

// ByteAdd adds the given offset to p, without scaling.
//
// It also throws in a cast for free.
func ByteAdd[T any, P ~*E, E any, I Int](p P, n I) *T {
	return (*T)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
}

// ByteSub computes the difference between two pointers, without scaling.
func ByteSub[P1 ~*E1, P2 ~*E2, E1, E2 any](p1 P1, p2 P2) int {
	return int(uintptr(unsafe.Pointer(p1)) - uintptr(unsafe.Pointer(p2)))
}

// Copy copies n elements from one pointer to the other.
func Copy[P ~*E, E any, I Int](dst, src P, n I) {
	pdst, psrc := (*E)(dst), (*E)(src)
	copy(unsafe.Slice(pdst, n), unsafe.Slice(psrc, n))
}

// Clear zeros n elements at p.
func Clear[P ~*E, E any, I Int](p P, n I) {
	pp := (*E)(p)
	clear(unsafe.Slice(pp, n))
}
