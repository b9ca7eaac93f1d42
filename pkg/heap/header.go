package heap

import (
	"fmt"
	"unsafe"

	"github.com/flier/goheap/pkg/xunsafe"
)

// State is the allocation state of a block. It lives in the low three bits of
// the size word, which are always zero in the size itself because payload
// sizes are multiples of eight.
type State uintptr

const (
	Unallocated State = 0
	Allocated   State = 1
	Fencepost   State = 2

	stateMask = 0b111
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case Unallocated:
		return "unallocated"
	case Allocated:
		return "allocated"
	case Fencepost:
		return "fencepost"
	default:
		return fmt.Sprintf("State(%d)", uintptr(s))
	}
}

// header is the boundary tag that prefixes every block.
//
// The size word carries the payload byte count with the state packed into its
// low bits; leftSize mirrors the payload size of the block immediately to the
// left in arena order, so that the left neighbor is reachable without a walk.
type header struct {
	size     uintptr
	leftSize uintptr

	// The rest of the header overlays the start of the payload. While the
	// block is free these words thread the free list; once it is handed out
	// they are the first bytes the client writes. The payload pointer
	// returned to the client is the address of next.
	next xunsafe.Addr[header]
	prev xunsafe.Addr[header]
}

const (
	ptrSize = int(unsafe.Sizeof(uintptr(0)))

	// allocHeaderSize is the part of the header that precedes the payload.
	// The list links do not count: they overlay payload bytes, so the
	// bookkeeping cost of an allocated block is two words, not four.
	allocHeaderSize = int(unsafe.Sizeof(header{})) - 2*ptrSize

	// minPayload is the smallest payload a block may carry, so that a freed
	// block can always hold its list links in place of client data.
	minPayload = 2 * ptrSize
)

func (h *header) state() State { return State(h.size & stateMask) }

// trueSize is the payload byte count with the state bits masked out.
func (h *header) trueSize() int { return int(h.size &^ stateMask) }

func (h *header) setSize(size int, s State) {
	h.size = uintptr(size) | uintptr(s)
}

// left locates the header of the block immediately to the left in arena
// order. Must not be called on a left fencepost.
func (h *header) left() *header {
	return xunsafe.ByteAdd[header](h, -int(h.leftSize)-allocHeaderSize)
}

// right locates the header of the block immediately to the right in arena
// order. Must not be called on a right fencepost.
func (h *header) right() *header {
	return xunsafe.ByteAdd[header](h, allocHeaderSize+h.trueSize())
}

// payload returns the client-visible address of this block.
func (h *header) payload() *byte {
	return xunsafe.ByteAdd[byte](h, allocHeaderSize)
}

func (h *header) addr() xunsafe.Addr[header] {
	return xunsafe.AddrOf(h)
}

// headerOf recovers a block header from its payload pointer.
func headerOf(p *byte) *header {
	return xunsafe.ByteAdd[header](p, -allocHeaderSize)
}

// headerAt reinterprets the given raw address, plus an unscaled offset, as a
// block header.
func headerAt(a xunsafe.Addr[byte], off int) *header {
	return xunsafe.ByteAdd[header](a.AssertValid(), off)
}
