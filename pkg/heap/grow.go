package heap

import (
	"fmt"

	"github.com/flier/goheap/internal/debug"
	"github.com/flier/goheap/pkg/xunsafe"
)

// defaultReserve is the address-space reservation of the default grower.
const defaultReserve = 1 << 30

// Grower is the OS primitive the heap obtains memory from.
//
// A Grower hands out raw memory and never sees it again; the heap assumes
// every address returned stays valid for the life of the process. Growers
// that return address-contiguous ranges (like a data-segment break) let the
// heap dissolve the fenceposts between consecutive ranges and treat them as
// one.
type Grower interface {
	// Base reports the current break: the address the next Grow would
	// return, without growing.
	Base() xunsafe.Addr[byte]

	// Grow obtains at least size more bytes and returns their base address.
	Grow(size int) (xunsafe.Addr[byte], error)
}

// requestMore obtains a fresh region of the smallest arena-size multiple
// that covers need, stamps its fenceposts, and joins it to the previous
// region when the two abut.
//
// It returns the usable block and whether that block is fresh: a fresh block
// is not yet on the free list and the caller must insert it, while a
// non-fresh block is a previously free block that was extended in place.
func (h *Heap) requestMore(need int) (*header, bool, error) {
	size := h.arenaSize * ((need + h.arenaSize - 1) / h.arenaSize)

	loc, err := h.grower.Grow(size)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	h.arenas++
	h.osBytes += size
	h.log("grow", "%d bytes at %v", size, loc)

	// Bracket the region with fenceposts so neighbor traversal can never
	// escape it.
	leftFence := headerAt(loc, 0)
	leftFence.setSize(0, Fencepost)
	leftFence.leftSize = 0

	rightFence := headerAt(loc, size-allocHeaderSize)
	rightFence.setSize(0, Fencepost)
	rightFence.leftSize = uintptr(size - 3*allocHeaderSize)

	if h.lastFence != 0 && int(h.lastFence) == int(loc)-allocHeaderSize {
		// The region starts exactly one header past the previous right
		// fencepost: the two regions are contiguous, and both fenceposts of
		// the seam dissolve.
		oldFence := h.lastFence.AssertValid()
		tail := oldFence.left()
		h.lastFence = rightFence.addr()
		h.regions[len(h.regions)-1].size += size

		if tail.state() == Unallocated {
			// The previous region ends in a free block: everything from the
			// seam onward becomes its payload, and its list position is
			// untouched.
			tail.setSize(tail.trueSize()+size, Unallocated)
			rightFence.leftSize = uintptr(tail.trueSize())
			h.log("grow", "absorbed into free tail %p, payload now %d", tail, tail.trueSize())
			return tail, false, nil
		}

		// The previous region ends in an allocated block: the old right
		// fencepost itself becomes the header of the new block. Its
		// leftSize already names the allocated tail.
		nb := oldFence
		nb.setSize(size-allocHeaderSize, Unallocated)
		rightFence.leftSize = uintptr(nb.trueSize())
		h.log("grow", "joined past allocated tail, new block %p payload %d", nb, nb.trueSize())
		return nb, true, nil
	}

	h.lastFence = rightFence.addr()
	h.regions = append(h.regions, region{start: loc, size: size})

	blk := headerAt(loc, allocHeaderSize)
	blk.setSize(size-3*allocHeaderSize, Unallocated)
	blk.leftSize = 0
	debug.Assert(blk.trueSize() >= need-3*allocHeaderSize, "arena too small: %d < %d", blk.trueSize(), need)

	return blk, true, nil
}
