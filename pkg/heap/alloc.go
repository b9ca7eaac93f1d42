package heap

import (
	"github.com/flier/goheap/internal/debug"
	"github.com/flier/goheap/pkg/xunsafe"
)

// malloc is the allocation path. The caller holds the mutex.
func (h *Heap) malloc(size int) *byte {
	if !h.ensureInit() {
		return nil
	}
	if size <= 0 {
		return nil
	}

	req := h.normalize(size)

	// Sized so that even a fresh arena's interior block, net of its two
	// fenceposts, can hold the request.
	need := req + 3*allocHeaderSize

	if h.head == 0 {
		if !h.growInstall(need) {
			return nil
		}
	}

	b := h.findBlock(req)
	if b == nil {
		if !h.growInstall(need) {
			return nil
		}
		b = h.findBlock(req)
		debug.Assert(b != nil, "grown heap cannot satisfy %d bytes", req)
		if b == nil {
			return nil
		}
	}

	p := h.allocate(b, req)
	h.allocs++
	h.log("alloc", "%d (as %d) -> %p", size, req, p)

	return p
}

// growInstall requests a region sized for need and puts the resulting block
// on the free list unless growth extended a block that is already there.
func (h *Heap) growInstall(need int) bool {
	b, fresh, err := h.requestMore(need)
	if err != nil {
		h.err = err
		return false
	}

	if fresh {
		h.insertFree(b)
	}

	return true
}

// allocate carves req payload bytes out of the free block b, returning the
// tail to the free list unless the residue could not hold a free block of
// its own. b comes off the free list either way.
func (h *Heap) allocate(b *header, req int) *byte {
	debug.Assert(b.trueSize() >= req, "selected block too small: %d < %d", b.trueSize(), req)

	// The block that followed b on the list, captured before any unlinking:
	// the next-fit scan resumes there.
	cursor := b.next

	residue := b.trueSize() - req - allocHeaderSize
	if b.trueSize() == req || residue <= allocHeaderSize+minPayload {
		h.removeFree(b)
	} else {
		n := xunsafe.ByteAdd[header](b, allocHeaderSize+req)
		n.setSize(residue, Unallocated)
		n.leftSize = uintptr(req)
		n.right().leftSize = uintptr(residue)

		b.setSize(req, Unallocated)
		h.removeFree(b)
		h.insertFree(n)
	}

	h.cursor = cursor

	b.setSize(b.trueSize(), Allocated)
	return b.payload()
}
