package heap

import "fmt"

// free is the deallocation path. The caller holds the mutex.
//
// The freed block is merged with whichever of its arena-order neighbors are
// free; the result keeps an existing free-list position when one of the
// neighbors had one, and is inserted at the head otherwise.
func (h *Heap) free(p *byte) {
	b := headerOf(p)
	if s := b.state(); s != Allocated {
		panic(fmt.Sprintf("heap: invalid free of %p (%v)", p, s))
	}

	b.setSize(b.trueSize(), Unallocated)

	l, r := b.left(), b.right()
	leftFree := l.state() == Unallocated
	rightFree := r.state() == Unallocated

	switch {
	case leftFree && rightFree:
		// Both neighbors fold into l, which keeps its list position; r comes
		// off the list entirely.
		merged := l.trueSize() + b.trueSize() + r.trueSize() + 2*allocHeaderSize

		if h.cursor == r.addr() {
			h.cursor = l.addr()
		}
		h.removeFree(r)

		l.setSize(merged, Unallocated)
		l.right().leftSize = uintptr(merged)
		h.log("free", "%p merged both ways into %p, payload %d", p, l, merged)

	case leftFree:
		l.setSize(l.trueSize()+b.trueSize()+allocHeaderSize, Unallocated)
		r.leftSize = uintptr(l.trueSize())
		h.log("free", "%p merged left into %p, payload %d", p, l, l.trueSize())

	case rightFree:
		// b inherits r's list position.
		b.next = r.next
		b.prev = r.prev

		if r.prev == 0 {
			h.head = b.addr()
		} else {
			r.prev.AssertValid().next = b.addr()
		}
		if r.next != 0 {
			r.next.AssertValid().prev = b.addr()
		}
		if h.cursor == r.addr() {
			h.cursor = b.addr()
		}

		b.setSize(b.trueSize()+allocHeaderSize+r.trueSize(), Unallocated)
		b.right().leftSize = uintptr(b.trueSize())
		h.log("free", "%p merged right, payload %d", p, b.trueSize())

	default:
		h.insertFree(b)
		h.log("free", "%p, payload %d", p, b.trueSize())
	}

	h.frees++
}
