package heap

import (
	"fmt"

	"github.com/flier/goheap/pkg/xunsafe"
)

// Check validates the heap's structural invariants: state encoding, left-size
// coherence, completeness of coalescing, free-list consistency and its
// agreement with block states, payload granularity, and the next-fit cursor.
//
// It returns the first violation found, or nil. Tests call it after their
// mutations; it is cheap enough to call from production code when chasing
// corruption.
func (h *Heap) Check() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.check()
}

func (h *Heap) check() error {
	free, err := h.checkFreeList()
	if err != nil {
		return err
	}

	if h.cursor != 0 && !free.has(uintptr(h.cursor)) {
		return fmt.Errorf("heap: check: next-fit cursor %v is not a free block", h.cursor)
	}

	walked := 0
	for i, reg := range h.regions {
		n, err := h.checkRegion(i, reg, free)
		if err != nil {
			return err
		}
		walked += n
	}

	if walked != free.n {
		return fmt.Errorf("heap: check: free list has %d blocks, regions hold %d", free.n, walked)
	}

	return nil
}

// checkFreeList verifies link consistency and collects the membership set.
func (h *Heap) checkFreeList() (*addrSet, error) {
	free := newAddrSet(16)

	if h.head != 0 && h.head.AssertValid().prev != 0 {
		return nil, fmt.Errorf("heap: check: free list head %v has a prev", h.head)
	}

	for a := h.head; a != 0; {
		b := a.AssertValid()

		if free.has(uintptr(a)) {
			return nil, fmt.Errorf("heap: check: free list cycles at %v", a)
		}
		free.insert(uintptr(a))

		if b.state() != Unallocated {
			return nil, fmt.Errorf("heap: check: %v on free list but %v", a, b.state())
		}
		if b.next != 0 && b.next.AssertValid().prev != a {
			return nil, fmt.Errorf("heap: check: %v.next.prev != %v", a, a)
		}

		a = b.next
	}

	return free, nil
}

// checkRegion walks one region header to header and returns the number of
// free blocks it holds.
func (h *Heap) checkRegion(i int, reg region, free *addrSet) (int, error) {
	if lf := headerAt(reg.start, 0); lf.state() != Fencepost {
		return 0, fmt.Errorf("heap: check: region %d does not start with a fencepost", i)
	}

	fenceOff := reg.size - allocHeaderSize
	prev := headerAt(reg.start, 0)
	b := headerAt(reg.start, allocHeaderSize)
	n := 0

	for {
		off := xunsafe.ByteSub(b, reg.start.AssertValid())
		if off > fenceOff {
			return 0, fmt.Errorf("heap: check: region %d walk overran its end by %d", i, off-fenceOff)
		}

		if int(b.leftSize) != prev.trueSize() {
			return 0, fmt.Errorf("heap: check: %p.leftSize = %d, left neighbor payload is %d",
				b, b.leftSize, prev.trueSize())
		}

		if off == fenceOff {
			if b.state() != Fencepost {
				return 0, fmt.Errorf("heap: check: region %d does not end with a fencepost", i)
			}
			return n, nil
		}

		switch b.state() {
		case Unallocated, Allocated:
		default:
			return 0, fmt.Errorf("heap: check: interior block %p has state %v", b, b.state())
		}

		if b.trueSize()%DefaultMinAllocation != 0 || b.trueSize() < minPayload {
			return 0, fmt.Errorf("heap: check: block %p has payload %d", b, b.trueSize())
		}

		if b.state() == Unallocated {
			if prev.state() == Unallocated {
				return 0, fmt.Errorf("heap: check: adjacent free blocks %p and %p", prev, b)
			}
			if !free.has(uintptr(b.addr())) {
				return 0, fmt.Errorf("heap: check: free block %p is not on the free list", b)
			}
			n++
		} else if free.has(uintptr(b.addr())) {
			return 0, fmt.Errorf("heap: check: allocated block %p is on the free list", b)
		}

		prev = b
		b = b.right()
	}
}
