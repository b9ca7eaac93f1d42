package heap

// The free list is a doubly-linked intrusive list threaded through the
// payload words of unallocated blocks. Insertion is at the head; order is
// otherwise meaningless.

// insertFree prepends b to the free list.
func (h *Heap) insertFree(b *header) {
	b.prev = 0
	b.next = h.head

	if h.head != 0 {
		h.head.AssertValid().prev = b.addr()
	}
	h.head = b.addr()
}

// removeFree unlinks b from the free list. b must be on the list.
func (h *Heap) removeFree(b *header) {
	if b.prev == 0 {
		h.head = b.next
	} else {
		b.prev.AssertValid().next = b.next
	}

	if b.next != 0 {
		b.next.AssertValid().prev = b.prev
	}
}
