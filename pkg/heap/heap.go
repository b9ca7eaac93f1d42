package heap

import (
	"math/bits"
	"sync"

	"github.com/flier/goheap/internal/debug"
	"github.com/flier/goheap/pkg/xunsafe"
	"github.com/flier/goheap/pkg/xunsafe/layout"
)

// region is one contiguous range obtained from the Grower, bracketed by
// fenceposts. Adjacent grows are merged, so regions never abut.
type region struct {
	start xunsafe.Addr[byte]
	size  int
}

// Heap is a boundary-tag allocator over memory obtained from a [Grower].
//
// A single mutex serializes every public operation; the zero value is not
// usable, construct one with [New]. Memory obtained from the OS is never
// returned.
type Heap struct {
	mu sync.Mutex

	minAlloc  int
	arenaSize int
	fit       Fit
	grower    Grower

	// base is the break address recorded at init, before any growth.
	base xunsafe.Addr[byte]

	// head is the head of the free list; zero when no free space is cached.
	head xunsafe.Addr[header]

	// lastFence is the right fencepost of the most recently obtained region,
	// used to detect when a fresh region abuts the previous one.
	lastFence xunsafe.Addr[header]

	// cursor is the next-fit resume point. Zero, or a block currently on the
	// free list: any path that unlinks a block must repoint it.
	cursor xunsafe.Addr[header]

	regions []region

	err         error
	initialized bool

	allocs  uint64
	frees   uint64
	arenas  uint64
	osBytes int
}

// New constructs a Heap with the given options.
//
// The heap does not touch the OS until its first allocation.
func New(opts ...Option) *Heap {
	h := &Heap{
		minAlloc:  DefaultMinAllocation,
		arenaSize: DefaultArenaSize,
		fit:       FirstFit,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ensureInit performs the one-shot setup under the caller-held mutex: it
// installs the default grower and records the initial break. Reports whether
// the heap is usable.
func (h *Heap) ensureInit() bool {
	if h.initialized {
		return true
	}

	if h.grower == nil {
		g, err := newSbrkGrower(defaultReserve)
		if err != nil {
			h.err = err
			return false
		}
		h.grower = g
	}

	h.base = h.grower.Base()
	h.initialized = true
	h.log("init", "base %v", h.base)

	return true
}

// Malloc allocates size bytes and returns the payload pointer, or nil if
// size is zero or the OS refused to grow the heap (see [Heap.Err]).
func (h *Heap) Malloc(size int) *byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.malloc(size)
}

// Free returns the block holding p to the free list, merging it with any
// free neighbor. Freeing nil is a no-op; freeing a pointer that is not a
// live allocation from this heap panics.
func (h *Heap) Free(p *byte) {
	if p == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.free(p)
}

// Calloc allocates n*size bytes of zeroed memory. It returns nil if either
// count is zero, if the product overflows, or if allocation fails.
func (h *Heap) Calloc(n, size int) *byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || size <= 0 {
		return nil
	}

	hi, total := bits.Mul64(uint64(n), uint64(size))
	if hi != 0 || total > uint64(maxInt) {
		h.err = ErrOutOfMemory
		return nil
	}

	p := h.malloc(int(total))
	if p != nil {
		xunsafe.Clear(p, int(total))
	}

	return p
}

// Realloc moves the allocation at p to a block of at least size bytes,
// copying min(size, the old block's payload size) bytes and freeing the old
// block. Realloc(nil, size) behaves as Malloc(size). On failure the old
// block is left intact and nil is returned.
func (h *Heap) Realloc(p *byte, size int) *byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p == nil {
		return h.malloc(size)
	}
	if size == 0 {
		return nil
	}

	np := h.malloc(size)
	if np == nil {
		return nil
	}

	// The stored payload size is an upper bound on what the client asked
	// for, so the copy is clamped on both sides.
	n := min(size, headerOf(p).trueSize())
	xunsafe.Copy(np, p, n)
	h.free(p)

	return np
}

// Err returns the most recent failure recorded on the heap, or nil: an
// out-of-memory condition, or an error setting up the default grower. It is the
// errno-equivalent for nil returns from [Heap.Malloc]: a nil result with a
// nil Err was a zero-sized request.
func (h *Heap) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}

// normalize rounds a request up to the heap's allocation granularity and to
// the smallest payload that can later hold free-list links.
func (h *Heap) normalize(size int) int {
	size = layout.RoundUp(size, h.minAlloc)
	if size < minPayload {
		size = minPayload
	}
	return size
}

func (h *Heap) log(op, format string, args ...any) {
	debug.Log([]any{"%p", h}, op, format, args...)
}

const maxInt = int(^uint(0) >> 1)
