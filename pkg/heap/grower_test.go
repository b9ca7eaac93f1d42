package heap_test

import (
	"errors"
	"unsafe"

	"github.com/flier/goheap/pkg/xunsafe"
)

var errSlabExhausted = errors.New("slab exhausted")

// slabGrower serves grows out of one Go-allocated slab, so tests are
// deterministic and platform-independent. Grows are address-contiguous
// unless gap is set, which skips that many bytes before each grow to force
// discontiguous regions.
type slabGrower struct {
	mem []byte
	brk int
	gap int
}

func newSlab(size int) *slabGrower {
	// Back the slab with uint64s so the first block header is
	// pointer-aligned.
	words := make([]uint64, (size+7)/8)
	mem := unsafe.Slice(xunsafe.Cast[byte](&words[0]), size)

	return &slabGrower{mem: mem}
}

func (g *slabGrower) Base() xunsafe.Addr[byte] {
	return xunsafe.AddrOf(&g.mem[0]).ByteAdd(g.brk)
}

func (g *slabGrower) Grow(size int) (xunsafe.Addr[byte], error) {
	brk := g.brk + g.gap
	if brk+size > len(g.mem) {
		return 0, errSlabExhausted
	}

	p := xunsafe.AddrOf(&g.mem[brk])
	g.brk = brk + size

	return p, nil
}

// payloadBytes views an allocation as a byte slice of the given length.
func payloadBytes(p *byte, n int) []byte {
	return unsafe.Slice(p, n)
}
