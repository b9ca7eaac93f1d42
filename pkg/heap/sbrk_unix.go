//go:build unix

package heap

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/flier/goheap/pkg/xunsafe"
	"github.com/flier/goheap/pkg/xunsafe/layout"
)

// sbrkGrower emulates a data-segment break on top of mmap.
//
// Go has no sbrk, so the grower reserves one large PROT_NONE range up front
// and commits it left to right with mprotect. Successive grows are therefore
// address-contiguous, exactly like a real break, which makes cross-region
// fencepost joins the common case. The reservation costs address space, not
// memory.
type sbrkGrower struct {
	region    []byte
	brk       int
	committed int
}

func newSbrkGrower(reserve int) (Grower, error) {
	mem, err := unix.Mmap(-1, 0, reserve, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	return &sbrkGrower{region: mem}, nil
}

func (g *sbrkGrower) Base() xunsafe.Addr[byte] {
	return xunsafe.AddrOf(&g.region[0]).ByteAdd(g.brk)
}

func (g *sbrkGrower) Grow(size int) (xunsafe.Addr[byte], error) {
	end := g.brk + size
	if end > len(g.region) {
		return 0, unix.ENOMEM
	}

	if end > g.committed {
		c := min(layout.RoundUp(end, os.Getpagesize()), len(g.region))
		if err := unix.Mprotect(g.region[g.committed:c], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, err
		}
		g.committed = c
	}

	p := xunsafe.AddrOf(&g.region[g.brk])
	g.brk = end

	return p, nil
}
