package heap_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/goheap/internal/debug"
	"github.com/flier/goheap/pkg/heap"
)

func TestMalloc(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a fresh heap over a contiguous slab", t, func() {
		h := heap.New(heap.WithGrower(newSlab(1 << 20)))

		Convey("When allocating for the first time", func() {
			p := h.Malloc(8)

			Convey("Then one arena is obtained and the request is split off it", func() {
				So(p, ShouldNotBeNil)

				// 8 rounds up to the smallest payload that can later hold
				// free-list links.
				So(heap.PayloadSize(p), ShouldEqual, 16)

				s := h.Stats()
				So(s.Arenas, ShouldEqual, 1)
				So(s.OSBytes, ShouldEqual, 4096)
				So(s.FreeBlocks, ShouldEqual, 1)

				// 4096 less three headers, less the carved block.
				So(s.FreeBytes, ShouldEqual, 4096-3*heap.AllocHeaderSize-16-heap.AllocHeaderSize)
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When the residue would be too small to stand alone", func() {
			// Leave exactly one free block of payload 40.
			a := h.Malloc(40)
			rest := h.Malloc(4096 - 3*heap.AllocHeaderSize - 40 - heap.AllocHeaderSize)
			So(rest, ShouldNotBeNil)
			h.Free(a)
			So(h.Stats().FreeBlocks, ShouldEqual, 1)

			p := h.Malloc(16)

			Convey("Then the whole block is handed out without a split", func() {
				So(p, ShouldNotBeNil)
				So(heap.PayloadSize(p), ShouldEqual, 40)
				So(h.Stats().FreeBlocks, ShouldEqual, 0)
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When freeing three consecutive blocks middle-last", func() {
			a := h.Malloc(16)
			b := h.Malloc(16)
			c := h.Malloc(16)
			So(h.Check(), ShouldBeNil)

			h.Free(a)
			So(h.Check(), ShouldBeNil)
			h.Free(c)
			So(h.Check(), ShouldBeNil)
			h.Free(b)

			Convey("Then everything coalesces back into a single block", func() {
				s := h.Stats()
				So(s.FreeBlocks, ShouldEqual, 1)
				So(s.FreeBytes, ShouldEqual, 4096-3*heap.AllocHeaderSize)
				So(h.Check(), ShouldBeNil)
			})

			Convey("And the merged block starts where the first one did", func() {
				p := h.Malloc(8)
				So(heap.BlockAddr(p), ShouldEqual, heap.BlockAddr(a))
			})
		})

		Convey("When allocating zero bytes", func() {
			before := h.Stats()
			p := h.Malloc(0)

			Convey("Then nil comes back and nothing changes", func() {
				So(p, ShouldBeNil)
				So(h.Err(), ShouldBeNil)
				So(h.Stats(), ShouldResemble, before)
			})
		})

		Convey("When freeing nil", func() {
			So(func() { h.Free(nil) }, ShouldNotPanic)
		})

		Convey("When a block is freed right after allocation", func() {
			h.Free(h.Malloc(64)) // settle the first arena
			before := h.Stats()

			p := h.Malloc(100)
			h.Free(p)

			Convey("Then the free byte total is restored", func() {
				So(h.Stats().FreeBytes, ShouldEqual, before.FreeBytes)
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When freeing the same block twice", func() {
			p := h.Malloc(32)
			h.Free(p)

			So(func() { h.Free(p) }, ShouldPanic)
		})

		Convey("When freeing a pointer inside a payload", func() {
			p := h.Calloc(1, 64)
			So(p, ShouldNotBeNil)

			// The derived header reads zeroed payload words: unallocated.
			q := &payloadBytes(p, 64)[24]
			So(func() { h.Free(q) }, ShouldPanic)
		})
	})
}

func TestCalloc(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a heap", t, func() {
		h := heap.New(heap.WithGrower(newSlab(1 << 20)))

		Convey("When allocating with calloc", func() {
			p := h.Calloc(16, 8)

			Convey("Then the memory is zeroed", func() {
				So(p, ShouldNotBeNil)
				for _, b := range payloadBytes(p, 128) {
					So(b, ShouldEqual, 0)
				}
			})
		})

		Convey("When a count is zero", func() {
			So(h.Calloc(0, 8), ShouldBeNil)
			So(h.Calloc(8, 0), ShouldBeNil)
		})

		Convey("When the product overflows", func() {
			p := h.Calloc(math.MaxInt, 2)

			Convey("Then nil comes back with the heap's error set", func() {
				So(p, ShouldBeNil)
				So(errors.Is(h.Err(), heap.ErrOutOfMemory), ShouldBeTrue)
			})
		})
	})
}

func TestRealloc(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a heap with a patterned allocation", t, func() {
		h := heap.New(heap.WithGrower(newSlab(1 << 20)))

		p := h.Malloc(64)
		for i, buf := 0, payloadBytes(p, 64); i < len(buf); i++ {
			buf[i] = byte(i)
		}

		Convey("When reallocating to the same size", func() {
			np := h.Realloc(p, 64)

			Convey("Then every byte survives the move", func() {
				So(np, ShouldNotBeNil)
				for i, b := range payloadBytes(np, 64) {
					So(b, ShouldEqual, byte(i))
				}
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When growing", func() {
			np := h.Realloc(p, 256)

			Convey("Then the old prefix is preserved and the old block is freed", func() {
				So(np, ShouldNotBeNil)
				for i, b := range payloadBytes(np, 64) {
					So(b, ShouldEqual, byte(i))
				}
				So(h.Stats().Frees, ShouldEqual, 1)
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When shrinking", func() {
			np := h.Realloc(p, 16)

			Convey("Then only the prefix is copied", func() {
				So(np, ShouldNotBeNil)
				for i, b := range payloadBytes(np, 16) {
					So(b, ShouldEqual, byte(i))
				}
				So(h.Check(), ShouldBeNil)
			})
		})

		Convey("When reallocating nil", func() {
			np := h.Realloc(nil, 32)

			Convey("Then it behaves as malloc", func() {
				So(np, ShouldNotBeNil)
				So(heap.PayloadSize(np), ShouldEqual, 32)
			})
		})

		Convey("When reallocating to zero bytes", func() {
			np := h.Realloc(p, 0)

			Convey("Then nil comes back and the old block stays live", func() {
				So(np, ShouldBeNil)
				So(func() { h.Free(p) }, ShouldNotPanic)
				So(h.Check(), ShouldBeNil)
			})
		})
	})
}

func TestConcurrent(t *testing.T) {
	Convey("Given one heap shared by many goroutines", t, func() {
		h := heap.New(heap.WithGrower(newSlab(1 << 24)))

		const (
			workers = 8
			rounds  = 500
		)

		var wg sync.WaitGroup
		wg.Add(workers)

		for w := 0; w < workers; w++ {
			go func(w int) {
				defer wg.Done()

				live := make([]*byte, 0, 16)
				for i := 0; i < rounds; i++ {
					p := h.Malloc(8 + (i%32)*8)
					if p == nil {
						continue
					}
					*p = byte(w)

					live = append(live, p)
					if len(live) == cap(live) {
						for _, q := range live {
							h.Free(q)
						}
						live = live[:0]
					}
				}
				for _, q := range live {
					h.Free(q)
				}
			}(w)
		}

		wg.Wait()

		Convey("Then the heap is structurally intact and every block came back", func() {
			So(h.Check(), ShouldBeNil)

			s := h.Stats()
			So(s.Frees, ShouldEqual, s.Allocs)
		})
	})
}
