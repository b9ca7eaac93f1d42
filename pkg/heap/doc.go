// Package heap implements a libc-style allocator over large contiguous
// regions obtained from the OS.
//
// Each region is partitioned into variably sized blocks carrying an in-band
// boundary-tag header: a size word with the allocation state packed into its
// low bits, and the left neighbor's payload size for O(1) traversal in both
// arena directions. Free blocks thread a doubly-linked free list through the
// first two words of their payload, so the header overhead seen by a live
// allocation is only two words.
//
// Allocation picks a free block under one of four policies ([FirstFit],
// [NextFit], [BestFit], [WorstFit]), carving off the requested prefix when
// the remainder is big enough to stand alone. Freeing merges the block with
// any free neighbor, so no two adjacent blocks are ever both free. Regions
// are bracketed by fencepost headers; when the OS hands back a region that
// abuts the previous one, the fenceposts at the seam dissolve and blocks
// coalesce straight across.
//
// A single mutex serializes every operation, so a Heap may be shared freely
// between goroutines. Memory is never returned to the OS.
//
// The zero-configuration surface is the package-level [Malloc], [Free],
// [Calloc] and [Realloc] over one process-wide first-fit heap; [New] builds
// independent heaps with their own granularity, growth quantum, policy, and
// [Grower].
package heap
