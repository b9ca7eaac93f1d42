package heap

// The package-level functions mirror the C library surface: one process-wide
// heap, first-fit, default granularity, lazily initialized on first use. Use
// [New] for a heap with its own configuration.

var std = New()

// Default returns the process-wide heap backing [Malloc], [Free], [Calloc]
// and [Realloc].
func Default() *Heap { return std }

// Malloc allocates size bytes from the process-wide heap.
func Malloc(size int) *byte { return std.Malloc(size) }

// Free returns p to the process-wide heap.
func Free(p *byte) { std.Free(p) }

// Calloc allocates n*size zeroed bytes from the process-wide heap.
func Calloc(n, size int) *byte { return std.Calloc(n, size) }

// Realloc resizes p on the process-wide heap.
func Realloc(p *byte, size int) *byte { return std.Realloc(p, size) }
