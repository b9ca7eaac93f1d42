package heap

import "errors"

// ErrOutOfMemory is recorded on the heap when the Grower refuses to provide
// more memory, or when a request overflows. Retrieve it with [Heap.Err].
var ErrOutOfMemory = errors.New("heap: out of memory")
