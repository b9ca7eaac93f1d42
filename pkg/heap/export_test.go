package heap

// Test-only windows into the block algebra.

// PayloadSize reports the payload byte count of the block holding p.
func PayloadSize(p *byte) int { return headerOf(p).trueSize() }

// BlockAddr reports the header address of the block holding p.
func BlockAddr(p *byte) uintptr { return uintptr(headerOf(p).addr()) }

// AllocHeaderSize is the effective per-block overhead, H.
const AllocHeaderSize = allocHeaderSize

// MinPayload is the smallest payload any block may carry.
const MinPayload = minPayload
