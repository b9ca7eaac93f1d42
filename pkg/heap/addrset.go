package heap

import "github.com/dolthub/maphash"

// addrSet is a small open-addressing set of raw addresses. The checker uses
// it to answer free-list membership in O(1) while walking regions, without
// touching the blocks it is auditing.
//
// Zero is the empty slot marker; no valid header lives at address zero.
type addrSet struct {
	hash  maphash.Hasher[uintptr]
	slots []uintptr
	n     int
}

func newAddrSet(capacity int) *addrSet {
	size := 8
	for size < capacity*2 {
		size <<= 1
	}

	return &addrSet{
		hash:  maphash.NewHasher[uintptr](),
		slots: make([]uintptr, size),
	}
}

func (s *addrSet) insert(a uintptr) {
	if s.n*2 >= len(s.slots) {
		s.grow()
	}

	i := s.hash.Hash(a) & uint64(len(s.slots)-1)
	for s.slots[i] != 0 {
		if s.slots[i] == a {
			return
		}
		i = (i + 1) & uint64(len(s.slots)-1)
	}

	s.slots[i] = a
	s.n++
}

func (s *addrSet) has(a uintptr) bool {
	i := s.hash.Hash(a) & uint64(len(s.slots)-1)
	for s.slots[i] != 0 {
		if s.slots[i] == a {
			return true
		}
		i = (i + 1) & uint64(len(s.slots)-1)
	}

	return false
}

func (s *addrSet) grow() {
	old := s.slots
	s.slots = make([]uintptr, len(old)*2)
	s.n = 0

	for _, a := range old {
		if a != 0 {
			s.insert(a)
		}
	}
}
