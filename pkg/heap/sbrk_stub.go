//go:build !unix

package heap

import "errors"

func newSbrkGrower(int) (Grower, error) {
	return nil, errors.New("heap: no default grower on this platform, use WithGrower")
}
