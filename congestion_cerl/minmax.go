package congestion_cerl

import (
	"golang.org/x/exp/constraints"
)

// saturatingSub returns a-b, or zero if b is larger than a.
func saturatingSub[T constraints.Unsigned](a, b T) T {
	if a < b {
		return 0
	}
	return a - b
}

// clamp limits v to the [lo, hi] range.
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// byteCountToUint32 narrows a transport byte count to the window width used
// by CongestionState.
func byteCountToUint32[T constraints.Integer](v T) uint32 {
	if v <= 0 {
		return 0
	}
	if uint64(v) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}
