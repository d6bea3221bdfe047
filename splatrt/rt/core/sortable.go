package core

import "math"

// FloatToSortableUint maps a float to a uint whose unsigned order matches
// the float order. Negatives get all bits flipped, positives only the sign bit.
func FloatToSortableUint(f float32) uint32 {
	fu := math.Float32bits(f)
	mask := uint32(-int32(fu>>31)) | 0x80000000
	return fu ^ mask
}

// SortableUintToFloat is the inverse of FloatToSortableUint.
func SortableUintToFloat(v uint32) float32 {
	mask := ((v >> 31) - 1) | 0x80000000
	return math.Float32frombits(v ^ mask)
}
