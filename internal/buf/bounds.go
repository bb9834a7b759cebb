// Package buf contains overflow-safe arithmetic and bounds helpers used when
// translating pool offsets into byte ranges.
package buf

import (
	"fmt"
	"math"
	"math/bits"
)

// MulU64 multiplies a and b, returning ok = false when the result overflows.
// This is the check behind every count * elementSize computation.
func MulU64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// AddU64 adds a and b, returning ok = false when the result overflows.
func AddU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// ToInt converts v to int, returning ok = false when it does not fit.
func ToInt(v uint64) (int, bool) {
	if v > math.MaxInt {
		return 0, false
	}
	return int(v), true
}

// CheckRange validates that count elements of elemSize bytes fit in a buffer
// of bufLen bytes starting at off. It returns the end offset.
//
//	end, err := buf.CheckRange(uint64(len(data)), off, n, size)
//	if err != nil {
//	    return fmt.Errorf("elements: %w", err)
//	}
func CheckRange(bufLen, off, count, elemSize uint64) (uint64, error) {
	total, ok := MulU64(count, elemSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * size=%d", count, elemSize)
	}
	end, ok := AddU64(off, total)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", off, total)
	}
	if end > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, bufLen)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n uint64) ([]byte, bool) {
	end, ok := AddU64(off, n)
	if !ok || end > uint64(len(b)) {
		return nil, false
	}
	return b[off:end], true
}
