package tensor

import "math"

// RoundBFloat16 rounds f to the nearest bfloat16 value (ties to even) and
// returns it widened back to float32. NaN stays NaN.
func RoundBFloat16(f float32) float32 {
	bits := math.Float32bits(f)
	if bits&0x7f800000 == 0x7f800000 && bits&0x007fffff != 0 {
		return math.Float32frombits((bits | 0x00400000) & 0xffff0000)
	}

	lsb := (bits >> 16) & 1
	bits += 0x7fff + lsb

	return math.Float32frombits(bits & 0xffff0000)
}

// BFloat16Bits returns the upper 16 bits of RoundBFloat16(f).
func BFloat16Bits(f float32) uint16 {
	return uint16(math.Float32bits(RoundBFloat16(f)) >> 16)
}

// FromBFloat16Bits widens a bfloat16 bit pattern to float32.
func FromBFloat16Bits(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}
