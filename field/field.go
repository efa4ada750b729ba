// Package field holds the quantization helpers shared by every stage of the
// pipeline and the shape checks run at component boundaries.
package field

import "math"

// Clamp functions for common value ranges

// Clamp01 clamps v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampSigned clamps v to [-1, 1]. NaN maps to 0.
func ClampSigned(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampInt clamps v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampByte rounds v and clamps it to [0, 255]. +Inf maps to 255, NaN and
// -Inf to 0.
func ClampByte(v float64) uint8 {
	if math.IsInf(v, 1) {
		return 255
	}
	if math.IsNaN(v) || math.IsInf(v, -1) {
		return 0
	}
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}

// ClampInt8 rounds v and clamps it to [-127, 127].
func ClampInt8(v float64) int8 {
	if math.IsInf(v, 1) {
		return 127
	}
	if math.IsInf(v, -1) {
		return -127
	}
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < -127 {
		return -127
	}
	if r > 127 {
		return 127
	}
	return int8(r)
}

// AddClampedByte returns a+b saturated at 255.
func AddClampedByte(a, b uint8) uint8 {
	s := int(a) + int(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// NormalizeToInt8 scales (x, y) to a unit vector and quantizes each
// component to [-127, 127]. Vectors shorter than 1e-9 map to (0, 0).
func NormalizeToInt8(x, y float64) (int8, int8) {
	l := math.Hypot(x, y)
	if math.IsNaN(l) || math.IsInf(l, 0) || l <= 1e-9 {
		return 0, 0
	}
	return ClampInt8(x / l * 127), ClampInt8(y / l * 127)
}
