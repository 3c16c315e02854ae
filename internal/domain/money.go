package domain

import "math"

// Round2 rounds a SAR amount to 2 decimal places, halves away from zero.
// The 1e-9 nudge keeps values like 1.005 (stored as 1.00499999...) from
// rounding down.
func Round2(v float64) float64 {
	if v < 0 {
		return -Round2(-v)
	}
	return math.Round(v*100+1e-9) / 100
}
