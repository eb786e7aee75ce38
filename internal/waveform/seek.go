package waveform

import "math"

// SeekFraction maps a pointer x within an element of width to a playback
// fraction clamped to [0, 1]. A non-positive width yields 0.
func SeekFraction(x, width float64) float64 {
	if width <= 0 || math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x/width))
}
