// Package filter provides the 3x3 spatial median filter applied to p-value
// rasters to suppress speckle-induced false positives.
package filter

import "sort"

// Median3x3 returns a new plane where every sample is replaced by the
// median of its 3x3 neighborhood. Edges are handled by reflecting
// coordinates back into the image, so border pixels still see nine samples.
func Median3x3(src []float64, cols, rows int) []float64 {
	out := make([]float64, len(src))
	window := make([]float64, 9)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[n] = src[reflect(y+dy, rows)*cols+reflect(x+dx, cols)]
					n++
				}
			}
			sort.Float64s(window)
			out[y*cols+x] = window[4]
		}
	}
	return out
}

// reflect maps an out-of-range coordinate back into [0, n) by mirroring
// about the image border.
func reflect(i, n int) int {
	if i < 0 {
		return -i - 1
	}
	if i >= n {
		return 2*n - i - 1
	}
	return i
}
