package models

// Window describes a spatial subset of a raster: an offset into the source
// image and the extent of the region to keep. It is used when the input
// images are not yet co-registered and everything is aligned to a subset
// of the first acquisition.
type Window struct {
	// X0 and Y0 are the column and row offsets of the window origin
	X0, Y0 int

	// Cols and Rows are the extent of the window in pixels
	Cols, Rows int
}

// ChangeMaps holds the four change detection products derived from the
// p-value matrix. All planes share the same spatial dimensions and use an
// 8-bit encoding: 0 means no change, 1..k-1 is a change interval index,
// and 255 marks a binary change flag in the bitemporal layers.
type ChangeMaps struct {
	// CMap is the most-recent-change map: per pixel, the interval index of
	// the latest detected change, 0 if none.
	CMap []uint8

	// SMap is the first-change map: per pixel, the interval index of the
	// earliest detected change, 0 if none.
	SMap []uint8

	// FMap is the change-frequency map: per pixel, the number of detected
	// change events.
	FMap []uint8

	// BMap holds k-1 bitemporal layers; layer j is marked 255 where a
	// change was detected at temporal boundary j.
	BMap [][]uint8

	// Cols and Rows are the spatial dimensions shared by all planes
	Cols, Rows int
}

// NewChangeMaps allocates zero-initialized change maps for a stack of k
// acquisitions over a cols x rows scene. The maps are filled by a single
// synthesis pass and never mutated afterwards.
func NewChangeMaps(cols, rows, k int) *ChangeMaps {
	npix := cols * rows
	bmap := make([][]uint8, k-1)
	for i := range bmap {
		bmap[i] = make([]uint8, npix)
	}
	return &ChangeMaps{
		CMap: make([]uint8, npix),
		SMap: make([]uint8, npix),
		FMap: make([]uint8, npix),
		BMap: bmap,
		Cols: cols,
		Rows: rows,
	}
}
