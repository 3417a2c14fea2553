// Package polmat represents per-pixel polarimetric covariance/coherency
// matrices as parallel image planes and provides the running-sum determinant
// arithmetic used by the sequential change detection statistic.
package polmat

import (
	"fmt"

	"sarseq/pkg/raster"
)

// Matrix holds the per-pixel Hermitian matrix elements of one acquisition
// as parallel planes of cols*rows samples. Which planes are populated
// depends on the matrix dimension:
//
//	p=1: K
//	p=2: K, A, Xsi
//	p=3: K, A, Rho, Xsi, B, Zeta
//
// K, Xsi and Zeta are the real diagonal elements; A, Rho and B are the
// complex off-diagonal elements.
type Matrix struct {
	// Dim is the matrix dimension p (1, 2 or 3)
	Dim int

	// Cols and Rows are the spatial dimensions of each plane
	Cols, Rows int

	// Real diagonal planes
	K, Xsi, Zeta []float64

	// Complex off-diagonal planes
	A, Rho, B []complex128
}

// DimFromBands maps a raster band count to the polarimetric matrix
// dimension: 9 bands is full polarimetry (3x3), 4 bands is dual (2x2),
// 1 band is single intensity. Any other count is rejected.
func DimFromBands(bands int) (int, error) {
	switch bands {
	case 9:
		return 3, nil
	case 4:
		return 2, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("unsupported band count %d: expected 1, 4 or 9", bands)
}

// ReadMatrix assembles the per-pixel matrix elements from an opened raster.
// Complex elements occupy consecutive real/imaginary bands:
//
//	9 bands: T11, Re T12, Im T12, Re T13, Im T13, T22, Re T23, Im T23, T33
//	4 bands: C11, Re C12, Im C12, C22
//	1 band:  C11
func ReadMatrix(ds *raster.Dataset) (*Matrix, error) {
	p, err := DimFromBands(ds.Bands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path, err)
	}

	m := &Matrix{Dim: p, Cols: ds.Cols, Rows: ds.Rows}
	switch p {
	case 3:
		m.K = ds.Band(0)
		m.A = toComplex(ds.Band(1), ds.Band(2))
		m.Rho = toComplex(ds.Band(3), ds.Band(4))
		m.Xsi = ds.Band(5)
		m.B = toComplex(ds.Band(6), ds.Band(7))
		m.Zeta = ds.Band(8)
	case 2:
		m.K = ds.Band(0)
		m.A = toComplex(ds.Band(1), ds.Band(2))
		m.Xsi = ds.Band(3)
	case 1:
		m.K = ds.Band(0)
	}
	return m, nil
}

// toComplex combines separate real and imaginary planes into one complex plane.
func toComplex(re, im []float64) []complex128 {
	out := make([]complex128, len(re))
	for i := range re {
		out[i] = complex(re[i], im[i])
	}
	return out
}

// NPix returns the number of pixels in each plane.
func (m *Matrix) NPix() int {
	return m.Cols * m.Rows
}
