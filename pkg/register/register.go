// Package register aligns acquisitions to a spatial subset of the first
// image. The reference image is cropped to the requested window; every other
// image is shifted onto it using a global offset estimated by FFT phase
// correlation. Registration tasks are independent, so they can run on a
// parallel executor, with a sequential executor producing bit-identical
// results as the fallback path.
package register

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"sarseq/internal/models"
	"sarseq/pkg/raster"
)

// Subset crops the raster at path to the window and writes the result next
// to the source as <path>_sub. Returns the new path.
func Subset(path string, win models.Window) (string, error) {
	ds, err := raster.Open(path)
	if err != nil {
		return "", err
	}
	if err := checkWindow(win, ds.Cols, ds.Rows); err != nil {
		return "", fmt.Errorf("subset of %s: %w", path, err)
	}

	bands := make([][]float64, ds.Bands)
	for b := range bands {
		bands[b] = crop(ds.Band(b), ds.Cols, win.X0, win.Y0, win.Cols, win.Rows)
	}

	out := path + "_sub"
	if err := writeBands(out, win.Cols, win.Rows, bands, ds.Type, ds.Geo); err != nil {
		return "", err
	}
	return out, nil
}

// Register aligns the image at targetPath to the reference subset at
// refPath (produced by Subset with the same window). The global integer
// shift of the target relative to the reference is estimated by phase
// correlation on the first band, the crop window is moved by that shift,
// and the aligned crop of all bands is written as <targetPath>_warp.
// Returns the path of the registered raster.
func Register(refPath, targetPath string, win models.Window) (string, error) {
	ref, err := raster.Open(refPath)
	if err != nil {
		return "", err
	}
	target, err := raster.Open(targetPath)
	if err != nil {
		return "", err
	}
	if err := checkWindow(win, target.Cols, target.Rows); err != nil {
		return "", fmt.Errorf("registration window for %s: %w", targetPath, err)
	}
	if ref.Cols != win.Cols || ref.Rows != win.Rows {
		return "", fmt.Errorf("reference %s is %dx%d, expected window extent %dx%d",
			refPath, ref.Cols, ref.Rows, win.Cols, win.Rows)
	}

	// Shift estimate from the first band over the unshifted window
	patch := crop(target.Band(0), target.Cols, win.X0, win.Y0, win.Cols, win.Rows)
	dy, dx := phaseCorrelate(ref.Band(0), patch, win.Cols, win.Rows)

	// Move the window by the estimated shift, clamped to the image
	shifted := win
	shifted.X0 = clamp(win.X0+dx, 0, target.Cols-win.Cols)
	shifted.Y0 = clamp(win.Y0+dy, 0, target.Rows-win.Rows)

	bands := make([][]float64, target.Bands)
	for b := range bands {
		bands[b] = crop(target.Band(b), target.Cols, shifted.X0, shifted.Y0, win.Cols, win.Rows)
	}

	out := targetPath + "_warp"
	if err := writeBands(out, win.Cols, win.Rows, bands, target.Type, ref.Geo); err != nil {
		return "", err
	}
	return out, nil
}

// writeBands persists cropped planes with the source sample type, so float64
// inputs are not narrowed to float32 on the way through registration.
func writeBands(path string, cols, rows int, bands [][]float64, t raster.DataType, geo raster.Geo) error {
	if t == raster.Float64 {
		return raster.WriteFloat64(path, cols, rows, bands, geo)
	}
	return raster.WriteFloat32(path, cols, rows, bands, geo)
}

// phaseCorrelate estimates the integer (dy, dx) translation that maps the
// moving plane onto the reference plane: the normalized cross-power
// spectrum of the two FFTs concentrates at the offset of the shift peak.
func phaseCorrelate(ref, moving []float64, cols, rows int) (dy, dx int) {
	fRef := fft2(ref, cols, rows)
	fMov := fft2(moving, cols, rows)

	// Cross-power spectrum, magnitude-normalized
	cross := make([]complex128, len(fRef))
	for i := range cross {
		v := fMov[i] * cmplx.Conj(fRef[i])
		if mag := cmplx.Abs(v); mag > 0 {
			cross[i] = v / complex(mag, 0)
		}
	}
	corr := ifft2(cross, cols, rows)

	// Peak location modulo the image wrap-around
	peak := 0
	best := real(corr[0])
	for i, v := range corr {
		if r := real(v); r > best {
			best = r
			peak = i
		}
	}
	dy = peak / cols
	dx = peak % cols
	if dy > rows/2 {
		dy -= rows
	}
	if dx > cols/2 {
		dx -= cols
	}
	return dy, dx
}

// fft2 computes the full 2-D DFT of a real plane: a forward pass over the
// rows followed by a pass over the columns.
func fft2(data []float64, cols, rows int) []complex128 {
	out := make([]complex128, cols*rows)
	for i, v := range data {
		out[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(cols)
	scratch := make([]complex128, cols)
	for y := 0; y < rows; y++ {
		row := out[y*cols : (y+1)*cols]
		rowFFT.Coefficients(scratch, row)
		copy(row, scratch)
	}

	colFFT := fourier.NewCmplxFFT(rows)
	colIn := make([]complex128, rows)
	colOut := make([]complex128, rows)
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			colIn[y] = out[y*cols+x]
		}
		colFFT.Coefficients(colOut, colIn)
		for y := 0; y < rows; y++ {
			out[y*cols+x] = colOut[y]
		}
	}
	return out
}

// ifft2 computes the unnormalized inverse 2-D DFT. The scale factor is
// irrelevant to peak finding, so it is left in.
func ifft2(data []complex128, cols, rows int) []complex128 {
	out := append([]complex128(nil), data...)

	rowFFT := fourier.NewCmplxFFT(cols)
	scratch := make([]complex128, cols)
	for y := 0; y < rows; y++ {
		row := out[y*cols : (y+1)*cols]
		rowFFT.Sequence(scratch, row)
		copy(row, scratch)
	}

	colFFT := fourier.NewCmplxFFT(rows)
	colIn := make([]complex128, rows)
	colOut := make([]complex128, rows)
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			colIn[y] = out[y*cols+x]
		}
		colFFT.Sequence(colOut, colIn)
		for y := 0; y < rows; y++ {
			out[y*cols+x] = colOut[y]
		}
	}
	return out
}

// crop copies a win.Cols x win.Rows region out of a plane with the given
// source width.
func crop(plane []float64, srcCols, x0, y0, cols, rows int) []float64 {
	out := make([]float64, cols*rows)
	for y := 0; y < rows; y++ {
		copy(out[y*cols:(y+1)*cols], plane[(y0+y)*srcCols+x0:])
	}
	return out
}

func checkWindow(win models.Window, cols, rows int) error {
	if win.Cols <= 0 || win.Rows <= 0 {
		return fmt.Errorf("window extent %dx%d must be positive", win.Cols, win.Rows)
	}
	if win.X0 < 0 || win.Y0 < 0 || win.X0+win.Cols > cols || win.Y0+win.Rows > rows {
		return fmt.Errorf("window (%d,%d)+%dx%d exceeds image %dx%d",
			win.X0, win.Y0, win.Cols, win.Rows, cols, rows)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
