// Package omnibus implements sequential omnibus change detection on
// multi-temporal polarimetric SAR imagery: for every contiguous sub-sequence
// of the image stack it computes the likelihood-ratio test statistic of
// Conradsen et al. with Bartlett correction, converts it to a per-pixel
// p-value plane, and synthesizes change maps from the resulting matrix of
// p-values.
package omnibus

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"sarseq/pkg/polmat"
)

// Engine computes p-value planes for the hypothesis that the per-pixel
// covariance matrix is constant across a sub-sequence of acquisitions,
// against the alternative that it changed at the final step.
type Engine struct {
	// Looks is the equivalent number of looks n, constant across the stack
	Looks float64

	// Dim is the polarimetric matrix dimension p (1, 2 or 3)
	Dim int
}

// PValues returns the p-value plane for the sub-sequence spanning
// acquisitions start..end+1 inclusive, i.e. j = end-start+2 images. The
// minimum valid sub-sequence is two images (end == start). Low p-values
// indicate strong evidence of change at the final step of the sub-sequence.
//
// Degenerate pixels (all-zero matrices, singular sums) never fail: their
// determinants are clamped before the logarithms, which drives the
// statistic rather than raising an error.
func (e *Engine) PValues(stack []*polmat.Matrix, start, end int) []float64 {
	run := stack[start : end+2]
	n := e.Looks
	p := float64(e.Dim)
	j := float64(len(run))
	npix := run[0].NPix()

	// Running sum over the whole run, then the minus-last variant by
	// explicit copy and subtraction, then the last matrix alone.
	sum := polmat.NewSum(run[0])
	for _, m := range run {
		sum.Add(m, n)
	}
	last := run[len(run)-1]

	logDetSumJ := make([]float64, npix)
	sum.Det(logDetSumJ)
	polmat.ClampLog(logDetSumJ)

	sumJ1 := sum.Clone()
	sumJ1.Sub(last, n)
	logDetSumJ1 := make([]float64, npix)
	sumJ1.Det(logDetSumJ1)
	polmat.ClampLog(logDetSumJ1)

	logDetJ := make([]float64, npix)
	polmat.ScaledDet(last, n, logDetJ)
	polmat.ClampLog(logDetJ)

	// Bartlett correction parameters depend only on p, n and j
	f := p * p
	rho := 1 - (2*p*p-1)*(1+1/(j*(j-1)))/(6*p*n)
	omega2 := -(p*p/4)*math.Pow(1-1/rho, 2) +
		p*p*(p*p-1)*(1+(2*j-1)/math.Pow(j*(j-1), 2))/(24*n*n*rho*rho)

	chi2 := distuv.ChiSquared{K: f}
	chi2Shift := distuv.ChiSquared{K: f + 4}

	jTerm := p * (j*math.Log(j) - (j-1)*math.Log(j-1))

	pv := make([]float64, npix)
	for i := 0; i < npix; i++ {
		lnR := n * (jTerm + (j-1)*logDetSumJ1[i] + logDetJ[i] - j*logDetSumJ[i])
		z := -2 * rho * lnR
		// The chi-squared CDF is 0 for non-positive z; clamped degenerate
		// pixels can drive lnR positive, so guard before the CDF calls
		if z <= 0 {
			pv[i] = 1
			continue
		}
		v := 1 - ((1-omega2)*chi2.CDF(z) + omega2*chi2Shift.CDF(z))
		// The omega2 mixture can overshoot [0,1] by rounding
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		pv[i] = v
	}
	return pv
}
