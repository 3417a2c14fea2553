package polmat

import (
	"math"
	"testing"
)

// TestDetScalar verifies that for single-intensity data (p=1) the
// determinant is simply the look-scaled value itself.
func TestDetScalar(t *testing.T) {
	m := &Matrix{Dim: 1, Cols: 2, Rows: 1, K: []float64{3.0, 0.5}}

	sum := NewSum(m)
	sum.Add(m, 4.0)

	det := make([]float64, 2)
	sum.Det(det)

	expected := []float64{12.0, 2.0}
	for i := range det {
		if math.Abs(det[i]-expected[i]) > 1e-12 {
			t.Errorf("Expected det[%d]=%f, got %f", i, expected[i], det[i])
		}
	}

	ScaledDet(m, 4.0, det)
	for i := range det {
		if math.Abs(det[i]-expected[i]) > 1e-12 {
			t.Errorf("Expected scaled det[%d]=%f, got %f", i, expected[i], det[i])
		}
	}
}

// TestDetDualPolNoCrossTerm verifies that for p=2 with a zero off-diagonal
// element the determinant reduces to the product of the diagonal terms.
func TestDetDualPolNoCrossTerm(t *testing.T) {
	m := &Matrix{
		Dim: 2, Cols: 2, Rows: 1,
		K:   []float64{2.0, 5.0},
		A:   []complex128{0, 0},
		Xsi: []float64{3.0, 7.0},
	}

	sum := NewSum(m)
	sum.Add(m, 1.0)

	det := make([]float64, 2)
	sum.Det(det)

	expected := []float64{6.0, 35.0}
	for i := range det {
		if math.Abs(det[i]-expected[i]) > 1e-12 {
			t.Errorf("Expected det[%d]=%f, got %f", i, expected[i], det[i])
		}
	}
}

// TestDetDualPolCrossTerm checks the full 2x2 Hermitian determinant
// k*xsi - |a|^2 against a hand-computed value.
func TestDetDualPolCrossTerm(t *testing.T) {
	m := &Matrix{
		Dim: 2, Cols: 1, Rows: 1,
		K:   []float64{4.0},
		A:   []complex128{complex(1.0, 2.0)}, // |a|^2 = 5
		Xsi: []float64{3.0},
	}

	sum := NewSum(m)
	sum.Add(m, 1.0)

	det := make([]float64, 1)
	sum.Det(det)

	if math.Abs(det[0]-7.0) > 1e-12 {
		t.Errorf("Expected det=7, got %f", det[0])
	}
}

// TestDetFullPol checks the 3x3 Hermitian determinant against the identity
// matrix and against a matrix with known off-diagonal structure.
func TestDetFullPol(t *testing.T) {
	// Identity: det = 1
	ident := &Matrix{
		Dim: 3, Cols: 1, Rows: 1,
		K: []float64{1}, Xsi: []float64{1}, Zeta: []float64{1},
		A: []complex128{0}, Rho: []complex128{0}, B: []complex128{0},
	}
	sum := NewSum(ident)
	sum.Add(ident, 1.0)
	det := make([]float64, 1)
	sum.Det(det)
	if math.Abs(det[0]-1.0) > 1e-12 {
		t.Errorf("Expected identity det=1, got %f", det[0])
	}

	// Real symmetric case:
	// | 2 1 0 |
	// | 1 3 1 |  det = 2*(3*4-1) - 1*(1*4-0) = 22 - 4 = 18
	// | 0 1 4 |
	m := &Matrix{
		Dim: 3, Cols: 1, Rows: 1,
		K: []float64{2}, Xsi: []float64{3}, Zeta: []float64{4},
		A: []complex128{1}, Rho: []complex128{0}, B: []complex128{1},
	}
	sum = NewSum(m)
	sum.Add(m, 1.0)
	sum.Det(det)
	if math.Abs(det[0]-18.0) > 1e-12 {
		t.Errorf("Expected det=18, got %f", det[0])
	}
}

// TestSumSubMatchesPartialSum verifies the minus-last subtraction trick:
// accumulating t matrices and subtracting the last must equal accumulating
// the first t-1 directly, with no aliasing between the two sums.
func TestSumSubMatchesPartialSum(t *testing.T) {
	ms := []*Matrix{
		{Dim: 2, Cols: 1, Rows: 1, K: []float64{1}, A: []complex128{complex(0.5, -0.2)}, Xsi: []float64{2}},
		{Dim: 2, Cols: 1, Rows: 1, K: []float64{3}, A: []complex128{complex(-1, 0.7)}, Xsi: []float64{1}},
		{Dim: 2, Cols: 1, Rows: 1, K: []float64{2}, A: []complex128{complex(0.1, 0.1)}, Xsi: []float64{4}},
	}
	n := 4.5

	full := NewSum(ms[0])
	for _, m := range ms {
		full.Add(m, n)
	}
	minusLast := full.Clone()
	minusLast.Sub(ms[2], n)

	partial := NewSum(ms[0])
	partial.Add(ms[0], n)
	partial.Add(ms[1], n)

	detA := make([]float64, 1)
	detB := make([]float64, 1)
	minusLast.Det(detA)
	partial.Det(detB)
	if math.Abs(detA[0]-detB[0]) > 1e-9 {
		t.Errorf("Minus-last determinant %f differs from partial sum determinant %f", detA[0], detB[0])
	}

	// The full sum must be untouched by the subtraction on the clone
	detFull := make([]float64, 1)
	full.Det(detFull)
	direct := NewSum(ms[0])
	for _, m := range ms {
		direct.Add(m, n)
	}
	detDirect := make([]float64, 1)
	direct.Det(detDirect)
	if math.Abs(detFull[0]-detDirect[0]) > 1e-9 {
		t.Errorf("Full sum determinant changed after Sub on clone: %f vs %f", detFull[0], detDirect[0])
	}
}

// TestClampLog verifies the degeneracy policy: NaN becomes the floor
// (via zero), non-positive values are raised to the floor, and ordinary
// values pass through to their logarithm.
func TestClampLog(t *testing.T) {
	vals := []float64{math.NaN(), 0, -5, 1, math.E}
	ClampLog(vals)

	floorLog := math.Log(minNormal)
	for i := 0; i < 3; i++ {
		if vals[i] != floorLog {
			t.Errorf("Expected clamped log %f at index %d, got %f", floorLog, i, vals[i])
		}
	}
	if math.Abs(vals[3]) > 1e-12 {
		t.Errorf("Expected log(1)=0, got %f", vals[3])
	}
	if math.Abs(vals[4]-1) > 1e-12 {
		t.Errorf("Expected log(e)=1, got %f", vals[4])
	}

	// The result must always be finite
	for i, v := range vals {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("Clamped log produced non-finite value %f at index %d", v, i)
		}
	}
}

// TestDimFromBands checks the band count to matrix dimension mapping and
// rejection of malformed inputs.
func TestDimFromBands(t *testing.T) {
	cases := []struct {
		bands int
		dim   int
		ok    bool
	}{
		{9, 3, true},
		{4, 2, true},
		{1, 1, true},
		{2, 0, false},
		{3, 0, false},
		{0, 0, false},
	}
	for _, c := range cases {
		dim, err := DimFromBands(c.bands)
		if c.ok && err != nil {
			t.Errorf("Expected %d bands to be accepted, got error: %v", c.bands, err)
		}
		if !c.ok && err == nil {
			t.Errorf("Expected %d bands to be rejected", c.bands)
		}
		if dim != c.dim {
			t.Errorf("Expected dim=%d for %d bands, got %d", c.dim, c.bands, dim)
		}
	}
}
