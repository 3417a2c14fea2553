package polmat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// minNormal is the smallest positive normalized float64. Determinants at or
// below this floor are clamped to it before taking logarithms so that
// degenerate pixels yield finite values instead of -Inf.
const minNormal = 2.2250738585072014e-308

// Sum is an explicit running sum of look-scaled matrices over a contiguous
// run of acquisitions. Add and Sub keep the full-sum and minus-last variants
// as separate values with no shared storage, so deriving "sum of the first
// t-1 matrices" is a copy plus one subtraction rather than a recomputation.
type Sum struct {
	dim  int
	npix int

	k, xsi, zeta []float64
	a, rho, b    []complex128
}

// NewSum returns a zero running sum shaped like m.
func NewSum(m *Matrix) *Sum {
	s := &Sum{dim: m.Dim, npix: m.NPix()}
	s.k = make([]float64, s.npix)
	if s.dim >= 2 {
		s.xsi = make([]float64, s.npix)
		s.a = make([]complex128, s.npix)
	}
	if s.dim == 3 {
		s.zeta = make([]float64, s.npix)
		s.rho = make([]complex128, s.npix)
		s.b = make([]complex128, s.npix)
	}
	return s
}

// Add accumulates n*m into the running sum.
func (s *Sum) Add(m *Matrix, n float64) {
	s.addScaled(m, n)
}

// Sub removes n*m from the running sum.
func (s *Sum) Sub(m *Matrix, n float64) {
	s.addScaled(m, -n)
}

func (s *Sum) addScaled(m *Matrix, n float64) {
	floats.AddScaled(s.k, n, m.K)
	if s.dim >= 2 {
		floats.AddScaled(s.xsi, n, m.Xsi)
		cn := complex(n, 0)
		for i, v := range m.A {
			s.a[i] += cn * v
		}
	}
	if s.dim == 3 {
		floats.AddScaled(s.zeta, n, m.Zeta)
		cn := complex(n, 0)
		for i, v := range m.Rho {
			s.rho[i] += cn * v
		}
		for i, v := range m.B {
			s.b[i] += cn * v
		}
	}
}

// Clone returns an independent copy of the running sum.
func (s *Sum) Clone() *Sum {
	c := &Sum{dim: s.dim, npix: s.npix}
	c.k = append([]float64(nil), s.k...)
	if s.dim >= 2 {
		c.xsi = append([]float64(nil), s.xsi...)
		c.a = append([]complex128(nil), s.a...)
	}
	if s.dim == 3 {
		c.zeta = append([]float64(nil), s.zeta...)
		c.rho = append([]complex128(nil), s.rho...)
		c.b = append([]complex128(nil), s.b...)
	}
	return c
}

// Det writes the per-pixel determinant of the summed matrix into dst.
//
//	p=1: k
//	p=2: k*xsi - |a|^2
//	p=3: k*xsi*zeta + 2*Re(a*b*conj(rho)) - xsi*|rho|^2 - k*|b|^2 - zeta*|a|^2
func (s *Sum) Det(dst []float64) {
	determinant(s.dim, dst, s.k, s.xsi, s.zeta, s.a, s.rho, s.b)
}

// ScaledDet writes the per-pixel determinant of n*m into dst.
func ScaledDet(m *Matrix, n float64, dst []float64) {
	switch m.Dim {
	case 1:
		for i := range dst {
			dst[i] = n * m.K[i]
		}
	case 2:
		// det(n*M) = n^2 * det(M) for 2x2
		n2 := n * n
		for i := range dst {
			dst[i] = n2 * (m.K[i]*m.Xsi[i] - hyp2(m.A[i]))
		}
	case 3:
		n3 := n * n * n
		for i := range dst {
			abr := m.A[i] * m.B[i] * conj(m.Rho[i])
			dst[i] = n3 * (m.K[i]*m.Xsi[i]*m.Zeta[i] + 2*real(abr) -
				m.Xsi[i]*hyp2(m.Rho[i]) - m.K[i]*hyp2(m.B[i]) - m.Zeta[i]*hyp2(m.A[i]))
		}
	}
}

func determinant(dim int, dst, k, xsi, zeta []float64, a, rho, b []complex128) {
	switch dim {
	case 1:
		copy(dst, k)
	case 2:
		for i := range dst {
			dst[i] = k[i]*xsi[i] - hyp2(a[i])
		}
	case 3:
		for i := range dst {
			abr := a[i] * b[i] * conj(rho[i])
			dst[i] = k[i]*xsi[i]*zeta[i] + 2*real(abr) -
				xsi[i]*hyp2(rho[i]) - k[i]*hyp2(b[i]) - zeta[i]*hyp2(a[i])
		}
	}
}

// hyp2 is the squared magnitude |z|^2.
func hyp2(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

func conj(z complex128) complex128 {
	return complex(real(z), -imag(z))
}

// ClampLog replaces each determinant in dst with its natural logarithm,
// applying the degeneracy policy first: NaN becomes 0, and anything at or
// below the positive float64 floor is raised to the floor. Ill-conditioned
// sums therefore produce very negative logs rather than errors.
func ClampLog(dst []float64) {
	for i, v := range dst {
		if math.IsNaN(v) {
			v = 0
		}
		if v <= minNormal {
			v = minNormal
		}
		dst[i] = math.Log(v)
	}
}
