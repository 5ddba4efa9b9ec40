package massfunction

import (
	"fmt"
	"sort"
)

// Spline is a natural cubic spline through a set of knots. Outside the
// knots it continues the end polynomials.
type Spline struct {
	x, y []float64
	m    []float64 // second derivatives at the knots
}

// NewSpline fits knots (x[i], y[i]). x must be strictly increasing and
// hold at least two points.
func NewSpline(x, y []float64) (*Spline, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("%w: %d x values and %d y values", ErrBadCorrection, n, len(y))
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two knots", ErrBadCorrection)
	}
	for i := 1; i < n; i++ {
		if !(x[i] > x[i-1]) {
			return nil, fmt.Errorf("%w: x not increasing at %d", ErrBadCorrection, i)
		}
	}

	s := &Spline{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
		m: make([]float64, n),
	}
	if n == 2 {
		return s, nil
	}

	// Tridiagonal system for the interior second derivatives, solved with
	// the Thomas algorithm. m[0] = m[n-1] = 0.
	c := make([]float64, n)
	d := make([]float64, n)
	for i := 1; i < n-1; i++ {
		h0, h1 := x[i]-x[i-1], x[i+1]-x[i]
		a, b, cc := h0, 2*(h0+h1), h1
		r := 6 * ((y[i+1]-y[i])/h1 - (y[i]-y[i-1])/h0)
		if i > 1 {
			b -= a * c[i-1]
			r -= a * d[i-1]
		}
		c[i] = cc / b
		d[i] = r / b
	}
	for i := n - 2; i >= 1; i-- {
		s.m[i] = d[i] - c[i]*s.m[i+1]
	}
	return s, nil
}

// At evaluates the spline at v.
func (s *Spline) At(v float64) float64 {
	n := len(s.x)
	k := sort.SearchFloat64s(s.x, v) - 1
	k = max(0, min(k, n-2))

	h := s.x[k+1] - s.x[k]
	a := (s.x[k+1] - v) / h
	b := (v - s.x[k]) / h
	return a*s.y[k] + b*s.y[k+1] +
		((a*a*a-a)*s.m[k]+(b*b*b-b)*s.m[k+1])*h*h/6
}
