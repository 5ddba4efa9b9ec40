package units

import (
	"fmt"
	"math"
)

// Rational is an exact exponent such as 1, -1 or 3/2.
type Rational struct {
	Num int
	Den int
}

// R builds a rational; a zero denominator is treated as 1.
func R(num, den int) Rational {
	if den == 0 {
		den = 1
	}
	if den < 0 {
		num, den = -num, -den
	}
	return Rational{Num: num, Den: den}
}

// Int builds an integral rational.
func Int(n int) Rational { return Rational{Num: n, Den: 1} }

// Float returns the value as a float64.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return float64(r.Num)
	}
	return float64(r.Num) / float64(r.Den)
}

// RationalFromFloat recovers an exact exponent from a stored float such as
// -1.0 or 1.5. Denominators up to 12 are tried.
func RationalFromFloat(f float64) (Rational, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Rational{}, false
	}
	for den := 1; den <= 12; den++ {
		num := math.Round(f * float64(den))
		if math.Abs(num/float64(den)-f) < 1e-9 {
			return R(int(num), den), true
		}
	}
	return Rational{}, false
}

// IsZero reports whether the rational is zero.
func (r Rational) IsZero() bool { return r.Num == 0 }

func (r Rational) String() string {
	if r.Den == 1 || r.Den == 0 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Cosmology is the per-catalogue cosmological metadata. It is attached
// once when a catalogue is loaded and never modified afterwards.
type Cosmology struct {
	// H is the dimensionless Hubble parameter h.
	H float64
	// A is the scale factor of the output, in (0, 1].
	A float64
	// BoxSize is the comoving side length; nil when unknown.
	BoxSize *Quantity

	OmegaM      float64
	OmegaB      float64
	OmegaLambda float64
	W0          float64

	// Cosmological is false for non-expanding (e.g. isolated) runs.
	Cosmological bool
	// Comoving is true when stored values are comoving and h-full.
	Comoving bool
}

// Redshift returns z = 1/a - 1.
func (c Cosmology) Redshift() float64 {
	return 1/c.A - 1
}

// H0 returns the Hubble constant in km/s/Mpc.
func (c Cosmology) H0() float64 {
	return 100 * c.H
}

// Validate checks h > 0 and a in (0, 1].
func (c Cosmology) Validate() error {
	if !(c.H > 0) {
		return fmt.Errorf("%w: h must be positive, got %g", ErrInvalidCosmology, c.H)
	}
	if !(c.A > 0 && c.A <= 1) {
		return fmt.Errorf("%w: scale factor must be in (0, 1], got %g", ErrInvalidCosmology, c.A)
	}
	return nil
}

// Correction returns h^{-hExp} * a^{aExp}, the factor taking a stored
// h-full comoving value into physical units.
func (c Cosmology) Correction(hExp, aExp Rational) float64 {
	f := 1.0
	if !hExp.IsZero() {
		f *= math.Pow(c.H, -hExp.Float())
	}
	if !aExp.IsZero() {
		f *= math.Pow(c.A, aExp.Float())
	}
	return f
}
