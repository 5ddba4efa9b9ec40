// Package fitting evaluates published stellar mass to halo mass
// relations for comparison with catalogue data. Masses are in solar
// masses.
package fitting

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// Relation maps redshift and halo mass to stellar mass.
type Relation func(z, mhalo float64) float64

// MosterRaw is the relation of Moster, Naab & White (2013), equations 2
// and 11 to 14 with the table 1 fit.
func MosterRaw(z, mhalo float64) float64 {
	const (
		m10    = 11.590
		m11    = 1.195
		n10    = 0.0351
		n11    = -0.0247
		beta10 = 1.376
		beta11 = -0.826
		gama10 = 0.608
		gama11 = 0.329
	)
	f := z / (z + 1)
	m1 := math.Pow(10, m10+m11*f)
	n := n10 + n11*f
	beta := beta10 + beta11*f
	gama := gama10 + gama11*f

	x := mhalo / m1
	return 2 * n / (math.Pow(x, -beta) + math.Pow(x, gama)) * mhalo
}

// BehrooziRaw is the relation of Behroozi, Wechsler & Conroy (2013).
func BehrooziRaw(z, mhalo float64) float64 {
	a := 1 / (1 + z)
	a1 := a - 1
	nu := math.Exp(-4 * a * a)

	m1 := math.Pow(10, 11.514+nu*(-1.793*a1-0.251*z))
	eps := math.Pow(10, -1.777+nu*(-0.006*a1)-0.119*a1)
	alpha := -1.412 + nu*(0.731*a1)
	delta := 3.508 + nu*(2.608*a1-0.043*z)
	gamma := 0.316 + nu*(1.319*a1+0.279*z)

	f := func(x float64) float64 {
		return -math.Log10(math.Pow(10, alpha*x)+1) +
			delta*math.Pow(math.Log10(1+math.Exp(x)), gamma)/(1+math.Exp(math.Pow(10, -x)))
	}
	logMstar := math.Log10(eps*m1) + f(math.Log10(mhalo/m1)) - f(0)
	return math.Pow(10, logMstar)
}

// Behroozi2019Raw is the median fit of Behroozi et al. (2019) to the true
// stellar mass of centrals and satellites against peak halo mass.
func Behroozi2019Raw(z, mhalo float64) float64 {
	const (
		eff0    = -1.430476
		eff0A   = 1.795813
		eff0A2  = 1.359576
		eff0Z   = -0.2156067
		m1      = 12.04003
		m1A     = 4.675185
		m1A2    = 4.513113
		m1Z     = -0.7444014
		alpha   = 1.973063
		alphaA  = -2.3534
		alphaA2 = -1.783277
		alphaZ  = 0.1860354
		beta    = 0.4732459
		betaA   = -0.8842523
		betaZ   = -0.486104
		delta   = 0.4067526
		gamma   = -1.087851
		gammaA  = -3.241419
		gammaZ  = -1.078538
	)
	a := 1 / (1 + z)
	a1 := a - 1
	lna := math.Log(a)

	zm1 := m1 + a1*m1A - lna*m1A2 + z*m1Z
	sm0 := zm1 + eff0 + a1*eff0A - lna*eff0A2 + z*eff0Z
	zalpha := alpha + a1*alphaA - lna*alphaA2 + z*alphaZ
	zbeta := beta + a1*betaA + z*betaZ
	zgamma := math.Pow(10, gamma+a1*gammaA+z*gammaZ)

	dm := math.Log10(mhalo) - zm1
	dm2 := dm / delta
	logMstar := sm0 - math.Log10(math.Pow(10, -zalpha*dm)+math.Pow(10, -zbeta*dm)) +
		zgamma*math.Exp(-0.5*dm2*dm2)
	return math.Pow(10, logMstar)
}

// Default evaluation range and resolution of Evaluate.
var (
	DefaultLow  = units.Quantity{Value: 1e4, Unit: units.Msun}
	DefaultHigh = units.Quantity{Value: 1e16, Unit: units.Msun}
)

// DefaultPoints is the default number of evaluations.
const DefaultPoints = 256

// Evaluate samples fn at n halo masses log-spaced between lo and hi and
// returns the halo and stellar masses in solar masses.
func Evaluate(fn Relation, z float64, lo, hi units.Quantity, n int) (halo, stellar *units.Array, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("need at least two points, got %d", n)
	}
	l, err := lo.In(units.Msun)
	if err != nil {
		return nil, nil, err
	}
	h, err := hi.In(units.Msun)
	if err != nil {
		return nil, nil, err
	}
	if !(l > 0) || !(h > l) {
		return nil, nil, fmt.Errorf("invalid halo mass range [%g, %g]", l, h)
	}

	mh := make([]float64, n)
	ms := make([]float64, n)
	ll, lh := math.Log10(l), math.Log10(h)
	for i := range mh {
		mh[i] = math.Pow(10, ll+(lh-ll)*float64(i)/float64(n-1))
		ms[i] = fn(z, mh[i])
	}
	return units.NewArray(mh, units.Msun).Named("Halo mass"),
		units.NewArray(ms, units.Msun).Named("Stellar mass"), nil
}
