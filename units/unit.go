// Package units provides dimensioned units, unit-tagged arrays and the
// cosmology metadata used to derive catalogue units.
//
// A Unit is a dimension vector plus a scale factor relative to the SI base
// units (m, kg, s, K). Two quantities are combinable only if their dimensions
// match; scale differences are removed by conversion.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimension holds integer exponents over length, mass, time and temperature.
type Dimension [4]int8

// Base dimensions.
var (
	Dimensionless = Dimension{}
	Length        = Dimension{1, 0, 0, 0}
	Mass          = Dimension{0, 1, 0, 0}
	Time          = Dimension{0, 0, 1, 0}
	Temperature   = Dimension{0, 0, 0, 1}
	Velocity      = Length.Div(Time)
	Volume        = Length.Pow(3)
)

var dimensionNames = [4]string{"L", "M", "T", "Θ"}

// Mul returns the dimension of a product.
func (d Dimension) Mul(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] + o[i]
	}
	return r
}

// Div returns the dimension of a quotient.
func (d Dimension) Div(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] - o[i]
	}
	return r
}

// Pow raises every exponent by n.
func (d Dimension) Pow(n int) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] * int8(n)
	}
	return r
}

// IsDimensionless reports whether all exponents are zero.
func (d Dimension) IsDimensionless() bool {
	return d == Dimensionless
}

func (d Dimension) String() string {
	if d.IsDimensionless() {
		return "1"
	}
	var parts []string
	for i, e := range d {
		switch {
		case e == 0:
		case e == 1:
			parts = append(parts, dimensionNames[i])
		default:
			parts = append(parts, fmt.Sprintf("%s^%d", dimensionNames[i], e))
		}
	}
	return strings.Join(parts, " ")
}

// Unit is a named scale over a dimension.
// Scale converts one of this unit into the SI base units of its dimension.
type Unit struct {
	Symbol string
	Dim    Dimension
	Scale  float64
}

// Physical constants and named units, SI scaled.
const (
	kpcInMetres   = 3.0856775814913673e19
	solarMassInKg = 1.98841586e30
	julianYear    = 365.25 * 86400.0
	solarMetal    = 0.01295
)

// Named units.
var (
	One      = Unit{Symbol: "dimensionless", Dim: Dimensionless, Scale: 1}
	Metre    = Unit{Symbol: "m", Dim: Length, Scale: 1}
	Cm       = Unit{Symbol: "cm", Dim: Length, Scale: 1e-2}
	Km       = Unit{Symbol: "km", Dim: Length, Scale: 1e3}
	Pc       = Unit{Symbol: "pc", Dim: Length, Scale: kpcInMetres * 1e-3}
	Kpc      = Unit{Symbol: "kpc", Dim: Length, Scale: kpcInMetres}
	Mpc      = Unit{Symbol: "Mpc", Dim: Length, Scale: kpcInMetres * 1e3}
	Gram     = Unit{Symbol: "g", Dim: Mass, Scale: 1e-3}
	Kg       = Unit{Symbol: "kg", Dim: Mass, Scale: 1}
	Msun     = Unit{Symbol: "Msun", Dim: Mass, Scale: solarMassInKg}
	Second   = Unit{Symbol: "s", Dim: Time, Scale: 1}
	Year     = Unit{Symbol: "yr", Dim: Time, Scale: julianYear}
	Myr      = Unit{Symbol: "Myr", Dim: Time, Scale: julianYear * 1e6}
	Gyr      = Unit{Symbol: "Gyr", Dim: Time, Scale: julianYear * 1e9}
	Kelvin   = Unit{Symbol: "K", Dim: Temperature, Scale: 1}
	KmPerSec = Unit{Symbol: "km/s", Dim: Velocity, Scale: 1e3}
	Zsun     = Unit{Symbol: "Zsun", Dim: Dimensionless, Scale: solarMetal}
)

// symbols maps every accepted spelling to its unit.
var symbols = map[string]Unit{
	"":              One,
	"1":             One,
	"dimensionless": One,
	"m":             Metre,
	"cm":            Cm,
	"km":            Km,
	"pc":            Pc,
	"kpc":           Kpc,
	"Mpc":           Mpc,
	"g":             Gram,
	"kg":            Kg,
	"Msun":          Msun,
	"msun":          Msun,
	"Solar_Mass":    Msun,
	"s":             Second,
	"yr":            Year,
	"year":          Year,
	"Myr":           Myr,
	"Gyr":           Gyr,
	"K":             Kelvin,
	"Zsun":          Zsun,
}

// Lookup returns the unit registered under a single symbol.
func Lookup(symbol string) (Unit, bool) {
	u, ok := symbols[symbol]
	return u, ok
}

// Mul returns the product unit.
func (u Unit) Mul(o Unit) Unit {
	return Unit{
		Symbol: joinSymbols(u.Symbol, "*", o.Symbol),
		Dim:    u.Dim.Mul(o.Dim),
		Scale:  u.Scale * o.Scale,
	}
}

// Div returns the quotient unit.
func (u Unit) Div(o Unit) Unit {
	return Unit{
		Symbol: joinSymbols(u.Symbol, "/", o.Symbol),
		Dim:    u.Dim.Div(o.Dim),
		Scale:  u.Scale / o.Scale,
	}
}

// Pow raises the unit to an integer power. A symbol that is already a
// power of a single name has its exponent folded: Mpc**3 to the -1 is
// Mpc**-3.
func (u Unit) Pow(n int) Unit {
	out := Unit{Dim: u.Dim.Pow(n), Scale: math.Pow(u.Scale, float64(n))}
	base, exp := splitPower(u.Symbol)
	switch e := exp * n; e {
	case 0:
		out.Symbol = One.Symbol
	case 1:
		out.Symbol = base
	default:
		out.Symbol = fmt.Sprintf("%s**%d", wrapSymbol(base), e)
	}
	return out
}

// splitPower splits "name**n" into name and n. Any other symbol is its own
// base with exponent 1.
func splitPower(sym string) (string, int) {
	i := strings.LastIndex(sym, "**")
	if i <= 0 {
		return sym, 1
	}
	base := sym[:i]
	n, err := strconv.Atoi(sym[i+2:])
	if err != nil || strings.ContainsAny(base, "*/^() ") {
		return sym, 1
	}
	return base, n
}

// Inverse returns 1/u.
func (u Unit) Inverse() Unit {
	return u.Pow(-1)
}

// Times scales the unit by a pure number, e.g. a code unit of 1e10 Msun.
func (u Unit) Times(factor float64) Unit {
	if factor == 1 {
		return u
	}
	sym := strconv.FormatFloat(factor, 'g', -1, 64)
	if !u.IsDimensionless() || u.Symbol != One.Symbol {
		sym += " " + u.Symbol
	}
	return Unit{Symbol: sym, Dim: u.Dim, Scale: u.Scale * factor}
}

// IsDimensionless reports whether the unit has no dimension.
func (u Unit) IsDimensionless() bool {
	return u.Dim.IsDimensionless()
}

// Compatible reports whether values in u can be converted into o.
func (u Unit) Compatible(o Unit) bool {
	return u.Dim == o.Dim
}

// ConversionFactor returns the multiplier taking values in u to values in o.
func (u Unit) ConversionFactor(o Unit) (float64, error) {
	if !u.Compatible(o) {
		return 0, fmt.Errorf("%w: %s [%s] to %s [%s]", ErrIncompatibleUnits, u.Symbol, u.Dim, o.Symbol, o.Dim)
	}
	return u.Scale / o.Scale, nil
}

// Equal reports whether two units describe the same dimension and scale.
func (u Unit) Equal(o Unit) bool {
	return u.Dim == o.Dim && u.Scale == o.Scale
}

func (u Unit) String() string {
	return u.Symbol
}

func joinSymbols(a, op, b string) string {
	if b == One.Symbol {
		return a
	}
	if a == One.Symbol {
		if op == "/" {
			return "1/" + wrapSymbol(b)
		}
		return b
	}
	return a + op + wrapSymbol(b)
}

// wrapSymbol parenthesizes compound symbols. A single power such as
// "Mpc**3" stays bare.
func wrapSymbol(s string) string {
	if base, _ := splitPower(s); base != s {
		return s
	}
	if strings.ContainsAny(s, "*/^ ") {
		return "(" + s + ")"
	}
	return s
}
