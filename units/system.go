package units

import "sort"

// Keys of the base units a catalogue header can declare.
const (
	KeyLength            = "length"
	KeyMass              = "mass"
	KeyVelocity          = "velocity"
	KeyMetallicity       = "metallicity"
	KeyAge               = "age"
	KeyStarFormationRate = "star_formation_rate"
	KeyTemperature       = "temperature"
)

// System is the set of code units declared by one catalogue, keyed by the
// Key* constants. A key that is absent has no registered symbolic unit.
type System struct {
	units map[string]Unit
}

// NewSystem builds a system from explicit units.
func NewSystem(units map[string]Unit) System {
	m := make(map[string]Unit, len(units)+1)
	for k, u := range units {
		m[k] = u
	}
	if _, ok := m[KeyTemperature]; !ok {
		m[KeyTemperature] = Kelvin
	}
	return System{units: m}
}

// HeaderFactors holds the header attributes of a properties file that
// relate code units to named units. A nil field means "not present".
type HeaderFactors struct {
	LengthToKpc      *float64
	MassToMsun       *float64
	VelocityToKms    *float64
	MetallicityToSun *float64
	AgeToYr          *float64
	SFRToMsunPerYr   *float64
}

// SystemFromHeader converts header factors into a System.
func SystemFromHeader(h HeaderFactors) System {
	m := map[string]Unit{}
	if h.LengthToKpc != nil {
		m[KeyLength] = Kpc.Times(*h.LengthToKpc)
	}
	if h.MassToMsun != nil {
		m[KeyMass] = Msun.Times(*h.MassToMsun)
	}
	if h.VelocityToKms != nil {
		m[KeyVelocity] = KmPerSec.Times(*h.VelocityToKms)
	}
	if h.MetallicityToSun != nil {
		m[KeyMetallicity] = Zsun.Times(*h.MetallicityToSun)
	}
	if h.AgeToYr != nil {
		m[KeyAge] = Year.Times(*h.AgeToYr)
	}
	if h.SFRToMsunPerYr != nil {
		m[KeyStarFormationRate] = Msun.Div(Year).Times(*h.SFRToMsunPerYr)
	}
	return NewSystem(m)
}

// Unit returns the unit registered for key.
func (s System) Unit(key string) (Unit, bool) {
	u, ok := s.units[key]
	return u, ok
}

// Keys lists the registered keys in sorted order.
func (s System) Keys() []string {
	keys := make([]string, 0, len(s.units))
	for k := range s.units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
