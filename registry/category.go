package registry

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// Category is the semantic group a catalogue field belongs to. It is also
// the first component of a field's dotted access path.
type Category string

const (
	Metallicity        Category = "metallicity"
	IDs                Category = "ids"
	Energies           Category = "energies"
	RotationalSupport  Category = "rotational_support"
	StarFormationRate  Category = "star_formation_rate"
	Masses             Category = "masses"
	Eigenvectors       Category = "eigenvectors"
	Radii              Category = "radii"
	Temperature        Category = "temperature"
	VelDisp            Category = "veldisp"
	StructureType      Category = "structure_type"
	Velocities         Category = "velocities"
	Positions          Category = "positions"
	Concentration      Category = "concentration"
	RVmaxQuantities    Category = "rvmax_quantities"
	AngularMomentum    Category = "angular_momentum"
	ProjectedApertures Category = "projected_apertures"
	Apertures          Category = "apertures"
	StellarAge         Category = "stellar_age"
	Number             Category = "number"
	Unregistered       Category = "unregistered"

	// FailAll never matches. Only test registries include it.
	FailAll Category = "fail_all"
)

// Categories lists every production category in display order.
var Categories = []Category{
	Metallicity, IDs, Energies, RotationalSupport, StarFormationRate,
	Masses, Eigenvectors, Radii, Temperature, VelDisp, StructureType,
	Velocities, Positions, Concentration, RVmaxQuantities, AngularMomentum,
	ProjectedApertures, Apertures, StellarAge, Number, Unregistered,
}

// Term is one factor of a unit template: a base-unit key raised to a power.
type Term struct {
	Key string
	Pow int
}

// Template is the static unit metadata of a field: the base-unit product it
// is measured in and its h and a exponents.
type Template struct {
	Terms []Term
	HExp  units.Rational
	AExp  units.Rational
}

// Standard templates. Lengths are comoving and h-full in comoving outputs,
// masses carry one power of 1/h, velocities are peculiar and physical.
var (
	dimensionless    = Template{HExp: units.Int(0), AExp: units.Int(0)}
	lengthTemplate   = Template{Terms: []Term{{units.KeyLength, 1}}, HExp: units.Int(1), AExp: units.Int(1)}
	massTemplate     = Template{Terms: []Term{{units.KeyMass, 1}}, HExp: units.Int(1), AExp: units.Int(0)}
	velocityTemplate = Template{Terms: []Term{{units.KeyVelocity, 1}}, HExp: units.Int(0), AExp: units.Int(0)}
	energyTemplate   = Template{Terms: []Term{{units.KeyMass, 1}, {units.KeyVelocity, 2}}, HExp: units.Int(1), AExp: units.Int(0)}
	angMomTemplate   = Template{Terms: []Term{{units.KeyMass, 1}, {units.KeyLength, 1}, {units.KeyVelocity, 1}}, HExp: units.Int(2), AExp: units.Int(1)}
	metalTemplate    = Template{Terms: []Term{{units.KeyMetallicity, 1}}, HExp: units.Int(0), AExp: units.Int(0)}
	sfrTemplate      = Template{Terms: []Term{{units.KeyStarFormationRate, 1}}, HExp: units.Int(0), AExp: units.Int(0)}
	ageTemplate      = Template{Terms: []Term{{units.KeyAge, 1}}, HExp: units.Int(0), AExp: units.Int(0)}
	tempTemplate     = Template{Terms: []Term{{units.KeyTemperature, 1}}, HExp: units.Int(0), AExp: units.Int(0)}
)

// Unit builds the template's base unit from a system. It returns the keys
// that the system does not define; in that case the unit is dimensionless.
func (t Template) Unit(sys units.System) (units.Unit, []string) {
	u := units.One
	var missing []string
	for _, term := range t.Terms {
		base, ok := sys.Unit(term.Key)
		if !ok {
			missing = append(missing, term.Key)
			continue
		}
		u = u.Mul(base.Pow(term.Pow))
	}
	if len(missing) > 0 {
		return units.One, missing
	}
	return u, nil
}

func (t Template) String() string {
	return fmt.Sprintf("%v h^%s a^%s", t.Terms, t.HExp, t.AExp)
}
