package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Match is the outcome of a rule accepting a field name.
type Match struct {
	Template Template
	FullName string
	// UnitErr is set when the name matched but its unit cannot be derived
	// (e.g. an aperture quantity with no known unit).
	UnitErr error
}

// Rule routes field names to a category. Rules are evaluated in ascending
// Priority; the first rule whose Match accepts the name wins.
type Rule struct {
	Name     string
	Priority int
	Category Category
	Match    func(name string) (Match, bool)
}

// DefaultRules returns the production rule table. Specific patterns carry
// lower priorities than the general prefixes they overlap with: apertures
// before everything, RVmax_ before radii and velocities, Tage before T.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "projected_apertures", Priority: 10, Category: ProjectedApertures, Match: matchProjectedAperture},
		{Name: "apertures", Priority: 20, Category: Apertures, Match: matchAperture},
		{Name: "rvmax_quantities", Priority: 30, Category: RVmaxQuantities, Match: matchRVmax},
		{Name: "ids", Priority: 40, Category: IDs, Match: matchIDs},
		{Name: "structure_type", Priority: 50, Category: StructureType, Match: matchStructureType},
		{Name: "number", Priority: 60, Category: Number, Match: matchNumber},
		{Name: "stellar_age", Priority: 70, Category: StellarAge, Match: matchStellarAge},
		{Name: "temperature", Priority: 80, Category: Temperature, Match: matchTemperature},
		{Name: "metallicity", Priority: 90, Category: Metallicity, Match: matchMetallicity},
		{Name: "star_formation_rate", Priority: 100, Category: StarFormationRate, Match: matchSFR},
		{Name: "energies", Priority: 110, Category: Energies, Match: matchEnergies},
		{Name: "rotational_support", Priority: 120, Category: RotationalSupport, Match: matchRotationalSupport},
		{Name: "eigenvectors", Priority: 130, Category: Eigenvectors, Match: matchEigenvectors},
		{Name: "veldisp", Priority: 140, Category: VelDisp, Match: matchVelDisp},
		{Name: "concentration", Priority: 150, Category: Concentration, Match: matchConcentration},
		{Name: "angular_momentum", Priority: 160, Category: AngularMomentum, Match: matchAngularMomentum},
		{Name: "velocities", Priority: 170, Category: Velocities, Match: matchVelocities},
		{Name: "positions", Priority: 180, Category: Positions, Match: matchPositions},
		{Name: "masses", Priority: 190, Category: Masses, Match: matchMasses},
		{Name: "radii", Priority: 200, Category: Radii, Match: matchRadii},
	}
}

// FailAllRule returns a rule that rejects every name. Registries built
// from it alone classify everything as unregistered, which lets tests
// check that mis-registration is reported rather than silently accepted.
func FailAllRule() Rule {
	return Rule{
		Name:     "fail_all",
		Priority: 0,
		Category: FailAll,
		Match:    func(string) (Match, bool) { return Match{}, false },
	}
}

var (
	apertureRE          = regexp.MustCompile(`^Aperture_([^_]*)_([a-zA-Z]*)?_?([a-zA-Z]*)?_?([0-9]*)_kpc`)
	projectedApertureRE = regexp.MustCompile(`^Projected_aperture_([0-9])_([^_]*)_([a-zA-Z]*)?_?([a-zA-Z]*)?_?([0-9]*)_kpc`)
	krotRE              = regexp.MustCompile(`^Krot_?([a-z]*)_?([a-z]*)?`)
)

func matchAperture(name string) (Match, bool) {
	m := apertureRE.FindStringSubmatch(name)
	if m == nil {
		return Match{}, false
	}
	size, err := strconv.Atoi(m[4])
	if err != nil {
		return Match{}, false
	}
	quantity, ptype, sf := m[1], m[2], m[3]
	tmpl, uerr := apertureTemplate(quantity)
	full := fmt.Sprintf("%s%s (%d kpc)", starFormingPrefix(sf), particlePropertyName(quantity, ptype), size)
	return Match{Template: tmpl, FullName: full, UnitErr: uerr}, true
}

func matchProjectedAperture(name string) (Match, bool) {
	m := projectedApertureRE.FindStringSubmatch(name)
	if m == nil {
		return Match{}, false
	}
	size, err := strconv.Atoi(m[5])
	if err != nil {
		return Match{}, false
	}
	projection, quantity, ptype, sf := m[1], m[2], m[3], m[4]
	tmpl, uerr := apertureTemplate(quantity)
	full := fmt.Sprintf("%s%s (Projection %s, %d kpc)", starFormingPrefix(sf), particlePropertyName(quantity, ptype), projection, size)
	return Match{Template: tmpl, FullName: full, UnitErr: uerr}, true
}

// matchRVmax classifies the remainder after "RVmax_" with the other rules
// to pick the unit; the category stays rvmax_quantities.
func matchRVmax(name string) (Match, bool) {
	rest, ok := strings.CutPrefix(name, "RVmax_")
	if !ok || rest == "" {
		return Match{}, false
	}
	for _, r := range DefaultRules() {
		if r.Category == RVmaxQuantities || r.Category == Apertures || r.Category == ProjectedApertures {
			continue
		}
		if inner, ok := r.Match(rest); ok {
			inner.FullName += ` at $R_{V_{\rm max}}$`
			return inner, true
		}
	}
	return Match{Template: dimensionless, FullName: rest + ` at $R_{V_{\rm max}}$`}, true
}

func matchIDs(name string) (Match, bool) {
	if !strings.HasPrefix(name, "ID") && !strings.HasSuffix(name, "ID") {
		return Match{}, false
	}
	full := "Generic ID"
	switch name {
	case "ID":
		full = "Halo ID"
	case "ID_mpb":
		full = "ID of Most Bound Particle"
	case "ID_minpot":
		full = "ID of Particle at Potential Minimum"
	case "hostHaloID":
		full = "Host Halo ID"
	}
	return Match{Template: dimensionless, FullName: full}, true
}

func matchStructureType(name string) (Match, bool) {
	if !strings.HasPrefix(name, "Structuretype") {
		return Match{}, false
	}
	return Match{Template: dimensionless, FullName: "Structure Type"}, true
}

func matchNumber(name string) (Match, bool) {
	if name == "npart" {
		return Match{Template: dimensionless, FullName: "Number of Particles $N$"}, true
	}
	ptype, ok := strings.CutPrefix(name, "n_")
	if !ok {
		return Match{}, false
	}
	return Match{Template: dimensionless, FullName: fmt.Sprintf("Number of %s Particles", particleTypeName(ptype))}, true
}

func matchStellarAge(name string) (Match, bool) {
	if !strings.HasPrefix(name, "Tage") {
		return Match{}, false
	}
	return Match{Template: ageTemplate, FullName: "Stellar Age"}, true
}

func matchTemperature(name string) (Match, bool) {
	if name == "T" {
		return Match{Template: tempTemplate, FullName: "Temperature $T$"}, true
	}
	ptype, ok := strings.CutPrefix(name, "T_")
	if !ok {
		return Match{}, false
	}
	return Match{Template: tempTemplate, FullName: withPart("Temperature $T$", ptype)}, true
}

func matchMetallicity(name string) (Match, bool) {
	if !strings.HasPrefix(name, "Zmet") {
		return Match{}, false
	}
	return Match{Template: metalTemplate, FullName: propertyFromSuffix("Zmet", name)}, true
}

func matchSFR(name string) (Match, bool) {
	if !strings.HasPrefix(name, "SFR") {
		return Match{}, false
	}
	return Match{Template: sfrTemplate, FullName: propertyFromSuffix("SFR", name)}, true
}

func matchEnergies(name string) (Match, bool) {
	if !strings.HasPrefix(name, "E") {
		return Match{}, false
	}
	switch {
	case strings.HasPrefix(name, "Efrac"):
		return Match{Template: dimensionless, FullName: "Energy Fraction"}, true
	case strings.HasPrefix(name, "Ekin"):
		return Match{Template: energyTemplate, FullName: "Kinetic Energy"}, true
	case strings.HasPrefix(name, "Epot"):
		return Match{Template: energyTemplate, FullName: "Potential Energy"}, true
	}
	return Match{Template: energyTemplate, FullName: "Energy"}, true
}

func matchRotationalSupport(name string) (Match, bool) {
	m := krotRE.FindStringSubmatch(name)
	if m == nil {
		return Match{}, false
	}
	full := `$\kappa_{\rm rot`
	if m[1] != "" {
		full += `, {\rm ` + m[1] + `}`
	}
	full += "}$"
	if m[2] != "" {
		full += " (" + strings.ToUpper(m[2]) + ")"
	}
	return Match{Template: dimensionless, FullName: full}, true
}

func matchEigenvectors(name string) (Match, bool) {
	if rest, ok := strings.CutPrefix(name, "eig_"); ok {
		return Match{Template: dimensionless, FullName: "Eigenvector " + rest}, true
	}
	for _, axis := range []string{"q", "s"} {
		if name == axis || strings.HasPrefix(name, axis+"_") {
			return Match{Template: dimensionless, FullName: withPart("Axis Ratio $"+axis+"$", strings.TrimPrefix(name[1:], "_"))}, true
		}
	}
	return Match{}, false
}

func matchVelDisp(name string) (Match, bool) {
	if !strings.HasPrefix(name, "sigV") && !strings.HasPrefix(name, "veldisp") {
		return Match{}, false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(name, "sigV"), "veldisp"), "_")
	return Match{Template: velocityTemplate, FullName: withPart(`Velocity Dispersion $\sigma$`, rest)}, true
}

func matchConcentration(name string) (Match, bool) {
	if !strings.HasPrefix(name, "cNFW") {
		return Match{}, false
	}
	return Match{Template: dimensionless, FullName: "NFW Concentration $c$"}, true
}

func matchAngularMomentum(name string) (Match, bool) {
	if len(name) < 2 || name[0] != 'L' || !strings.ContainsRune("xyz", rune(name[1])) {
		return Match{}, false
	}
	if len(name) > 2 && name[2] != '_' {
		return Match{}, false
	}
	full := fmt.Sprintf("Angular Momentum $L_%c$", name[1])
	if len(name) > 3 {
		full = withPart(full, name[3:])
	}
	return Match{Template: angMomTemplate, FullName: full}, true
}

func matchVelocities(name string) (Match, bool) {
	if !strings.HasPrefix(name, "V") {
		return Match{}, false
	}
	if strings.HasPrefix(name, "Vmax") {
		return Match{Template: velocityTemplate, FullName: `Maximum Circular Velocity $V_{\rm max}$`}, true
	}
	if len(name) >= 3 && strings.ContainsRune("XYZ", rune(name[1])) && name[2] == 'c' {
		full := fmt.Sprintf("Velocity $v_%c$", strings.ToLower(name[1:2])[0])
		return Match{Template: velocityTemplate, FullName: full + centreSuffix(name[3:])}, true
	}
	return Match{Template: velocityTemplate, FullName: "Velocity"}, true
}

func matchPositions(name string) (Match, bool) {
	if len(name) < 2 || !strings.ContainsRune("XYZ", rune(name[0])) || name[1] != 'c' {
		return Match{}, false
	}
	full := fmt.Sprintf("Position $%c$", strings.ToLower(name[:1])[0])
	return Match{Template: lengthTemplate, FullName: full + centreSuffix(name[2:])}, true
}

func matchMasses(name string) (Match, bool) {
	switch {
	case name == "Mvir":
		return Match{Template: massTemplate, FullName: `Virial Mass $M_{\rm vir}$`}, true
	case name == "Mass_tot":
		return Match{Template: massTemplate, FullName: "Total Mass $M$"}, true
	case strings.HasPrefix(name, "Mass_"):
		return Match{Template: massTemplate, FullName: `$M_{\rm ` + strings.TrimPrefix(name, "Mass_") + `}$`}, true
	case strings.HasPrefix(name, "M_"):
		return Match{Template: massTemplate, FullName: withPart("Mass $M$", strings.TrimPrefix(name, "M_"))}, true
	}
	return Match{}, false
}

func matchRadii(name string) (Match, bool) {
	switch {
	case name == "Rvir":
		return Match{Template: lengthTemplate, FullName: `Virial Radius $R_{\rm vir}$`}, true
	case name == "Rmax":
		return Match{Template: lengthTemplate, FullName: `Radius of Maximum Circular Velocity $R_{\rm max}$`}, true
	case name == "R_size":
		return Match{Template: lengthTemplate, FullName: "Halo Extent"}, true
	case strings.HasPrefix(name, "R_HalfMass"):
		return Match{Template: lengthTemplate, FullName: withPart("Half-mass Radius $R_{50}$", strings.TrimPrefix(strings.TrimPrefix(name, "R_HalfMass"), "_"))}, true
	case strings.HasPrefix(name, "R_"):
		return Match{Template: lengthTemplate, FullName: `$R_{\rm ` + strings.TrimPrefix(name, "R_") + `}$`}, true
	}
	return Match{}, false
}
