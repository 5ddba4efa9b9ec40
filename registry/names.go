package registry

import (
	"fmt"
	"strings"
)

// aperture quantity spellings that appear in some catalogue versions
var typoCorrections = map[string]string{"veldips": "veldisp"}

func correctTypo(quantity string) string {
	if c, ok := typoCorrections[quantity]; ok {
		return c
	}
	return quantity
}

func apertureTemplate(quantity string) (Template, error) {
	switch correctTypo(quantity) {
	case "SFR":
		return sfrTemplate, nil
	case "Zmet":
		return metalTemplate, nil
	case "mass":
		return massTemplate, nil
	case "npart":
		return dimensionless, nil
	case "rhalfmass":
		return lengthTemplate, nil
	case "veldisp":
		return velocityTemplate, nil
	}
	return dimensionless, fmt.Errorf("aperture quantity %q: %w", quantity, ErrUnitMiss)
}

var propertyNames = map[string]string{
	"SFR_":           `SFR $\dot{\rho}_*$`,
	"SFR_gas":        `Gas SFR $\dot{\rho}_*$`,
	"Zmet_":          `Metallicity $Z$`,
	"Zmet_gas":       `Gas Metallicity $Z_{\rm g}$`,
	"Zmet_star":      `Stellar Metallicity $Z_*$`,
	"Zmet_bh":        `Black Hole Metallicity $Z_{\rm BH}$`,
	"mass_":          `Mass $M$`,
	"mass_gas":       `Gas Mass $M_{\rm g}$`,
	"mass_star":      `Stellar Mass $M_*$`,
	"mass_bh":        `Black Hole Mass $M_{\rm BH}$`,
	"npart_":         `Number of Particles $N$`,
	"npart_gas":      `Number of Gas Particles $N_{\rm g}$`,
	"npart_star":     `Number of Stellar Particles $N_*$`,
	"npart_bh":       `Number of Black Hole Particles $N_{\rm BH}$`,
	"rhalfmass_":     `Half-mass Radius $R_{50}$`,
	"rhalfmass_gas":  `Gas Half-mass Radius $R_{50, {\rm g}}$`,
	"rhalfmass_star": `Stellar Half-mass Radius $R_{50, *}$`,
	"rhalfmass_bh":   `Black Hole Half-mass Radius $R_{50, {\rm BH}}$`,
	"veldisp_":       `Velocity Dispersion $\sigma$`,
	"veldisp_gas":    `Gas Velocity Dispersion $\sigma_{\rm g}$`,
	"veldisp_star":   `Stellar Velocity Dispersion $\sigma_{*}$`,
	"veldisp_bh":     `Black Hole Velocity Dispersion $\sigma_{\rm BH}$`,
}

// particlePropertyName returns the display name of a per-particle-type
// quantity, e.g. ("mass", "star") -> "Stellar Mass $M_*$".
func particlePropertyName(quantity, ptype string) string {
	q := correctTypo(quantity)
	if n, ok := propertyNames[q+"_"+ptype]; ok {
		return n
	}
	if ptype == "" {
		return q
	}
	return fmt.Sprintf("%s %s", particleTypeName(ptype), q)
}

func particleTypeName(ptype string) string {
	switch strings.ToLower(ptype) {
	case "gas":
		return "Gas"
	case "star", "stars":
		return "Stellar"
	case "bh":
		return "Black Hole"
	case "dm":
		return "Dark Matter"
	case "interloper":
		return "Interloper"
	}
	return ptype
}

func starFormingPrefix(sf string) string {
	switch strings.ToLower(sf) {
	case "sf":
		return "SF "
	case "nsf":
		return "NSF "
	}
	return ""
}

// propertyFromSuffix names fields of the form <quantity>[_<ptype>[_<sf>]].
func propertyFromSuffix(quantity, name string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(name, quantity), "_")
	ptype, sf, _ := strings.Cut(rest, "_")
	return starFormingPrefix(sf) + particlePropertyName(quantity, ptype)
}

// withPart appends a parenthesised qualifier built from an underscore
// separated suffix such as "gas_sf".
func withPart(base, suffix string) string {
	if suffix == "" {
		return base
	}
	parts := strings.Split(suffix, "_")
	for i, p := range parts {
		switch strings.ToLower(p) {
		case "sf", "nsf":
			parts[i] = strings.ToUpper(p)
		default:
			parts[i] = particleTypeName(p)
		}
	}
	return base + " (" + strings.Join(parts, ", ") + ")"
}

func centreSuffix(rest string) string {
	switch rest {
	case "":
		return ""
	case "minpot":
		return " (potential minimum)"
	case "mbp":
		return " (most bound particle)"
	}
	return withPart("", strings.TrimPrefix(rest, "_"))
}
