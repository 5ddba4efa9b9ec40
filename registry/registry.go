// Package registry classifies catalogue field names into categories and
// derives their units from a catalogue's unit system and cosmology.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/robert-malhotra/go-velociraptor/units"
)

var (
	// ErrUnregistered means no rule accepted a field name.
	ErrUnregistered = errors.New("field not registered")
	// ErrUnitMiss means a field was classified but its unit could not be built.
	ErrUnitMiss = errors.New("unit could not be determined")
	// ErrDuplicatePriority means two rules share a priority, which would
	// make classification order ambiguous.
	ErrDuplicatePriority = errors.New("duplicate rule priority")
)

// Registry is an ordered rule table. It is immutable after construction.
type Registry struct {
	rules []Rule
}

// New builds a registry. Rules are sorted by priority; equal priorities
// are rejected.
func New(rules ...Rule) (*Registry, error) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Priority == sorted[i-1].Priority {
			return nil, fmt.Errorf("rules %q and %q at %d: %w",
				sorted[i-1].Name, sorted[i].Name, sorted[i].Priority, ErrDuplicatePriority)
		}
	}
	return &Registry{rules: sorted}, nil
}

// Default returns a registry with the production rules.
func Default() *Registry {
	r, err := New(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Rules returns the rules in evaluation order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Classify returns the category of name, or Unregistered.
func (r *Registry) Classify(name string) Category {
	rule, _, ok := r.match(name)
	if !ok {
		return Unregistered
	}
	return rule.Category
}

func (r *Registry) match(name string) (Rule, Match, bool) {
	for _, rule := range r.rules {
		if m, ok := rule.Match(name); ok {
			return rule, m, true
		}
	}
	return Rule{}, Match{}, false
}

// Convention selects how values are presented.
type Convention int

const (
	// Physical applies the h and a correction to comoving catalogues.
	Physical Convention = iota
	// Stored leaves values in the units they were written in.
	Stored
)

func (c Convention) String() string {
	if c == Stored {
		return "stored"
	}
	return "physical"
}

// ParseConvention accepts "physical" or "stored".
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "physical":
		return Physical, nil
	case "stored", "comoving":
		return Stored, nil
	}
	return Physical, fmt.Errorf("unknown unit convention %q", s)
}

// WarningKind distinguishes the non-fatal problems met while resolving.
type WarningKind int

const (
	ClassificationMiss WarningKind = iota + 1
	UnitMiss
)

func (k WarningKind) String() string {
	switch k {
	case ClassificationMiss:
		return "classification_miss"
	case UnitMiss:
		return "unit_miss"
	}
	return "unknown"
}

// Warning records a field that was loaded with degraded metadata.
type Warning struct {
	Field  string
	Kind   WarningKind
	Detail string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s: %s", w.Field, w.Kind, w.Detail)
}

// Unwrap lets callers match warnings against ErrUnregistered or ErrUnitMiss.
func (w Warning) Unwrap() error {
	if w.Kind == ClassificationMiss {
		return ErrUnregistered
	}
	return ErrUnitMiss
}

// Field is the resolved metadata of one catalogue field.
type Field struct {
	Name      string
	SnakeCase string
	FullName  string
	Category  Category
	Rule      string
	// BaseUnit is the unit before any cosmology correction.
	BaseUnit units.Unit
	// Unit is what values are reported in under the resolver's convention.
	Unit     units.Unit
	HExp     units.Rational
	AExp     units.Rational
	Comoving bool
}

// Override replaces a template's exponents, typically from per-dataset
// attributes written by the halo finder.
type Override struct {
	HExp *units.Rational
	AExp *units.Rational
}

// Resolver binds a registry to one catalogue's unit system and cosmology.
type Resolver struct {
	reg        *Registry
	sys        units.System
	cosmo      units.Cosmology
	convention Convention
}

func NewResolver(reg *Registry, sys units.System, cosmo units.Cosmology, conv Convention) *Resolver {
	if reg == nil {
		reg = Default()
	}
	return &Resolver{reg: reg, sys: sys, cosmo: cosmo, convention: conv}
}

// Registry returns the underlying rule table.
func (r *Resolver) Registry() *Registry { return r.reg }

// Resolve classifies name and builds its unit.
func (r *Resolver) Resolve(name string) (Field, []Warning) {
	return r.ResolveOverride(name, Override{})
}

// ResolveOverride is Resolve with explicit exponents taking precedence
// over the category template.
func (r *Resolver) ResolveOverride(name string, o Override) (Field, []Warning) {
	f := Field{
		Name:      name,
		SnakeCase: SnakeCase(name),
		Category:  Unregistered,
		BaseUnit:  units.One,
		Unit:      units.One,
		HExp:      units.Int(0),
		AExp:      units.Int(0),
	}

	rule, m, ok := r.reg.match(name)
	if !ok {
		f.FullName = name
		return f, []Warning{{Field: name, Kind: ClassificationMiss, Detail: "no rule matched; loaded as dimensionless"}}
	}

	var warnings []Warning
	f.Category = rule.Category
	f.Rule = rule.Name
	f.FullName = m.FullName
	if f.FullName == "" {
		f.FullName = name
	}
	f.HExp, f.AExp = m.Template.HExp, m.Template.AExp
	if o.HExp != nil {
		f.HExp = *o.HExp
	}
	if o.AExp != nil {
		f.AExp = *o.AExp
	}

	if m.UnitErr != nil {
		warnings = append(warnings, Warning{Field: name, Kind: UnitMiss, Detail: m.UnitErr.Error()})
		f.HExp, f.AExp = units.Int(0), units.Int(0)
		return f, warnings
	}

	base, missing := m.Template.Unit(r.sys)
	if len(missing) > 0 {
		warnings = append(warnings, Warning{
			Field:  name,
			Kind:   UnitMiss,
			Detail: fmt.Sprintf("unit system lacks %s; loaded as dimensionless", strings.Join(missing, ", ")),
		})
		f.HExp, f.AExp = units.Int(0), units.Int(0)
		return f, warnings
	}
	f.BaseUnit = base
	f.Unit = base

	if r.cosmo.Comoving && (!f.HExp.IsZero() || !f.AExp.IsZero()) {
		f.Comoving = true
		if r.convention == Physical {
			f.Unit = base.Times(r.cosmo.Correction(f.HExp, f.AExp))
		}
	}
	return f, warnings
}

// SnakeCase is the attribute-style name of a raw field.
func SnakeCase(name string) string {
	return strings.ToLower(name)
}
