package observational

import (
	"errors"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-velociraptor/hdf5"
	"github.com/robert-malhotra/go-velociraptor/units"
)

// Attribute and object names of the observational data layout.
const (
	attrCitation   = "citation"
	attrBibcode    = "bibcode"
	attrName       = "name"
	attrComment    = "comment"
	attrMaxReturns = "maximum_number_of_returns"
	attrNumber     = "number_of_datasets"

	attrRedshift      = "redshift"
	attrRedshiftLower = "redshift_lower"
	attrRedshiftUpper = "redshift_upper"
	attrPlotAs        = "plot_as"
	attrComoving      = "comoving"
	attrDescription   = "description"
	attrUnits         = "units"

	groupCosmology = "cosmology"
)

func datasetGroup(i int) string { return fmt.Sprintf("dataset_%d", i) }

// Write stores the container at path, replacing any existing file. Every
// axis unit must be readable back from its symbol; otherwise nothing is
// written.
func (c *Container) Write(path string) (err error) {
	for i, d := range c.datasets {
		for axis, u := range map[string]units.Unit{"x": d.X.Unit(), "y": d.Y.Unit()} {
			if err := checkSymbol(u); err != nil {
				return fmt.Errorf("%s: %w: units of %s: %v", datasetGroup(i), ErrInvalidDataset, axis, err)
			}
		}
	}

	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	root := f.Root()
	attrs := []struct {
		name  string
		value any
	}{
		{attrCitation, c.citation},
		{attrBibcode, c.bibcode},
		{attrName, c.name},
		{attrComment, c.comment},
		{attrNumber, int64(len(c.datasets))},
	}
	if k, ok := c.MaximumNumberOfReturns(); ok {
		attrs = append(attrs, struct {
			name  string
			value any
		}{attrMaxReturns, int64(k)})
	}
	for _, a := range attrs {
		if err := root.SetAttr(a.name, a.value); err != nil {
			return fmt.Errorf("writing %s: %w", a.name, err)
		}
	}

	if err := writeCosmology(root, c.cosmology); err != nil {
		return err
	}
	for i, d := range c.datasets {
		if err := writeDataset(root, datasetGroup(i), d); err != nil {
			return fmt.Errorf("writing %s: %w", datasetGroup(i), err)
		}
	}
	return nil
}

func writeCosmology(root *hdf5.Group, c units.Cosmology) error {
	g, err := root.CreateGroup(groupCosmology)
	if err != nil {
		return err
	}
	values := []struct {
		name  string
		value float64
	}{
		{"H0", c.H0()},
		{"h", c.H},
		{"Omega_m", c.OmegaM},
		{"Omega_b", c.OmegaB},
		{"Omega_Lambda", c.OmegaLambda},
		{"w0", c.W0},
	}
	for _, v := range values {
		if err := g.SetAttr(v.name, v.value); err != nil {
			return err
		}
	}
	return nil
}

func writeDataset(root *hdf5.Group, name string, d Dataset) error {
	g, err := root.CreateGroup(name)
	if err != nil {
		return err
	}

	comoving := int64(0)
	if d.Comoving {
		comoving = 1
	}
	attrs := []struct {
		name  string
		value any
	}{
		{attrRedshift, d.Redshift},
		{attrRedshiftLower, d.RedshiftLower},
		{attrRedshiftUpper, d.RedshiftUpper},
		{attrPlotAs, d.PlotAs.String()},
		{attrComoving, comoving},
		{attrDescription, d.Description},
	}
	for _, a := range attrs {
		if err := g.SetAttr(a.name, a.value); err != nil {
			return err
		}
	}

	if err := writeAxis(g, "x", d.X.Values(), d.X.Unit()); err != nil {
		return err
	}
	if err := writeAxis(g, "y", d.Y.Values(), d.Y.Unit()); err != nil {
		return err
	}
	if err := writeScatter(g, "x_scatter", d.XScatter, d.X.Unit()); err != nil {
		return err
	}
	return writeScatter(g, "y_scatter", d.YScatter, d.Y.Unit())
}

// checkSymbol fails unless u.Symbol parses back to the dimension and scale
// of u.
func checkSymbol(u units.Unit) error {
	back, err := units.Parse(u.Symbol)
	if err != nil {
		return err
	}
	if back.Dim != u.Dim || math.Abs(back.Scale-u.Scale) > 1e-9*math.Abs(u.Scale) {
		return fmt.Errorf("symbol %q reads back as %s with scale %g, not %s with scale %g",
			u.Symbol, back.Dim, back.Scale, u.Dim, u.Scale)
	}
	return nil
}

func writeAxis(g *hdf5.Group, name string, values []float64, u units.Unit, opts ...hdf5.DatasetOption) error {
	opts = append(opts, hdf5.WithAttribute(attrUnits, u.Symbol))
	if _, err := g.CreateDataset(name, values, opts...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// writeScatter stores symmetric scatter as an N vector and asymmetric
// scatter as a 2xN array of lower then upper errors.
func writeScatter(g *hdf5.Group, name string, s *Scatter, u units.Unit) error {
	if s == nil {
		return nil
	}
	if s.IsSymmetric() {
		return writeAxis(g, name, s.Lower, u)
	}
	n := uint64(len(s.Lower))
	values := append(append([]float64(nil), s.Lower...), s.Upper...)
	return writeAxis(g, name, values, u, hdf5.WithShape(2, n))
}

// Load reads a container written by Write.
func Load(path string) (*Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := readContainer(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func readContainer(f *hdf5.File) (*Container, error) {
	root := f.Root()
	n, err := intAttr(root, attrNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	b := NewBuilder()
	for _, s := range []struct {
		name string
		set  func(string) error
	}{
		{attrCitation, b.SetCitation},
		{attrBibcode, b.SetBibcode},
		{attrName, b.SetName},
		{attrComment, b.SetComment},
	} {
		v, err := stringAttr(root, s.name)
		if err != nil {
			return nil, err
		}
		if err := s.set(v); err != nil {
			return nil, err
		}
	}
	if root.HasAttr(attrMaxReturns) {
		k, err := intAttr(root, attrMaxReturns)
		if err != nil {
			return nil, err
		}
		if err := b.SetMaximumNumberOfReturns(int(k)); err != nil {
			return nil, err
		}
	}

	cosmo, err := readCosmology(root)
	if err != nil {
		return nil, err
	}
	if err := b.SetCosmology(cosmo); err != nil {
		return nil, err
	}

	for i := range int(n) {
		g, err := root.OpenGroup(datasetGroup(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		d, err := readDataset(g)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", datasetGroup(i), err)
		}
		if err := b.AddDataset(d); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

func readCosmology(root *hdf5.Group) (units.Cosmology, error) {
	g, err := root.OpenGroup(groupCosmology)
	if errors.Is(err, hdf5.ErrNotFound) {
		return units.Cosmology{}, nil
	}
	if err != nil {
		return units.Cosmology{}, err
	}
	c := units.Cosmology{A: 1}
	for _, v := range []struct {
		name string
		dst  *float64
	}{
		{"h", &c.H},
		{"Omega_m", &c.OmegaM},
		{"Omega_b", &c.OmegaB},
		{"Omega_Lambda", &c.OmegaLambda},
		{"w0", &c.W0},
	} {
		if !g.HasAttr(v.name) {
			continue
		}
		if *v.dst, err = floatAttr(g, v.name); err != nil {
			return units.Cosmology{}, err
		}
	}
	return c, nil
}

func readDataset(g *hdf5.Group) (Dataset, error) {
	var d Dataset
	var err error
	for _, v := range []struct {
		name string
		dst  *float64
	}{
		{attrRedshift, &d.Redshift},
		{attrRedshiftLower, &d.RedshiftLower},
		{attrRedshiftUpper, &d.RedshiftUpper},
	} {
		if *v.dst, err = floatAttr(g, v.name); err != nil {
			return Dataset{}, err
		}
	}

	plotAs, err := stringAttr(g, attrPlotAs)
	if err != nil {
		return Dataset{}, err
	}
	if d.PlotAs, err = ParsePlotAs(plotAs); err != nil {
		return Dataset{}, err
	}
	comoving, err := intAttr(g, attrComoving)
	if err != nil {
		return Dataset{}, err
	}
	d.Comoving = comoving != 0
	if d.Description, err = stringAttr(g, attrDescription); err != nil {
		return Dataset{}, err
	}

	if d.X, err = readAxis(g, "x"); err != nil {
		return Dataset{}, err
	}
	if d.Y, err = readAxis(g, "y"); err != nil {
		return Dataset{}, err
	}
	if d.XScatter, err = readScatter(g, "x_scatter", d.X.Unit()); err != nil {
		return Dataset{}, err
	}
	if d.YScatter, err = readScatter(g, "y_scatter", d.Y.Unit()); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

func readAxis(g *hdf5.Group, name string) (*units.Array, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	values, u, err := readValues(ds)
	if err != nil {
		return nil, err
	}
	return units.NewArray(values, u), nil
}

func readValues(ds *hdf5.Dataset) ([]float64, units.Unit, error) {
	values, err := ds.ReadFloat64()
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("reading %s: %w", ds.Name(), err)
	}
	u := units.One
	if a := ds.Attr(attrUnits); a != nil {
		sym, err := a.ReadScalarString()
		if err != nil {
			return nil, units.Unit{}, fmt.Errorf("units of %s: %w", ds.Name(), err)
		}
		if u, err = units.Parse(sym); err != nil {
			return nil, units.Unit{}, fmt.Errorf("%w: units of %s: %v", ErrInvalidDataset, ds.Name(), err)
		}
	}
	return values, u, nil
}

// readScatter converts stored scatter into the axis unit.
func readScatter(g *hdf5.Group, name string, axis units.Unit) (*Scatter, error) {
	if !g.HasMember(name) {
		return nil, nil
	}
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	values, u, err := readValues(ds)
	if err != nil {
		return nil, err
	}
	if values, err = units.NewArray(values, u).InUnits(axis); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	shape := ds.Shape()
	switch {
	case len(shape) == 1:
		return &Scatter{Lower: values}, nil
	case len(shape) == 2 && shape[0] == 2:
		n := int(shape[1])
		return &Scatter{Lower: values[:n], Upper: values[n:]}, nil
	}
	return nil, fmt.Errorf("%w: %s has shape %v", ErrInvalidDataset, name, shape)
}

func attr(g *hdf5.Group, name string) (*hdf5.Attribute, error) {
	a := g.Attr(name)
	if a == nil {
		return nil, fmt.Errorf("%w: %s has no attribute %q", ErrFormat, g.Path(), name)
	}
	return a, nil
}

func stringAttr(g *hdf5.Group, name string) (string, error) {
	a, err := attr(g, name)
	if err != nil {
		return "", err
	}
	return a.ReadScalarString()
}

func floatAttr(g *hdf5.Group, name string) (float64, error) {
	a, err := attr(g, name)
	if err != nil {
		return 0, err
	}
	return a.ReadScalarFloat64()
}

func intAttr(g *hdf5.Group, name string) (int64, error) {
	a, err := attr(g, name)
	if err != nil {
		return 0, err
	}
	return a.ReadScalarInt64()
}
