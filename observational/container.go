// Package observational holds observational comparison data: containers
// of datasets at several redshifts, their on-disk HDF5 layout, and the
// selection of the datasets that match a redshift range.
//
// Containers are assembled with a Builder and are immutable once
// finalized:
//
//	b := observational.NewBuilder()
//	b.SetCitation("Baldry et al. (2012)")
//	b.SetMaximumNumberOfReturns(1)
//	b.AddDataset(observational.Dataset{X: mass, Y: phi, Redshift: 0.05, RedshiftUpper: 0.1})
//	c, err := b.Finalize()
package observational

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// Container is a finalized set of datasets sharing citation and
// cosmology metadata.
type Container struct {
	citation string
	bibcode  string
	name     string
	comment  string

	cosmology units.Cosmology
	maxReturn int
	datasets  []Dataset
}

func (c *Container) Citation() string { return c.citation }
func (c *Container) Bibcode() string  { return c.bibcode }
func (c *Container) Name() string     { return c.name }
func (c *Container) Comment() string  { return c.comment }

// Cosmology returns the cosmology the data were reduced with. Only H and
// the density parameters are meaningful.
func (c *Container) Cosmology() units.Cosmology { return c.cosmology }

// MaximumNumberOfReturns returns k, and false when no limit is set.
func (c *Container) MaximumNumberOfReturns() (int, bool) {
	return c.maxReturn, c.maxReturn > 0
}

// Len returns the number of datasets.
func (c *Container) Len() int { return len(c.datasets) }

// Datasets returns the datasets in insertion order.
func (c *Container) Datasets() []Dataset {
	out := make([]Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// Builder accumulates a container. It rejects every call once Finalize
// has succeeded.
type Builder struct {
	c         *Container
	finalized bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{c: &Container{}}
}

func (b *Builder) check() error {
	if b.finalized {
		return ErrFinalized
	}
	return nil
}

func (b *Builder) SetCitation(s string) error { return b.set(&b.c.citation, s) }
func (b *Builder) SetBibcode(s string) error  { return b.set(&b.c.bibcode, s) }
func (b *Builder) SetName(s string) error     { return b.set(&b.c.name, s) }
func (b *Builder) SetComment(s string) error  { return b.set(&b.c.comment, s) }

func (b *Builder) set(field *string, s string) error {
	if err := b.check(); err != nil {
		return err
	}
	*field = s
	return nil
}

// SetCosmology records the cosmology of the data.
func (b *Builder) SetCosmology(c units.Cosmology) error {
	if err := b.check(); err != nil {
		return err
	}
	b.c.cosmology = c
	return nil
}

// SetMaximumNumberOfReturns limits selections to the k datasets closest
// to the query redshift. k must be at least 1.
func (b *Builder) SetMaximumNumberOfReturns(k int) error {
	if err := b.check(); err != nil {
		return err
	}
	if k < 1 {
		return fmt.Errorf("%w: maximum_number_of_returns must be >= 1, got %d", ErrInvalidDataset, k)
	}
	b.c.maxReturn = k
	return nil
}

// AddDataset validates d and appends it. Scatter slices are copied.
func (b *Builder) AddDataset(d Dataset) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := d.validate(); err != nil {
		return fmt.Errorf("dataset %d: %w", len(b.c.datasets), err)
	}
	d.XScatter = d.XScatter.clone()
	d.YScatter = d.YScatter.clone()
	b.c.datasets = append(b.c.datasets, d)
	return nil
}

// Finalize freezes the container. Datasets inherit the container's name,
// comment, citation and bibcode.
func (b *Builder) Finalize() (*Container, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	b.finalized = true
	c := b.c
	for i := range c.datasets {
		d := &c.datasets[i]
		d.Name, d.Comment, d.Citation, d.Bibcode = c.name, c.comment, c.citation, c.bibcode
	}
	return c, nil
}
