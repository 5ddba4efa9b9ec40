package observational

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// PlotAs says how a dataset is meant to be drawn.
type PlotAs int

const (
	Points PlotAs = iota
	Line
)

func (p PlotAs) String() string {
	if p == Line {
		return "line"
	}
	return "points"
}

// ParsePlotAs accepts "line" or "points".
func ParsePlotAs(s string) (PlotAs, error) {
	switch s {
	case "line":
		return Line, nil
	case "points":
		return Points, nil
	}
	return Points, fmt.Errorf("%w: plot_as %q", ErrInvalidDataset, s)
}

// Scatter is the per-point uncertainty of one axis, in the axis unit.
// Upper is nil for symmetric scatter.
type Scatter struct {
	Lower []float64
	Upper []float64
}

// Symmetric returns a scatter with equal lower and upper errors.
func Symmetric(v []float64) *Scatter {
	return &Scatter{Lower: append([]float64(nil), v...)}
}

// Asymmetric returns a scatter with separate lower and upper errors.
func Asymmetric(lower, upper []float64) *Scatter {
	return &Scatter{
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
	}
}

// IsSymmetric reports whether the lower and upper errors are the same.
func (s *Scatter) IsSymmetric() bool { return s.Upper == nil }

// At returns the lower and upper error of point i.
func (s *Scatter) At(i int) (lower, upper float64) {
	if s.Upper == nil {
		return s.Lower[i], s.Lower[i]
	}
	return s.Lower[i], s.Upper[i]
}

func (s *Scatter) check(axis string, n int) error {
	if len(s.Lower) != n || (s.Upper != nil && len(s.Upper) != n) {
		return fmt.Errorf("%w: %s scatter has %d/%d values for %d points",
			ErrInvalidDataset, axis, len(s.Lower), len(s.Upper), n)
	}
	return nil
}

func (s *Scatter) clone() *Scatter {
	if s == nil {
		return nil
	}
	if s.Upper == nil {
		return Symmetric(s.Lower)
	}
	return Asymmetric(s.Lower, s.Upper)
}

// Dataset is one redshift slice of an observational data file.
type Dataset struct {
	X, Y     *units.Array
	XScatter *Scatter
	YScatter *Scatter

	Redshift      float64
	RedshiftLower float64
	RedshiftUpper float64

	PlotAs      PlotAs
	Comoving    bool
	Description string

	// Set from the container when it is finalized.
	Name     string
	Comment  string
	Citation string
	Bibcode  string
}

// Len returns the number of points.
func (d Dataset) Len() int { return d.X.Len() }

// Overlaps reports whether the redshift bracket intersects [lo, hi],
// boundaries included.
func (d Dataset) Overlaps(lo, hi float64) bool {
	return d.RedshiftLower <= hi && d.RedshiftUpper >= lo
}

func (d Dataset) validate() error {
	if d.X == nil || d.Y == nil {
		return fmt.Errorf("%w: x and y are required", ErrInvalidDataset)
	}
	if d.X.Len() != d.Y.Len() {
		return fmt.Errorf("%w: x has %d points and y has %d", ErrInvalidDataset, d.X.Len(), d.Y.Len())
	}
	for _, z := range []float64{d.Redshift, d.RedshiftLower, d.RedshiftUpper} {
		if math.IsNaN(z) {
			return fmt.Errorf("%w: NaN redshift", ErrInvalidDataset)
		}
	}
	if !(d.RedshiftLower <= d.Redshift && d.Redshift <= d.RedshiftUpper) {
		return fmt.Errorf("%w: redshift %g outside [%g, %g]",
			ErrInvalidDataset, d.Redshift, d.RedshiftLower, d.RedshiftUpper)
	}
	if d.PlotAs != Points && d.PlotAs != Line {
		return fmt.Errorf("%w: plot_as %d", ErrInvalidDataset, d.PlotAs)
	}
	if d.XScatter != nil {
		if err := d.XScatter.check("x", d.X.Len()); err != nil {
			return err
		}
	}
	if d.YScatter != nil {
		if err := d.YScatter.check("y", d.Y.Len()); err != nil {
			return err
		}
	}
	return nil
}
