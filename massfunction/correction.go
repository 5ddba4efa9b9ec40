package massfunction

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// correctionFile is the YAML layout of a box-size correction.
type correctionFile struct {
	IsLogX bool      `yaml:"is_log_x"`
	X      []float64 `yaml:"x"`
	Y      []float64 `yaml:"y"`
}

// Correction rescales a mass function by a mass-dependent factor, used to
// correct small simulation volumes towards a larger reference box.
type Correction struct {
	logX   bool
	spline *Spline
}

// NewCorrection builds a correction through the points (x, y). With logX
// the spline is evaluated at log10 of the bin centres.
func NewCorrection(x, y []float64, logX bool) (*Correction, error) {
	s, err := NewSpline(x, y)
	if err != nil {
		return nil, err
	}
	return &Correction{logX: logX, spline: s}, nil
}

// LoadCorrection reads a correction from a YAML file with keys is_log_x, x
// and y.
func LoadCorrection(path string) (*Correction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read box-size correction: %w", err)
	}
	var f correctionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadCorrection, path, err)
	}
	c, err := NewCorrection(f.X, f.Y, f.IsLogX)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Factor returns the correction at a bin centre.
func (c *Correction) Factor(center float64) float64 {
	if c.logX {
		return c.spline.At(math.Log10(center))
	}
	return c.spline.At(center)
}

// Apply returns a copy of r whose density is multiplied by the correction
// at each bin centre. Scatter is left untouched.
func (c *Correction) Apply(r *Result) *Result {
	density := make([]float64, r.Len())
	for i := range density {
		density[i] = r.Density.At(i) * c.Factor(r.Centers.At(i))
	}
	out := *r
	out.Density = units.NewArray(density, r.Density.Unit()).Named(r.Density.Name())
	return &out
}
