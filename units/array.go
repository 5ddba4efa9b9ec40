package units

import (
	"fmt"
	"math"
)

// Array is an immutable sequence of values tagged with a unit and, for
// catalogue fields, a human-readable name used in labels.
type Array struct {
	values []float64
	unit   Unit
	name   string
}

// NewArray wraps values in the given unit. The slice is copied.
func NewArray(values []float64, u Unit) *Array {
	v := make([]float64, len(values))
	copy(v, values)
	return &Array{values: v, unit: u}
}

// wrap takes ownership of values without copying.
func wrap(values []float64, u Unit, name string) *Array {
	return &Array{values: values, unit: u, name: name}
}

// Named returns a copy of a carrying the given display name.
func (a *Array) Named(name string) *Array {
	return wrap(a.values, a.unit, name)
}

// Name returns the display name, or "" if none was set.
func (a *Array) Name() string { return a.name }

// Unit returns the array's unit.
func (a *Array) Unit() Unit { return a.unit }

// Len returns the number of values.
func (a *Array) Len() int { return len(a.values) }

// At returns the i-th value in the array's own unit.
func (a *Array) At(i int) float64 { return a.values[i] }

// Quantity returns the i-th value as a Quantity.
func (a *Array) Quantity(i int) Quantity {
	return Quantity{Value: a.values[i], Unit: a.unit}
}

// Values returns a copy of the values.
func (a *Array) Values() []float64 {
	v := make([]float64, len(a.values))
	copy(v, a.values)
	return v
}

// To converts the array into another unit of the same dimension.
func (a *Array) To(u Unit) (*Array, error) {
	f, err := a.unit.ConversionFactor(u)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a.values))
	for i, v := range a.values {
		out[i] = v * f
	}
	return wrap(out, u, a.name), nil
}

// ToSymbol parses expr and converts into it.
func (a *Array) ToSymbol(expr string) (*Array, error) {
	u, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return a.To(u)
}

// InUnits returns the values expressed in u without allocating an Array.
func (a *Array) InUnits(u Unit) ([]float64, error) {
	c, err := a.To(u)
	if err != nil {
		return nil, err
	}
	return c.values, nil
}

// Add returns a+b in a's unit. b is converted first.
func (a *Array) Add(b *Array) (*Array, error) {
	return a.combine(b, func(x, y float64) float64 { return x + y })
}

// Sub returns a-b in a's unit. b is converted first.
func (a *Array) Sub(b *Array) (*Array, error) {
	return a.combine(b, func(x, y float64) float64 { return x - y })
}

// Less reports element-wise a < b after converting b into a's unit.
func (a *Array) Less(b *Array) ([]bool, error) {
	bv, err := a.aligned(b)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(a.values))
	for i, v := range a.values {
		out[i] = v < bv[i]
	}
	return out, nil
}

func (a *Array) combine(b *Array, op func(x, y float64) float64) (*Array, error) {
	bv, err := a.aligned(b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a.values))
	for i, v := range a.values {
		out[i] = op(v, bv[i])
	}
	return wrap(out, a.unit, a.name), nil
}

func (a *Array) aligned(b *Array) ([]float64, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("%w: %d and %d", ErrLengthMismatch, a.Len(), b.Len())
	}
	return b.InUnits(a.unit)
}

// Scale multiplies every value by a pure number.
func (a *Array) Scale(f float64) *Array {
	out := make([]float64, len(a.values))
	for i, v := range a.values {
		out[i] = v * f
	}
	return wrap(out, a.unit, a.name)
}

// Take returns the values at the given indices, in order.
func (a *Array) Take(indices []int) (*Array, error) {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(a.values) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(a.values))
		}
		out[i] = a.values[idx]
	}
	return wrap(out, a.unit, a.name), nil
}

// Slice returns values [lo, hi).
func (a *Array) Slice(lo, hi int) *Array {
	out := make([]float64, hi-lo)
	copy(out, a.values[lo:hi])
	return wrap(out, a.unit, a.name)
}

// Summary holds basic statistics over finite values.
type Summary struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

// Summarize computes min, max and mean over the finite values.
func (a *Array) Summarize() Summary {
	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range a.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.Count++
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Count > 0 {
		s.Mean = sum / float64(s.Count)
	}
	return s
}

// Quantity is a single unit-tagged value.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q builds a quantity from a value and a unit expression. It panics if the
// expression does not parse; use Parse for untrusted input.
func Q(v float64, expr string) Quantity {
	return Quantity{Value: v, Unit: MustParse(expr)}
}

// To converts the quantity into u.
func (q Quantity) To(u Unit) (Quantity, error) {
	f, err := q.Unit.ConversionFactor(u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value * f, Unit: u}, nil
}

// In returns the numeric value expressed in u.
func (q Quantity) In(u Unit) (float64, error) {
	c, err := q.To(u)
	return c.Value, err
}

func (q Quantity) String() string {
	return fmt.Sprintf("%g %s", q.Value, q.Unit.Symbol)
}
