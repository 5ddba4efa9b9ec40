// Package massfunction bins catalogue quantities into number densities:
// fixed and adaptive width mass functions with Poisson scatter, binned
// median and mean lines, and box-size corrections read from YAML.
//
// Bins are log-spaced between low and high. Densities divide each count by
// the volume and the linear bin width, so they are per unit volume per unit
// of the binned quantity; WithDexWidths measures widths in dex instead:
//
//	mf, err := massfunction.CreateMassFunction(mstar, units.Quantity{Value: 1e9, Unit: units.Msun},
//		units.Quantity{Value: 1e12, Unit: units.Msun}, boxVolume, 25)
package massfunction

import (
	"fmt"
	"math"
	"sort"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// DefaultMinCount is the minimum occupancy of an adaptive bin.
const DefaultMinCount = 3

// Result is a binned number density. All arrays have one entry per bin
// except Edges, which has one more.
type Result struct {
	Centers *units.Array
	Density *units.Array
	Scatter *units.Array
	Edges   *units.Array
	Counts  []int
	// Widths are in the values' unit, or in dex with WithDexWidths.
	Widths []float64
}

// Len returns the number of bins.
func (r *Result) Len() int { return len(r.Counts) }

// Total returns the number of values that fell into a bin.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

type options struct {
	dex bool
}

// Option configures the binners.
type Option func(*options)

// WithDexWidths divides by the bin width in dex, log10(hi) - log10(lo),
// instead of the linear width. Densities are then per unit volume per dex.
func WithDexWidths() Option {
	return func(o *options) { o.dex = true }
}

// binning is the validated input shared by both binners.
type binning struct {
	values    []float64 // in range, sorted, in the values' unit
	low, high float64
	volume    units.Quantity
	unit      units.Unit
	opts      options
}

func prepare(values *units.Array, low, high, volume units.Quantity, nBins int, opts []Option) (*binning, error) {
	if nBins < 1 {
		return nil, fmt.Errorf("%w: %d bins", ErrMalformedRange, nBins)
	}
	u := values.Unit()
	lo, err := low.In(u)
	if err != nil {
		return nil, fmt.Errorf("low: %w", err)
	}
	hi, err := high.In(u)
	if err != nil {
		return nil, fmt.Errorf("high: %w", err)
	}
	if !(lo > 0) || !(hi > 0) {
		return nil, fmt.Errorf("%w: bounds must be positive, got [%g, %g]", ErrMalformedRange, lo, hi)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: high %g <= low %g", ErrMalformedRange, hi, lo)
	}
	if volume.Unit.Dim != units.Volume {
		return nil, fmt.Errorf("volume in %s: %w", volume.Unit.Symbol, units.ErrIncompatibleUnits)
	}
	if !(volume.Value > 0) {
		return nil, fmt.Errorf("%w: volume %g", ErrMalformedRange, volume.Value)
	}

	b := &binning{low: lo, high: hi, volume: volume, unit: u}
	for _, opt := range opts {
		opt(&b.opts)
	}
	for i := range values.Len() {
		if v := values.At(i); v >= lo && v <= hi {
			b.values = append(b.values, v)
		}
	}
	sort.Float64s(b.values)
	return b, nil
}

func (b *binning) width(lo, hi float64) float64 {
	if b.opts.dex {
		return math.Log10(hi) - math.Log10(lo)
	}
	return hi - lo
}

func (b *binning) densityUnit() units.Unit {
	if b.opts.dex {
		return b.volume.Unit.Inverse()
	}
	return b.volume.Unit.Mul(b.unit).Inverse()
}

// result turns edges, counts and centres into densities.
func (b *binning) result(edges, centers []float64, counts []int) *Result {
	n := len(counts)
	density := make([]float64, n)
	scatter := make([]float64, n)
	widths := make([]float64, n)
	for i, c := range counts {
		widths[i] = b.width(edges[i], edges[i+1])
		norm := b.volume.Value * widths[i]
		density[i] = float64(c) / norm
		scatter[i] = math.Sqrt(float64(c)) / norm
	}
	du := b.densityUnit()
	return &Result{
		Centers: units.NewArray(centers, b.unit),
		Density: units.NewArray(density, du),
		Scatter: units.NewArray(scatter, du),
		Edges:   units.NewArray(edges, b.unit),
		Counts:  counts,
		Widths:  widths,
	}
}

// logEdges returns n+1 log-spaced edges with the end points exact.
func logEdges(lo, hi float64, n int) []float64 {
	edges := make([]float64, n+1)
	llo, lhi := math.Log10(lo), math.Log10(hi)
	for i := range edges {
		edges[i] = math.Pow(10, llo+(lhi-llo)*float64(i)/float64(n))
	}
	edges[0], edges[n] = lo, hi
	return edges
}

// CreateMassFunction histograms values between low and high into nBins
// log-spaced bins. Values outside [low, high] are excluded; a value equal
// to high falls in the last bin. Centres are the geometric means of the
// edges, density is count/(volume*width) and scatter sqrt(count)/(volume*width).
func CreateMassFunction(values *units.Array, low, high, volume units.Quantity, nBins int, opts ...Option) (*Result, error) {
	b, err := prepare(values, low, high, volume, nBins, opts)
	if err != nil {
		return nil, err
	}

	edges := logEdges(b.low, b.high, nBins)
	counts := make([]int, nBins)
	for _, v := range b.values {
		counts[binIndex(edges, v)]++
	}
	centers := make([]float64, nBins)
	for i := range centers {
		centers[i] = math.Sqrt(edges[i] * edges[i+1])
	}
	return b.result(edges, centers, counts), nil
}

// binIndex finds i with edges[i] <= v < edges[i+1], clamping v == high
// into the last bin.
func binIndex(edges []float64, v float64) int {
	i := sort.SearchFloat64s(edges, v)
	if i < len(edges) && edges[i] == v {
		return min(i, len(edges)-2)
	}
	return i - 1
}

// CreateAdaptiveMassFunction sweeps the sorted in-range values from low
// upwards. Each bin targets the fixed width of a baseNBins histogram,
// measured from its own left edge. A bin that reaches its target with at
// least minCount values closes there; otherwise it widens until it holds
// minCount values and closes at the last of them. Values left over at the
// end that cannot fill a bin join the previous one, whose right edge moves
// to high. Centres are the median of each bin's values. minCount <= 0
// means DefaultMinCount.
func CreateAdaptiveMassFunction(values *units.Array, low, high, volume units.Quantity, baseNBins, minCount int, opts ...Option) (*Result, error) {
	b, err := prepare(values, low, high, volume, baseNBins, opts)
	if err != nil {
		return nil, err
	}
	if minCount <= 0 {
		minCount = DefaultMinCount
	}

	s := b.values
	if len(s) < minCount {
		center := math.Sqrt(b.low * b.high)
		if len(s) > 0 {
			center = median(s)
		}
		return b.result([]float64{b.low, b.high}, []float64{center}, []int{len(s)}), nil
	}

	dex := (math.Log10(b.high) - math.Log10(b.low)) / float64(baseNBins)
	edges := []float64{b.low}
	var bins [][]float64
	left := b.low
	i := 0
	for i < len(s) {
		target := math.Pow(10, math.Log10(left)+dex)
		j := i
		if target >= b.high {
			target, j = b.high, len(s)
		} else {
			for j < len(s) && s[j] < target {
				j++
			}
		}

		right := target
		if j-i < minCount {
			if len(s)-i < minCount {
				break
			}
			j = i + minCount
			for j < len(s) && s[j] == s[j-1] {
				j++
			}
			right = s[j-1]
		}
		bins = append(bins, s[i:j])
		edges = append(edges, right)
		left, i = right, j
	}
	if i < len(s) {
		last := len(bins) - 1
		bins[last] = s[i-len(bins[last]):]
		edges[last+1] = b.high
	}

	counts := make([]int, len(bins))
	centers := make([]float64, len(bins))
	for k, bin := range bins {
		counts[k] = len(bin)
		centers[k] = median(bin)
	}
	return b.result(edges, centers, counts), nil
}

// median of sorted values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Label returns the axis label of a mass function of the named quantity
// whose density is in u. A density per volume alone was binned in dex.
func Label(name string, u units.Unit) string {
	if u.Dim == units.Volume.Pow(-1) {
		return fmt.Sprintf("dn/dlog10(%s) [%s]", name, u.Symbol)
	}
	return fmt.Sprintf("dn/d(%s) [%s]", name, u.Symbol)
}
