package massfunction

import (
	"fmt"
	"math"
	"sort"

	"github.com/robert-malhotra/go-velociraptor/units"
)

// DefaultLineBins is the number of edges a LineSpec generates when none is
// given.
const DefaultLineBins = 25

// LineSpec describes the x bins of a binned line.
type LineSpec struct {
	Start, End units.Quantity
	// NumberOfBins is the number of edges generated; zero means
	// DefaultLineBins.
	NumberOfBins int
	// Linear spaces the edges linearly instead of logarithmically.
	Linear bool
}

// Edges returns the bin edges in the unit of End.
func (s LineSpec) Edges() (*units.Array, error) {
	n := s.NumberOfBins
	if n == 0 {
		n = DefaultLineBins
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: %d edges", ErrMalformedRange, n)
	}
	start, err := s.Start.In(s.End.Unit)
	if err != nil {
		return nil, err
	}
	end := s.End.Value
	if !(end > start) {
		return nil, fmt.Errorf("%w: end %g <= start %g", ErrMalformedRange, end, start)
	}

	edges := make([]float64, n)
	if s.Linear {
		for i := range edges {
			edges[i] = start + (end-start)*float64(i)/float64(n-1)
		}
	} else {
		if !(start > 0) {
			return nil, fmt.Errorf("%w: log bins need a positive start, got %g", ErrMalformedRange, start)
		}
		copy(edges, logEdges(start, end, n-1))
	}
	return units.NewArray(edges, s.End.Unit), nil
}

// Line is a binned statistic of y against x. Lower and Upper are the
// distances below and above Values of the spread in each bin.
type Line struct {
	Centers *units.Array
	Values  *units.Array
	Lower   *units.Array
	Upper   *units.Array
	Counts  []int
}

// Len returns the number of kept bins.
func (l *Line) Len() int { return len(l.Counts) }

// BinnedMedianLine returns, for every bin of x holding at least minimum
// points, the median of y and the distances to its 16th and 84th
// percentiles. minimum <= 0 means DefaultMinCount.
func BinnedMedianLine(x, y, edges *units.Array, minimum int) (*Line, error) {
	return binnedLine(x, y, edges, minimum, func(v []float64) (float64, float64, float64) {
		sort.Float64s(v)
		m := percentile(v, 50)
		return m, m - percentile(v, 16), percentile(v, 84) - m
	})
}

// BinnedMeanLine returns, for every bin of x holding at least minimum
// points, the mean of y with its standard deviation as both spreads.
func BinnedMeanLine(x, y, edges *units.Array, minimum int) (*Line, error) {
	return binnedLine(x, y, edges, minimum, func(v []float64) (float64, float64, float64) {
		var sum float64
		for _, f := range v {
			sum += f
		}
		mean := sum / float64(len(v))
		var sq float64
		for _, f := range v {
			sq += (f - mean) * (f - mean)
		}
		std := math.Sqrt(sq / float64(len(v)))
		return mean, std, std
	})
}

func binnedLine(x, y, edges *units.Array, minimum int, stat func([]float64) (float64, float64, float64)) (*Line, error) {
	if x.Len() != y.Len() {
		return nil, fmt.Errorf("%w: x has %d values and y has %d", units.ErrLengthMismatch, x.Len(), y.Len())
	}
	if minimum <= 0 {
		minimum = DefaultMinCount
	}
	e, err := edges.InUnits(x.Unit())
	if err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}
	if len(e) < 2 {
		return nil, fmt.Errorf("%w: %d edges", ErrMalformedRange, len(e))
	}
	for i := 1; i < len(e); i++ {
		if !(e[i] > e[i-1]) {
			return nil, fmt.Errorf("%w: edges not increasing at %d", ErrMalformedRange, i)
		}
	}

	groups := make([][]float64, len(e)-1)
	for i := range x.Len() {
		xv, yv := x.At(i), y.At(i)
		if math.IsNaN(xv) || math.IsNaN(yv) || xv < e[0] || xv >= e[len(e)-1] {
			continue
		}
		k := sort.SearchFloat64s(e, xv)
		if k == len(e) || e[k] != xv {
			k--
		}
		groups[k] = append(groups[k], yv)
	}

	var centers, values, lower, upper []float64
	var counts []int
	for k, g := range groups {
		if len(g) < minimum {
			continue
		}
		v, lo, hi := stat(g)
		centers = append(centers, (e[k]+e[k+1])/2)
		values = append(values, v)
		lower = append(lower, lo)
		upper = append(upper, hi)
		counts = append(counts, len(g))
	}
	return &Line{
		Centers: units.NewArray(centers, x.Unit()),
		Values:  units.NewArray(values, y.Unit()),
		Lower:   units.NewArray(lower, y.Unit()),
		Upper:   units.NewArray(upper, y.Unit()),
		Counts:  counts,
	}, nil
}

// percentile interpolates linearly between the closest ranks of sorted
// values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
