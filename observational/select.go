package observational

import (
	"fmt"
	"math"
	"sort"
)

// Range is an inclusive redshift interval.
type Range struct {
	Lo, Hi float64
}

// Mid returns the centre of the range.
func (r Range) Mid() float64 { return (r.Lo + r.Hi) / 2 }

func (r Range) validate() error {
	if math.IsNaN(r.Lo) || math.IsNaN(r.Hi) || r.Lo > r.Hi {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, r.Lo, r.Hi)
	}
	return nil
}

// Selection is the result of Select for one container.
type Selection struct {
	Container *Container
	Datasets  []Dataset
}

// Select returns the datasets whose redshift bracket overlaps r. When the
// container limits its returns to k, only the k datasets with redshift
// closest to the middle of r are kept; ties go to the earlier dataset.
// The result keeps insertion order and is empty, not an error, when
// nothing overlaps.
func (c *Container) Select(r Range) ([]Dataset, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	var idx []int
	for i, d := range c.datasets {
		if d.Overlaps(r.Lo, r.Hi) {
			idx = append(idx, i)
		}
	}

	if k, ok := c.MaximumNumberOfReturns(); ok && len(idx) > k {
		mid := r.Mid()
		sort.SliceStable(idx, func(a, b int) bool {
			return math.Abs(c.datasets[idx[a]].Redshift-mid) < math.Abs(c.datasets[idx[b]].Redshift-mid)
		})
		idx = idx[:k]
		sort.Ints(idx)
	}

	out := make([]Dataset, len(idx))
	for i, j := range idx {
		out[i] = c.datasets[j]
	}
	return out, nil
}

// Select applies Container.Select to each container, keeping their
// order. Containers with no overlap contribute an empty selection.
func Select(containers []*Container, r Range) ([]Selection, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	out := make([]Selection, len(containers))
	for i, c := range containers {
		ds, err := c.Select(r)
		if err != nil {
			return nil, err
		}
		out[i] = Selection{Container: c, Datasets: ds}
	}
	return out, nil
}
