package observational

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-velociraptor/units"
)

func points(n int, u units.Unit) *units.Array {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i + 1)
	}
	return units.NewArray(v, u)
}

func bracket(lo, z, hi float64) Dataset {
	return Dataset{
		X:             points(3, units.Msun),
		Y:             points(3, units.Mpc.Pow(-3)),
		Redshift:      z,
		RedshiftLower: lo,
		RedshiftUpper: hi,
	}
}

// threeBrackets covers [0, 0.2], [0.2, 0.6] and [0.6, 1.0].
func threeBrackets(t *testing.T, k int) *Container {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.SetName("Stellar mass function"))
	require.NoError(t, b.SetCitation("Test et al. (2024)"))
	if k > 0 {
		require.NoError(t, b.SetMaximumNumberOfReturns(k))
	}
	require.NoError(t, b.AddDataset(bracket(0, 0.1, 0.2)))
	require.NoError(t, b.AddDataset(bracket(0.2, 0.4, 0.6)))
	require.NoError(t, b.AddDataset(bracket(0.6, 0.8, 1.0)))
	c, err := b.Finalize()
	require.NoError(t, err)
	return c
}

func TestBuilderRejectsCallsAfterFinalize(t *testing.T) {
	b := NewBuilder()
	_, err := b.Finalize()
	require.NoError(t, err)

	assert.ErrorIs(t, b.SetName("x"), ErrFinalized)
	assert.ErrorIs(t, b.SetComment("x"), ErrFinalized)
	assert.ErrorIs(t, b.SetMaximumNumberOfReturns(2), ErrFinalized)
	assert.ErrorIs(t, b.SetCosmology(units.Cosmology{H: 0.7, A: 1}), ErrFinalized)
	assert.ErrorIs(t, b.AddDataset(bracket(0, 0.1, 0.2)), ErrFinalized)
	_, err = b.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestBuilderValidatesDatasets(t *testing.T) {
	tests := map[string]Dataset{
		"missing y": {X: points(2, units.One), RedshiftUpper: 1},
		"length mismatch": {
			X: points(2, units.One), Y: points(3, units.One), RedshiftUpper: 1,
		},
		"redshift outside bracket": bracket(0.2, 0.1, 0.6),
		"nan redshift":             bracket(0, math.NaN(), 1),
		"short scatter": func() Dataset {
			d := bracket(0, 0.1, 0.2)
			d.YScatter = Symmetric([]float64{1, 1})
			return d
		}(),
		"uneven asymmetric scatter": func() Dataset {
			d := bracket(0, 0.1, 0.2)
			d.XScatter = Asymmetric([]float64{1, 1, 1}, []float64{1})
			return d
		}(),
	}
	for name, d := range tests {
		t.Run(name, func(t *testing.T) {
			err := NewBuilder().AddDataset(d)
			assert.ErrorIs(t, err, ErrInvalidDataset)
		})
	}

	assert.ErrorIs(t, NewBuilder().SetMaximumNumberOfReturns(0), ErrInvalidDataset)
}

func TestFinalizeCopiesMetadataIntoDatasets(t *testing.T) {
	c := threeBrackets(t, 0)
	require.Equal(t, 3, c.Len())
	for _, d := range c.Datasets() {
		assert.Equal(t, "Stellar mass function", d.Name)
		assert.Equal(t, "Test et al. (2024)", d.Citation)
	}
	_, limited := c.MaximumNumberOfReturns()
	assert.False(t, limited)
}

func TestAddDatasetCopiesScatter(t *testing.T) {
	errs := []float64{0.1, 0.2, 0.3}
	d := bracket(0, 0.1, 0.2)
	d.YScatter = &Scatter{Lower: errs}

	b := NewBuilder()
	require.NoError(t, b.AddDataset(d))
	errs[0] = 99
	c, err := b.Finalize()
	require.NoError(t, err)

	lo, hi := c.Datasets()[0].YScatter.At(0)
	assert.Equal(t, 0.1, lo)
	assert.Equal(t, 0.1, hi)
}

func TestSelectOverlap(t *testing.T) {
	c := threeBrackets(t, 0)

	got, err := c.Select(Range{Lo: 0.3, Hi: 0.7})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.4, got[0].Redshift)
	assert.Equal(t, 0.8, got[1].Redshift)

	got, err = c.Select(Range{Lo: 0.6, Hi: 0.6})
	require.NoError(t, err)
	assert.Len(t, got, 2, "boundaries are inclusive")

	got, err = c.Select(Range{Lo: 2, Hi: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectMaximumNumberOfReturns(t *testing.T) {
	c := threeBrackets(t, 1)

	got, err := c.Select(Range{Lo: 0.3, Hi: 0.7})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.4, got[0].Redshift)

	c = threeBrackets(t, 2)
	got, err = c.Select(Range{Lo: 0, Hi: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.4, got[0].Redshift, "result stays in insertion order")
	assert.Equal(t, 0.8, got[1].Redshift)
}

func TestSelectTiesKeepEarlierDataset(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetMaximumNumberOfReturns(1))
	require.NoError(t, b.AddDataset(bracket(0, 0.4, 1)))
	require.NoError(t, b.AddDataset(bracket(0, 0.6, 1)))
	c, err := b.Finalize()
	require.NoError(t, err)

	got, err := c.Select(Range{Lo: 0.4, Hi: 0.6})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.4, got[0].Redshift)
}

func TestSelectRejectsBadRange(t *testing.T) {
	c := threeBrackets(t, 0)
	_, err := c.Select(Range{Lo: 1, Hi: 0})
	assert.True(t, errors.Is(err, ErrInvalidRange))
	_, err = Select([]*Container{c}, Range{Lo: math.NaN(), Hi: 1})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSelectAcrossContainers(t *testing.T) {
	a := threeBrackets(t, 0)
	b := threeBrackets(t, 1)

	got, err := Select([]*Container{a, b}, Range{Lo: 0.3, Hi: 0.7})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, a, got[0].Container)
	assert.Len(t, got[0].Datasets, 2)
	assert.Len(t, got[1].Datasets, 1)
}

func TestPlotAs(t *testing.T) {
	for _, p := range []PlotAs{Points, Line} {
		back, err := ParsePlotAs(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}
	_, err := ParsePlotAs("histogram")
	assert.ErrorIs(t, err, ErrInvalidDataset)
}
