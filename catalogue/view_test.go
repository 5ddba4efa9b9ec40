package catalogue

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-velociraptor/internal/testutil"
	"github.com/robert-malhotra/go-velociraptor/registry"
	"github.com/robert-malhotra/go-velociraptor/units"
)

func writeHaloCatalogue(t *testing.T, header map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "halo_0036.properties")
	testutil.WriteCatalogue(t, path, testutil.Catalogue{
		Header: header,
		Fields: []testutil.Field{
			{Name: "Num_of_groups", Data: []int64{4}},
			{Name: "ID", Data: []int64{1, 2, 3, 4}},
			{Name: "Mass_200crit", Data: []float64{10, 20, 30, 40}},
			{Name: "R_200crit", Data: []float64{0.1, 0.2, 0.3, 0.4}},
			{Name: "Xcminpot", Data: []float64{1, 2, 3, 4}},
			{Name: "Structuretype", Data: []int32{10, 10, 15, 10}},
			{Name: "Mystery_quantity", Data: []float64{7, 7, 7, 7}},
		},
	})
	return path
}

func TestOpenReadsMetadataOnly(t *testing.T) {
	obs := &BasicObserver{}
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithObserver(obs))
	require.NoError(t, err)
	defer view.Close()

	cosmo := view.Cosmology()
	assert.InDelta(t, 0.7, cosmo.H, 1e-12)
	assert.InDelta(t, 0.5, cosmo.A, 1e-12)
	assert.InDelta(t, 1.0, cosmo.Redshift(), 1e-12)
	assert.True(t, cosmo.Comoving)
	require.NotNil(t, cosmo.BoxSize)
	assert.InDelta(t, 25.0, cosmo.BoxSize.Value, 1e-12)

	assert.Equal(t, 4, view.Len())
	assert.False(t, view.Masked())
	assert.Len(t, view.Fields(), 6, "header datasets are not fields")
	assert.Zero(t, obs.Reads.Load(), "no field should be read on open")
}

func TestBoxSizeFollowsConvention(t *testing.T) {
	path := writeHaloCatalogue(t, testutil.DefaultHeader())

	physical, err := Open(path)
	require.NoError(t, err)
	defer physical.Close()
	side, ok := physical.BoxSize()
	require.True(t, ok)
	mpc, err := side.In(units.Mpc)
	require.NoError(t, err)
	assert.InDelta(t, 25.0/0.7, mpc, 1e-9, "h removed, scale factor not applied")

	masked, err := physical.Mask([]int{0})
	require.NoError(t, err)
	maskedSide, _ := masked.BoxSize()
	assert.Equal(t, side, maskedSide)

	stored, err := Open(path, WithConvention(registry.Stored))
	require.NoError(t, err)
	defer stored.Close()
	side, ok = stored.BoxSize()
	require.True(t, ok)
	assert.InDelta(t, 25.0, side.Value, 1e-12)

	header := testutil.DefaultHeader()
	delete(header, "Period")
	none, err := Open(writeHaloCatalogue(t, header))
	require.NoError(t, err)
	defer none.Close()
	_, ok = none.BoxSize()
	assert.False(t, ok)
}

func TestClassificationAndAccess(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()))
	require.NoError(t, err)
	defer view.Close()

	f, ok := view.FieldByName("Mass_200crit")
	require.True(t, ok)
	assert.Equal(t, registry.Masses, f.Category)
	assert.Equal(t, "masses.mass_200crit", f.Key())

	m200, err := view.Get("masses.mass_200crit")
	require.NoError(t, err)
	assert.Equal(t, 4, m200.Len())
	assert.True(t, m200.Unit().Compatible(units.Msun))

	// Same field through the namespace form.
	again, err := view.Category(registry.Masses).Field("Mass_200crit")
	require.NoError(t, err)
	assert.Same(t, m200, again)

	assert.Contains(t, view.Category(registry.Radii).Names(), "r_200crit")
	assert.Contains(t, view.Categories(), registry.Positions)
}

func TestPhysicalConventionAppliesCorrection(t *testing.T) {
	path := writeHaloCatalogue(t, testutil.DefaultHeader())

	physical, err := Open(path)
	require.NoError(t, err)
	defer physical.Close()
	stored, err := Open(path, WithConvention(registry.Stored))
	require.NoError(t, err)
	defer stored.Close()

	p, err := physical.Get("radii.r_200crit")
	require.NoError(t, err)
	s, err := stored.Get("radii.r_200crit")
	require.NoError(t, err)

	pk, err := p.InUnits(units.Kpc)
	require.NoError(t, err)
	sk, err := s.InUnits(units.Kpc)
	require.NoError(t, err)

	// Radii are comoving with h^-1: physical = stored * a / h.
	f, _ := physical.FieldByName("R_200crit")
	want := physical.Cosmology().Correction(f.HExp, f.AExp)
	for i := range pk {
		assert.InEpsilon(t, sk[i]*want, pk[i], 1e-12)
	}
	assert.InEpsilon(t, 0.1*1000, sk[0], 1e-12)
}

func TestPhysicalCatalogueIsUncorrected(t *testing.T) {
	header := testutil.DefaultHeader()
	header["Comoving_or_Physical"] = int64(0)
	view, err := Open(writeHaloCatalogue(t, header))
	require.NoError(t, err)
	defer view.Close()

	r, err := view.Get("radii.r_200crit")
	require.NoError(t, err)
	kpc, err := r.InUnits(units.Kpc)
	require.NoError(t, err)
	assert.InEpsilon(t, 100.0, kpc[0], 1e-12)

	f, _ := view.FieldByName("R_200crit")
	assert.False(t, f.Comoving)
}

func TestUnitConversionRoundTrip(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()))
	require.NoError(t, err)
	defer view.Close()

	m, err := view.Get("masses.mass_200crit")
	require.NoError(t, err)
	msun, err := m.To(units.Msun)
	require.NoError(t, err)
	back, err := msun.To(m.Unit())
	require.NoError(t, err)
	for i := 0; i < m.Len(); i++ {
		assert.InEpsilon(t, m.At(i), back.At(i), 1e-14)
	}
}

func TestUnitConversionRoundTripPerCategory(t *testing.T) {
	fields := []struct {
		name   string
		target string
	}{
		{"R_200crit", "kpc"},
		{"Mass_200crit", "Msun"},
		{"Vmax", "kpc/Gyr"},
		{"Ekin", "Msun*(km/s)**2"},
		{"Lx", "Msun*kpc*km/s"},
		{"SFR_gas", "kg/s"},
		{"Zmet_star", "dimensionless"},
		{"Tage_star", "Myr"},
		{"T_gas", "K"},
	}
	stored := []float64{1.5, 20, 300, 4e3}
	catalogueFields := []testutil.Field{{Name: "Num_of_groups", Data: []int64{int64(len(stored))}}}
	for _, f := range fields {
		catalogueFields = append(catalogueFields, testutil.Field{Name: f.name, Data: stored})
	}

	for _, cosmo := range []struct{ h, a float64 }{{0.7, 0.5}, {1, 1}, {0.6777, 0.25}} {
		header := testutil.DefaultHeader()
		header["h_val"], header["Time"] = cosmo.h, cosmo.a
		path := filepath.Join(t.TempDir(), "halo.properties")
		testutil.WriteCatalogue(t, path, testutil.Catalogue{Header: header, Fields: catalogueFields})

		view, err := Open(path)
		require.NoError(t, err)
		for _, tc := range fields {
			t.Run(fmt.Sprintf("%s/h=%g,a=%g", tc.name, cosmo.h, cosmo.a), func(t *testing.T) {
				f, ok := view.FieldByName(tc.name)
				require.True(t, ok)
				require.Empty(t, f.Warnings)

				arr, err := view.Get(f.Key())
				require.NoError(t, err)
				target := units.MustParse(tc.target)
				converted, err := arr.To(target)
				require.NoError(t, err)
				back, err := converted.To(arr.Unit())
				require.NoError(t, err)

				correction := view.Cosmology().Correction(f.HExp, f.AExp)
				for i, v := range stored {
					assert.InEpsilon(t, v, back.At(i), 1e-12)
					assert.InEpsilon(t, v*f.BaseUnit.Scale*correction/target.Scale, converted.At(i), 1e-12)
				}
			})
		}
		require.NoError(t, view.Close())
	}
}

func TestCacheHitsAfterFirstAccess(t *testing.T) {
	obs := &BasicObserver{}
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithObserver(obs))
	require.NoError(t, err)
	defer view.Close()

	for range 3 {
		_, err := view.Get("positions.xcminpot")
		require.NoError(t, err)
	}
	stats := obs.Stats()
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 1, stats.Reads)
	assert.Zero(t, stats.ReadErrors)
}

func TestMissingField(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()))
	require.NoError(t, err)
	defer view.Close()

	_, err = view.Get("masses.mass_500crit")
	require.ErrorIs(t, err, ErrFieldNotFound)
	assert.Contains(t, err.Error(), "mass_500crit")

	_, err = view.Get("mass_200crit")
	require.ErrorIs(t, err, ErrBadAccessor)
}

func TestUnregisteredFieldFallsBack(t *testing.T) {
	obs := &BasicObserver{}
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithObserver(obs))
	require.NoError(t, err)
	defer view.Close()

	arr, err := view.Get("unregistered.mystery_quantity")
	require.NoError(t, err)
	assert.True(t, arr.Unit().IsDimensionless())

	warnings := view.Warnings()
	require.NotEmpty(t, warnings)
	var found bool
	for _, w := range warnings {
		if w.Field == "Mystery_quantity" {
			found = true
			assert.Equal(t, registry.ClassificationMiss, w.Kind)
			assert.True(t, errors.Is(w, registry.ErrUnregistered))
		}
	}
	assert.True(t, found)
	assert.EqualValues(t, len(warnings), obs.Warnings.Load())
}

func TestStrictRejectsDegradedFields(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithStrict(true))
	require.NoError(t, err)
	defer view.Close()

	_, err = view.Get("unregistered.mystery_quantity")
	require.ErrorIs(t, err, registry.ErrUnregistered)

	_, err = view.Get("masses.mass_200crit")
	require.NoError(t, err)
}

func TestUnitMissWhenHeaderLacksUnit(t *testing.T) {
	header := testutil.DefaultHeader()
	delete(header, "Mass_unit_to_solarmass")
	view, err := Open(writeHaloCatalogue(t, header))
	require.NoError(t, err)
	defer view.Close()

	m, err := view.Get("masses.mass_200crit")
	require.NoError(t, err)
	assert.True(t, m.Unit().IsDimensionless())

	var kinds []registry.WarningKind
	for _, w := range view.Warnings() {
		if w.Field == "Mass_200crit" {
			kinds = append(kinds, w.Kind)
		}
	}
	assert.Equal(t, []registry.WarningKind{registry.UnitMiss}, kinds)
}

func TestFailAllRuleIsDetected(t *testing.T) {
	reg, err := registry.New(registry.FailAllRule())
	require.NoError(t, err)

	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithRegistry(reg))
	require.NoError(t, err)
	defer view.Close()

	fields := view.Fields()
	for _, f := range fields {
		assert.Equal(t, registry.Unregistered, f.Category, f.Name)
	}
	assert.Len(t, view.Warnings(), len(fields))
}

func TestExponentAttributesOverrideTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "halo.properties")
	testutil.WriteCatalogue(t, path, testutil.Catalogue{
		Header: testutil.DefaultHeader(),
		Fields: []testutil.Field{{
			Name: "R_200crit",
			Data: []float64{1, 2},
			Attrs: map[string]any{
				"h-scale exponent": 0.0,
				"a-scale exponent": 0.0,
				"Units":            "Mpc",
			},
		}},
	})

	view, err := Open(path)
	require.NoError(t, err)
	defer view.Close()

	f, ok := view.FieldByName("R_200crit")
	require.True(t, ok)
	assert.True(t, f.HExp.IsZero())
	assert.True(t, f.AExp.IsZero())
	assert.Equal(t, "Mpc", f.StoredUnits)

	r, err := view.Get("radii.r_200crit")
	require.NoError(t, err)
	kpc, err := r.InUnits(units.Kpc)
	require.NoError(t, err)
	assert.InEpsilon(t, 1000.0, kpc[0], 1e-12)
}

func TestMask(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()))
	require.NoError(t, err)
	defer view.Close()

	masked, err := view.Mask([]int{3, 1})
	require.NoError(t, err)
	assert.True(t, masked.Masked())
	assert.Equal(t, 2, masked.Len())

	m, err := masked.Get("masses.mass_200crit")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 20}, m.Values())

	// A mask of a mask selects rows of the masked view.
	inner, err := masked.Mask([]int{1})
	require.NoError(t, err)
	m, err = inner.Get("masses.mass_200crit")
	require.NoError(t, err)
	assert.Equal(t, []float64{20}, m.Values())

	// Contiguous masks take the range-read path.
	middle, err := view.Mask([]int{1, 2})
	require.NoError(t, err)
	x, err := middle.Get("positions.xcminpot")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, x.Values())

	_, err = view.Mask([]int{4})
	require.ErrorIs(t, err, ErrMaskRange)

	// The parent cache is untouched by masked reads.
	full, err := view.Get("masses.mass_200crit")
	require.NoError(t, err)
	assert.Equal(t, 4, full.Len())
	require.NoError(t, masked.Close())
}

func TestValueReadsSingleRow(t *testing.T) {
	obs := &BasicObserver{}
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()), WithObserver(obs))
	require.NoError(t, err)
	defer view.Close()

	q, err := view.Value("positions.xcminpot", 2)
	require.NoError(t, err)
	kpc, err := q.In(units.Kpc)
	require.NoError(t, err)
	f, _ := view.FieldByName("Xcminpot")
	assert.InEpsilon(t, 3*1000*view.Cosmology().Correction(f.HExp, f.AExp), kpc, 1e-12)
	assert.Zero(t, obs.Misses.Load(), "single-row reads bypass the cache")

	_, err = view.Value("positions.xcminpot", 9)
	require.ErrorIs(t, err, ErrMaskRange)
}

func TestNonCosmologicalRunUsesUnitScaleFactor(t *testing.T) {
	header := testutil.DefaultHeader()
	header["Cosmological_Sim"] = int64(0)
	header["Time"] = 3.2
	view, err := Open(writeHaloCatalogue(t, header))
	require.NoError(t, err)
	defer view.Close()
	assert.Equal(t, 1.0, view.Cosmology().A)
}

func TestInvalidCosmologyRejected(t *testing.T) {
	header := testutil.DefaultHeader()
	header["h_val"] = -1.0
	_, err := Open(writeHaloCatalogue(t, header))
	require.ErrorIs(t, err, units.ErrInvalidCosmology)
}

func TestFieldsDoNotCarryNaN(t *testing.T) {
	view, err := Open(writeHaloCatalogue(t, testutil.DefaultHeader()))
	require.NoError(t, err)
	defer view.Close()

	s, err := view.Get("structure_type.structuretype")
	require.NoError(t, err)
	for _, v := range s.Values() {
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, []float64{10, 10, 15, 10}, s.Values())
}

func TestInt64sKeepsLargeIDsExact(t *testing.T) {
	big := int64(1<<53 + 1)
	path := filepath.Join(t.TempDir(), "halo_0036.properties")
	testutil.WriteCatalogue(t, path, testutil.Catalogue{
		Header: testutil.DefaultHeader(),
		Fields: []testutil.Field{
			{Name: "Num_of_groups", Data: []int64{3}},
			{Name: "ID", Data: []int64{big, big + 2, 7}},
			{Name: "Mass_200crit", Data: []float64{1, 2, 3}},
		},
	})
	obs := &BasicObserver{}
	view, err := Open(path, WithObserver(obs))
	require.NoError(t, err)
	defer view.Close()

	ids, err := view.Int64s("ids.ID")
	require.NoError(t, err)
	assert.Equal(t, []int64{big, big + 2, 7}, ids)
	assert.EqualValues(t, 1, obs.Reads.Load())

	rounded, err := view.Get("ids.ID")
	require.NoError(t, err)
	assert.NotEqual(t, big, int64(rounded.Values()[0]), "float64 path cannot hold 2^53+1")

	masked, err := view.Mask([]int{2, 0})
	require.NoError(t, err)
	ids, err = masked.Int64s("ids.ID")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, big}, ids)

	_, err = view.Int64s("masses.Mass_200crit")
	assert.ErrorIs(t, err, ErrNotInteger)
	_, err = view.Int64s("ids.missing")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}
