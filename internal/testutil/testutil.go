package testutil

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-velociraptor/hdf5"
)

// Field is one dataset of a fixture file.
type Field struct {
	Name  string
	Data  any
	Attrs map[string]any
}

// Catalogue is the content of a properties file.
type Catalogue struct {
	// Header holds root attributes.
	Header map[string]any
	Fields []Field
}

// DefaultHeader returns the header of a comoving cosmological run with
// lengths in Mpc and masses in 1e10 Msun, at a = 0.5 and h = 0.7.
func DefaultHeader() map[string]any {
	return map[string]any{
		"Length_unit_to_kpc":           1000.0,
		"Mass_unit_to_solarmass":       1e10,
		"Velocity_to_kms":              1.0,
		"Metallicity_unit_to_solar":    1.0,
		"Stellar_age_unit_to_yr":       1e9,
		"SFR_unit_to_solarmassperyear": 1.0,
		"Time":                         0.5,
		"h_val":                        0.7,
		"Omega_m":                      0.3,
		"Omega_b":                      0.048,
		"Omega_Lambda":                 0.7,
		"Period":                       25.0,
		"Cosmological_Sim":             int64(1),
		"Comoving_or_Physical":         int64(1),
	}
}

// WriteCatalogue writes c to path. Header attributes are written in
// sorted order and fields in the given order.
func WriteCatalogue(t testing.TB, path string, c Catalogue) {
	t.Helper()
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	root := f.Root()

	for _, name := range sortedKeys(c.Header) {
		require.NoError(t, root.SetAttr(name, c.Header[name]), "header attribute %s", name)
	}
	for _, field := range c.Fields {
		var opts []hdf5.DatasetOption
		for _, name := range sortedKeys(field.Attrs) {
			opts = append(opts, hdf5.WithAttribute(name, field.Attrs[name]))
		}
		_, err := root.CreateDataset(field.Name, field.Data, opts...)
		require.NoError(t, err, "field %s", field.Name)
	}
	require.NoError(t, f.Close())
}

// WriteMultiFile writes len(parts) sibling files <stem>.0 .. <stem>.N-1,
// each carrying Num_of_files and File_id datasets. It returns the paths.
func WriteMultiFile(t testing.TB, stem string, header map[string]any, parts [][]Field) []string {
	t.Helper()
	paths := make([]string, len(parts))
	for i, fields := range parts {
		paths[i] = fmt.Sprintf("%s.%d", stem, i)
		all := append([]Field{
			{Name: "Num_of_files", Data: []int32{int32(len(parts))}},
			{Name: "File_id", Data: []int32{int32(i)}},
		}, fields...)
		WriteCatalogue(t, paths[i], Catalogue{Header: header, Fields: all})
	}
	return paths
}

// Groups is the content of a halo's group and particle files.
type Groups struct {
	// Bound and Unbound hold the particle ids of each halo.
	Bound   [][]int64
	Unbound [][]int64
	// BoundTypes and UnboundTypes are parallel to Bound and Unbound.
	// When nil, no parttypes files are written.
	BoundTypes   [][]int32
	UnboundTypes [][]int32
}

// GroupPaths names the files written by WriteGroups.
type GroupPaths struct {
	Groups, Particles, ParticlesUnbound, ParticleTypes, ParticleTypesUnbound string
}

// WriteGroups writes the catalog_groups, catalog_particles and optional
// catalog_parttypes files for base, e.g. base "out/halo_0036" produces
// "out/halo_0036.catalog_groups".
func WriteGroups(t testing.TB, base string, g Groups) GroupPaths {
	t.Helper()
	p := GroupPaths{
		Groups:               base + ".catalog_groups",
		Particles:            base + ".catalog_particles",
		ParticlesUnbound:     base + ".catalog_particles.unbound",
		ParticleTypes:        base + ".catalog_parttypes",
		ParticleTypesUnbound: base + ".catalog_parttypes.unbound",
	}

	boundOffsets, boundIDs := flatten(g.Bound)
	unboundOffsets, unboundIDs := flatten(g.Unbound)
	sizes := make([]int64, len(g.Bound))
	for i := range g.Bound {
		sizes[i] = int64(len(g.Bound[i]))
		if i < len(g.Unbound) {
			sizes[i] += int64(len(g.Unbound[i]))
		}
	}
	n := []int64{int64(len(g.Bound))}

	WriteCatalogue(t, p.Groups, Catalogue{Fields: []Field{
		{Name: "Num_of_files", Data: []int32{1}},
		{Name: "File_id", Data: []int32{0}},
		{Name: "Num_of_groups", Data: n},
		{Name: "Total_num_of_groups", Data: n},
		{Name: "Group_Size", Data: sizes},
		{Name: "Offset", Data: boundOffsets},
		{Name: "Offset_unbound", Data: unboundOffsets},
	}})
	WriteCatalogue(t, p.Particles, particleFile(boundIDs))
	WriteCatalogue(t, p.ParticlesUnbound, particleFile(unboundIDs))

	if g.BoundTypes != nil {
		WriteCatalogue(t, p.ParticleTypes, typeFile(g.BoundTypes))
		WriteCatalogue(t, p.ParticleTypesUnbound, typeFile(g.UnboundTypes))
	}
	return p
}

func flatten(sets [][]int64) (offsets []int64, ids []int64) {
	offsets = make([]int64, len(sets))
	ids = []int64{}
	for i, set := range sets {
		offsets[i] = int64(len(ids))
		ids = append(ids, set...)
	}
	return offsets, ids
}

func particleFile(ids []int64) Catalogue {
	n := []int64{int64(len(ids))}
	return Catalogue{Fields: []Field{
		{Name: "Num_of_files", Data: []int32{1}},
		{Name: "File_id", Data: []int32{0}},
		{Name: "Num_of_particles_in_groups", Data: n},
		{Name: "Total_num_of_particles_in_all_groups", Data: n},
		{Name: "Particle_IDs", Data: ids},
	}}
}

func typeFile(types [][]int32) Catalogue {
	flat := []int32{}
	for _, t := range types {
		flat = append(flat, t...)
	}
	return Catalogue{Fields: []Field{
		{Name: "Num_of_files", Data: []int32{1}},
		{Name: "Particle_types", Data: flat},
	}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
