// Package testutil writes small VELOCIraptor-style HDF5 files for tests.
//
// This package is intended for use in tests only. Files are written with
// the in-tree hdf5 writer:
//
//	path := filepath.Join(t.TempDir(), "halo.properties")
//	testutil.WriteCatalogue(t, path, testutil.Catalogue{
//	    Header: testutil.DefaultHeader(),
//	    Fields: []testutil.Field{{Name: "Mass_200crit", Data: []float64{1, 2}}},
//	})
package testutil
