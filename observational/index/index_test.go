package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-velociraptor/observational"
	"github.com/robert-malhotra/go-velociraptor/units"
)

func container(t *testing.T, name string, brackets ...[3]float64) *observational.Container {
	t.Helper()
	b := observational.NewBuilder()
	require.NoError(t, b.SetName(name))
	for _, br := range brackets {
		require.NoError(t, b.AddDataset(observational.Dataset{
			X:             units.NewArray([]float64{1, 2}, units.Msun),
			Y:             units.NewArray([]float64{3, 4}, units.One),
			RedshiftLower: br[0],
			Redshift:      br[1],
			RedshiftUpper: br[2],
		}))
	}
	c, err := b.Finalize()
	require.NoError(t, err)
	return c
}

func openIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestQueryReturnsOverlappingFiles(t *testing.T) {
	ctx := context.Background()
	x := openIndex(t)

	require.NoError(t, x.Add(ctx, "low.hdf5", container(t, "low", [3]float64{0, 0.1, 0.2})))
	require.NoError(t, x.Add(ctx, "mid.hdf5", container(t, "mid", [3]float64{0.2, 0.4, 0.6}, [3]float64{2, 2.5, 3})))
	require.NoError(t, x.Add(ctx, "high.hdf5", container(t, "high", [3]float64{0.6, 0.8, 1.0})))

	got, err := x.Query(ctx, 0.3, 0.7)
	require.NoError(t, err)
	assert.Equal(t, []string{"high.hdf5", "mid.hdf5"}, got)

	got, err = x.Query(ctx, 0.2, 0.2)
	require.NoError(t, err)
	assert.Equal(t, []string{"low.hdf5", "mid.hdf5"}, got)

	got, err = x.Query(ctx, 5, 6)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = x.Query(ctx, 1, 0)
	assert.ErrorIs(t, err, observational.ErrInvalidRange)
}

func TestAddReplacesAndRemove(t *testing.T) {
	ctx := context.Background()
	x := openIndex(t)

	require.NoError(t, x.Add(ctx, "a.hdf5", container(t, "first", [3]float64{0, 0.1, 0.2})))
	require.NoError(t, x.Add(ctx, "a.hdf5", container(t, "second", [3]float64{1, 1.5, 2}, [3]float64{2, 2.5, 3})))

	entries, err := x.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Name)
	assert.Equal(t, 2, entries[0].Datasets)

	got, err := x.Query(ctx, 0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got, "old brackets are dropped with the old record")

	require.NoError(t, x.Remove(ctx, "a.hdf5"))
	assert.ErrorIs(t, x.Remove(ctx, "a.hdf5"), ErrNotIndexed)
	got, err = x.Query(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddFileLoadsFromDisk(t *testing.T) {
	ctx := context.Background()
	x := openIndex(t)

	path := filepath.Join(t.TempDir(), "obs.hdf5")
	require.NoError(t, container(t, "disk", [3]float64{0.5, 1, 1.5}).Write(path))
	require.NoError(t, x.AddFile(ctx, path))

	got, err := x.Query(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, got)
}

func TestIndexPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")

	x, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, x.Add(ctx, "kept.hdf5", container(t, "kept", [3]float64{0, 0, 0})))
	require.NoError(t, x.Close())

	x, err = Open(ctx, path)
	require.NoError(t, err)
	defer x.Close()
	got, err := x.Query(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.hdf5"}, got)
}
