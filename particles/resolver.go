// Package particles resolves the bound and unbound particles of a halo
// from the group and particle files written alongside a VELOCIraptor
// catalogue.
//
// The group table is read once when the files are loaded. Extraction is
// a table lookup followed by partial reads of the particle arrays, so only
// the requested halo's particles are read:
//
//	files, _ := particles.FileSetFromCatalogue("halo_0036.properties")
//	res, err := particles.Load(files)
//	if err != nil {
//	    return err
//	}
//	defer res.Close()
//	bound, unbound, err := res.ExtractHalo(view, 0)
package particles

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/robert-malhotra/go-velociraptor/catalogue"
	"github.com/robert-malhotra/go-velociraptor/hdf5"
	"github.com/robert-malhotra/go-velociraptor/internal/logging"
)

// Dataset names of the VELOCIraptor group and particle files.
const (
	datasetOffset        = "Offset"
	datasetOffsetUnbound = "Offset_unbound"
	datasetParticleIDs   = "Particle_IDs"
	datasetParticleTypes = "Particle_types"
	datasetNumInGroups   = "Num_of_particles_in_groups"
)

// Option configures Load.
type Option func(*Resolver)

// WithLogger sets the logger for load and extraction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver extracts halo particle sets. It is safe for sequential use
// only; the underlying files are shared.
type Resolver struct {
	table *Table
	files []*hdf5.File

	bound        *hdf5.Dataset
	unbound      *hdf5.Dataset
	boundTypes   *hdf5.Dataset
	unboundTypes *hdf5.Dataset

	logger *slog.Logger
}

// Load reads the group table and opens the particle files. Missing
// particle type files are allowed; types are then reported as -1.
func Load(files FileSet, opts ...Option) (*Resolver, error) {
	r := &Resolver{logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(files); err != nil {
		r.Close()
		return nil, err
	}
	r.logger.Debug("loaded group table",
		"haloes", r.table.Len(), "types", r.boundTypes != nil)
	return r, nil
}

func (r *Resolver) load(files FileSet) error {
	boundFile, bound, err := r.openDataset(files.Particles, datasetParticleIDs)
	if err != nil {
		return err
	}
	unboundFile, unbound, err := r.openDataset(files.ParticlesUnbound, datasetParticleIDs)
	if err != nil {
		return err
	}
	r.bound, r.unbound = bound, unbound
	if r.boundTypes, err = r.openTypes(files.ParticleTypes); err != nil {
		return err
	}
	if r.unboundTypes, err = r.openTypes(files.ParticleTypesUnbound); err != nil {
		return err
	}

	groups, err := r.open(files.Groups)
	if err != nil {
		return err
	}
	boundOffsets, err := readOffsets(groups, datasetOffset)
	if err != nil {
		return err
	}
	unboundOffsets, err := readOffsets(groups, datasetOffsetUnbound)
	if err != nil {
		return err
	}

	boundTotal, err := total(boundFile, bound)
	if err != nil {
		return err
	}
	unboundTotal, err := total(unboundFile, unbound)
	if err != nil {
		return err
	}

	r.table, err = NewTable(boundOffsets, boundTotal, unboundOffsets, unboundTotal)
	if err != nil {
		return fmt.Errorf("%s: %w", files.Groups, err)
	}
	return nil
}

func (r *Resolver) open(path string) (*hdf5.File, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.files = append(r.files, f)
	return f, nil
}

func (r *Resolver) openDataset(path, name string) (*hdf5.File, *hdf5.Dataset, error) {
	f, err := r.open(path)
	if err != nil {
		return nil, nil, err
	}
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, ds, nil
}

func (r *Resolver) openTypes(path string) (*hdf5.Dataset, error) {
	if path == "" {
		return nil, nil
	}
	_, ds, err := r.openDataset(path, datasetParticleTypes)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("no particle type file", "path", path)
		return nil, nil
	}
	return ds, err
}

// total is the number of particles in groups, from the header dataset
// when present and the id array length otherwise.
func total(f *hdf5.File, ids *hdf5.Dataset) (uint64, error) {
	ds, err := f.OpenDataset(datasetNumInGroups)
	if err != nil {
		return ids.Len(), nil
	}
	n, err := ds.ReadUint64()
	if err != nil {
		return 0, fmt.Errorf("%s: reading %s: %w", f.Path(), datasetNumInGroups, err)
	}
	if len(n) == 0 {
		return ids.Len(), nil
	}
	return n[0], nil
}

func readOffsets(f *hdf5.File, name string) ([]uint64, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path(), err)
	}
	offsets, err := ds.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", f.Path(), name, err)
	}
	return offsets, nil
}

// Table returns the group table.
func (r *Resolver) Table() *Table { return r.table }

// Close closes every file opened by Load.
func (r *Resolver) Close() error {
	var errs []error
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.files = nil
	return errors.Join(errs...)
}

// ExtractHalo returns the bound and unbound particles of halo id, the row
// index of the halo in the catalogue. view supplies halo metadata and may
// be nil; a masked view is rejected.
func (r *Resolver) ExtractHalo(view *catalogue.View, id int64) (bound, unbound *ParticleSet, err error) {
	if view != nil && view.Masked() {
		return nil, nil, ErrMaskedView
	}
	entry, err := r.table.Lookup(id)
	if err != nil {
		return nil, nil, err
	}

	bound, err = r.read(r.bound, r.boundTypes, entry.BoundOffset, entry.BoundCount)
	if err != nil {
		return nil, nil, fmt.Errorf("bound particles of halo %d: %w", id, err)
	}
	unbound, err = r.read(r.unbound, r.unboundTypes, entry.UnboundOffset, entry.UnboundCount)
	if err != nil {
		return nil, nil, fmt.Errorf("unbound particles of halo %d: %w", id, err)
	}
	bound.HaloID, unbound.HaloID = id, id
	bound.Bound = true

	if bound.Bitmap().Intersects(unbound.Bitmap()) {
		return nil, nil, fmt.Errorf("%w: halo %d has particles both bound and unbound", ErrCorruptTable, id)
	}

	if view != nil {
		info, err := haloInfo(view, int(id), r.logger)
		if err != nil {
			return nil, nil, err
		}
		bound.Halo, unbound.Halo = info, info
	}
	r.logger.Debug("extracted halo",
		"id", id, "bound", bound.Len(), "unbound", unbound.Len())
	return bound, unbound, nil
}

func (r *Resolver) read(ids, types *hdf5.Dataset, offset, count uint64) (*ParticleSet, error) {
	set := &ParticleSet{IDs: []int64{}, Types: []int32{}}
	if count == 0 {
		return set, nil
	}
	if offset+count > ids.Len() {
		return nil, fmt.Errorf("%w: range [%d, %d) past %d particles", ErrCorruptTable, offset, offset+count, ids.Len())
	}

	var err error
	set.IDs, err = ids.ReadInt64Range(offset, count)
	if err != nil {
		return nil, err
	}

	set.Types = make([]int32, count)
	if types == nil {
		for i := range set.Types {
			set.Types[i] = -1
		}
		return set, nil
	}
	raw, err := types.ReadInt64Range(offset, count)
	if err != nil {
		return nil, fmt.Errorf("particle types: %w", err)
	}
	for i, t := range raw {
		set.Types[i] = int32(t)
	}
	return set, nil
}
