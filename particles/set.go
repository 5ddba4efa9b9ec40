package particles

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/robert-malhotra/go-velociraptor/catalogue"
	"github.com/robert-malhotra/go-velociraptor/units"
)

// ParticleSet is the bound or unbound membership of one halo. IDs and
// Types are parallel; Types holds -1 when no type file was loaded.
type ParticleSet struct {
	HaloID int64
	Bound  bool
	IDs    []int64
	Types  []int32
	// Halo is copied from the catalogue view passed to ExtractHalo.
	Halo HaloInfo
}

// HaloInfo is the halo metadata used to build spatial masks around a
// particle set.
type HaloInfo struct {
	// Centre is the position of the potential minimum.
	Centre      [3]units.Quantity
	Radius      units.Quantity
	Mass200Crit units.Quantity
	// Known is false when the view lacked one of the fields.
	Known bool
}

// Len returns the number of particles.
func (s *ParticleSet) Len() int { return len(s.IDs) }

// Bitmap returns the particle ids as a bitmap. Ids are reinterpreted as
// unsigned.
func (s *ParticleSet) Bitmap() *roaring64.Bitmap {
	rb := roaring64.New()
	for _, id := range s.IDs {
		rb.Add(uint64(id))
	}
	return rb
}

// OfType returns the ids of particles with the given type.
func (s *ParticleSet) OfType(t int32) []int64 {
	var out []int64
	for i, pt := range s.Types {
		if pt == t {
			out = append(out, s.IDs[i])
		}
	}
	return out
}

// Membership reports, for each candidate id, whether it is in set. It is
// the building block for masks over snapshot particles.
func Membership(set *roaring64.Bitmap, candidates []int64) []bool {
	out := make([]bool, len(candidates))
	for i, id := range candidates {
		out[i] = set.Contains(uint64(id))
	}
	return out
}

// Union returns a bitmap of the ids in any of the sets.
func Union(sets ...*ParticleSet) *roaring64.Bitmap {
	rb := roaring64.New()
	for _, s := range sets {
		rb.Or(s.Bitmap())
	}
	return rb
}

var (
	centreFields = [3]string{"positions.xcminpot", "positions.ycminpot", "positions.zcminpot"}
	radiusField  = "radii.r_size"
	massField    = "masses.mass_200crit"
)

func haloInfo(view *catalogue.View, row int, logger *slog.Logger) (HaloInfo, error) {
	if row >= view.Len() {
		return HaloInfo{}, fmt.Errorf("halo %d outside catalogue of %d rows: %w", row, view.Len(), ErrHaloNotFound)
	}

	info := HaloInfo{Known: true}
	get := func(accessor string) units.Quantity {
		q, err := view.Value(accessor, row)
		if err == nil {
			return q
		}
		if !errors.Is(err, catalogue.ErrFieldNotFound) {
			logger.Warn("reading halo metadata", "field", accessor, "row", row, "err", err)
		}
		info.Known = false
		return units.Quantity{Unit: units.One}
	}
	for i, accessor := range centreFields {
		info.Centre[i] = get(accessor)
	}
	info.Radius = get(radiusField)
	info.Mass200Crit = get(massField)
	return info, nil
}
