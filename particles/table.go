package particles

import "fmt"

// Entry locates one halo's particles in the flat particle arrays.
type Entry struct {
	BoundOffset, BoundCount     uint64
	UnboundOffset, UnboundCount uint64
}

// Table maps halo ids (row indices of the catalogue) to particle ranges.
// It is immutable.
type Table struct {
	bound   ranges
	unbound ranges
}

type ranges struct {
	offsets []uint64
	total   uint64
}

// NewTable builds a table from per-halo offsets and the total number of
// bound and unbound particles. Each halo's count is the distance to the
// next halo's offset; the last halo runs to the total.
func NewTable(boundOffsets []uint64, boundTotal uint64, unboundOffsets []uint64, unboundTotal uint64) (*Table, error) {
	if len(boundOffsets) != len(unboundOffsets) {
		return nil, fmt.Errorf("%w: %d bound and %d unbound offsets",
			ErrCorruptTable, len(boundOffsets), len(unboundOffsets))
	}
	b := ranges{offsets: boundOffsets, total: boundTotal}
	if err := b.check("bound"); err != nil {
		return nil, err
	}
	u := ranges{offsets: unboundOffsets, total: unboundTotal}
	if err := u.check("unbound"); err != nil {
		return nil, err
	}
	return &Table{bound: b, unbound: u}, nil
}

func (r ranges) check(kind string) error {
	prev := uint64(0)
	for i, off := range r.offsets {
		if off < prev {
			return fmt.Errorf("%w: %s offset of halo %d decreases (%d after %d)", ErrCorruptTable, kind, i, off, prev)
		}
		prev = off
	}
	if prev > r.total {
		return fmt.Errorf("%w: %s offsets run past %d particles", ErrCorruptTable, kind, r.total)
	}
	return nil
}

func (r ranges) at(i int) (offset, count uint64) {
	offset = r.offsets[i]
	end := r.total
	if i+1 < len(r.offsets) {
		end = r.offsets[i+1]
	}
	return offset, end - offset
}

// Len returns the number of haloes.
func (t *Table) Len() int { return len(t.bound.offsets) }

// Lookup returns the particle ranges of halo id.
func (t *Table) Lookup(id int64) (Entry, error) {
	if id < 0 || id >= int64(t.Len()) {
		return Entry{}, fmt.Errorf("halo %d of %d: %w", id, t.Len(), ErrHaloNotFound)
	}
	var e Entry
	e.BoundOffset, e.BoundCount = t.bound.at(int(id))
	e.UnboundOffset, e.UnboundCount = t.unbound.at(int(id))
	return e, nil
}
