package particles

import "errors"

var (
	// ErrHaloNotFound is returned for halo ids outside the group table.
	ErrHaloNotFound = errors.New("halo not found")
	// ErrMaskedView is returned when extraction is attempted against a
	// masked catalogue view. Group offsets refer to the unmasked order.
	ErrMaskedView = errors.New("halo extraction from a masked catalogue view is not supported")
	// ErrCorruptTable is returned when offsets are not monotone, ranges
	// run past the particle arrays, or bound and unbound sets overlap.
	ErrCorruptTable = errors.New("corrupt group table")
	// ErrNotProperties is returned by FileSetFromCatalogue for paths that
	// are not VELOCIraptor properties files.
	ErrNotProperties = errors.New("not a properties file path")
)
