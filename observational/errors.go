package observational

import "errors"

var (
	// ErrFinalized is returned by Builder methods called after Finalize.
	ErrFinalized = errors.New("container already finalized")
	// ErrInvalidDataset is returned for datasets that break an invariant:
	// unequal lengths, a redshift outside its bracket, or badly shaped
	// scatter.
	ErrInvalidDataset = errors.New("invalid observational dataset")
	// ErrInvalidRange is returned by Select for an inverted or NaN range.
	ErrInvalidRange = errors.New("invalid redshift range")
	// ErrFormat is returned by Load for files that do not follow the
	// observational data layout.
	ErrFormat = errors.New("not an observational data file")
)
