package units

import "errors"

var (
	ErrIncompatibleUnits = errors.New("incompatible units")
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrLengthMismatch    = errors.New("array lengths differ")
	ErrInvalidCosmology  = errors.New("invalid cosmology")
)
