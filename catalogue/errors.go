package catalogue

import "errors"

var (
	// ErrFieldNotFound is returned when a field is not in the catalogue.
	ErrFieldNotFound = errors.New("field not found")
	// ErrBadAccessor is returned by View.Get for keys not of the form
	// "category.field".
	ErrBadAccessor = errors.New("accessor must be category.field")
	// ErrMaskRange is returned when a mask index is outside the catalogue.
	ErrMaskRange = errors.New("mask index out of range")
	// ErrMultiFile is returned when a multi-file catalogue cannot be
	// assembled from its siblings.
	ErrMultiFile = errors.New("multi-file catalogue")
	// ErrNotInteger is returned by View.Int64s for fields or sources that
	// cannot be read as integers.
	ErrNotInteger = errors.New("field is not an integer column")
)
