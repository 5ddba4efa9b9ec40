// Package hdf5 reads and writes the subset of HDF5 used by halo catalogues
// and observational data files.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/go-velociraptor/internal/superblock"
)

// Common errors
var (
	ErrNotHDF5     = superblock.ErrNotHDF5
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrReadOnly    = errors.New("file is not writable")
	ErrExists      = errors.New("name already exists")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth is the maximum number of soft links followed while resolving
// a single path.
const MaxLinkDepth = 100
