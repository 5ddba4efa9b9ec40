package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// Layout is the interface for reading dataset data from a storage layout.
type Layout interface {
	// Read reads all data from the layout.
	Read() ([]byte, error)

	// ReadSlice reads a hyperslab: count elements per dimension starting at
	// start. The result is row-major.
	ReadSlice(start, count []uint64) ([]byte, error)

	// Class returns the layout class.
	Class() message.LayoutClass
}

// New creates a Layout from a DataLayout message.
func New(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (Layout, error) {
	if layout == nil || dataspace == nil || datatype == nil {
		return nil, fmt.Errorf("layout needs layout, dataspace and datatype messages")
	}

	switch layout.Class {
	case message.LayoutCompact:
		return NewCompact(layout, dataspace, datatype), nil
	case message.LayoutContiguous:
		return NewContiguous(layout, dataspace, datatype, reader), nil
	case message.LayoutChunked:
		return NewChunked(layout, dataspace, datatype, filterPipeline, reader)
	default:
		return nil, fmt.Errorf("unsupported layout class: %d", layout.Class)
	}
}

// checkSelection validates a hyperslab against the dataset dimensions.
func checkSelection(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("start and count must have %d dimensions, got %d and %d",
			len(dims), len(start), len(count))
	}
	for d := range dims {
		if start[d]+count[d] > dims[d] {
			return fmt.Errorf("slice out of bounds: dimension %d, start=%d, count=%d, size=%d",
				d, start[d], count[d], dims[d])
		}
	}
	return nil
}

func product(v []uint64) uint64 {
	n := uint64(1)
	for _, x := range v {
		n *= x
	}
	return n
}

// strides returns row-major byte strides for a block of the given shape.
func strides(shape []uint64, elementSize uint64) []uint64 {
	s := make([]uint64, len(shape))
	if len(shape) == 0 {
		return s
	}
	s[len(shape)-1] = elementSize
	for d := len(shape) - 2; d >= 0; d-- {
		s[d] = s[d+1] * shape[d+1]
	}
	return s
}

// copyBlock copies the intersection of a source block and a destination
// block, both given in dataset coordinates, one innermost row at a time.
// srcOrigin/srcShape describe the source buffer, dstOrigin/dstShape the
// destination, and lo/hi the intersection to copy.
func copyBlock(
	dst []byte, dstOrigin, dstShape []uint64,
	src []byte, srcOrigin, srcShape []uint64,
	lo, hi []uint64, elementSize uint64,
) {
	ndims := len(lo)
	for d := 0; d < ndims; d++ {
		if lo[d] >= hi[d] {
			return
		}
	}
	srcStrides := strides(srcShape, elementSize)
	dstStrides := strides(dstShape, elementSize)
	rowBytes := (hi[ndims-1] - lo[ndims-1]) * elementSize

	pos := make([]uint64, ndims)
	copy(pos, lo)
	for {
		var so, do uint64
		for d := 0; d < ndims; d++ {
			so += (pos[d] - srcOrigin[d]) * srcStrides[d]
			do += (pos[d] - dstOrigin[d]) * dstStrides[d]
		}
		if so+rowBytes <= uint64(len(src)) && do+rowBytes <= uint64(len(dst)) {
			copy(dst[do:do+rowBytes], src[so:so+rowBytes])
		}

		// advance over all but the innermost dimension
		d := ndims - 2
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < hi[d] {
				break
			}
			pos[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}
