package layout

import (
	"errors"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

var ErrNotAllocated = errors.New("storage not allocated")

// eachRow calls fn for every innermost row of a selection with the row's
// byte offset in the full dataset, its offset in the packed result and its
// length.
func eachRow(dims, start, count []uint64, elementSize uint64, fn func(src, dst, n uint64) error) error {
	total := product(count) * elementSize
	if total == 0 {
		return nil
	}
	ndims := len(dims)
	stride := strides(dims, elementSize)
	n := count[ndims-1] * elementSize
	pos := slices.Clone(start)

	for dst := uint64(0); dst < total; dst += n {
		var src uint64
		for d := range ndims {
			src += pos[d] * stride[d]
		}
		if err := fn(src, dst, n); err != nil {
			return err
		}
		for d := ndims - 2; d >= 0; d-- {
			pos[d]++
			if pos[d] < start[d]+count[d] {
				break
			}
			pos[d] = start[d]
		}
	}
	return nil
}

// Compact storage lives inside the layout message.
type Compact struct {
	data     []byte
	dims     []uint64
	elemSize uint64
}

func NewCompact(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype) *Compact {
	return &Compact{data: layout.CompactData, dims: dataspace.Dimensions, elemSize: uint64(datatype.Size)}
}

func (c *Compact) Class() message.LayoutClass { return message.LayoutCompact }

func (c *Compact) Read() ([]byte, error) { return slices.Clone(c.data), nil }

// ReadSlice copies a selection out of the message data. Scalars accept
// only an empty selection.
func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	if len(c.dims) == 0 && len(start) == 0 && len(count) == 0 {
		return c.Read()
	}
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*c.elemSize)
	err := eachRow(c.dims, start, count, c.elemSize, func(src, dst, n uint64) error {
		if src+n > uint64(len(c.data)) {
			return fmt.Errorf("compact data holds %d bytes, row ends at %d", len(c.data), src+n)
		}
		copy(out[dst:], c.data[src:src+n])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Contiguous storage is one block of the file in row-major order.
type Contiguous struct {
	address  uint64
	size     uint64
	dims     []uint64
	elemSize uint64
	reader   *binary.Reader
}

// NewContiguous falls back to the dataspace size when the layout message
// records none.
func NewContiguous(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype, reader *binary.Reader) *Contiguous {
	c := &Contiguous{
		address:  layout.Address,
		size:     layout.Size,
		dims:     dataspace.Dimensions,
		elemSize: uint64(datatype.Size),
		reader:   reader,
	}
	if c.size == 0 {
		c.size = dataspace.NumElements() * c.elemSize
	}
	return c
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

func (c *Contiguous) Read() ([]byte, error) {
	if c.reader.IsUndefinedOffset(c.address) {
		return nil, ErrNotAllocated
	}
	if c.size == 0 {
		return []byte{}, nil
	}
	data, err := c.reader.At(int64(c.address)).ReadBytes(int(c.size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data: %w", err)
	}
	return data, nil
}

// ReadSlice reads only the rows the selection covers, so a range of a
// one-dimensional catalogue column is a single read.
func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	if c.reader.IsUndefinedOffset(c.address) {
		return nil, ErrNotAllocated
	}
	out := make([]byte, product(count)*c.elemSize)
	err := eachRow(c.dims, start, count, c.elemSize, func(src, dst, n uint64) error {
		row, err := c.reader.At(int64(c.address + src)).ReadBytes(int(n))
		if err != nil {
			return fmt.Errorf("reading contiguous row at %d: %w", src, err)
		}
		copy(out[dst:], row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
