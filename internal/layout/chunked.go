package layout

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/btree"
	"github.com/robert-malhotra/go-velociraptor/internal/filter"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// Chunked represents chunked storage layout.
// Data is divided into chunks that are stored separately and indexed.
type Chunked struct {
	layout    *message.DataLayout
	dataspace *message.Dataspace
	datatype  *message.Datatype
	pipeline  *filter.Pipeline
	reader    *binary.Reader

	mu      sync.Mutex
	entries []btree.ChunkEntry
	loaded  bool
}

// NewChunked creates a new chunked layout handler.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	if len(layout.ChunkDims) == 0 {
		return nil, fmt.Errorf("chunked layout has no chunk dimensions")
	}

	pipeline, err := filter.NewPipeline(filterPipeline)
	if err != nil {
		return nil, fmt.Errorf("creating filter pipeline: %w", err)
	}

	return &Chunked{
		layout:    layout,
		dataspace: dataspace,
		datatype:  datatype,
		pipeline:  pipeline,
		reader:    reader,
	}, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// dims returns the dataset dimensions; a scalar is treated as one element.
func (c *Chunked) dims() []uint64 {
	if len(c.dataspace.Dimensions) == 0 {
		return []uint64{1}
	}
	return c.dataspace.Dimensions
}

// chunkDims returns the chunk shape without the trailing element size.
func (c *Chunked) chunkDims() []uint64 {
	ndims := len(c.dims())
	out := make([]uint64, ndims)
	for d := 0; d < ndims && d < len(c.layout.ChunkDims); d++ {
		out[d] = uint64(c.layout.ChunkDims[d])
	}
	return out
}

func (c *Chunked) chunkBytes() uint64 {
	return product(c.chunkDims()) * uint64(c.datatype.Size)
}

// Read reads the whole dataset.
func (c *Chunked) Read() ([]byte, error) {
	dims := c.dims()
	return c.ReadSlice(make([]uint64, len(dims)), dims)
}

// ReadSlice reads a hyperslab, decoding only the chunks that overlap it.
func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	if len(c.dataspace.Dimensions) == 0 && len(start) == 0 && len(count) == 0 {
		start, count = []uint64{0}, []uint64{1}
	}
	dims := c.dims()
	if err := checkSelection(dims, start, count); err != nil {
		return nil, err
	}

	elementSize := uint64(c.datatype.Size)
	out := make([]byte, product(count)*elementSize)
	if len(out) == 0 {
		return out, nil
	}

	entries, err := c.index()
	if err != nil {
		return nil, err
	}

	chunkDims := c.chunkDims()
	ndims := len(dims)
	lo := make([]uint64, ndims)
	hi := make([]uint64, ndims)

	for _, entry := range entries {
		if len(entry.Offset) < ndims {
			continue
		}
		overlaps := true
		for d := 0; d < ndims; d++ {
			lo[d] = max(entry.Offset[d], start[d])
			hi[d] = min(entry.Offset[d]+chunkDims[d], start[d]+count[d])
			if lo[d] >= hi[d] {
				overlaps = false
				break
			}
		}
		if !overlaps {
			continue
		}

		data, err := c.readChunk(entry)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", entry.Offset, err)
		}
		copyBlock(out, start, count, data, entry.Offset[:ndims], chunkDims, lo, hi, elementSize)
	}

	return out, nil
}

func (c *Chunked) readChunk(entry btree.ChunkEntry) ([]byte, error) {
	data, err := c.reader.At(int64(entry.Address)).ReadBytes(int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("reading chunk: %w", err)
	}
	if c.pipeline.Empty() {
		return data, nil
	}
	data, err = c.pipeline.Decode(data, entry.FilterMask)
	if err != nil {
		return nil, fmt.Errorf("decoding chunk: %w", err)
	}
	return data, nil
}

// index loads the chunk entries once per dataset handle.
func (c *Chunked) index() ([]btree.ChunkEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.entries, nil
	}

	entries, err := c.loadIndex()
	if err != nil {
		return nil, err
	}
	c.entries = entries
	c.loaded = true
	return entries, nil
}

func (c *Chunked) loadIndex() ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if c.reader.IsUndefinedOffset(addr) {
		// nothing written yet; reads return fill (zero) bytes
		return nil, nil
	}

	dims := c.dims()
	chunkDims := c.chunkDims()

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexBTreeV1:
		entries, err := btree.ReadChunks(c.reader, addr, len(dims))
		if err != nil {
			return nil, fmt.Errorf("reading chunk B-tree: %w", err)
		}
		return entries, nil

	case message.ChunkIndexSingleChunk:
		size := c.chunkBytes()
		if c.layout.ChunkFlags&0x02 != 0 || c.layout.FilteredChunkSize > 0 {
			size = c.layout.FilteredChunkSize
		}
		return []btree.ChunkEntry{{
			Offset:     make([]uint64, len(dims)),
			FilterMask: c.layout.FilterMask,
			Size:       uint32(size),
			Address:    addr,
		}}, nil

	case message.ChunkIndexImplicit:
		return c.implicitEntries(addr, dims, chunkDims), nil

	case message.ChunkIndexFixedArray:
		return readFixedArray(c.reader, addr, dims, chunkDims, uint32(c.chunkBytes()))

	default:
		return nil, fmt.Errorf("unsupported chunk index type %d", c.layout.ChunkIndexType)
	}
}

// implicitEntries lists chunks stored back to back in row-major chunk order.
func (c *Chunked) implicitEntries(addr uint64, dims, chunkDims []uint64) []btree.ChunkEntry {
	chunkBytes := c.chunkBytes()
	grid := chunkGrid(dims, chunkDims)
	n := product(grid)
	entries := make([]btree.ChunkEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		entries = append(entries, btree.ChunkEntry{
			Offset:  chunkOffset(i, grid, chunkDims),
			Size:    uint32(chunkBytes),
			Address: addr + i*chunkBytes,
		})
	}
	return entries
}

// chunkGrid returns the number of chunks along each dimension.
func chunkGrid(dims, chunkDims []uint64) []uint64 {
	grid := make([]uint64, len(dims))
	for d := range dims {
		grid[d] = (dims[d] + chunkDims[d] - 1) / chunkDims[d]
	}
	return grid
}

// chunkOffset converts a linear chunk index into element coordinates.
func chunkOffset(i uint64, grid, chunkDims []uint64) []uint64 {
	offset := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		offset[d] = (i % grid[d]) * chunkDims[d]
		i /= grid[d]
	}
	return offset
}

// NumChunks returns the number of allocated chunks.
func (c *Chunked) NumChunks() (int, error) {
	entries, err := c.index()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
