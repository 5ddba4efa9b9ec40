package layout

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/filter"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// ChunkWriter handles writing chunked dataset data and indices.
type ChunkWriter struct {
	w           *binary.Writer
	chunkDims   []uint32
	elementSize uint32
	allocator   func(size int64) uint64
	filters     *message.FilterPipeline
}

// NewChunkWriter creates a new chunk writer.
func NewChunkWriter(w *binary.Writer, chunkDims []uint32, elementSize uint32, allocator func(size int64) uint64) *ChunkWriter {
	dims := make([]uint32, len(chunkDims))
	copy(dims, chunkDims)
	return &ChunkWriter{
		w:           w,
		chunkDims:   dims,
		elementSize: elementSize,
		allocator:   allocator,
	}
}

// SetDeflate compresses every chunk at the given zlib level. Multi-byte
// elements are shuffled first.
func (cw *ChunkWriter) SetDeflate(level int) {
	cw.filters = message.NewDeflatePipeline(level)
	if cw.elementSize > 1 {
		shuffle := message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{cw.elementSize}}
		cw.filters.Filters = slices.Insert(cw.filters.Filters, 0, shuffle)
	}
}

// ChunkSize returns the size in bytes of one chunk.
func (cw *ChunkWriter) ChunkSize() uint64 {
	size := uint64(cw.elementSize)
	for _, dim := range cw.chunkDims {
		size *= uint64(dim)
	}
	return size
}

// Write stores data of shape dims and returns the layout message and the
// filter pipeline (nil when uncompressed) describing it. One chunk is
// indexed as a single chunk; more use a fixed array.
func (cw *ChunkWriter) Write(data []byte, dims []uint64) (*message.DataLayout, *message.FilterPipeline, error) {
	if len(dims) != len(cw.chunkDims) {
		return nil, nil, fmt.Errorf("chunk rank %d does not match data rank %d", len(cw.chunkDims), len(dims))
	}
	if product(dims) == 0 {
		return nil, nil, fmt.Errorf("cannot chunk an empty dataset")
	}
	if uint64(len(data)) != product(dims)*uint64(cw.elementSize) {
		return nil, nil, fmt.Errorf("data size %d does not match shape %v", len(data), dims)
	}

	// chunks never exceed a fixed-size dataset's extent
	for d, c := range cw.chunkDims {
		if c == 0 || uint64(c) > dims[d] {
			cw.chunkDims[d] = uint32(dims[d])
		}
	}

	chunks := SplitIntoChunks(data, dims, cw.chunkDims, cw.elementSize)
	addrs := make([]uint64, len(chunks))
	var sizes []uint64
	var masks []uint32
	var pipeline *filter.Pipeline
	if cw.filters != nil {
		p, err := filter.NewPipeline(cw.filters)
		if err != nil {
			return nil, nil, err
		}
		pipeline = p
		sizes = make([]uint64, len(chunks))
		masks = make([]uint32, len(chunks))
	}

	for i, chunk := range chunks {
		if pipeline != nil {
			enc, err := pipeline.Encode(chunk)
			if err != nil {
				return nil, nil, fmt.Errorf("compressing chunk %d: %w", i, err)
			}
			chunk = enc
			sizes[i] = uint64(len(enc))
		}
		addr, err := cw.WriteChunk(chunk)
		if err != nil {
			return nil, nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		addrs[i] = addr
	}

	if len(chunks) == 1 {
		l := message.NewChunkedLayout(cw.chunkDims, cw.elementSize, message.ChunkIndexSingleChunk)
		l.ChunkIndexAddr = addrs[0]
		if sizes != nil {
			l.FilteredChunkSize = sizes[0]
		}
		return l, cw.filters, nil
	}

	indexAddr, err := writeFixedArray(cw.w, cw.allocator, addrs, sizes, masks, cw.ChunkSize())
	if err != nil {
		return nil, nil, err
	}
	l := message.NewChunkedLayout(cw.chunkDims, cw.elementSize, message.ChunkIndexFixedArray)
	l.ChunkIndexAddr = indexAddr
	return l, cw.filters, nil
}

// WriteChunk writes one chunk's bytes and returns its address.
func (cw *ChunkWriter) WriteChunk(data []byte) (uint64, error) {
	addr := cw.allocator(int64(len(data)))
	if err := cw.w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, err
	}
	return addr, nil
}

// SplitIntoChunks splits row-major data into chunks in row-major chunk
// order. Edge chunks are padded with zeros to the full chunk shape.
func SplitIntoChunks(data []byte, dataDims []uint64, chunkDims []uint32, elementSize uint32) [][]byte {
	ndims := len(dataDims)
	cdims := make([]uint64, ndims)
	for d := range cdims {
		cdims[d] = uint64(chunkDims[d])
	}
	es := uint64(elementSize)
	chunkBytes := product(cdims) * es

	grid := chunkGrid(dataDims, cdims)
	n := product(grid)
	chunks := make([][]byte, 0, n)
	origin := make([]uint64, ndims)
	hi := make([]uint64, ndims)

	for i := uint64(0); i < n; i++ {
		offset := chunkOffset(i, grid, cdims)
		for d := range hi {
			hi[d] = min(offset[d]+cdims[d], dataDims[d])
		}
		buf := make([]byte, chunkBytes)
		copyBlock(buf, offset, cdims, data, origin, dataDims, offset, hi, es)
		chunks = append(chunks, buf)
	}
	return chunks
}
