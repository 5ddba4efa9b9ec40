package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/dtype"
	"github.com/robert-malhotra/go-velociraptor/internal/layout"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
)

// CreateDataset writes data as a new dataset. data is a slice or scalar of
// float64, float32, int, int32, int64, uint8, uint32, uint64 or string.
// A slice is one-dimensional unless WithShape says otherwise; a scalar is
// stored with shape [1]. The data and header are written immediately.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}

	options := &datasetOptions{}
	for _, opt := range opts {
		opt(options)
	}

	datatype, err := dtype.DatatypeFor(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	raw, err := dtype.Encode(datatype, data)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset %q: %w", name, err)
	}

	n := uint64(1)
	if l, ok := sliceLen(data); ok {
		n = uint64(l)
	}
	dims := []uint64{n}
	if options.shape != nil {
		if product(options.shape) != n {
			return nil, fmt.Errorf("dataset %q: shape %v does not hold %d elements", name, options.shape, n)
		}
		dims = options.shape
	}
	dataspace := message.NewDataspace(dims, nil)

	dataLayout, pipeline, err := g.writeData(raw, dims, datatype.Size, options)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	attrs := make([]*message.Attribute, 0, len(options.attributes))
	for _, a := range options.attributes {
		attr, err := newAttributeMessage(a.name, a.value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q of %q: %w", a.name, name, err)
		}
		attrs = append(attrs, attr)
	}

	messages := object.NewDatasetHeader(dataspace, datatype, dataLayout, pipeline, attrs)
	header, err := object.Encode(g.file.headerConfig(), messages, 0)
	if err != nil {
		return nil, fmt.Errorf("dataset %q header: %w", name, err)
	}
	addr, err := g.file.writeBlock(header)
	if err != nil {
		return nil, fmt.Errorf("writing dataset %q header: %w", name, err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}

	ds := &Dataset{
		file:      g.file,
		path:      childPath(g.path, name),
		dataspace: dataspace,
		datatype:  datatype,
		attrs:     attrs,
	}
	ds.layout, err = layout.New(dataLayout, dataspace, datatype, pipeline, g.file.reader)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// writeData stores raw contiguously, or in chunks when chunking or
// compression was requested. Empty datasets are always contiguous.
func (g *Group) writeData(raw []byte, dims []uint64, elementSize uint32, options *datasetOptions) (*message.DataLayout, *message.FilterPipeline, error) {
	chunked := options.chunks != nil || options.compression > 0
	if !chunked || len(raw) == 0 {
		addr, err := g.file.writeBlock(raw)
		if err != nil {
			return nil, nil, err
		}
		return message.NewContiguousLayout(addr, uint64(len(raw))), nil, nil
	}

	chunks := options.chunks
	if chunks == nil {
		chunks = dims
	}
	if len(chunks) != len(dims) {
		return nil, nil, fmt.Errorf("chunk rank %d does not match data rank %d", len(chunks), len(dims))
	}
	chunkDims := make([]uint32, len(chunks))
	for i, c := range chunks {
		chunkDims[i] = uint32(c)
	}

	cw := layout.NewChunkWriter(g.file.writer, chunkDims, elementSize, g.file.allocate)
	if options.compression > 0 {
		cw.SetDeflate(options.compression)
	}
	return cw.Write(raw, dims)
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
