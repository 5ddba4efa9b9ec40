package message

import "github.com/robert-malhotra/go-velociraptor/internal/binary"

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact LayoutClass = iota
	LayoutContiguous
	LayoutChunked
	LayoutVirtual
)

// ChunkIndexType is the chunk index of a version 4 layout. Older layouts
// always use a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1 ChunkIndexType = iota
	ChunkIndexSingleChunk
	ChunkIndexImplicit
	ChunkIndexFixedArray
	ChunkIndexExtensibleArray
	ChunkIndexBTreeV2
)

// set when a single chunk is filtered and its size and mask follow
const chunkFlagSingleFiltered = 0x02

// page bits of the fixed arrays written by the layout package
const fixedArrayPageBits = 10

// DataLayout says where the raw data of a dataset is stored.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Address and Size locate contiguous data. Size is zero for layout
	// versions 1 and 2, which leave it to the dataspace.
	Address uint64
	Size    uint64

	// ChunkDims has one more entry than the dataset rank: the element
	// size.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Version 4 single chunk index with filters.
	FilteredChunkSize uint64
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func decodeDataLayout(d *decoder) *DataLayout {
	l := &DataLayout{Version: d.u8()}
	switch l.Version {
	case 1, 2:
		decodeLayoutV1(d, l)
	case 3, 4:
		l.Class = LayoutClass(d.u8())
		switch l.Class {
		case LayoutCompact:
			l.CompactData = d.copyBytes(int(d.u16()))
		case LayoutContiguous:
			l.Address = d.offset()
			l.Size = d.length()
		case LayoutChunked:
			if l.Version == 3 {
				l.ChunkDims = make([]uint32, d.u8())
				l.ChunkIndexAddr = d.offset()
				for i := range l.ChunkDims {
					l.ChunkDims[i] = d.u32()
				}
			} else {
				decodeChunkedV4(d, l)
			}
		default:
			d.fail("unsupported layout class %d", l.Class)
		}
	default:
		d.fail("unsupported data layout version %d", l.Version)
	}
	return l
}

func decodeLayoutV1(d *decoder, l *DataLayout) {
	rank := int(d.u8())
	l.Class = LayoutClass(d.u8())
	d.skip(5)
	if l.Class != LayoutCompact {
		l.Address = d.offset()
	}
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = d.u32()
	}
	switch l.Class {
	case LayoutCompact:
		l.CompactData = d.copyBytes(int(d.u32()))
	case LayoutChunked:
		l.ChunkIndexAddr = l.Address
		l.Address = 0
		// the last dimension is already the element size
		l.ChunkDims = dims
	}
}

func decodeChunkedV4(d *decoder, l *DataLayout) {
	l.ChunkFlags = d.u8()
	l.ChunkDims = make([]uint32, d.u8())
	l.DimensionSizeBytes = d.u8()
	for i := range l.ChunkDims {
		l.ChunkDims[i] = uint32(d.uint(int(l.DimensionSizeBytes)))
	}
	l.ChunkIndexType = ChunkIndexType(d.u8())
	switch l.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if l.ChunkFlags&chunkFlagSingleFiltered != 0 {
			l.FilteredChunkSize = d.length()
			l.FilterMask = d.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		d.skip(1)
	case ChunkIndexExtensibleArray:
		d.skip(5)
	case ChunkIndexBTreeV2:
		d.skip(6)
	default:
		d.fail("unknown chunk index type %d", l.ChunkIndexType)
		return
	}
	l.ChunkIndexAddr = d.offset()
}

// Serialize writes version 4 for chunked storage and version 3 otherwise.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	version := m.Version
	if version < 3 {
		version = 3
	}
	if m.Class == LayoutChunked {
		version = 4
	}
	e.u8(version)
	e.u8(uint8(m.Class))

	switch m.Class {
	case LayoutCompact:
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.offset(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		flags := m.ChunkFlags
		if m.ChunkIndexType == ChunkIndexSingleChunk && m.FilteredChunkSize > 0 {
			flags |= chunkFlagSingleFiltered
		}
		dimBytes := m.DimensionSizeBytes
		if dimBytes == 0 {
			dimBytes = 4
		}
		e.u8(flags)
		e.u8(uint8(len(m.ChunkDims)))
		e.u8(dimBytes)
		for _, dim := range m.ChunkDims {
			e.uint(uint64(dim), int(dimBytes))
		}
		e.u8(uint8(m.ChunkIndexType))
		switch {
		case m.ChunkIndexType == ChunkIndexSingleChunk && flags&chunkFlagSingleFiltered != 0:
			e.length(m.FilteredChunkSize)
			e.u32(m.FilterMask)
		case m.ChunkIndexType == ChunkIndexFixedArray:
			e.u8(fixedArrayPageBits)
		}
		e.offset(m.ChunkIndexAddr)
	}
	return e.err
}

func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. chunkDims has the
// dataset's rank; the element size is appended as the last dimension. The
// index address is filled in once the index is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var widest uint64
	for _, dim := range dims {
		widest = max(widest, uint64(dim))
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     indexType,
		DimensionSizeBytes: uint8(sizeBytes(widest)),
	}
}
