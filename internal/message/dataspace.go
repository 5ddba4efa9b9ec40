package message

import "github.com/robert-malhotra/go-velociraptor/internal/binary"

// DataspaceType distinguishes scalar, simple and empty dataspaces.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = iota
	DataspaceSimple
	DataspaceNull
)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	// MaxDims is nil when the maximum equals the current size.
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the number of elements, 1 for a scalar.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, dim := range m.Dimensions {
			n *= dim
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

func decodeDataspace(d *decoder) *Dataspace {
	ds := &Dataspace{Version: d.u8(), Rank: int(d.u8())}
	flags := d.u8()
	switch ds.Version {
	case 1:
		d.skip(5)
		ds.SpaceType = DataspaceSimple
		if ds.Rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
	case 2:
		ds.SpaceType = DataspaceType(d.u8())
	default:
		d.fail("unsupported dataspace version %d", ds.Version)
		return ds
	}
	if ds.SpaceType != DataspaceSimple {
		return ds
	}

	ds.Dimensions = make([]uint64, ds.Rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = d.length()
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, ds.Rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = d.length()
		}
	}
	return ds
}

// Serialize writes the version 2 encoding.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	e.u8(2)
	e.u8(uint8(m.Rank))
	e.u8(flags)
	e.u8(uint8(m.SpaceType))
	for _, dim := range m.Dimensions {
		e.length(dim)
	}
	if flags != 0 {
		for _, dim := range m.MaxDims {
			e.length(dim)
		}
	}
	return e.err
}

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{
		Version:    2,
		Rank:       len(dims),
		SpaceType:  DataspaceSimple,
		Dimensions: dims,
		MaxDims:    maxDims,
	}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
