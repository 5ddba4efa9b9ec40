package message

import "github.com/robert-malhotra/go-velociraptor/internal/binary"

// Predefined filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID    uint16
	Flags uint16
	// Name is only stored for version 1 pipelines and custom filters.
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip this filter.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func decodeFilterPipeline(d *decoder) *FilterPipeline {
	fp := &FilterPipeline{Version: d.u8()}
	fp.Filters = make([]FilterInfo, d.u8())
	if fp.Version == 1 {
		d.skip(6)
	}
	for i := range fp.Filters {
		f := &fp.Filters[i]
		f.ID = d.u16()
		var nameLen int
		if fp.Version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Flags = d.u16()
		f.ClientData = make([]uint32, d.u16())
		if nameLen > 0 {
			f.Name = d.cstring(nameLen)
			if fp.Version == 1 {
				d.skip((8 - nameLen%8) % 8)
			}
		}
		for j := range f.ClientData {
			f.ClientData[j] = d.u32()
		}
		if fp.Version == 1 && len(f.ClientData)%2 != 0 {
			d.skip(4)
		}
	}
	return fp
}

// Serialize writes the version 2 encoding. Names are not written, which
// is valid for the predefined filters.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return e.err
}

// NewDeflatePipeline returns a pipeline with a single deflate stage.
func NewDeflatePipeline(level int) *FilterPipeline {
	return &FilterPipeline{
		Version: 2,
		Filters: []FilterInfo{{ID: FilterDeflate, ClientData: []uint32{uint32(level)}}},
	}
}
