package message

import "github.com/robert-malhotra/go-velociraptor/internal/binary"

// Attribute is a named value attached to an object header.
type Attribute struct {
	Version uint8
	Name    string
	// Datatype and Dataspace are nil when they could not be decoded; the
	// attribute is still listed.
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func decodeAttribute(d *decoder) *Attribute {
	attr := &Attribute{Version: d.u8()}
	d.skip(1) // flags
	nameSize := int(d.u16())
	typeSize := int(d.u16())
	spaceSize := int(d.u16())

	// version 1 pads each field to 8 bytes; version 3 adds the name
	// encoding
	pad := func() {}
	switch attr.Version {
	case 1:
		pad = func() { d.align(8) }
	case 2:
	case 3:
		d.skip(1)
	default:
		d.fail("unsupported attribute version %d", attr.Version)
		return attr
	}

	attr.Name = d.cstring(nameSize)
	pad()
	if td := d.sub(typeSize); td.err == nil {
		if dt := decodeDatatype(td); td.err == nil {
			attr.Datatype = dt
		}
	}
	pad()
	if sd := d.sub(spaceSize); sd.err == nil {
		if ds := decodeDataspace(sd); sd.err == nil {
			attr.Dataspace = ds
		}
	}
	pad()
	attr.Data = d.copyBytes(d.remaining())
	return attr
}

// Serialize writes the version 3 encoding with an ASCII name.
func (m *Attribute) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(3)
	e.u8(0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(SerializedSize(m.Datatype, w)))
	e.u16(uint16(SerializedSize(m.Dataspace, w)))
	e.u8(0)
	e.cstring(m.Name)
	e.serialize(m.Datatype)
	e.serialize(m.Dataspace)
	e.bytes(m.Data)
	return e.err
}

// NewAttribute returns a version 3 attribute holding data.
func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{
		Version:   3,
		Name:      name,
		Datatype:  datatype,
		Dataspace: dataspace,
		Data:      data,
	}
}
