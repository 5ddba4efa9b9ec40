package message

import "github.com/robert-malhotra/go-velociraptor/internal/binary"

// DatatypeClass is the class of a datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = iota
	ClassFloatPoint
	ClassTime
	ClassString
	ClassBitfield
	ClassOpaque
	ClassCompound
	ClassReference
	ClassEnum
	ClassVarLen
	ClassArray
)

// ByteOrder is the byte order of a numeric datatype.
type ByteOrder uint8

const (
	OrderLE ByteOrder = iota
	OrderBE
)

// StringPadding says how a fixed-length string fills unused bytes.
type StringPadding uint8

const (
	PadNullTerm StringPadding = iota
	PadNullPad
	PadSpacePad
)

// CharacterSet is the encoding of string data.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = iota
	CharsetUTF8
)

// Datatype describes the element type of a dataset or attribute.
//
// Numbers, strings and variable-length strings are decoded field by field.
// For the other classes only the size is interpreted and the class
// properties are kept in Properties.
type Datatype struct {
	Class   DatatypeClass
	Version uint8
	Size    uint32
	// Bits holds the 24 class-specific flag bits.
	Bits uint32

	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool

	// Base is the element type of variable-length and array types.
	Base *Datatype
	// Dims holds the dimensions of an array type.
	Dims []uint32

	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

func decodeDatatype(d *decoder) *Datatype {
	head := d.u8()
	dt := &Datatype{
		Class:   DatatypeClass(head & 0x0f),
		Version: head >> 4,
		Bits:    uint32(d.uint(3)),
		Size:    d.u32(),
	}

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(dt.Bits & 0x01)
		dt.Signed = dt.Bits&0x08 != 0
		dt.BitOffset = d.u16()
		dt.BitPrecision = d.u16()
	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(dt.Bits & 0x01)
		dt.Properties = d.copyBytes(12)
		if len(dt.Properties) == 12 {
			dt.BitOffset = uint16(dt.Properties[0]) | uint16(dt.Properties[1])<<8
			dt.BitPrecision = uint16(dt.Properties[2]) | uint16(dt.Properties[3])<<8
		}
	case ClassString:
		dt.StringPadding = StringPadding(dt.Bits & 0x0f)
		dt.CharSet = CharacterSet(dt.Bits>>4&0x0f)
	case ClassOpaque:
		// the tag is padded to a multiple of 8 bytes
		dt.Properties = d.copyBytes(int(dt.Bits&0xff + 7) &^ 7)
	case ClassTime:
		dt.ByteOrder = ByteOrder(dt.Bits & 0x01)
		dt.BitPrecision = d.u16()
	case ClassReference:
	case ClassVarLen:
		dt.IsVarLenString = dt.Bits&0x0f == 1
		dt.StringPadding = StringPadding(dt.Bits>>4&0x0f)
		dt.CharSet = CharacterSet(dt.Bits>>8&0x0f)
		dt.Base = decodeDatatype(d)
	case ClassArray:
		rank := int(d.u8())
		if dt.Version < 3 {
			d.skip(3)
		}
		dt.Dims = make([]uint32, rank)
		for i := range dt.Dims {
			dt.Dims[i] = d.u32()
		}
		if dt.Version < 3 {
			// permutation indices, never used by the library
			d.skip(4 * rank)
		}
		dt.Base = decodeDatatype(d)
	default:
		// compound and enum properties run to the end of the message
		dt.Properties = d.copyBytes(d.remaining())
	}
	return dt
}

// Serialize writes the datatype. Classes that are only partly decoded are
// written back from Properties.
func (m *Datatype) Serialize(w *binary.Writer) error {
	version := m.Version
	if version == 0 {
		version = 1
	}
	e := &encoder{w: w}
	e.u8(uint8(m.Class) | version<<4)
	e.uint(uint64(m.Bits), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		if len(m.Properties) == 12 {
			e.bytes(m.Properties)
		} else {
			e.bytes(ieeeProperties(m.Size))
		}
	case ClassTime:
		e.u16(m.BitPrecision)
	case ClassString, ClassReference:
	case ClassVarLen:
		if m.Base != nil {
			e.serialize(m.Base)
		}
	case ClassArray:
		e.u8(uint8(len(m.Dims)))
		if version < 3 {
			e.bytes(make([]byte, 3))
		}
		for _, dim := range m.Dims {
			e.u32(dim)
		}
		if version < 3 {
			e.bytes(make([]byte, 4*len(m.Dims)))
		}
		if m.Base != nil {
			e.serialize(m.Base)
		}
	default:
		e.bytes(m.Properties)
	}
	return e.err
}

// ieeeProperties returns the bit offset, precision, exponent and mantissa
// layout and exponent bias of an IEEE 754 float of size bytes.
func ieeeProperties(size uint32) []byte {
	switch size {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
	}
	return make([]byte, 12)
}

// NewFixedPointDatatype returns an integer type of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		Bits:         bits,
		Size:         size,
		ByteOrder:    order,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype returns an IEEE 754 type of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	// bit 5 marks an implied leading mantissa bit; the sign position sits
	// in the second byte
	bits := uint32(order) | 1<<5 | (size*8-1)<<8
	props := ieeeProperties(size)
	return &Datatype{
		Class:        ClassFloatPoint,
		Bits:         bits,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Properties:   props,
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		Bits:          uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns the variable-length string type written
// by h5py.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		Bits:           1 | uint32(charset)<<8,
		Size:           16,
		CharSet:        charset,
		IsVarLenString: true,
		Base:           NewFixedPointDatatype(1, false, OrderLE),
	}
}
