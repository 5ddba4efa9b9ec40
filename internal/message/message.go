// Package message decodes and encodes the header messages stored in HDF5
// object headers: the shape, element type and storage of datasets, the
// links of groups and the attributes of both.
//
// Message types the library does not interpret are returned as [Unknown].
package message

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// Type is a header message type code.
type Type uint16

const (
	TypeNIL Type = iota
	TypeDataspace
	TypeLinkInfo
	TypeDatatype
	TypeFillValueOld
	TypeFillValue
	TypeLink
	TypeExternalDataFiles
	TypeDataLayout
	TypeBogus
	TypeGroupInfo
	TypeFilterPipeline
	TypeAttribute
	TypeObjectComment
	TypeObjectModTime
	TypeSharedMessageTable
	TypeObjectHeaderContinuation
	TypeSymbolTable
	TypeObjectModTimeOld
	TypeBTreeKValues
	TypeDriverInfo
	TypeAttributeInfo
	TypeObjectRefCount
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Serializable is a message that can be written into a new object header.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
}

// Parse decodes the body of one header message. r supplies the offset and
// length widths of the file.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	d := newDecoder(data, r)
	var msg Message
	switch typ {
	case TypeDataspace:
		msg = decodeDataspace(d)
	case TypeDatatype:
		msg = decodeDatatype(d)
	case TypeDataLayout:
		msg = decodeDataLayout(d)
	case TypeFilterPipeline:
		msg = decodeFilterPipeline(d)
	case TypeFillValue:
		msg = decodeFillValue(d)
	case TypeAttribute:
		msg = decodeAttribute(d)
	case TypeLink:
		msg = decodeLink(d)
	case TypeSymbolTable:
		msg = &SymbolTable{BTreeAddress: d.offset(), LocalHeapAddress: d.offset()}
	case TypeObjectHeaderContinuation:
		msg = &Continuation{Offset: d.offset(), Length: d.length()}
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if d.err != nil {
		return nil, fmt.Errorf("message type %#x: %w", uint16(typ), d.err)
	}
	return msg, nil
}

// ParseContinuation decodes a continuation message body.
func ParseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	msg, err := Parse(TypeObjectHeaderContinuation, data, 0, r)
	if err != nil {
		return nil, err
	}
	return msg.(*Continuation), nil
}

// SerializedSize returns the encoded body size of msg, or 0 when msg
// cannot be serialized.
func SerializedSize(msg Message, w *binary.Writer) int {
	s, ok := msg.(Serializable)
	if !ok {
		return 0
	}
	cfg := binary.DefaultConfig()
	if w != nil {
		cfg.OffsetSize, cfg.LengthSize = w.OffsetSize(), w.LengthSize()
	}
	cw := binary.NewWriter(discard{}, cfg)
	if err := s.Serialize(cw); err != nil {
		return 0
	}
	return int(cw.Pos())
}

type discard struct{}

func (discard) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

// Unknown is a message type that is not interpreted.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }
