// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset in a file. Version 1 and 2 headers
// are read; only version 2 headers are written.
package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

var (
	SignatureV2           = []byte("OHDR")
	continuationSignature = []byte("OCHK")
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
	ErrMessageTooLarge    = errors.New("header message exceeds 64 KiB")
)

// v2 header flags.
const (
	flagSizeMask      = 0x03
	flagCreationOrder = 0x04
	flagPhaseChange   = 0x10
	flagTimes         = 0x20
)

// v1 prefix: version, reserved, message count, reference count, header
// size and 4 bytes of alignment padding.
const prefixSizeV1 = 16

// Header is a parsed object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8 // v2 only
	RefCount uint32
	Messages []message.Message

	// Seconds since the epoch, set when a v2 header stores times.
	AccessTime uint32
	ModTime    uint32
	ChangeTime uint32
	BirthTime  uint32
}

// span is one block of header messages. v2 blocks are checksummed over
// [addr, addr+size-4) and messages begin start bytes into the block.
type span struct {
	addr  uint64
	size  uint64
	start int
}

// Read parses the object header at address and every continuation block
// it references. Messages that fail to decode are skipped.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}

	h := &Header{Address: address}
	var first span
	var order bool
	switch {
	case bytes.Equal(peek, SignatureV2):
		first, order, err = h.readPrefixV2(hr)
	case peek[0] == 1:
		first, err = h.readPrefixV1(hr)
	default:
		return nil, fmt.Errorf("%w: unknown format at address %d", ErrInvalidHeader, address)
	}
	if err == nil {
		p := &parser{r: r, h: h, order: order, pending: []span{first}, seen: map[uint64]bool{}}
		err = p.run()
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	return h, nil
}

func (h *Header) readPrefixV1(r *binary.Reader) (span, error) {
	b, err := r.ReadBytes(prefixSizeV1)
	if err != nil {
		return span{}, err
	}
	h.Version = 1
	h.RefCount = le32(b[4:])
	return span{addr: h.Address + prefixSizeV1, size: uint64(le32(b[8:]))}, nil
}

func (h *Header) readPrefixV2(r *binary.Reader) (span, bool, error) {
	start := r.Pos()
	r.Skip(int64(len(SignatureV2)))
	version, err := r.ReadUint8()
	if err != nil {
		return span{}, false, err
	}
	if version != 2 {
		return span{}, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return span{}, false, err
	}
	h.Version, h.Flags, h.RefCount = 2, flags, 1

	if flags&flagTimes != 0 {
		for _, t := range []*uint32{&h.AccessTime, &h.ModTime, &h.ChangeTime, &h.BirthTime} {
			if *t, err = r.ReadUint32(); err != nil {
				return span{}, false, err
			}
		}
	}
	if flags&flagPhaseChange != 0 {
		r.Skip(4) // max compact and min dense attribute counts
	}
	size, err := r.ReadUintN(1 << (flags & flagSizeMask))
	if err != nil {
		return span{}, false, err
	}
	prefix := r.Pos() - start
	return span{addr: h.Address, size: uint64(prefix) + size + 4, start: int(prefix)}, flags&flagCreationOrder != 0, nil
}

// parser walks header blocks in file order, queueing continuation blocks
// behind the block that references them.
type parser struct {
	r       *binary.Reader
	h       *Header
	order   bool
	pending []span
	seen    map[uint64]bool
}

func (p *parser) run() error {
	for len(p.pending) > 0 {
		s := p.pending[0]
		p.pending = p.pending[1:]
		if p.seen[s.addr] {
			continue
		}
		p.seen[s.addr] = true

		body, err := p.block(s)
		if err != nil {
			return err
		}
		p.messages(body)
	}
	return nil
}

// block reads s and returns its message bytes.
func (p *parser) block(s span) ([]byte, error) {
	buf, err := p.r.At(int64(s.addr)).ReadBytes(int(s.size))
	if err != nil {
		return nil, err
	}
	if p.h.Version == 1 {
		return buf, nil
	}

	if s.start == 0 {
		if !bytes.HasPrefix(buf, continuationSignature) {
			return nil, fmt.Errorf("%w: no continuation signature at %d", ErrInvalidHeader, s.addr)
		}
		s.start = len(continuationSignature)
	}
	end := len(buf) - 4
	if end < s.start {
		return nil, fmt.Errorf("%w: block at %d is %d bytes", ErrInvalidHeader, s.addr, len(buf))
	}
	if binary.Lookup3Checksum(buf[:end]) != le32(buf[end:]) {
		return nil, fmt.Errorf("%w at %d", ErrChecksumMismatch, s.addr)
	}
	return buf[s.start:end], nil
}

func (p *parser) messages(b []byte) {
	for {
		typ, flags, data, rest, ok := p.next(b)
		if !ok {
			return
		}
		b = rest

		switch typ {
		case message.TypeNIL:
		case message.TypeObjectHeaderContinuation:
			c, err := message.ParseContinuation(data, p.r)
			if err == nil {
				p.pending = append(p.pending, span{addr: c.Offset, size: c.Length})
			}
		default:
			msg, err := message.Parse(typ, data, flags, p.r)
			if err == nil {
				p.h.Messages = append(p.h.Messages, msg)
			}
		}
	}
}

// next splits the first message off b. Trailing bytes too short for a
// message are a gap and end the block.
func (p *parser) next(b []byte) (typ message.Type, flags uint8, data, rest []byte, ok bool) {
	var size int
	if p.h.Version == 1 {
		if len(b) < 8 {
			return
		}
		typ, size, flags = message.Type(le16(b)), int(le16(b[2:])), b[4]
		b = b[8:]
	} else {
		n := 4
		if p.order {
			n += 2
		}
		if len(b) < n {
			return
		}
		typ, size, flags = message.Type(b[0]), int(le16(b[1:])), b[3]
		b = b[n:]
	}
	if size > len(b) {
		return
	}
	data, rest = b[:size], b[size:]
	if p.h.Version == 1 {
		pad := min((8-size%8)%8, len(rest))
		rest = rest[pad:]
	}
	return typ, flags, data, rest, true
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// GetMessage returns the first message of the given type, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns all messages of the given type in header order.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var result []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			result = append(result, msg)
		}
	}
	return result
}

func find[T message.Message](h *Header, typ message.Type) T {
	m, _ := h.GetMessage(typ).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return find[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return find[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return find[*message.DataLayout](h, message.TypeDataLayout)
}

// FilterPipeline returns nil for unfiltered datasets.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	return find[*message.FilterPipeline](h, message.TypeFilterPipeline)
}
