package message

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// ErrTruncated is returned when a message body ends before its fields do.
var ErrTruncated = errors.New("message truncated")

// decoder reads the little-endian fields of one message body. The first
// short read sets err; later reads return zero values.
type decoder struct {
	b   []byte
	pos int
	cfg binary.Config
	err error
}

func newDecoder(data []byte, r *binary.Reader) *decoder {
	cfg := binary.DefaultConfig()
	if r != nil {
		cfg.OffsetSize, cfg.LengthSize = r.OffsetSize(), r.LengthSize()
	}
	return &decoder{b: data, cfg: cfg}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

// sub returns a decoder over the next n bytes and skips past them.
func (d *decoder) sub(n int) *decoder {
	return &decoder{b: d.bytes(n), cfg: d.cfg}
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.b) {
		d.err = ErrTruncated
		return nil
	}
	p := d.b[d.pos : d.pos+n]
	d.pos += n
	return p
}

func (d *decoder) uint(n int) uint64 {
	var v uint64
	for i, c := range d.bytes(n) {
		v |= uint64(c) << (8 * i)
	}
	return v
}

func (d *decoder) u8() uint8      { return uint8(d.uint(1)) }
func (d *decoder) u16() uint16    { return uint16(d.uint(2)) }
func (d *decoder) u32() uint32    { return uint32(d.uint(4)) }
func (d *decoder) u64() uint64    { return d.uint(8) }
func (d *decoder) offset() uint64 { return d.uint(d.cfg.OffsetSize) }
func (d *decoder) length() uint64 { return d.uint(d.cfg.LengthSize) }
func (d *decoder) skip(n int)     { d.bytes(n) }
func (d *decoder) remaining() int { return len(d.b) - d.pos }
func (d *decoder) rest() []byte   { return d.bytes(d.remaining()) }
func (d *decoder) copyBytes(n int) []byte {
	return append([]byte(nil), d.bytes(n)...)
}

// align skips to the next multiple of n from the start of the body.
func (d *decoder) align(n int) {
	if r := d.pos % n; r != 0 {
		d.skip(n - r)
	}
}

// cstring reads an n-byte field holding a NUL-terminated or NUL-padded
// string.
func (d *decoder) cstring(n int) string {
	p := d.bytes(n)
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// encoder writes fields through a binary.Writer, keeping the first error.
type encoder struct {
	w   *binary.Writer
	err error
}

func (e *encoder) do(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) uint(v uint64, n int) {
	if e.err == nil {
		e.do(e.w.WriteUintN(v, n))
	}
}

func (e *encoder) u8(v uint8)   { e.uint(uint64(v), 1) }
func (e *encoder) u16(v uint16) { e.uint(uint64(v), 2) }
func (e *encoder) u32(v uint32) { e.uint(uint64(v), 4) }

func (e *encoder) offset(v uint64) {
	if e.err == nil {
		e.do(e.w.WriteOffset(v))
	}
}

func (e *encoder) length(v uint64) {
	if e.err == nil {
		e.do(e.w.WriteLength(v))
	}
}

func (e *encoder) bytes(p []byte) {
	if e.err == nil {
		e.do(e.w.WriteBytes(p))
	}
}

// cstring writes s followed by a NUL.
func (e *encoder) cstring(s string) {
	e.bytes([]byte(s))
	e.u8(0)
}

func (e *encoder) serialize(s Serializable) {
	if e.err == nil {
		e.do(s.Serialize(e.w))
	}
}

// sizeBytes is the smallest of 1, 2, 4 or 8 bytes that holds v, as used by
// length fields whose width is announced in a flag.
func sizeBytes(v uint64) int {
	switch {
	case v <= 0xff:
		return 1
	case v <= 0xffff:
		return 2
	case v <= 0xffffffff:
		return 4
	}
	return 8
}
