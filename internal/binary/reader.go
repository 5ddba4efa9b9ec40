package binary

import (
	"errors"
	"io"
)

// Reader decodes fields from an io.ReaderAt. Each Reader has its own
// position; At derives a new one.
type Reader struct {
	cursor
	r io.ReaderAt
}

// NewReader returns a Reader positioned at 0.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{cursor: cursor{cfg: cfg}, r: r}
}

// At returns a reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{cursor: cursor{cfg: r.cfg, pos: offset}, r: r.r}
}

// Peek reads n bytes without moving the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.r.ReadAt(buf, r.pos)
	if err != nil && !(errors.Is(err, io.EOF) && got == n) {
		return nil, err
	}
	return buf, nil
}

// ReadBytes reads n bytes and advances past them.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(len(buf))
	return buf, nil
}

// ReadUintN reads an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.decode(buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.OffsetSize)
}

// ReadLength reads a length field.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.LengthSize)
}

// IsUndefinedOffset reports whether offset is the all-ones "no address"
// value for this file's offset width.
func (r *Reader) IsUndefinedOffset(offset uint64) bool {
	return offset == undefined(r.cfg.OffsetSize)
}
