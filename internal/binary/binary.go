// Package binary reads and writes the fixed-width little- or big-endian
// fields of an HDF5 file, including the file-specific offset and length
// widths announced by the superblock.
package binary

import (
	"encoding/binary"
	"math"
)

// Config is the field layout of one file.
type Config struct {
	ByteOrder binary.ByteOrder
	// OffsetSize and LengthSize are 2, 4 or 8.
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte offsets and lengths, the
// layout assumed until the superblock says otherwise.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// cursor is the position and layout shared by Reader and Writer.
type cursor struct {
	cfg Config
	pos int64
}

// Pos returns the current position.
func (c *cursor) Pos() int64 { return c.pos }

// Skip moves the position forward by n bytes.
func (c *cursor) Skip(n int64) { c.pos += n }

// Align moves the position to the next multiple of alignment.
func (c *cursor) Align(alignment int64) {
	if alignment > 1 {
		if rem := c.pos % alignment; rem != 0 {
			c.pos += alignment - rem
		}
	}
}

func (c *cursor) OffsetSize() int             { return c.cfg.OffsetSize }
func (c *cursor) LengthSize() int             { return c.cfg.LengthSize }
func (c *cursor) ByteOrder() binary.ByteOrder { return c.cfg.ByteOrder }

// undefined is the all-ones value HDF5 uses for an unset field of size
// bytes.
func undefined(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*size) - 1
}

func (c *cursor) decode(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(c.cfg.ByteOrder.Uint16(buf))
	case 4:
		return uint64(c.cfg.ByteOrder.Uint32(buf))
	case 8:
		return c.cfg.ByteOrder.Uint64(buf)
	}
	// odd widths only appear in little-endian structures
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func (c *cursor) encode(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(v)
	case 2:
		c.cfg.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		c.cfg.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		c.cfg.ByteOrder.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
}
