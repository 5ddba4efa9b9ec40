package superblock

import (
	"errors"

	binpkg "github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// NewSuperblock returns a version 2 superblock with 8-byte fields. The
// caller fills in the root group and EOF addresses.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 2, OffsetSize: 8, LengthSize: 8}
}

// Size returns the encoded size of the version 2 layout.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Write encodes sb in the version 2 layout at w's position and returns the
// number of bytes written. Versions 0 and 1 are written as version 2, and
// a zero extension address is written as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	buf := &buffer{}
	bw := binpkg.NewWriter(buf, binpkg.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})

	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}
	err := errors.Join(
		bw.WriteBytes(Signature),
		bw.WriteUint8(max(sb.Version, 2)),
		bw.WriteUint8(sb.OffsetSize),
		bw.WriteUint8(sb.LengthSize),
		bw.WriteUint8(sb.Flags),
		bw.WriteOffset(sb.BaseAddress),
		bw.WriteOffset(ext),
		bw.WriteOffset(sb.EOFAddress),
		bw.WriteOffset(sb.RootGroupAddress),
	)
	if err != nil {
		return 0, err
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.b)); err != nil {
		return 0, err
	}
	if err := w.WriteBytes(buf.b); err != nil {
		return 0, err
	}
	return int64(len(buf.b)), nil
}

// buffer is a growable io.WriterAt.
type buffer struct {
	b []byte
}

func (b *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.b) {
		b.b = append(b.b, make([]byte, end-len(b.b))...)
	}
	copy(b.b[off:], p)
	return len(p), nil
}
