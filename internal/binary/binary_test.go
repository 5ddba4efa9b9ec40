package binary

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buffer is a growable io.WriterAt and io.ReaderAt.
type buffer struct {
	b []byte
}

func (b *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.b) {
		b.b = append(b.b, make([]byte, end-len(b.b))...)
	}
	return copy(b.b[off:], p), nil
}

func (b *buffer) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(b.b).ReadAt(p, off)
}

func TestRoundTrip(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 2},
	} {
		buf := &buffer{}
		w := NewWriter(buf, cfg)
		must(t, w.WriteUint8(0xAB))
		must(t, w.WriteUint16(0x1234))
		must(t, w.WriteUint32(0xDEADBEEF))
		must(t, w.WriteUint64(0x123456789ABCDEF0))
		must(t, w.WriteOffset(0xCAFE))
		must(t, w.WriteLength(0x0BAD))
		must(t, w.WriteUintN(0x0A0B0C, 3))
		must(t, w.WriteZeros(2))

		want := int64(1 + 2 + 4 + 8 + cfg.OffsetSize + cfg.LengthSize + 3 + 2)
		if w.Pos() != want {
			t.Fatalf("%v: wrote %d bytes, want %d", cfg.ByteOrder, w.Pos(), want)
		}

		r := NewReader(buf, cfg)
		check(t, r.ReadUint8, 0xAB)
		check(t, r.ReadUint16, 0x1234)
		check(t, r.ReadUint32, 0xDEADBEEF)
		check(t, r.ReadUint64, 0x123456789ABCDEF0)
		check(t, r.ReadOffset, 0xCAFE)
		check(t, r.ReadLength, 0x0BAD)
		check(t, func() (uint64, error) { return r.ReadUintN(3) }, 0x0A0B0C)
		check(t, func() (uint64, error) { return r.ReadUintN(2) }, 0)
	}
}

func TestByteOrder(t *testing.T) {
	buf := &buffer{}
	must(t, NewWriter(buf, Config{ByteOrder: binary.BigEndian, OffsetSize: 8, LengthSize: 8}).WriteUint32(0x12345678))
	if want := []byte{0x12, 0x34, 0x56, 0x78}; !bytes.Equal(buf.b, want) {
		t.Errorf("big endian: got % x, want % x", buf.b, want)
	}

	buf = &buffer{}
	must(t, NewWriter(buf, DefaultConfig()).WriteUint32(0x12345678))
	if want := []byte{0x78, 0x56, 0x34, 0x12}; !bytes.Equal(buf.b, want) {
		t.Errorf("little endian: got % x, want % x", buf.b, want)
	}
}

func TestUndefinedOffset(t *testing.T) {
	for _, size := range []int{2, 4, 8} {
		cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: size, LengthSize: 8}
		buf := &buffer{}
		w := NewWriter(buf, cfg)
		must(t, w.WriteOffset(w.UndefinedOffset()))

		r := NewReader(buf, cfg)
		addr, err := r.ReadOffset()
		if err != nil {
			t.Fatal(err)
		}
		if !r.IsUndefinedOffset(addr) {
			t.Errorf("size %d: %#x not undefined", size, addr)
		}
		if r.IsUndefinedOffset(addr - 1) {
			t.Errorf("size %d: %#x reported undefined", size, addr-1)
		}
	}
}

func TestPositioning(t *testing.T) {
	buf := &buffer{b: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}}
	r := NewReader(buf, DefaultConfig())

	r.Skip(3)
	r.Align(8)
	if r.Pos() != 8 {
		t.Fatalf("aligned to %d, want 8", r.Pos())
	}
	r.Align(8)
	if r.Pos() != 8 {
		t.Fatalf("aligned position moved to %d", r.Pos())
	}

	peek, err := r.Peek(2)
	if err != nil || !bytes.Equal(peek, []byte{8, 9}) {
		t.Fatalf("Peek = % x, %v", peek, err)
	}
	if r.Pos() != 8 {
		t.Errorf("Peek moved position to %d", r.Pos())
	}

	// reads up to the last byte succeed, reads past it fail
	tail, err := r.At(15).ReadBytes(2)
	if err != nil || !bytes.Equal(tail, []byte{15, 16}) {
		t.Fatalf("ReadBytes at end = % x, %v", tail, err)
	}
	if _, err := r.At(16).ReadBytes(2); err == nil {
		t.Error("reading past the end succeeded")
	}
	if r.Pos() != 8 {
		t.Errorf("At changed the original position to %d", r.Pos())
	}
}

func TestLookup3Checksum(t *testing.T) {
	// Values from the HDF5 library's H5_checksum_lookup3 with seed 0.
	if got := Lookup3Checksum(nil); got != 0xdeadbeef {
		t.Errorf("empty input: %#08x, want 0xdeadbeef", got)
	}

	seen := make(map[uint32]int)
	for n := 0; n <= 24; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		sum := Lookup3Checksum(data)
		if prev, dup := seen[sum]; dup {
			t.Errorf("lengths %d and %d share checksum %#08x", prev, n, sum)
		}
		seen[sum] = n
		if Lookup3Checksum(data) != sum {
			t.Errorf("length %d: checksum not deterministic", n)
		}
	}
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		data []byte
		want uint32
	}{
		{nil, 0},
		{[]byte{0x01, 0x02}, 0x02010201},
		{[]byte{0x01, 0x02, 0x03}, 0x04050204},
	}
	for _, tt := range tests {
		if got := Fletcher32(tt.data); got != tt.want {
			t.Errorf("Fletcher32(% x) = %#08x, want %#08x", tt.data, got, tt.want)
		}
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func check[T uint8 | uint16 | uint32 | uint64](t *testing.T, read func() (T, error), want T) {
	t.Helper()
	got, err := read()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("read %#x, want %#x", got, want)
	}
}
