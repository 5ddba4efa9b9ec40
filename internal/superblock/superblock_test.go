package superblock

import (
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// image is an in-memory file.
type image []byte

func (m image) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, nil
	}
	return copy(p, m[off:]), nil
}

func (m *image) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(*m) {
		*m = append(*m, make([]byte, end-len(*m))...)
	}
	return copy((*m)[off:], p), nil
}

func encode(t *testing.T, sb *Superblock, at int64) image {
	t.Helper()
	var m image
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: int(sb.OffsetSize), LengthSize: int(sb.LengthSize)}
	n, err := sb.Write(binpkg.NewWriter(&m, cfg).At(at))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if int(n) != sb.Size() {
		t.Errorf("wrote %d bytes, Size() = %d", n, sb.Size())
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	for _, width := range []uint8{4, 8} {
		sb := NewSuperblock()
		sb.OffsetSize, sb.LengthSize = width, width
		sb.RootGroupAddress = 96
		sb.EOFAddress = 4096

		got, err := Read(encode(t, sb, 0))
		if err != nil {
			t.Fatalf("width %d: Read: %v", width, err)
		}
		if got.Version != 2 || got.OffsetSize != width || got.LengthSize != width {
			t.Errorf("width %d: got version %d sizes %d/%d", width, got.Version, got.OffsetSize, got.LengthSize)
		}
		if got.RootGroupAddress != 96 || got.EOFAddress != 4096 {
			t.Errorf("width %d: root %d eof %d", width, got.RootGroupAddress, got.EOFAddress)
		}
		if cfg := got.ReaderConfig(); cfg.OffsetSize != int(width) || cfg.ByteOrder != binary.LittleEndian {
			t.Errorf("width %d: ReaderConfig = %+v", width, cfg)
		}
	}
}

func TestUserBlock(t *testing.T) {
	sb := NewSuperblock()
	sb.RootGroupAddress = 600
	m := encode(t, sb, 512)

	got, err := Read(m)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Offset != 512 || got.RootGroupAddress != 600 {
		t.Errorf("offset %d root %d, want 512 and 600", got.Offset, got.RootGroupAddress)
	}
}

func TestChecksumMismatch(t *testing.T) {
	sb := NewSuperblock()
	sb.EOFAddress = 1024
	m := encode(t, sb, 0)
	m[len(m)-1] ^= 0xff

	if _, err := Read(m); !errors.Is(err, ErrInvalidSuperblock) {
		t.Errorf("expected ErrInvalidSuperblock, got %v", err)
	}
}

func TestReadVersion0(t *testing.T) {
	m := make(image, 256)
	copy(m, Signature)
	m[13], m[14] = 8, 8 // offset and length sizes
	binary.LittleEndian.PutUint16(m[16:], 4)
	binary.LittleEndian.PutUint16(m[18:], 16)
	binary.LittleEndian.PutUint64(m[40:], 1024) // EOF
	binary.LittleEndian.PutUint64(m[64:], 128)  // root object header
	binary.LittleEndian.PutUint32(m[72:], 1)    // scratch pad holds a symbol table
	binary.LittleEndian.PutUint64(m[80:], 136)
	binary.LittleEndian.PutUint64(m[88:], 680)

	sb, err := Read(m)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if sb.Version != 0 || sb.GroupLeafNodeK != 4 || sb.GroupInternalNodeK != 16 {
		t.Errorf("version %d K %d/%d", sb.Version, sb.GroupLeafNodeK, sb.GroupInternalNodeK)
	}
	if sb.EOFAddress != 1024 || sb.RootGroupAddress != 128 {
		t.Errorf("eof %d root %d", sb.EOFAddress, sb.RootGroupAddress)
	}
	if sb.RootGroupBTreeAddress != 136 || sb.RootGroupLocalHeapAddress != 680 {
		t.Errorf("scratch pad %d/%d, want 136/680", sb.RootGroupBTreeAddress, sb.RootGroupLocalHeapAddress)
	}
}

func TestReadVersion1(t *testing.T) {
	m := make(image, 256)
	copy(m, Signature)
	m[8] = 1
	m[13], m[14] = 8, 8
	binary.LittleEndian.PutUint16(m[24:], 32)   // indexed storage K
	binary.LittleEndian.PutUint64(m[44:], 2048) // EOF
	binary.LittleEndian.PutUint64(m[68:], 200)  // root object header

	sb, err := Read(m)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if sb.IndexedStorageK != 32 || sb.EOFAddress != 2048 || sb.RootGroupAddress != 200 {
		t.Errorf("K %d eof %d root %d", sb.IndexedStorageK, sb.EOFAddress, sb.RootGroupAddress)
	}
	if sb.RootGroupBTreeAddress != 0 {
		t.Errorf("uncached scratch pad decoded as %d", sb.RootGroupBTreeAddress)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(make(image, 4096)); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("zeros: expected ErrNotHDF5, got %v", err)
	}
	if _, err := Read(image(Signature[:4])); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("short file: expected ErrNotHDF5, got %v", err)
	}

	m := make(image, 256)
	copy(m, Signature)
	m[8] = 99
	if _, err := Read(m); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("version 99: expected ErrUnsupportedVersion, got %v", err)
	}

	m[8] = 2
	m[9], m[10] = 3, 8
	if _, err := Read(m); !errors.Is(err, ErrInvalidSuperblock) {
		t.Errorf("offset size 3: expected ErrInvalidSuperblock, got %v", err)
	}
}
