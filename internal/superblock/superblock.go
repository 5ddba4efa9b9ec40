// Package superblock reads and writes the HDF5 superblock, the record at
// the start of a file that fixes the width of addresses and lengths and
// locates the root group.
//
// Versions 0 to 3 are read. Files are always written with the version 2
// layout, which is the smallest one carrying a checksum.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// a superblock may follow a user block of up to 2048 bytes
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock")
)

// Superblock holds the file-level metadata needed to read the rest of the
// file.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Versions 0 and 1 only. The B-tree and heap addresses come from the
	// root entry's scratch pad and are zero when it is not cached there.
	GroupLeafNodeK            uint16
	GroupInternalNodeK        uint16
	IndexedStorageK           uint16
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// Offset is where the signature was found.
	Offset int64
}

// Read finds the signature at one of the standard offsets and decodes the
// superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		n, err := r.ReadAt(head, off)
		if n < len(head) {
			if err == nil || errors.Is(err, io.EOF) {
				continue
			}
			return nil, err
		}
		if !bytes.Equal(head[:len(Signature)], Signature) {
			continue
		}

		rd := binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + int64(len(head)))
		var sb *Superblock
		switch v := head[len(Signature)]; v {
		case 0, 1:
			sb, err = readV0(rd, v)
		case 2, 3:
			sb, err = readV2(rd, v, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		if err != nil {
			return nil, err
		}
		sb.Offset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// readV0 decodes versions 0 and 1, which differ only by the indexed
// storage K field. rd is positioned after the version byte.
func readV0(rd *binpkg.Reader, version uint8) (*Superblock, error) {
	fixed, err := rd.ReadBytes(15)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:            version,
		OffsetSize:         fixed[4],
		LengthSize:         fixed[5],
		GroupLeafNodeK:     binary.LittleEndian.Uint16(fixed[7:]),
		GroupInternalNodeK: binary.LittleEndian.Uint16(fixed[9:]),
	}
	if version == 1 {
		if sb.IndexedStorageK, err = rd.ReadUint16(); err != nil {
			return nil, err
		}
		rd.Skip(2)
	}
	if err := sb.checkSizes(); err != nil {
		return nil, err
	}

	// base, free space, EOF, driver info, then the root entry's link name
	// offset and object header address
	addrs, err := readAddrs(rd, int(sb.OffsetSize), 6)
	if err != nil {
		return nil, err
	}
	sb.BaseAddress = addrs[0]
	sb.EOFAddress = addrs[2]
	sb.RootGroupAddress = addrs[5]

	cacheType, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}
	rd.Skip(4)
	if cacheType == 1 {
		pad, err := readAddrs(rd, int(sb.OffsetSize), 2)
		if err != nil {
			return nil, err
		}
		sb.RootGroupBTreeAddress, sb.RootGroupLocalHeapAddress = pad[0], pad[1]
	}
	return sb, nil
}

// readV2 decodes versions 2 and 3 and verifies the checksum, which covers
// everything from the signature up to the checksum field.
func readV2(rd *binpkg.Reader, version uint8, start int64) (*Superblock, error) {
	fixed, err := rd.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:    version,
		OffsetSize: fixed[0],
		LengthSize: fixed[1],
		Flags:      fixed[2],
	}
	if err := sb.checkSizes(); err != nil {
		return nil, err
	}

	addrs, err := readAddrs(rd, int(sb.OffsetSize), 4)
	if err != nil {
		return nil, err
	}
	sb.BaseAddress = addrs[0]
	sb.ExtensionAddress = addrs[1]
	sb.EOFAddress = addrs[2]
	sb.RootGroupAddress = addrs[3]

	body, err := rd.At(start).ReadBytes(int(rd.Pos() - start))
	if err != nil {
		return nil, err
	}
	stored, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}
	if sum := binpkg.Lookup3Checksum(body); sum != stored {
		return nil, fmt.Errorf("%w: checksum %#08x, want %#08x", ErrInvalidSuperblock, sum, stored)
	}
	return sb, nil
}

func readAddrs(rd *binpkg.Reader, size, n int) ([]uint64, error) {
	addrs := make([]uint64, n)
	for i := range addrs {
		v, err := rd.ReadUintN(size)
		if err != nil {
			return nil, err
		}
		addrs[i] = v
	}
	return addrs, nil
}

func (sb *Superblock) checkSizes() error {
	for _, s := range []uint8{sb.OffsetSize, sb.LengthSize} {
		if s != 2 && s != 4 && s != 8 {
			return fmt.Errorf("%w: field width %d", ErrInvalidSuperblock, s)
		}
	}
	return nil
}

// ReaderConfig returns the field layout announced by the superblock.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}
