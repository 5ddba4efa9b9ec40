// Package heap reads the two HDF5 heaps: local heaps, which hold the member
// names of old-style groups, and global heap collections, which hold
// variable-length data such as strings.
package heap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
)

var (
	localSignature  = []byte("HEAP")
	globalSignature = []byte("GCOL")
)

var (
	ErrInvalidHeap        = errors.New("invalid heap")
	ErrUnsupportedVersion = errors.New("unsupported heap version")
	ErrNotFound           = errors.New("heap object not found")
)

// readPrefix checks the signature, version and 3 reserved bytes that open
// both heap kinds.
func readPrefix(r *binary.Reader, sig []byte, version uint8) error {
	b, err := r.ReadBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(b[:4], sig) {
		return fmt.Errorf("%w: signature %q, want %q", ErrInvalidHeap, b[:4], sig)
	}
	if b[4] != version {
		return fmt.Errorf("%w: %s version %d", ErrUnsupportedVersion, sig, b[4])
	}
	return nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Local is a local heap. Symbol table entries refer to names by their
// byte offset into its data segment.
type Local struct {
	DataAddress uint64
	FreeOffset  uint64
	data        []byte
}

// ReadLocal reads the local heap at address and its data segment.
func ReadLocal(r *binary.Reader, address uint64) (*Local, error) {
	hr := r.At(int64(address))
	if err := readPrefix(hr, localSignature, 0); err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	h := &Local{}
	if h.FreeOffset, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.DataAddress, err = hr.ReadOffset(); err != nil {
		return nil, err
	}
	if h.data, err = r.At(int64(h.DataAddress)).ReadBytes(int(size)); err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", h.DataAddress, err)
	}
	return h, nil
}

// String returns the NUL-terminated string at offset, or "" past the end
// of the data segment.
func (h *Local) String(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	return cstring(h.data[offset:])
}

// Collection is a global heap collection of numbered objects.
type Collection struct {
	Address uint64
	Size    uint64
	objects map[uint16][]byte
}

// ReadCollection reads the global heap collection at address. Objects are
// read until the free-space object (index 0) or the end of the collection.
func ReadCollection(r *binary.Reader, address uint64) (*Collection, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("%w: collection address %#x", ErrInvalidHeap, address)
	}
	hr := r.At(int64(address))
	if err := readPrefix(hr, globalSignature, 1); err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", address, err)
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	c := &Collection{Address: address, Size: size, objects: make(map[uint16][]byte)}
	end := int64(address + size)
	// index (2), reference count (2), reserved (4), size, data padded to 8
	objectHeader := int64(8 + r.LengthSize())
	for hr.Pos()+objectHeader <= end {
		index, err := hr.ReadUint16()
		if err != nil || index == 0 {
			break
		}
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil || hr.Pos()+int64(n) > end {
			break
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			break
		}
		c.objects[index] = data
		hr.Skip(int64((8 - n%8) % 8))
	}
	return c, nil
}

// Object returns a copy of object index.
func (c *Collection) Object(index uint16) ([]byte, error) {
	data, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d in collection %d", ErrNotFound, index, c.Address)
	}
	return bytes.Clone(data), nil
}

// String returns object index up to its first NUL.
func (c *Collection) String(index uint16) (string, error) {
	data, ok := c.objects[index]
	if !ok {
		return "", fmt.Errorf("%w: index %d in collection %d", ErrNotFound, index, c.Address)
	}
	return cstring(data), nil
}

// ID locates an object in a global heap. A zero Collection is a null
// reference.
type ID struct {
	Collection uint64
	Index      uint32
}

// ParseID decodes a collection address of offsetSize bytes followed by a
// 4-byte object index, both little-endian.
func ParseID(data []byte, offsetSize int) (ID, error) {
	switch offsetSize {
	case 2, 4, 8:
	default:
		return ID{}, fmt.Errorf("unsupported offset size %d", offsetSize)
	}
	if len(data) < offsetSize+4 {
		return ID{}, fmt.Errorf("global heap ID needs %d bytes, have %d", offsetSize+4, len(data))
	}

	var id ID
	for i := offsetSize - 1; i >= 0; i-- {
		id.Collection = id.Collection<<8 | uint64(data[i])
	}
	for i := offsetSize + 3; i >= offsetSize; i-- {
		id.Index = id.Index<<8 | uint32(data[i])
	}
	return id, nil
}

// Cache reads each collection once. It is not safe for concurrent use.
type Cache struct {
	r           *binary.Reader
	collections map[uint64]*Collection
}

func NewCache(r *binary.Reader) *Cache {
	return &Cache{r: r, collections: make(map[uint64]*Collection)}
}

// String resolves id to a string. Null references resolve to "".
func (c *Cache) String(id ID) (string, error) {
	if id.Collection == 0 {
		return "", nil
	}
	gc, ok := c.collections[id.Collection]
	if !ok {
		var err error
		if gc, err = ReadCollection(c.r, id.Collection); err != nil {
			return "", err
		}
		c.collections[id.Collection] = gc
	}
	return gc.String(uint16(id.Index))
}
