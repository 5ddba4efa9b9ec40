// Package btree reads version 1 B-trees ("TREE"). They index the members of
// groups written with a v0 or v1 superblock, and the chunks of datasets
// whose layout message predates version 4.
package btree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/heap"
)

var (
	treeSignature   = []byte("TREE")
	symbolSignature = []byte("SNOD")
)

var ErrInvalidNode = errors.New("invalid B-tree node")

const (
	groupNode uint8 = 0
	chunkNode uint8 = 1
)

// walk calls leaf with each child of the leaf nodes below addr, in key
// order, along with the key to its left. Levels must fall by at least one
// per step, which also rules out cycles.
func walk[K any](r *binary.Reader, addr uint64, typ uint8, above int, readKey func(*binary.Reader) (K, error), leaf func(K, uint64) error) error {
	nr := r.At(int64(addr))
	b, err := nr.ReadBytes(8)
	if err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	switch {
	case !bytes.Equal(b[:4], treeSignature):
		return fmt.Errorf("%w: signature %q at %d", ErrInvalidNode, b[:4], addr)
	case b[4] != typ:
		return fmt.Errorf("%w: node type %d at %d, want %d", ErrInvalidNode, b[4], addr, typ)
	case int(b[5]) >= above:
		return fmt.Errorf("%w: level %d at %d below level %d", ErrInvalidNode, b[5], addr, above)
	}
	level, used := int(b[5]), int(b[6])|int(b[7])<<8
	nr.Skip(2 * int64(nr.OffsetSize())) // sibling addresses

	for range used {
		key, err := readKey(nr)
		if err != nil {
			return err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		if level == 0 {
			err = leaf(key, child)
		} else {
			err = walk(r, child, typ, level, readKey, leaf)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GroupEntry is one member of an old-style group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	LinkType      uint32 // 0 hard, 1 soft
	SoftLinkValue string
}

// symbol table entry cache types
const (
	cacheNone uint32 = iota
	cacheHeader
	cacheSoftLink
)

// ReadGroupEntries lists the members of the group B-tree at addr. Names are
// offsets into names, the group's local heap.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	var entries []GroupEntry
	// group keys are heap offsets of the largest name to their left
	err := walk(r, addr, groupNode, 1<<8, (*binary.Reader).ReadLength, func(_ uint64, snod uint64) error {
		got, err := readSymbolNode(r, snod, names)
		entries = append(entries, got...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	b, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol table node at %d: %w", addr, err)
	}
	if !bytes.Equal(b[:4], symbolSignature) {
		return nil, fmt.Errorf("%w: symbol table signature %q at %d", ErrInvalidNode, b[:4], addr)
	}
	if b[4] != 1 {
		return nil, fmt.Errorf("%w: symbol table node version %d", ErrInvalidNode, b[4])
	}

	n := int(b[6]) | int(b[7])<<8
	entries := make([]GroupEntry, 0, n)
	for i := range n {
		e, err := readSymbolEntry(nr, names)
		if err != nil {
			return nil, fmt.Errorf("symbol %d at %d: %w", i, addr, err)
		}
		if e.Name != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// readSymbolEntry decodes name offset, header address, cache type, 4
// reserved bytes and a 16-byte scratch pad.
func readSymbolEntry(r *binary.Reader, names *heap.Local) (GroupEntry, error) {
	nameOffset, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	objAddr, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	b, err := r.ReadBytes(24)
	if err != nil {
		return GroupEntry{}, err
	}

	e := GroupEntry{Name: names.String(nameOffset), ObjectAddress: objAddr}
	if le32(b) == cacheSoftLink {
		e.LinkType = 1
		e.ObjectAddress = 0
		e.SoftLinkValue = names.String(uint64(le32(b[8:])))
	}
	return e, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the chunk's first element in dataset coordinates.
	Offset []uint64

	// FilterMask bit i set means filter i was skipped for this chunk.
	FilterMask uint32

	// Size is the stored (possibly compressed) size in bytes.
	Size uint32

	Address uint64
}

// ReadChunks lists the allocated chunks of the chunk B-tree at addr for a
// dataset of rank ndims. Keys carry ndims+1 offsets; the last indexes the
// element size and is dropped.
func ReadChunks(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	readKey := func(nr *binary.Reader) (ChunkEntry, error) {
		b, err := nr.ReadBytes(8 + 8*(ndims+1))
		if err != nil {
			return ChunkEntry{}, fmt.Errorf("chunk key: %w", err)
		}
		e := ChunkEntry{Size: le32(b), FilterMask: le32(b[4:]), Offset: make([]uint64, ndims)}
		for d := range e.Offset {
			o := b[8+8*d:]
			e.Offset[d] = uint64(le32(o)) | uint64(le32(o[4:]))<<32
		}
		return e, nil
	}

	var entries []ChunkEntry
	err := walk(r, addr, chunkNode, 1<<8, readKey, func(e ChunkEntry, child uint64) error {
		if e.Size > 0 && !r.IsUndefinedOffset(child) {
			e.Address = child
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
