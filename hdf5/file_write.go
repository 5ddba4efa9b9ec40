package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	binpkg "github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
	"github.com/robert-malhotra/go-velociraptor/internal/superblock"
)

// Create creates a new HDF5 file with a version 2 superblock. Any existing
// file at path is truncated. Group headers are written on Flush or Close.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	osFile, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	cfg := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: options.offsetSize,
		LengthSize: options.lengthSize,
	}
	writer := binpkg.NewWriter(osFile, cfg)

	sb := superblock.NewSuperblock()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	// The root header goes right after the superblock so a file closed
	// without changes is still valid.
	rootHeader, err := object.Encode(cfg, object.NewGroupHeader(nil, nil), object.MinGroupChunkSize)
	if err != nil {
		return fail(err)
	}
	sbSize := uint64(sb.Size())
	sb.RootGroupAddress = sbSize
	sb.EOFAddress = sbSize + uint64(len(rootHeader))

	if _, err := sb.Write(writer); err != nil {
		return fail(err)
	}
	if err := writer.At(int64(sbSize)).WriteBytes(rootHeader); err != nil {
		return fail(err)
	}

	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, cfg),
		superblock: sb,
		writable:   true,
		writer:     writer,
		eof:        sb.EOFAddress,
	}
	f.root = &Group{file: f, path: "/", addr: sbSize, state: &groupState{}}
	f.track(f.root)
	return f, nil
}

// OpenReadWrite opens an existing HDF5 file for adding groups, datasets and
// attributes. New objects are appended after the current end of file.
func OpenReadWrite(path string) (*File, error) {
	osFile, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	if sb.Version < 2 {
		// rewriting the root address needs the v2 superblock layout
		osFile.Close()
		return nil, fmt.Errorf("superblock version %d: %w", sb.Version, ErrUnsupported)
	}

	cfg := sb.ReaderConfig()
	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, cfg),
		superblock: sb,
		writable:   true,
		writer:     binpkg.NewWriter(osFile, cfg),
		eof:        sb.EOFAddress,
	}

	root, err := f.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f.root = root
	f.track(root)
	return f, nil
}

// IsWritable returns true if the file was opened for writing.
func (f *File) IsWritable() bool {
	return f.writable
}

// Flush writes the headers of modified groups, deepest first so that each
// parent links to its children's final addresses, then the superblock.
func (f *File) Flush() error {
	if !f.writable {
		return nil
	}
	if f.closed {
		return ErrClosed
	}

	groups := make([]*Group, 0, len(f.groups))
	for _, g := range f.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		di, dj := depth(groups[i].path), depth(groups[j].path)
		if di != dj {
			return di > dj
		}
		return groups[i].path < groups[j].path
	})

	for _, g := range groups {
		if g.state == nil || !g.state.dirty {
			continue
		}
		if err := g.writeHeader(); err != nil {
			return fmt.Errorf("writing group %s: %w", g.path, err)
		}
	}

	f.superblock.EOFAddress = f.eof
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return err
	}
	return f.file.Sync()
}

// track registers a group of a writable file so its modifications can be
// flushed.
func (f *File) track(g *Group) {
	if !f.writable {
		return
	}
	if f.groups == nil {
		f.groups = make(map[string]*Group)
	}
	f.groups[g.path] = g
}

func (f *File) allocate(size int64) uint64 {
	addr := f.eof
	f.eof += uint64(size)
	return addr
}

// writeBlock allocates space for data and writes it there.
func (f *File) writeBlock(data []byte) (uint64, error) {
	addr := f.allocate(int64(len(data)))
	if err := f.writer.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, err
	}
	return addr, nil
}

func (f *File) headerConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  f.writer.ByteOrder(),
		OffsetSize: f.writer.OffsetSize(),
		LengthSize: f.writer.LengthSize(),
	}
}
