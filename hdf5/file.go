package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
	"github.com/robert-malhotra/go-velociraptor/internal/superblock"
)

// File represents an open HDF5 file.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	// Write support. Groups touched in this session are tracked by path so
	// their headers can be rewritten bottom-up on Flush. Space is only ever
	// appended at eof.
	writable bool
	writer   *binary.Writer
	eof      uint64
	groups   map[string]*Group
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	hdf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, sb.ReaderConfig()),
		superblock: sb,
	}

	root, err := hdf.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	hdf.root = root

	return hdf, nil
}

// Close flushes pending writes and closes the file.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	if f.writable {
		if err := f.Flush(); err != nil {
			f.closed = true
			f.file.Close()
			return err
		}
	}
	f.closed = true
	return f.file.Close()
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

func (f *File) openGroupAt(address uint64, path string) (*Group, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	return &Group{file: f, path: path, header: header, addr: address}, nil
}

func (f *File) openDatasetAt(address uint64, path string) (*Dataset, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	return newDataset(f, path, header)
}

// GetAttr returns an attribute by path, e.g. "/@version" for the root group
// or "/dataset_0/x@units" for a dataset.
func (f *File) GetAttr(path string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}

	objectPath, attrName, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}

	obj, err := f.root.open(objectPath)
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", objectPath, err)
	}
	attr := obj.Attr(attrName)
	if attr == nil {
		return nil, fmt.Errorf("attribute %s: %w", path, ErrNotFound)
	}
	return attr, nil
}

// ReadAttr reads an attribute value by path. See Attribute.Value for the
// returned types.
func (f *File) ReadAttr(path string) (any, error) {
	attr, err := f.GetAttr(path)
	if err != nil {
		return nil, err
	}
	return attr.Value()
}

// resolveAbsolute follows an absolute path from the root. It is used for
// soft links; visited tracks the link targets seen so far.
func (f *File) resolveAbsolute(absPath string, visited map[string]bool) (uint64, bool, error) {
	parts := SplitPath(absPath)
	if len(parts) == 0 {
		return f.root.addr, false, nil
	}

	current := f.root
	for i, name := range parts {
		addr, isDataset, err := current.findChild(name, visited)
		if err != nil {
			return 0, false, fmt.Errorf("resolving %q in %s: %w", name, absPath, err)
		}
		if i == len(parts)-1 {
			return addr, isDataset, nil
		}
		if isDataset {
			return 0, false, fmt.Errorf("%q is not a group in %s: %w", name, absPath, ErrNotGroup)
		}
		if current, err = f.openGroupAt(addr, ""); err != nil {
			return 0, false, err
		}
	}
	return 0, false, ErrInvalidPath
}
