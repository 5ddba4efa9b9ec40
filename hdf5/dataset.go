package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-velociraptor/internal/dtype"
	"github.com/robert-malhotra/go-velociraptor/internal/layout"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
)

// Dataset represents an HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout
	attrs     []*message.Attribute
}

func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      path,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
	}
	if ds.dataspace == nil {
		return nil, fmt.Errorf("dataset %s missing dataspace message", path)
	}
	if ds.datatype == nil {
		return nil, fmt.Errorf("dataset %s missing datatype message", path)
	}

	var err error
	ds.layout, err = layout.New(header.DataLayout(), ds.dataspace, ds.datatype, header.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	for _, msg := range header.GetMessages(message.TypeAttribute) {
		ds.attrs = append(ds.attrs, msg.(*message.Attribute))
	}
	return ds, nil
}

// Name returns the last component of the dataset's path.
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the full path to this dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dimensions of the dataset, or nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.dataspace.Rank
}

// Len returns the extent of the first dimension, or 1 for a scalar.
func (d *Dataset) Len() uint64 {
	if d.dataspace.IsScalar() || len(d.dataspace.Dimensions) == 0 {
		return 1
	}
	return d.dataspace.Dimensions[0]
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.dataspace.NumElements()
}

// IsScalar returns true if the dataset holds a single value.
func (d *Dataset) IsScalar() bool {
	return d.dataspace.IsScalar()
}

// DtypeSize returns the size of each element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// DtypeClass returns the datatype class.
func (d *Dataset) DtypeClass() message.DatatypeClass {
	return d.datatype.Class
}

// Dtype returns a short name for the element type, such as "float32".
func (d *Dataset) Dtype() string {
	return dtype.Describe(d.datatype)
}

// IsNumeric reports whether the elements are integers or floats.
func (d *Dataset) IsNumeric() bool {
	return dtype.IsNumeric(d.datatype)
}

// Storage returns the layout class name: compact, contiguous or chunked.
func (d *Dataset) Storage() string {
	switch d.layout.Class() {
	case message.LayoutCompact:
		return "compact"
	case message.LayoutContiguous:
		return "contiguous"
	case message.LayoutChunked:
		return "chunked"
	}
	return "unknown"
}

// Read reads all data into dest, which must point to one of []float64,
// []float32, []int64, []int32, []uint64, []string, float64, int64 or
// string. Numeric data is converted to the destination type.
func (d *Dataset) Read(dest any) error {
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.Convert(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

// ReadRaw reads all data as raw bytes in file byte order.
func (d *Dataset) ReadRaw() ([]byte, error) {
	return d.layout.Read()
}

// ReadSlice reads the hyperslab of count elements per dimension starting
// at start into dest. Only the storage covering the selection is read.
func (d *Dataset) ReadSlice(start, count []uint64, dest any) error {
	raw, err := d.layout.ReadSlice(start, count)
	if err != nil {
		return fmt.Errorf("reading slice of %s: %w", d.path, err)
	}
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return dtype.Convert(d.datatype, raw, n, dest, d.file.reader)
}

// readRange reads rows [offset, offset+n) of the first dimension.
func (d *Dataset) readRange(offset, n uint64, dest any) error {
	dims := d.Shape()
	if len(dims) == 0 {
		return fmt.Errorf("range read of scalar %s: %w", d.path, ErrUnsupported)
	}
	start := make([]uint64, len(dims))
	count := make([]uint64, len(dims))
	copy(count, dims)
	start[0], count[0] = offset, n
	return d.ReadSlice(start, count, dest)
}

// ReadFloat64 reads the dataset as float64 values.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	var result []float64
	err := d.Read(&result)
	return result, err
}

// ReadFloat32 reads the dataset as float32 values.
func (d *Dataset) ReadFloat32() ([]float32, error) {
	var result []float32
	err := d.Read(&result)
	return result, err
}

// ReadInt64 reads the dataset as int64 values.
func (d *Dataset) ReadInt64() ([]int64, error) {
	var result []int64
	err := d.Read(&result)
	return result, err
}

// ReadInt32 reads the dataset as int32 values.
func (d *Dataset) ReadInt32() ([]int32, error) {
	var result []int32
	err := d.Read(&result)
	return result, err
}

// ReadUint64 reads the dataset as uint64 values.
func (d *Dataset) ReadUint64() ([]uint64, error) {
	var result []uint64
	err := d.Read(&result)
	return result, err
}

// ReadString reads the dataset as strings.
func (d *Dataset) ReadString() ([]string, error) {
	var result []string
	err := d.Read(&result)
	return result, err
}

// ReadFloat64Range reads n rows starting at offset as float64 values.
func (d *Dataset) ReadFloat64Range(offset, n uint64) ([]float64, error) {
	var result []float64
	err := d.readRange(offset, n, &result)
	return result, err
}

// ReadInt64Range reads n rows starting at offset as int64 values.
func (d *Dataset) ReadInt64Range(offset, n uint64) ([]int64, error) {
	var result []int64
	err := d.readRange(offset, n, &result)
	return result, err
}

// ReadUint64Range reads n rows starting at offset as uint64 values.
func (d *Dataset) ReadUint64Range(offset, n uint64) ([]uint64, error) {
	var result []uint64
	err := d.readRange(offset, n, &result)
	return result, err
}

// Attrs returns the attribute names for this dataset.
func (d *Dataset) Attrs() []string {
	names := make([]string, len(d.attrs))
	for i, attr := range d.attrs {
		names[i] = attr.Name
	}
	return names
}

// Attr returns an attribute by name, or nil if not found.
func (d *Dataset) Attr(name string) *Attribute {
	for _, attr := range d.attrs {
		if attr.Name == name {
			return &Attribute{msg: attr, reader: d.file.reader}
		}
	}
	return nil
}

// HasAttr returns true if the dataset has an attribute with the given name.
func (d *Dataset) HasAttr(name string) bool {
	return d.Attr(name) != nil
}
