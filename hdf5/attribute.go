package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/dtype"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// Attribute represents an HDF5 attribute attached to a dataset or group.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader // resolves variable-length strings
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the attribute value, or nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

// NumElements returns the total number of elements.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar returns true if the attribute is a scalar value.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// DtypeClass returns the datatype class.
func (a *Attribute) DtypeClass() message.DatatypeClass {
	if a.msg.Datatype == nil {
		return 0
	}
	return a.msg.Datatype.Class
}

// Read decodes the value into dest. See Dataset.Read for the accepted
// destinations.
func (a *Attribute) Read(dest any) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}
	if a.msg.Data == nil {
		return fmt.Errorf("attribute %s has no data", a.msg.Name)
	}
	if err := dtype.Convert(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader); err != nil {
		return fmt.Errorf("attribute %s: %w", a.msg.Name, err)
	}
	return nil
}

// ReadFloat64 reads the attribute as float64 values.
func (a *Attribute) ReadFloat64() ([]float64, error) {
	var result []float64
	err := a.Read(&result)
	return result, err
}

// ReadInt64 reads the attribute as int64 values.
func (a *Attribute) ReadInt64() ([]int64, error) {
	var result []int64
	err := a.Read(&result)
	return result, err
}

// ReadString reads the attribute as strings.
func (a *Attribute) ReadString() ([]string, error) {
	var result []string
	err := a.Read(&result)
	return result, err
}

func first[T any](vals []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(vals) == 0 {
		return zero, fmt.Errorf("no values in attribute")
	}
	return vals[0], nil
}

// ReadScalarFloat64 reads the first value as a float64.
func (a *Attribute) ReadScalarFloat64() (float64, error) {
	return first(a.ReadFloat64())
}

// ReadScalarInt64 reads the first value as an int64.
func (a *Attribute) ReadScalarInt64() (int64, error) {
	return first(a.ReadInt64())
}

// ReadScalarString reads the first value as a string.
func (a *Attribute) ReadScalarString() (string, error) {
	return first(a.ReadString())
}

// Value reads the attribute as an auto-typed Go value: int64, uint64,
// float64 or string for scalars, and slices of those otherwise.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}

	var vals any
	var err error
	switch {
	case dt.Class == message.ClassFixedPoint && dt.Signed:
		vals, err = a.ReadInt64()
	case dt.Class == message.ClassFixedPoint:
		var u []uint64
		err = a.Read(&u)
		vals = u
	case dt.Class == message.ClassFloatPoint:
		vals, err = a.ReadFloat64()
	case dt.Class == message.ClassString, dt.Class == message.ClassVarLen && dt.IsVarLenString:
		vals, err = a.ReadString()
	default:
		return nil, fmt.Errorf("attribute %s of type %s: %w", a.msg.Name, dtype.Describe(dt), ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	if !a.IsScalar() {
		return vals, nil
	}

	switch v := vals.(type) {
	case []int64:
		return first(v, nil)
	case []uint64:
		return first(v, nil)
	case []float64:
		return first(v, nil)
	case []string:
		return first(v, nil)
	}
	return vals, nil
}
