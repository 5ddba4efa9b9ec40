package dtype

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// DatatypeFor picks the little-endian HDF5 datatype for a Go slice or
// scalar. Strings become fixed-length, null-padded, sized to the longest
// value.
func DatatypeFor(src any) (*message.Datatype, error) {
	switch v := src.(type) {
	case []float64, float64:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	case []float32, float32:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case []int64, int64, []int, int:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case []int32, int32:
		return message.NewFixedPointDatatype(4, true, message.OrderLE), nil
	case []uint64, uint64:
		return message.NewFixedPointDatatype(8, false, message.OrderLE), nil
	case []uint32, uint32:
		return message.NewFixedPointDatatype(4, false, message.OrderLE), nil
	case []uint8, uint8:
		return message.NewFixedPointDatatype(1, false, message.OrderLE), nil
	case string:
		return message.NewStringDatatype(uint32(max(len(v), 1)), message.PadNullPad, message.CharsetUTF8), nil
	case []string:
		longest := 1
		for _, s := range v {
			longest = max(longest, len(s))
		}
		return message.NewStringDatatype(uint32(longest), message.PadNullPad, message.CharsetUTF8), nil
	}
	return nil, fmt.Errorf("unsupported Go type: %T", src)
}

// Encode converts a Go slice or scalar into raw bytes of datatype dt.
// Numeric values are converted to dt's class and width.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	switch v := src.(type) {
	case string:
		return encodeStrings(dt, []string{v})
	case []string:
		return encodeStrings(dt, v)
	}

	vals, ok := numericValues(src)
	if !ok {
		return nil, fmt.Errorf("unsupported Go type: %T", src)
	}
	switch dt.Class {
	case message.ClassFloatPoint:
		return encodeFloats(dt, vals)
	case message.ClassFixedPoint:
		return encodeFixed(dt, vals)
	}
	return nil, fmt.Errorf("cannot encode %T as %s", src, Describe(dt))
}

// numeric holds widened values. Integers travel as raw 64-bit patterns
// so 64-bit IDs survive the round trip.
type numeric struct {
	f       []float64
	i       []uint64
	isFloat bool
}

func numericValues(src any) (numeric, bool) {
	switch v := src.(type) {
	case []float64:
		return numeric{f: v, isFloat: true}, true
	case float64:
		return numeric{f: []float64{v}, isFloat: true}, true
	case []float32:
		f := make([]float64, len(v))
		for i, x := range v {
			f[i] = float64(x)
		}
		return numeric{f: f, isFloat: true}, true
	case float32:
		return numeric{f: []float64{float64(v)}, isFloat: true}, true
	case []int64:
		return intsOf(v), true
	case int64:
		return intsOf([]int64{v}), true
	case []int:
		return intsOf(v), true
	case int:
		return intsOf([]int{v}), true
	case []int32:
		return intsOf(v), true
	case int32:
		return intsOf([]int32{v}), true
	case []uint64:
		return numeric{i: v}, true
	case uint64:
		return numeric{i: []uint64{v}}, true
	case []uint32:
		return intsOf(v), true
	case uint32:
		return intsOf([]uint32{v}), true
	case []uint8:
		return intsOf(v), true
	case uint8:
		return intsOf([]uint8{v}), true
	}
	return numeric{}, false
}

func intsOf[T int | int32 | int64 | uint8 | uint32](v []T) numeric {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(int64(x))
	}
	return numeric{i: out}
}

func (n numeric) len() int {
	if n.isFloat {
		return len(n.f)
	}
	return len(n.i)
}

func (n numeric) float(i int) float64 {
	if n.isFloat {
		return n.f[i]
	}
	return float64(int64(n.i[i]))
}

func (n numeric) bits(i int) uint64 {
	if n.isFloat {
		return uint64(int64(n.f[i]))
	}
	return n.i[i]
}

func encodeFloats(dt *message.Datatype, vals numeric) ([]byte, error) {
	order := ByteOrder(dt)
	size := int(dt.Size)
	out := make([]byte, vals.len()*size)
	for i := 0; i < vals.len(); i++ {
		switch size {
		case 4:
			order.PutUint32(out[i*4:], math.Float32bits(float32(vals.float(i))))
		case 8:
			order.PutUint64(out[i*8:], math.Float64bits(vals.float(i)))
		default:
			return nil, fmt.Errorf("unsupported float size: %d", size)
		}
	}
	return out, nil
}

func encodeFixed(dt *message.Datatype, vals numeric) ([]byte, error) {
	order := ByteOrder(dt)
	size := int(dt.Size)
	out := make([]byte, vals.len()*size)
	for i := 0; i < vals.len(); i++ {
		b := vals.bits(i)
		switch size {
		case 1:
			out[i] = byte(b)
		case 2:
			order.PutUint16(out[i*2:], uint16(b))
		case 4:
			order.PutUint32(out[i*4:], uint32(b))
		case 8:
			order.PutUint64(out[i*8:], b)
		default:
			return nil, fmt.Errorf("unsupported integer size: %d", size)
		}
	}
	return out, nil
}

func encodeStrings(dt *message.Datatype, vals []string) ([]byte, error) {
	if dt.Class != message.ClassString {
		return nil, fmt.Errorf("cannot encode strings as %s", Describe(dt))
	}
	size := int(dt.Size)
	out := make([]byte, len(vals)*size)
	for i, s := range vals {
		n := copy(out[i*size:(i+1)*size], s)
		if dt.StringPadding == message.PadSpacePad {
			for j := n; j < size; j++ {
				out[i*size+j] = ' '
			}
		}
	}
	return out, nil
}

// DataSize returns the total size in bytes needed to store n elements of the given datatype.
func DataSize(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}
