package dtype

import (
	"errors"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/heap"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// ErrNotNumeric is returned when a numeric read meets a non-numeric type.
var ErrNotNumeric = errors.New("datatype is not numeric")

// ErrNotInteger is returned when an integer read meets a non-integer type.
var ErrNotInteger = errors.New("datatype is not an integer")

func checkLength(dt *message.Datatype, data []byte, n uint64) error {
	need := n * uint64(dt.Size)
	if uint64(len(data)) < need {
		return fmt.Errorf("have %d bytes for %d elements of size %d", len(data), n, dt.Size)
	}
	return nil
}

// fixedRaw decodes element i of a fixed-point column as raw bits, sign
// extended when the type is signed.
func fixedRaw(dt *message.Datatype, data []byte, i int) (uint64, error) {
	order := ByteOrder(dt)
	size := int(dt.Size)
	b := data[i*size : (i+1)*size]

	switch size {
	case 1:
		if dt.Signed {
			return uint64(int64(int8(b[0]))), nil
		}
		return uint64(b[0]), nil
	case 2:
		v := order.Uint16(b)
		if dt.Signed {
			return uint64(int64(int16(v))), nil
		}
		return uint64(v), nil
	case 4:
		v := order.Uint32(b)
		if dt.Signed {
			return uint64(int64(int32(v))), nil
		}
		return uint64(v), nil
	case 8:
		return order.Uint64(b), nil
	}
	return 0, fmt.Errorf("unsupported integer size: %d", size)
}

func floatAt(dt *message.Datatype, data []byte, i int) (float64, error) {
	order := ByteOrder(dt)
	switch dt.Size {
	case 4:
		return float64(math.Float32frombits(order.Uint32(data[i*4:]))), nil
	case 8:
		return math.Float64frombits(order.Uint64(data[i*8:])), nil
	}
	return 0, fmt.Errorf("unsupported float size: %d", dt.Size)
}

// Float64s widens a numeric column to float64.
func Float64s(dt *message.Datatype, data []byte, n uint64) ([]float64, error) {
	if !IsNumeric(dt) {
		return nil, fmt.Errorf("%w: %s", ErrNotNumeric, Describe(dt))
	}
	if err := checkLength(dt, data, n); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	if dt.Class == message.ClassFloatPoint {
		for i := range out {
			v, err := floatAt(dt, data, i)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	for i := range out {
		raw, err := fixedRaw(dt, data, i)
		if err != nil {
			return nil, err
		}
		if dt.Signed {
			out[i] = float64(int64(raw))
		} else {
			out[i] = float64(raw)
		}
	}
	return out, nil
}

// Float32s narrows a numeric column to float32.
func Float32s(dt *message.Datatype, data []byte, n uint64) ([]float32, error) {
	wide, err := Float64s(dt, data, n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(wide))
	for i, v := range wide {
		out[i] = float32(v)
	}
	return out, nil
}

// Int64s reads an integer column. Unsigned values above MaxInt64 wrap.
func Int64s(dt *message.Datatype, data []byte, n uint64) ([]int64, error) {
	if dt.Class != message.ClassFixedPoint {
		return nil, fmt.Errorf("%w: %s", ErrNotInteger, Describe(dt))
	}
	if err := checkLength(dt, data, n); err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		raw, err := fixedRaw(dt, data, i)
		if err != nil {
			return nil, err
		}
		out[i] = int64(raw)
	}
	return out, nil
}

// Uint64s reads an integer column as unsigned values.
func Uint64s(dt *message.Datatype, data []byte, n uint64) ([]uint64, error) {
	if dt.Class != message.ClassFixedPoint {
		return nil, fmt.Errorf("%w: %s", ErrNotInteger, Describe(dt))
	}
	if err := checkLength(dt, data, n); err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		raw, err := fixedRaw(dt, data, i)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

// Strings reads fixed-length or variable-length strings. The reader is
// only needed for variable-length strings, which live in the global heap.
func Strings(dt *message.Datatype, data []byte, n uint64, reader *binary.Reader) ([]string, error) {
	switch {
	case dt.Class == message.ClassString:
		return fixedStrings(dt, data, n)
	case dt.Class == message.ClassVarLen && dt.IsVarLenString:
		return varLenStrings(data, n, reader)
	}
	return nil, fmt.Errorf("datatype %s is not a string", Describe(dt))
}

func fixedStrings(dt *message.Datatype, data []byte, n uint64) ([]string, error) {
	if err := checkLength(dt, data, n); err != nil {
		return nil, err
	}
	size := int(dt.Size)
	out := make([]string, n)
	for i := range out {
		b := data[i*size : (i+1)*size]
		end := len(b)
		for j, c := range b {
			if c == 0 {
				end = j
				break
			}
		}
		if dt.StringPadding == message.PadSpacePad {
			for end > 0 && b[end-1] == ' ' {
				end--
			}
		}
		out[i] = string(b[:end])
	}
	return out, nil
}

// varLenStrings resolves references of the form: sequence length (4),
// global heap collection address (offset size), object index (4).
func varLenStrings(data []byte, n uint64, reader *binary.Reader) ([]string, error) {
	offsetSize := 8
	if reader != nil {
		offsetSize = reader.OffsetSize()
	}
	refSize := 4 + offsetSize + 4
	if uint64(len(data)) < n*uint64(refSize) {
		return nil, fmt.Errorf("have %d bytes for %d string references", len(data), n)
	}

	out := make([]string, n)
	var heaps *heap.Cache
	for i := range out {
		ref := data[i*refSize : (i+1)*refSize]
		id, err := heap.ParseID(ref[4:], offsetSize)
		if err != nil {
			return nil, fmt.Errorf("parsing global heap ID for element %d: %w", i, err)
		}
		if id.Collection == 0 {
			continue
		}
		if reader == nil {
			return nil, fmt.Errorf("variable-length string reading requires file reader (global heap at 0x%x)", id.Collection)
		}
		if heaps == nil {
			heaps = heap.NewCache(reader)
		}
		if out[i], err = heaps.String(id); err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
	}
	return out, nil
}

// Convert decodes n elements into dest, which must point to one of
// []float64, []float32, []int64, []int32, []uint64, []string, float64,
// int64 or string.
func Convert(dt *message.Datatype, data []byte, n uint64, dest any, reader *binary.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}

	var err error
	switch d := dest.(type) {
	case *[]float64:
		*d, err = Float64s(dt, data, n)
	case *[]float32:
		*d, err = Float32s(dt, data, n)
	case *[]int64:
		*d, err = Int64s(dt, data, n)
	case *[]int32:
		var wide []int64
		if wide, err = Int64s(dt, data, n); err == nil {
			*d = make([]int32, len(wide))
			for i, v := range wide {
				(*d)[i] = int32(v)
			}
		}
	case *[]uint64:
		*d, err = Uint64s(dt, data, n)
	case *[]string:
		*d, err = Strings(dt, data, n, reader)
	case *float64:
		var v []float64
		if v, err = Float64s(dt, data, 1); err == nil {
			*d = v[0]
		}
	case *int64:
		var v []int64
		if v, err = Int64s(dt, data, 1); err == nil {
			*d = v[0]
		}
	case *string:
		var v []string
		if v, err = Strings(dt, data, 1, reader); err == nil {
			*d = v[0]
		}
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}
	return err
}
