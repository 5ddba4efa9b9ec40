package dtype

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// ByteOrder returns the binary.ByteOrder for the datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ElementSize returns the size of a single element in bytes.
func ElementSize(dt *message.Datatype) int {
	return int(dt.Size)
}

// IsNumeric returns true if the datatype is a numeric type.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}

// Describe returns a short name such as "int32", "float64" or "string".
func Describe(dt *message.Datatype) string {
	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case message.ClassFloatPoint:
		return fmt.Sprintf("float%d", dt.Size*8)
	case message.ClassString:
		return "string"
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return "string"
		}
		return "vlen"
	case message.ClassCompound:
		return "compound"
	case message.ClassArray:
		return "array"
	case message.ClassEnum:
		return "enum"
	}
	return fmt.Sprintf("class%d", dt.Class)
}
