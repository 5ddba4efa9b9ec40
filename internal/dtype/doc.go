// Package dtype converts between raw HDF5 element bytes and Go slices.
//
// Catalogue and particle files hold numeric columns (integers and floats
// of either byte order, any of the standard widths) and the occasional
// string attribute or dataset. The conversions are therefore typed rather
// than reflective:
//
//	HDF5 Class        | Go Type
//	------------------|--------------------------------------
//	Fixed-point       | []int64, []uint64, []int32, []float64
//	Floating-point    | []float64, []float32
//	String (fixed)    | []string
//	String (varlen)   | []string (via global heap lookup)
//
// Use [Float64s] to widen any numeric column to float64, [Int64s] and
// [Uint64s] for identifier columns, and [Strings] for text. [Convert]
// dispatches on a destination pointer for callers holding an any.
//
// [Encode] goes the other way for the element types this module writes,
// and [DatatypeFor] picks the HDF5 datatype for a Go slice or scalar.
package dtype
