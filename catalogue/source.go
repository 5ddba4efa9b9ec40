package catalogue

import "github.com/robert-malhotra/go-velociraptor/units"

// FieldInfo describes a stored field without reading its values.
type FieldInfo struct {
	Name string
	// Len is the number of rows, summed over all files.
	Len int
	// Units is the free-text units attribute, if the file carries one.
	Units string
	// HExp and AExp are per-dataset exponents written by the halo finder.
	// They take precedence over the category template when set.
	HExp *units.Rational
	AExp *units.Rational
}

// Metadata is everything a catalogue view needs before reading fields.
type Metadata struct {
	Files     []string
	Cosmology units.Cosmology
	Units     units.System
	// NumGroups is the number of haloes in these files, TotalNumGroups the
	// number in the whole output.
	NumGroups      int64
	TotalNumGroups int64
}

// Source supplies raw field data to a View. Values are returned as
// float64 regardless of the stored type, so 64-bit integers above 2^53,
// such as halo identifiers, are rounded. See IntegerSource.
type Source interface {
	Metadata() Metadata
	Fields() []FieldInfo
	ReadField(name string) ([]float64, error)
	// ReadFieldRange reads rows [start, start+count).
	ReadFieldRange(name string, start, count int) ([]float64, error)
	Close() error
}

// IntegerSource is implemented by sources that can return integer fields
// without conversion to float64.
type IntegerSource interface {
	ReadFieldInt64(name string) ([]int64, error)
}
