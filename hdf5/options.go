package hdf5

// FileOption configures file creation.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{offsetSize: 8, lengthSize: 8}
}

// WithOffsetSize sets the size in bytes of file addresses (2, 4 or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes of lengths (2, 4 or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	shape       []uint64
	chunks      []uint64
	compression int
	attributes  []attrDef
}

// WithShape gives a flat slice a multi-dimensional shape. The product of
// dims must equal the slice length.
func WithShape(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.shape = dims
	}
}

// WithChunks stores the dataset in chunks of the given dimensions.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithCompression deflates each chunk at level 1-9. Without WithChunks the
// whole dataset becomes a single chunk.
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.compression = level
		}
	}
}

// WithAttribute attaches an attribute to the dataset. The value may be a
// scalar or slice of float64, float32, int, int32, int64, uint8, uint32,
// uint64 or string.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
