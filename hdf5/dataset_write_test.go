package hdf5

import (
	"testing"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestCreateDatasetTypes(t *testing.T) {
	path := createFile(t, func(root *Group) {
		mustCreate(t, root, "f64", []float64{1.5, -2.5})
		mustCreate(t, root, "f32", []float32{0.25, 8})
		mustCreate(t, root, "i32", []int32{-1, 7})
		mustCreate(t, root, "i64", []int64{-1 << 40, 5})
		mustCreate(t, root, "u64", []uint64{1 << 63, 9})
		mustCreate(t, root, "str", []string{"Mass_200crit", "R_200crit"})
	})
	f := openFile(t, path)

	f64 := mustOpen(t, f, "/f64")
	if f64.Dtype() != "float64" || f64.Len() != 2 {
		t.Errorf("f64: dtype %s len %d", f64.Dtype(), f64.Len())
	}
	if got, err := f64.ReadFloat64(); err != nil || got[1] != -2.5 {
		t.Errorf("f64 = %v, %v", got, err)
	}

	if got, err := mustOpen(t, f, "/f32").ReadFloat64(); err != nil || got[0] != 0.25 {
		t.Errorf("f32 = %v, %v", got, err)
	}
	if got, err := mustOpen(t, f, "/i32").ReadInt32(); err != nil || got[0] != -1 {
		t.Errorf("i32 = %v, %v", got, err)
	}
	if got, err := mustOpen(t, f, "/i64").ReadInt64(); err != nil || got[0] != -1<<40 {
		t.Errorf("i64 = %v, %v", got, err)
	}
	if got, err := mustOpen(t, f, "/u64").ReadUint64(); err != nil || got[0] != 1<<63 {
		t.Errorf("u64 = %v, %v", got, err)
	}

	str := mustOpen(t, f, "/str")
	if str.IsNumeric() {
		t.Error("string dataset reported as numeric")
	}
	if got, err := str.ReadString(); err != nil || got[0] != "Mass_200crit" || got[1] != "R_200crit" {
		t.Errorf("str = %q, %v", got, err)
	}
}

func mustCreate(t *testing.T, g *Group, name string, data any, opts ...DatasetOption) *Dataset {
	t.Helper()
	ds, err := g.CreateDataset(name, data, opts...)
	if err != nil {
		t.Fatalf("CreateDataset(%s) failed: %v", name, err)
	}
	return ds
}

func mustOpen(t *testing.T, f *File, path string) *Dataset {
	t.Helper()
	ds, err := f.OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset(%s) failed: %v", path, err)
	}
	return ds
}

func TestCreatedDatasetIsReadable(t *testing.T) {
	createFile(t, func(root *Group) {
		ds := mustCreate(t, root, "x", []float64{1, 2, 3})
		got, err := ds.ReadFloat64()
		if err != nil || len(got) != 3 {
			t.Fatalf("read before close = %v, %v", got, err)
		}
		// reachable through the group before the header is flushed
		if _, err := root.OpenDataset("x"); err != nil {
			t.Errorf("OpenDataset failed: %v", err)
		}
	})
}

func TestCreateDatasetWithShape(t *testing.T) {
	path := createFile(t, func(root *Group) {
		// asymmetric scatter: row 0 lower, row 1 upper
		mustCreate(t, root, "scatter", []float64{1, 2, 3, 10, 20, 30}, WithShape(2, 3))
		if _, err := root.CreateDataset("bad", []float64{1, 2, 3}, WithShape(2, 2)); err == nil {
			t.Error("expected shape mismatch error")
		}
	})

	f := openFile(t, path)
	ds := mustOpen(t, f, "/scatter")
	shape := ds.Shape()
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("Shape = %v", shape)
	}
	upper, err := ds.ReadFloat64Range(1, 1)
	if err != nil {
		t.Fatalf("ReadFloat64Range failed: %v", err)
	}
	if len(upper) != 3 || upper[0] != 10 || upper[2] != 30 {
		t.Errorf("upper row = %v", upper)
	}
}

func TestReadSliceContiguous(t *testing.T) {
	path := createFile(t, func(root *Group) {
		mustCreate(t, root, "ids", []int64{10, 11, 12, 13, 14, 15, 16, 17})
	})
	f := openFile(t, path)
	ds := mustOpen(t, f, "/ids")

	got, err := ds.ReadInt64Range(3, 4)
	if err != nil {
		t.Fatalf("ReadInt64Range failed: %v", err)
	}
	want := []int64{13, 14, 15, 16}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	var u []uint64
	if err := ds.ReadSlice([]uint64{7}, []uint64{1}, &u); err != nil || u[0] != 17 {
		t.Errorf("last element = %v, %v", u, err)
	}
	if _, err := ds.ReadInt64Range(6, 3); err == nil {
		t.Error("expected out of bounds error")
	}
}

func TestCreateChunkedDataset(t *testing.T) {
	tests := []struct {
		name string
		n    int
		opts []DatasetOption
	}{
		{"single chunk", 10, []DatasetOption{WithChunks(16)}},
		{"many chunks", 100, []DatasetOption{WithChunks(16)}},
		{"compressed", 1000, []DatasetOption{WithChunks(64), WithCompression(6)}},
		{"compressed whole", 50, []DatasetOption{WithCompression(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := ramp(tt.n)
			path := createFile(t, func(root *Group) {
				mustCreate(t, root, "data", vals, tt.opts...)
			})
			f := openFile(t, path)
			ds := mustOpen(t, f, "/data")
			if ds.Storage() != "chunked" {
				t.Errorf("Storage = %s, want chunked", ds.Storage())
			}

			got, err := ds.ReadFloat64()
			if err != nil {
				t.Fatalf("ReadFloat64 failed: %v", err)
			}
			if len(got) != tt.n {
				t.Fatalf("len = %d, want %d", len(got), tt.n)
			}
			for i := range vals {
				if got[i] != vals[i] {
					t.Fatalf("got[%d] = %v, want %v", i, got[i], vals[i])
				}
			}

			part, err := ds.ReadFloat64Range(uint64(tt.n/2), 3)
			if err != nil {
				t.Fatalf("ReadFloat64Range failed: %v", err)
			}
			if part[0] != float64(tt.n/2) {
				t.Errorf("range starts at %v, want %d", part[0], tt.n/2)
			}
		})
	}
}

func TestCreateDatasetWithAttributes(t *testing.T) {
	path := createFile(t, func(root *Group) {
		mustCreate(t, root, "x", []float64{1, 2},
			WithAttribute("units", "Msun"),
			WithAttribute("a-scale exponent", 0.0),
			WithAttribute("h-scale exponent", -1.0),
		)
	})
	f := openFile(t, path)
	ds := mustOpen(t, f, "/x")

	if got := ds.Attrs(); len(got) != 3 {
		t.Errorf("Attrs = %v", got)
	}
	units, err := ds.Attr("units").ReadScalarString()
	if err != nil || units != "Msun" {
		t.Errorf("units = %q, %v", units, err)
	}
	h, err := f.ReadAttr("/x@h-scale exponent")
	if err != nil || h != -1.0 {
		t.Errorf("h-scale exponent = %v, %v", h, err)
	}
}

func TestEmptyDataset(t *testing.T) {
	path := createFile(t, func(root *Group) {
		mustCreate(t, root, "empty", []float64{}, WithCompression(4))
	})
	f := openFile(t, path)
	ds := mustOpen(t, f, "/empty")
	if ds.NumElements() != 0 {
		t.Errorf("NumElements = %d", ds.NumElements())
	}
	got, err := ds.ReadFloat64()
	if err != nil || len(got) != 0 {
		t.Errorf("read = %v, %v", got, err)
	}
}

func TestScalarDataset(t *testing.T) {
	path := createFile(t, func(root *Group) {
		mustCreate(t, root, "Num_of_files", int32(4))
	})
	f := openFile(t, path)
	ds := mustOpen(t, f, "/Num_of_files")
	if ds.Len() != 1 {
		t.Errorf("Len = %d", ds.Len())
	}
	var n int64
	if err := ds.Read(&n); err != nil || n != 4 {
		t.Errorf("Num_of_files = %d, %v", n, err)
	}
}
