package hdf5

import (
	"errors"
	"testing"
)

func TestCreateGroup(t *testing.T) {
	path := createFile(t, func(root *Group) {
		g, err := root.CreateGroup("cosmology")
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if g.Path() != "/cosmology" {
			t.Errorf("Path = %q", g.Path())
		}
		if g.Name() != "cosmology" {
			t.Errorf("Name = %q", g.Name())
		}
	})

	f := openFile(t, path)
	g, err := f.OpenGroup("/cosmology")
	if err != nil {
		t.Fatalf("OpenGroup failed: %v", err)
	}
	if n, err := g.NumObjects(); err != nil || n != 0 {
		t.Errorf("NumObjects = %d, %v", n, err)
	}
}

func TestCreateNestedGroups(t *testing.T) {
	path := createFile(t, func(root *Group) {
		a, err := root.CreateGroup("a")
		if err != nil {
			t.Fatal(err)
		}
		b, err := a.CreateGroup("b")
		if err != nil {
			t.Fatal(err)
		}
		c, err := b.CreateGroup("c")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.CreateDataset("leaf", []float64{42}); err != nil {
			t.Fatal(err)
		}
		if err := b.SetAttr("level", int64(2)); err != nil {
			t.Fatal(err)
		}
	})

	f := openFile(t, path)
	ds, err := f.OpenDataset("/a/b/c/leaf")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	vals, err := ds.ReadFloat64()
	if err != nil || len(vals) != 1 || vals[0] != 42 {
		t.Errorf("leaf = %v, %v", vals, err)
	}

	level, err := f.ReadAttr("/a/b@level")
	if err != nil {
		t.Fatalf("ReadAttr failed: %v", err)
	}
	if level != int64(2) {
		t.Errorf("level = %v (%T), want 2", level, level)
	}
}

func TestCreateMultipleGroups(t *testing.T) {
	names := []string{"dataset_0", "dataset_1", "dataset_2", "dataset_3"}
	path := createFile(t, func(root *Group) {
		for _, name := range names {
			if _, err := root.CreateGroup(name); err != nil {
				t.Fatalf("CreateGroup(%s) failed: %v", name, err)
			}
		}
	})

	f := openFile(t, path)
	members, err := f.Root().Members()
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != len(names) {
		t.Fatalf("members = %v", members)
	}
	for i, name := range names {
		if members[i] != name {
			t.Errorf("members[%d] = %q, want %q", i, members[i], name)
		}
	}
}

func TestCreateGroupRejectsBadNames(t *testing.T) {
	createFile(t, func(root *Group) {
		if _, err := root.CreateGroup("dup"); err != nil {
			t.Fatal(err)
		}
		if _, err := root.CreateGroup("dup"); !errors.Is(err, ErrExists) {
			t.Errorf("expected ErrExists, got %v", err)
		}
		for _, name := range []string{"", "a/b", ".."} {
			if _, err := root.CreateGroup(name); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("CreateGroup(%q): expected ErrInvalidPath, got %v", name, err)
			}
		}
	})
}

func TestRequireGroup(t *testing.T) {
	createFile(t, func(root *Group) {
		g1, err := root.RequireGroup("cosmology")
		if err != nil {
			t.Fatal(err)
		}
		g2, err := root.RequireGroup("cosmology")
		if err != nil {
			t.Fatal(err)
		}
		if g1 != g2 {
			t.Error("RequireGroup should return the tracked group")
		}
	})
}

func TestGroupAttributesRoundTrip(t *testing.T) {
	path := createFile(t, func(root *Group) {
		attrs := map[string]any{
			"citation":                  "Behroozi et al. (2019)",
			"H0":                        70.0,
			"maximum_number_of_returns": int64(3),
			"bins":                      []float64{1, 2, 3},
		}
		for _, k := range []string{"citation", "H0", "maximum_number_of_returns", "bins"} {
			if err := root.SetAttr(k, attrs[k]); err != nil {
				t.Fatalf("SetAttr(%s) failed: %v", k, err)
			}
		}
		// replacing keeps one attribute
		if err := root.SetAttr("H0", 67.7); err != nil {
			t.Fatal(err)
		}
	})

	f := openFile(t, path)
	root := f.Root()
	if got := root.Attrs(); len(got) != 4 {
		t.Errorf("Attrs = %v", got)
	}

	citation, err := root.Attr("citation").ReadScalarString()
	if err != nil || citation != "Behroozi et al. (2019)" {
		t.Errorf("citation = %q, %v", citation, err)
	}
	h0, err := root.Attr("H0").ReadScalarFloat64()
	if err != nil || h0 != 67.7 {
		t.Errorf("H0 = %v, %v", h0, err)
	}
	k, err := root.Attr("maximum_number_of_returns").ReadScalarInt64()
	if err != nil || k != 3 {
		t.Errorf("maximum_number_of_returns = %v, %v", k, err)
	}
	bins, err := root.Attr("bins").ReadFloat64()
	if err != nil || len(bins) != 3 || bins[1] != 2 {
		t.Errorf("bins = %v, %v", bins, err)
	}
	if !root.HasAttr("bins") || root.HasAttr("missing") {
		t.Error("HasAttr mismatch")
	}
}
