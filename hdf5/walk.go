package hdf5

import "errors"

// ErrStopWalk can be returned from a walk callback to stop walking without
// an error.
var ErrStopWalk = errors.New("walk stopped")

// WalkFunc is called for each object during traversal. obj is a *Group or
// a *Dataset, or nil when err reports that the member could not be opened.
type WalkFunc func(path string, obj Object, err error) error

// Walk visits g and every group and dataset below it, parents before
// children and members in link order.
//
//	hdf5.Walk(f.Root(), func(path string, obj hdf5.Object, err error) error {
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(path, ds.Shape())
//	    }
//	    return err
//	})
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}

	members, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		p := childPath(g.Path(), name)
		obj, err := g.open(name)
		if err != nil {
			if err := fn(p, nil, err); err != nil {
				return err
			}
			continue
		}

		if child, ok := obj.(*Group); ok {
			err = walkGroup(child, fn)
		} else {
			err = fn(p, obj, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// AttrInfo describes one attribute found by WalkAttrs.
type AttrInfo struct {
	// Path is the full attribute path, e.g. "/dataset_0@redshift".
	Path       string
	ObjectPath string
	// ObjectType is "group" or "dataset".
	ObjectType string
	Name       string
	Attr       *Attribute
	// Value holds the decoded value, or nil when Err is set.
	Value any
	Err   error
}

// WalkAttrs calls fn for every attribute of every object in the file.
func (f *File) WalkAttrs(fn func(info AttrInfo) error) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj Object, err error) error {
		if err != nil {
			// unreadable members have no attributes to report
			return nil
		}
		kind := "dataset"
		if _, ok := obj.(*Group); ok {
			kind = "group"
		}
		for _, name := range obj.Attrs() {
			info := AttrInfo{
				Path:       JoinAttrPath(path, name),
				ObjectPath: path,
				ObjectType: kind,
				Name:       name,
				Attr:       obj.Attr(name),
			}
			if info.Attr != nil {
				info.Value, info.Err = info.Attr.Value()
			}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
