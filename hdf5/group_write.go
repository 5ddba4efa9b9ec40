package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/go-velociraptor/internal/dtype"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
)

// CreateGroup creates an empty subgroup. Its header is written on Flush.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}

	child := &Group{
		file:  g.file,
		path:  childPath(g.path, name),
		state: &groupState{dirty: true},
	}
	// The address is filled in when the child is flushed.
	if err := g.addLink(message.NewHardLink(name, 0)); err != nil {
		return nil, err
	}
	g.file.track(child)
	return child, nil
}

// RequireGroup opens the subgroup name, creating it if it does not exist.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if g.HasMember(name) {
		return g.OpenGroup(name)
	}
	return g.CreateGroup(name)
}

// SetAttr sets an attribute on the group, replacing any attribute with the
// same name. See WithAttribute for the accepted value types.
func (g *Group) SetAttr(name string, value any) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	attr, err := newAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if err := g.loadState(); err != nil {
		return err
	}

	for i, existing := range g.state.attrs {
		if existing.Name == name {
			g.state.attrs[i] = attr
			g.state.dirty = true
			return nil
		}
	}
	g.state.attrs = append(g.state.attrs, attr)
	g.state.dirty = true
	return nil
}

func (g *Group) checkNewMember(name string) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	if g.file.closed {
		return ErrClosed
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: member name %q", ErrInvalidPath, name)
	}
	if g.HasMember(name) {
		return fmt.Errorf("%s in %s: %w", name, g.path, ErrExists)
	}
	return nil
}

func (g *Group) addLink(link *message.Link) error {
	if err := g.loadState(); err != nil {
		return err
	}
	g.state.links = append(g.state.links, link)
	g.state.dirty = true
	return nil
}

// loadState copies the on-disk links and attributes into memory before
// the first modification.
func (g *Group) loadState() error {
	if g.state != nil {
		return nil
	}
	links, err := g.links()
	if err != nil {
		return fmt.Errorf("loading links of %s: %w", g.path, err)
	}
	g.state = &groupState{
		links: append([]*message.Link(nil), links...),
		attrs: append([]*message.Attribute(nil), g.attributes()...),
	}
	g.file.track(g)
	return nil
}

// writeHeader writes the group's header at a fresh address and points the
// parent's link (or the superblock) at it.
func (g *Group) writeHeader() error {
	data, err := object.Encode(g.file.headerConfig(), object.NewGroupHeader(g.state.links, g.state.attrs), object.MinGroupChunkSize)
	if err != nil {
		return err
	}
	addr, err := g.file.writeBlock(data)
	if err != nil {
		return err
	}
	g.addr = addr
	g.header = nil
	g.state.dirty = false

	if g.path == "/" {
		g.file.superblock.RootGroupAddress = addr
		return nil
	}

	parent, ok := g.file.groups[path.Dir(g.path)]
	if !ok {
		return fmt.Errorf("parent of %s is not tracked", g.path)
	}
	if err := parent.loadState(); err != nil {
		return err
	}
	name := path.Base(g.path)
	for i, link := range parent.state.links {
		if link.Name == name {
			parent.state.links[i] = message.NewHardLink(name, addr)
			parent.state.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%s has no link to %s", parent.path, name)
}

// newAttributeMessage encodes a Go scalar or slice as an attribute.
// Scalars get a scalar dataspace and slices a one-dimensional one.
func newAttributeMessage(name string, value any) (*message.Attribute, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty attribute name", ErrInvalidPath)
	}
	dt, err := dtype.DatatypeFor(value)
	if err != nil {
		return nil, err
	}
	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, err
	}

	n, isSlice := sliceLen(value)
	if !isSlice {
		return message.NewAttribute(name, dt, message.NewScalarDataspace(), data), nil
	}
	if n == 0 {
		return nil, fmt.Errorf("empty attribute value")
	}
	return message.NewAttribute(name, dt, message.NewDataspace([]uint64{uint64(n)}, nil), data), nil
}

// sliceLen returns the length of a supported slice type.
func sliceLen(value any) (int, bool) {
	switch v := value.(type) {
	case []float64:
		return len(v), true
	case []float32:
		return len(v), true
	case []int:
		return len(v), true
	case []int32:
		return len(v), true
	case []int64:
		return len(v), true
	case []uint8:
		return len(v), true
	case []uint32:
		return len(v), true
	case []uint64:
		return len(v), true
	case []string:
		return len(v), true
	}
	return 0, false
}
