package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-velociraptor/internal/btree"
	"github.com/robert-malhotra/go-velociraptor/internal/heap"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
	"github.com/robert-malhotra/go-velociraptor/internal/object"
)

// Object is a group or a dataset.
type Object interface {
	Path() string
	Attrs() []string
	Attr(name string) *Attribute
}

// Group represents an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	// Set once the group is modified in a writable file. From then on the
	// links and attributes here replace the on-disk header contents.
	state *groupState
}

type groupState struct {
	links []*message.Link
	attrs []*message.Attribute
	dirty bool
}

// Name returns the last component of the group's path.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the full path to this group.
func (g *Group) Path() string {
	return g.path
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	group, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relativePath, ErrNotGroup)
	}
	return group, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	dataset, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relativePath, ErrNotDataset)
	}
	return dataset, nil
}

// Open opens a group or dataset by relative path.
func (g *Group) Open(relativePath string) (Object, error) {
	return g.open(relativePath)
}

func (g *Group) open(relativePath string) (Object, error) {
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	visited := make(map[string]bool)
	for i, name := range parts {
		fullPath := childPath(current.path, name)
		last := i == len(parts)-1

		if tracked, ok := g.file.groups[fullPath]; ok {
			current = tracked
			if last {
				return current, nil
			}
			continue
		}

		addr, isDataset, err := current.findChild(name, visited)
		if err != nil {
			return nil, fmt.Errorf("finding %q: %w", name, err)
		}
		if last && isDataset {
			return g.file.openDatasetAt(addr, fullPath)
		}
		if isDataset {
			return nil, fmt.Errorf("%q: %w", fullPath, ErrNotGroup)
		}

		next, err := g.file.openGroupAt(addr, fullPath)
		if err != nil {
			return nil, err
		}
		g.file.track(next)
		current = next
	}
	return current, nil
}

// findChild resolves a member name to its object address.
func (g *Group) findChild(name string, visited map[string]bool) (uint64, bool, error) {
	links, err := g.links()
	if err != nil {
		return 0, false, err
	}
	for _, link := range links {
		if link.Name == name {
			return g.resolveLink(link, visited)
		}
	}
	return 0, false, fmt.Errorf("%s in %s: %w", name, g.path, ErrNotFound)
}

func (g *Group) resolveLink(link *message.Link, visited map[string]bool) (uint64, bool, error) {
	switch {
	case link.IsHard():
		isDataset, err := g.isDataset(link.ObjectAddress)
		if err != nil {
			return 0, false, err
		}
		return link.ObjectAddress, isDataset, nil

	case link.IsSoft():
		target := link.SoftLinkValue
		if len(visited) >= MaxLinkDepth {
			return 0, false, ErrLinkDepth
		}
		if visited[target] {
			return 0, false, fmt.Errorf("circular soft link detected: %s", target)
		}
		visited[target] = true
		return g.file.resolveAbsolute(target, visited)

	case link.IsExternal():
		return 0, false, fmt.Errorf("external link %q: %w", link.Name, ErrUnsupported)
	}
	return 0, false, fmt.Errorf("unknown link type: %d", link.LinkType)
}

// links returns the group's members as link messages. Old-style groups
// keep their members in a symbol table; those entries are converted.
func (g *Group) links() ([]*message.Link, error) {
	if g.state != nil {
		return g.state.links, nil
	}
	if g.header == nil {
		return nil, nil
	}

	var links []*message.Link
	for _, msg := range g.header.GetMessages(message.TypeLink) {
		links = append(links, msg.(*message.Link))
	}
	if len(links) > 0 {
		return links, nil
	}

	var symTable *message.SymbolTable
	if msg := g.header.GetMessage(message.TypeSymbolTable); msg != nil {
		symTable = msg.(*message.SymbolTable)
	} else if g.path == "/" && g.file.superblock.RootGroupBTreeAddress != 0 {
		// v0 superblocks cache the root symbol table in the scratch pad
		symTable = &message.SymbolTable{
			BTreeAddress:     g.file.superblock.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.superblock.RootGroupLocalHeapAddress,
		}
	}
	if symTable == nil {
		return nil, nil
	}

	localHeap, err := heap.ReadLocal(g.file.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	entries, err := btree.ReadGroupEntries(g.file.reader, symTable.BTreeAddress, localHeap)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree: %w", err)
	}
	for _, e := range entries {
		if e.LinkType == 1 {
			links = append(links, message.NewSoftLink(e.Name, e.SoftLinkValue))
		} else {
			links = append(links, message.NewHardLink(e.Name, e.ObjectAddress))
		}
	}
	return links, nil
}

// isDataset reports whether the object at address has a dataspace.
func (g *Group) isDataset(address uint64) (bool, error) {
	header, err := object.Read(g.file.reader, address)
	if err != nil {
		return false, err
	}
	return header.GetMessage(message.TypeDataspace) != nil, nil
}

// Members returns the names of all members in link order.
func (g *Group) Members() ([]string, error) {
	links, err := g.links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, link := range links {
		names[i] = link.Name
	}
	return names, nil
}

// NumObjects returns the number of members.
func (g *Group) NumObjects() (int, error) {
	links, err := g.links()
	return len(links), err
}

// HasMember reports whether name is a member of the group.
func (g *Group) HasMember(name string) bool {
	links, err := g.links()
	if err != nil {
		return false
	}
	for _, link := range links {
		if link.Name == name {
			return true
		}
	}
	return false
}

func (g *Group) attributes() []*message.Attribute {
	if g.state != nil {
		return g.state.attrs
	}
	if g.header == nil {
		return nil
	}
	msgs := g.header.GetMessages(message.TypeAttribute)
	attrs := make([]*message.Attribute, len(msgs))
	for i, msg := range msgs {
		attrs[i] = msg.(*message.Attribute)
	}
	return attrs
}

// Attrs returns the attribute names for this group.
func (g *Group) Attrs() []string {
	var names []string
	for _, attr := range g.attributes() {
		names = append(names, attr.Name)
	}
	return names
}

// Attr returns an attribute by name, or nil if not found.
func (g *Group) Attr(name string) *Attribute {
	for _, attr := range g.attributes() {
		if attr.Name == name {
			return &Attribute{msg: attr, reader: g.file.reader}
		}
	}
	return nil
}

// HasAttr returns true if the group has an attribute with the given name.
func (g *Group) HasAttr(name string) bool {
	return g.Attr(name) != nil
}
