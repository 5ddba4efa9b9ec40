package message

import (
	"bytes"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
)

// LinkType is the kind of target a link names.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// link message flag bits
const (
	linkNameWidth    = 0x03
	linkHasOrder     = 0x04
	linkHasType      = 0x08
	linkHasCharset   = 0x10
	undefinedAddress = ^uint64(0)
)

// Link is one member of a new-style group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func decodeLink(d *decoder) *Link {
	link := &Link{Version: d.u8()}
	flags := d.u8()
	if flags&linkHasType != 0 {
		link.LinkType = LinkType(d.u8())
	}
	if flags&linkHasOrder != 0 {
		link.CreationOrder = d.u64()
	}
	if flags&linkHasCharset != 0 {
		link.Charset = d.u8()
	}
	link.Name = string(d.bytes(int(d.uint(1 << (flags & linkNameWidth)))))

	switch link.LinkType {
	case LinkTypeHard:
		link.ObjectAddress = d.offset()
	case LinkTypeSoft:
		link.SoftLinkValue = string(d.bytes(int(d.u16())))
	case LinkTypeExternal:
		// a version byte, then the file and object names, each
		// NUL-terminated
		value := d.bytes(int(d.u16()))
		if len(value) < 2 {
			d.fail("external link value of %d bytes", len(value))
			break
		}
		file, path, _ := bytes.Cut(value[1:], []byte{0})
		link.ExternalFile = string(file)
		link.ExternalPath = string(bytes.TrimRight(path, "\x00"))
	}
	return link
}

// Serialize writes the version 1 encoding. The link type is only stored
// for soft and external links.
func (m *Link) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	width := sizeBytes(uint64(len(m.Name)))
	flags := uint8(0)
	for 1<<flags < width {
		flags++
	}
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}

	e.u8(1)
	e.u8(flags)
	if m.LinkType != LinkTypeHard {
		e.u8(uint8(m.LinkType))
	}
	e.uint(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(len(m.ExternalFile) + len(m.ExternalPath) + 3))
		e.u8(0)
		e.cstring(m.ExternalFile)
		e.cstring(m.ExternalPath)
	}
	return e.err
}

func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

// LinkInfo marks a group whose members are stored as link messages. Only
// compact storage is written, so the heap and index addresses are
// undefined.
type LinkInfo struct {
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func (m *LinkInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.uint(m.MaxCreationIndex, 8)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&0x03 == 0x03 {
		e.offset(m.CreationOrderBTreeAddr)
	}
	return e.err
}

func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: undefinedAddress, NameIndexBTreeAddr: undefinedAddress}
}

// GroupInfo carries the link storage thresholds of a new-style group.
// Zero flags keep the library defaults.
type GroupInfo struct {
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&0x02 != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return e.err
}

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
