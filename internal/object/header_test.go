package object

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

type image []byte

func (m image) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// place lays blocks out at their offsets in a zeroed file.
func place(size int, blocks map[int][]byte) *binary.Reader {
	img := make(image, size)
	for off, b := range blocks {
		copy(img[off:], b)
	}
	return binary.NewReader(img, binary.DefaultConfig())
}

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func u16(v int) []byte { return []byte{byte(v), byte(v >> 8)} }

func u32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }

func u64(v uint64) []byte { return cat(u32(uint32(v)), u32(uint32(v>>32))) }

func body(t *testing.T, msg message.Serializable) []byte {
	t.Helper()
	buf := &buffer{}
	w := binary.NewWriter(buf, binary.DefaultConfig())
	if err := msg.Serialize(w); err != nil {
		t.Fatal(err)
	}
	return buf.b[:w.Pos()]
}

func continuation(addr, length int) []byte { return cat(u64(uint64(addr)), u64(uint64(length))) }

func msgV1(typ message.Type, data []byte) []byte {
	padded := (len(data) + 7) &^ 7
	return cat(u16(int(typ)), u16(padded), make([]byte, 4), data, make([]byte, padded-len(data)))
}

func msgV2(typ message.Type, data []byte, order bool) []byte {
	p := cat([]byte{byte(typ)}, u16(len(data)), []byte{0})
	if order {
		p = cat(p, u16(7))
	}
	return cat(p, data)
}

func withChecksum(b []byte) []byte { return cat(b, u32(binary.Lookup3Checksum(b))) }

func headerV2(flags byte, extra, msgs []byte) []byte {
	size := u64(uint64(len(msgs)))[:1<<(flags&flagSizeMask)]
	return withChecksum(cat(SignatureV2, []byte{2, flags}, extra, size, msgs))
}

var (
	float64Type = message.NewFloatDatatype(8, message.OrderLE)
	space5      = message.NewDataspace([]uint64{5}, nil)
)

func TestEncodeRead(t *testing.T) {
	attr := message.NewAttribute("units", message.NewStringDatatype(4, message.PadNullPad, message.CharsetASCII),
		message.NewScalarDataspace(), []byte("Msun"))
	msgs := NewDatasetHeader(message.NewDataspace([]uint64{4, 3}, nil), float64Type,
		message.NewContiguousLayout(4096, 96), message.NewDeflatePipeline(4), []*message.Attribute{attr})

	data, err := Encode(binary.DefaultConfig(), msgs, MinGroupChunkSize)
	if err != nil {
		t.Fatal(err)
	}
	h, err := Read(place(1024, map[int][]byte{64: data}), 64)
	if err != nil {
		t.Fatal(err)
	}

	if h.Version != 2 || h.Address != 64 || h.RefCount != 1 {
		t.Errorf("header = v%d at %d refs %d", h.Version, h.Address, h.RefCount)
	}
	if len(h.Messages) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(h.Messages), len(msgs))
	}
	if ds := h.Dataspace(); ds == nil || !slices.Equal(ds.Dimensions, []uint64{4, 3}) {
		t.Errorf("dataspace = %+v", ds)
	}
	if dt := h.Datatype(); dt == nil || dt.Class != message.ClassFloatPoint || dt.Size != 8 {
		t.Errorf("datatype = %+v", dt)
	}
	if dl := h.DataLayout(); dl == nil || dl.Class != message.LayoutContiguous || dl.Address != 4096 {
		t.Errorf("layout = %+v", dl)
	}
	if fp := h.FilterPipeline(); fp == nil || len(fp.Filters) != 1 {
		t.Errorf("pipeline = %+v", fp)
	}
	attrs := h.GetMessages(message.TypeAttribute)
	if len(attrs) != 1 || attrs[0].(*message.Attribute).Name != "units" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestEncodeGroupLinkOrder(t *testing.T) {
	var links []*message.Link
	for _, name := range []string{"halos", "Masses", "a"} {
		links = append(links, message.NewHardLink(name, 800))
	}
	data, err := Encode(binary.DefaultConfig(), NewGroupHeader(links, nil), MinGroupChunkSize)
	if err != nil {
		t.Fatal(err)
	}
	h, err := Read(place(len(data), map[int][]byte{0: data}), 0)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, m := range h.GetMessages(message.TypeLink) {
		names = append(names, m.(*message.Link).Name)
	}
	if !slices.Equal(names, []string{"halos", "Masses", "a"}) {
		t.Errorf("links = %v", names)
	}
	if h.FilterPipeline() != nil {
		t.Error("group has a filter pipeline")
	}
}

func TestEncodeWideSizeField(t *testing.T) {
	data, err := Encode(binary.DefaultConfig(), nil, 40000)
	if err != nil {
		t.Fatal(err)
	}
	if data[5] != 1 {
		t.Errorf("size flag = %d, want 1", data[5])
	}
	if _, err := Read(place(len(data), map[int][]byte{0: data}), 0); err != nil {
		t.Fatal(err)
	}
}

func TestReadV2Continuation(t *testing.T) {
	link := body(t, message.NewHardLink("dataset_0", 2048))
	block := withChecksum(cat(continuationSignature, msgV2(message.TypeLink, link, false)))
	chunk0 := headerV2(0, nil, cat(
		msgV2(message.TypeDataspace, body(t, space5), false),
		msgV2(message.TypeObjectHeaderContinuation, continuation(512, len(block)), false),
	))

	h, err := Read(place(1024, map[int][]byte{0: chunk0, 512: block}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(h.Messages))
	}
	if l, ok := h.Messages[1].(*message.Link); !ok || l.Name != "dataset_0" || l.ObjectAddress != 2048 {
		t.Errorf("continued message = %+v", h.Messages[1])
	}
}

func TestReadV2Flags(t *testing.T) {
	times := cat(u32(1), u32(2), u32(3), u32(4))
	msgs := cat(msgV2(message.TypeDatatype, body(t, float64Type), true), []byte{0, 0, 0})
	flags := byte(flagTimes | flagPhaseChange | flagCreationOrder | 1)
	data := headerV2(flags, cat(times, u16(8), u16(6)), msgs)

	h, err := Read(place(len(data), map[int][]byte{0: data}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if h.Flags != flags {
		t.Errorf("flags = %#x", h.Flags)
	}
	if h.AccessTime != 1 || h.ModTime != 2 || h.ChangeTime != 3 || h.BirthTime != 4 {
		t.Errorf("times = %d %d %d %d", h.AccessTime, h.ModTime, h.ChangeTime, h.BirthTime)
	}
	if dt := h.Datatype(); dt == nil || dt.Size != 8 {
		t.Errorf("datatype = %+v", dt)
	}
}

func TestReadV1(t *testing.T) {
	chunk1 := cat(msgV1(message.TypeDatatype, body(t, float64Type)), msgV1(message.TypeNIL, make([]byte, 8)))
	chunk0 := cat(
		msgV1(message.TypeDataspace, body(t, space5)),
		msgV1(message.TypeObjectHeaderContinuation, continuation(512, len(chunk1))),
	)
	prefix := cat([]byte{1, 0}, u16(3), u32(3), u32(uint32(len(chunk0))), make([]byte, 4))

	h, err := Read(place(1024, map[int][]byte{0: cat(prefix, chunk0), 512: chunk1}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if h.Version != 1 || h.RefCount != 3 {
		t.Errorf("header = v%d refs %d", h.Version, h.RefCount)
	}
	if len(h.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(h.Messages))
	}
	if ds := h.Dataspace(); ds == nil || !slices.Equal(ds.Dimensions, []uint64{5}) {
		t.Errorf("dataspace = %+v", ds)
	}
	if dt := h.Datatype(); dt == nil || dt.Class != message.ClassFloatPoint {
		t.Errorf("datatype = %+v", dt)
	}
}

func TestReadContinuationCycle(t *testing.T) {
	chunk1 := msgV1(message.TypeObjectHeaderContinuation, continuation(512, 24))
	chunk0 := msgV1(message.TypeObjectHeaderContinuation, continuation(512, len(chunk1)))
	prefix := cat([]byte{1, 0}, u16(1), u32(1), u32(uint32(len(chunk0))), make([]byte, 4))

	h, err := Read(place(1024, map[int][]byte{0: cat(prefix, chunk0), 512: chunk1}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Messages) != 0 {
		t.Errorf("got %d messages", len(h.Messages))
	}
}

func TestReadErrors(t *testing.T) {
	good := headerV2(0, nil, msgV2(message.TypeDataspace, body(t, space5), false))
	corrupt := slices.Clone(good)
	corrupt[10] ^= 0xff
	badVersion := slices.Clone(good)
	badVersion[4] = 3
	noSig := headerV2(0, nil, msgV2(message.TypeObjectHeaderContinuation, continuation(256, 16), false))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unknown format", []byte{99, 0, 0, 0}, ErrInvalidHeader},
		{"checksum", corrupt, ErrChecksumMismatch},
		{"version", badVersion, ErrUnsupportedVersion},
		{"continuation signature", noSig, ErrInvalidHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(place(512, map[int][]byte{0: tt.data}), 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHeaderAccessorsMissing(t *testing.T) {
	h := &Header{Messages: []message.Message{&message.Attribute{Name: "a"}, &message.Attribute{Name: "b"}}}
	if h.Dataspace() != nil || h.Datatype() != nil || h.DataLayout() != nil {
		t.Error("expected nil accessors")
	}
	if h.GetMessage(message.TypeLink) != nil {
		t.Error("unexpected link")
	}
	if got := h.GetMessages(message.TypeAttribute); len(got) != 2 {
		t.Errorf("got %d attributes", len(got))
	}
}
