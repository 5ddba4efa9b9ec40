package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-velociraptor/internal/binary"
)

func reader(offsetSize, lengthSize int) *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(nil), binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: offsetSize,
		LengthSize: lengthSize,
	})
}

// le joins byte slices and little-endian integers into one message body.
func le(parts ...any) []byte {
	var b []byte
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			b = append(b, v...)
		case string:
			b = append(b, v...)
		case uint8:
			b = append(b, v)
		case uint16:
			b = binary.LittleEndian.AppendUint16(b, v)
		case uint32:
			b = binary.LittleEndian.AppendUint32(b, v)
		case uint64:
			b = binary.LittleEndian.AppendUint64(b, v)
		default:
			panic("le: unsupported part")
		}
	}
	return b
}

func zeros(n int) []byte { return make([]byte, n) }

func parse[T Message](t *testing.T, typ Type, data []byte) T {
	t.Helper()
	msg, err := Parse(typ, data, 0, reader(8, 8))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, ok := msg.(T)
	if !ok {
		t.Fatalf("Parse returned %T", msg)
	}
	return m
}

var (
	int32Type   = le(uint8(0x10), uint8(0x08), uint16(0), uint32(4), uint16(0), uint16(32))
	float64Type = le(uint8(0x11), uint8(0x20), uint8(63), uint8(0), uint32(8),
		uint16(0), uint16(64), uint8(52), uint8(11), uint8(0), uint8(52), uint32(1023))
)

func TestDecodeDataspace(t *testing.T) {
	scalar := parse[*Dataspace](t, TypeDataspace, le(uint8(2), uint8(0), uint8(0), uint8(0)))
	if !scalar.IsScalar() || scalar.NumElements() != 1 {
		t.Errorf("scalar: %+v", scalar)
	}

	simple := parse[*Dataspace](t, TypeDataspace, le(uint8(2), uint8(2), uint8(1), uint8(1),
		uint64(3), uint64(4), uint64(3), ^uint64(0)))
	if simple.NumElements() != 12 || simple.MaxDims[1] != ^uint64(0) {
		t.Errorf("simple: %+v", simple)
	}

	v1 := parse[*Dataspace](t, TypeDataspace, le(uint8(1), uint8(1), uint8(0), zeros(5), uint64(10)))
	if v1.SpaceType != DataspaceSimple || v1.Dimensions[0] != 10 {
		t.Errorf("version 1: %+v", v1)
	}

	null := parse[*Dataspace](t, TypeDataspace, le(uint8(2), uint8(0), uint8(0), uint8(2)))
	if !null.IsNull() || null.NumElements() != 0 {
		t.Errorf("null: %+v", null)
	}

	if _, err := Parse(TypeDataspace, le(uint8(2), uint8(1), uint8(0), uint8(1)), 0, reader(8, 8)); !errors.Is(err, ErrTruncated) {
		t.Errorf("missing dimension: got %v", err)
	}
	if _, err := Parse(TypeDataspace, le(uint8(7), uint8(0), uint8(0), uint8(0)), 0, reader(8, 8)); err == nil {
		t.Error("version 7 accepted")
	}
}

func TestDecodeDataspaceLengthSize(t *testing.T) {
	msg, err := Parse(TypeDataspace, le(uint8(2), uint8(1), uint8(0), uint8(1), uint32(70000)), 0, reader(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if ds := msg.(*Dataspace); ds.Dimensions[0] != 70000 {
		t.Errorf("dimension = %d", ds.Dimensions[0])
	}
}

func TestDecodeDatatype(t *testing.T) {
	i32 := parse[*Datatype](t, TypeDatatype, int32Type)
	if i32.Class != ClassFixedPoint || i32.Size != 4 || !i32.Signed || i32.BitPrecision != 32 {
		t.Errorf("int32: %+v", i32)
	}

	be := parse[*Datatype](t, TypeDatatype, le(uint8(0x10), uint8(0x01), uint16(0), uint32(2), uint16(0), uint16(16)))
	if be.ByteOrder != OrderBE || be.Signed {
		t.Errorf("big-endian uint16: %+v", be)
	}

	f64 := parse[*Datatype](t, TypeDatatype, float64Type)
	if f64.Class != ClassFloatPoint || f64.Size != 8 || f64.BitPrecision != 64 || len(f64.Properties) != 12 {
		t.Errorf("float64: %+v", f64)
	}

	str := parse[*Datatype](t, TypeDatatype, le(uint8(0x13), uint8(0x12), uint16(0), uint32(6)))
	if str.StringPadding != PadSpacePad || str.CharSet != CharsetUTF8 || str.Size != 6 {
		t.Errorf("string: %+v", str)
	}

	vlen := parse[*Datatype](t, TypeDatatype, le(uint8(0x19), uint8(0x01), uint8(0x01), uint8(0), uint32(16),
		uint8(0x10), uint8(0), uint16(0), uint32(1), uint16(0), uint16(8)))
	if !vlen.IsVarLenString || vlen.CharSet != CharsetUTF8 || vlen.Base == nil || vlen.Base.Size != 1 {
		t.Errorf("vlen string: %+v", vlen)
	}

	array := parse[*Datatype](t, TypeDatatype, le(uint8(0x2a), uint8(0), uint16(0), uint32(12),
		uint8(1), zeros(3), uint32(3), uint32(0), int32Type))
	if len(array.Dims) != 1 || array.Dims[0] != 3 || array.Base == nil || array.Base.Size != 4 {
		t.Errorf("array: %+v", array)
	}

	compound := parse[*Datatype](t, TypeDatatype, le(uint8(0x36), uint8(1), uint16(0), uint32(4), "x", uint8(0), uint8(0), int32Type))
	if compound.Class != ClassCompound || len(compound.Properties) != 3+len(int32Type) {
		t.Errorf("compound: %+v", compound)
	}

	if _, err := Parse(TypeDatatype, int32Type[:6], 0, reader(8, 8)); !errors.Is(err, ErrTruncated) {
		t.Errorf("short datatype: got %v", err)
	}
}

func TestDecodeDataLayout(t *testing.T) {
	contiguous := parse[*DataLayout](t, TypeDataLayout, le(uint8(3), uint8(1), uint64(0x800), uint64(96)))
	if contiguous.Class != LayoutContiguous || contiguous.Address != 0x800 || contiguous.Size != 96 {
		t.Errorf("contiguous: %+v", contiguous)
	}

	compact := parse[*DataLayout](t, TypeDataLayout, le(uint8(3), uint8(0), uint16(3), "abc"))
	if string(compact.CompactData) != "abc" {
		t.Errorf("compact: %+v", compact)
	}

	v3 := parse[*DataLayout](t, TypeDataLayout, le(uint8(3), uint8(2), uint8(3), uint64(0x900), uint32(10), uint32(20), uint32(8)))
	if v3.ChunkIndexAddr != 0x900 || len(v3.ChunkDims) != 3 || v3.ChunkDims[2] != 8 || v3.ChunkIndexType != ChunkIndexBTreeV1 {
		t.Errorf("chunked v3: %+v", v3)
	}

	single := parse[*DataLayout](t, TypeDataLayout, le(uint8(4), uint8(2), uint8(0x02), uint8(2), uint8(1),
		uint8(10), uint8(8), uint8(1), uint64(123), uint32(0), uint64(0x4000)))
	if single.ChunkIndexType != ChunkIndexSingleChunk || single.FilteredChunkSize != 123 || single.ChunkIndexAddr != 0x4000 {
		t.Errorf("single chunk: %+v", single)
	}

	fixed := parse[*DataLayout](t, TypeDataLayout, le(uint8(4), uint8(2), uint8(0), uint8(2), uint8(2),
		uint16(1000), uint16(8), uint8(3), uint8(10), uint64(0x5000)))
	if fixed.ChunkDims[0] != 1000 || fixed.ChunkIndexType != ChunkIndexFixedArray || fixed.ChunkIndexAddr != 0x5000 {
		t.Errorf("fixed array: %+v", fixed)
	}

	old := parse[*DataLayout](t, TypeDataLayout, le(uint8(1), uint8(2), uint8(1), zeros(5), uint64(0x800), uint32(10), uint32(8)))
	if old.Class != LayoutContiguous || old.Address != 0x800 || old.Size != 0 {
		t.Errorf("contiguous v1: %+v", old)
	}

	oldChunked := parse[*DataLayout](t, TypeDataLayout, le(uint8(2), uint8(2), uint8(2), zeros(5), uint64(0x900), uint32(16), uint32(8)))
	if oldChunked.ChunkIndexAddr != 0x900 || oldChunked.Address != 0 || oldChunked.ChunkDims[0] != 16 {
		t.Errorf("chunked v2: %+v", oldChunked)
	}

	for _, data := range [][]byte{le(uint8(9), uint8(1)), le(uint8(4), uint8(3)), le(uint8(3))} {
		if _, err := Parse(TypeDataLayout, data, 0, reader(8, 8)); err == nil {
			t.Errorf("layout % x accepted", data)
		}
	}
}

func TestDecodeLink(t *testing.T) {
	hard := parse[*Link](t, TypeLink, le(uint8(1), uint8(0x14), uint64(5), uint8(1), uint8(4), "mass", uint64(0x1234)))
	if !hard.IsHard() || hard.Name != "mass" || hard.CreationOrder != 5 || hard.Charset != 1 || hard.ObjectAddress != 0x1234 {
		t.Errorf("hard: %+v", hard)
	}

	soft := parse[*Link](t, TypeLink, le(uint8(1), uint8(0x08), uint8(1), uint8(5), "alias", uint16(6), "/group"))
	if !soft.IsSoft() || soft.SoftLinkValue != "/group" {
		t.Errorf("soft: %+v", soft)
	}

	ext := parse[*Link](t, TypeLink, le(uint8(1), uint8(0x08), uint8(64), uint8(3), "ext", uint16(15),
		uint8(0), "file.h5", uint8(0), "/path", uint8(0)))
	if !ext.IsExternal() || ext.ExternalFile != "file.h5" || ext.ExternalPath != "/path" {
		t.Errorf("external: %+v", ext)
	}

	if _, err := Parse(TypeLink, []byte{1}, 0, reader(8, 8)); !errors.Is(err, ErrTruncated) {
		t.Errorf("short link: got %v", err)
	}
}

func TestDecodeFilterPipeline(t *testing.T) {
	v1 := parse[*FilterPipeline](t, TypeFilterPipeline, le(uint8(1), uint8(1), zeros(6),
		uint16(FilterDeflate), uint16(8), uint16(0), uint16(1), "deflate", uint8(0), uint32(6), uint32(0)))
	if len(v1.Filters) != 1 || v1.Filters[0].Name != "deflate" || v1.Filters[0].ClientData[0] != 6 {
		t.Errorf("version 1: %+v", v1)
	}

	v2 := parse[*FilterPipeline](t, TypeFilterPipeline, le(uint8(2), uint8(2),
		uint16(FilterShuffle), uint16(0), uint16(0),
		uint16(FilterDeflate), uint16(1), uint16(1), uint32(4)))
	if len(v2.Filters) != 2 || v2.Filters[0].ID != FilterShuffle || v2.Filters[1].ClientData[0] != 4 {
		t.Fatalf("version 2: %+v", v2)
	}
	if v2.Filters[0].IsOptional() || !v2.Filters[1].IsOptional() {
		t.Error("optional flag decoded wrongly")
	}
}

func TestDecodeAttribute(t *testing.T) {
	// version 1 pads the name, datatype and dataspace to 8 bytes
	v1 := parse[*Attribute](t, TypeAttribute, le(uint8(1), uint8(0), uint16(5), uint16(12), uint16(8),
		"mass", zeros(4), int32Type, zeros(4), uint8(1), uint8(0), uint8(0), zeros(5), uint32(7)))
	if v1.Name != "mass" || v1.Datatype == nil || v1.Datatype.Size != 4 || !v1.Dataspace.IsScalar() {
		t.Fatalf("version 1: %+v", v1)
	}
	if !bytes.Equal(v1.Data, []byte{7, 0, 0, 0}) {
		t.Errorf("version 1 data = % x", v1.Data)
	}

	v3 := parse[*Attribute](t, TypeAttribute, le(uint8(3), uint8(0), uint16(2), uint16(len(float64Type)), uint16(4), uint8(0),
		"z", uint8(0), float64Type, uint8(2), uint8(0), uint8(0), uint8(0), uint64(0x3ff8000000000000)))
	if v3.Name != "z" || v3.Datatype.Class != ClassFloatPoint || len(v3.Data) != 8 {
		t.Errorf("version 3: %+v", v3)
	}

	// an unreadable datatype leaves the attribute listed
	odd := parse[*Attribute](t, TypeAttribute, le(uint8(2), uint8(0), uint16(2), uint16(3), uint16(4),
		"q", uint8(0), zeros(3), uint8(2), uint8(0), uint8(0), uint8(0)))
	if odd.Name != "q" || odd.Datatype != nil || odd.Dataspace == nil {
		t.Errorf("bad datatype: %+v", odd)
	}
}

func TestDecodeFillValue(t *testing.T) {
	v2 := parse[*FillValue](t, TypeFillValue, le(uint8(2), uint8(1), uint8(0), uint8(1), uint32(4), uint32(0xffffffff)))
	if !v2.IsDefined || len(v2.Value) != 4 || v2.SpaceAllocTime != 1 {
		t.Errorf("version 2: %+v", v2)
	}

	v3 := parse[*FillValue](t, TypeFillValue, le(uint8(3), uint8(0x22), uint32(8), uint64(0)))
	if !v3.IsDefined || len(v3.Value) != 8 || v3.SpaceAllocTime != 2 {
		t.Errorf("version 3: %+v", v3)
	}

	undefined := parse[*FillValue](t, TypeFillValue, le(uint8(3), uint8(0x10)))
	if undefined.IsDefined || undefined.Value != nil {
		t.Errorf("undefined: %+v", undefined)
	}
}

func TestDecodeAddresses(t *testing.T) {
	st := parse[*SymbolTable](t, TypeSymbolTable, le(uint64(0x1000), uint64(0x2000)))
	if st.BTreeAddress != 0x1000 || st.LocalHeapAddress != 0x2000 {
		t.Errorf("symbol table: %+v", st)
	}

	cont, err := ParseContinuation(le(uint32(0x3000), uint32(64)), reader(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if cont.Offset != 0x3000 || cont.Length != 64 {
		t.Errorf("continuation: %+v", cont)
	}
}

func TestUnknownMessage(t *testing.T) {
	msg, err := Parse(Type(0x99), []byte{1, 2, 3, 4}, 0, reader(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	unknown, ok := msg.(*Unknown)
	if !ok {
		t.Fatalf("got %T", msg)
	}
	if unknown.Type() != Type(0x99) || len(unknown.Data()) != 4 {
		t.Errorf("unknown: type %#x data % x", unknown.Type(), unknown.Data())
	}
}
