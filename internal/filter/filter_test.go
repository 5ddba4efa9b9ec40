package filter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

func float64Bytes(n int) []byte {
	b := make([]byte, 8*n)
	for i := range n {
		// small positive doubles share their high bytes
		b[8*i+6] = 0xf0
		b[8*i+7] = 0x3f
		b[8*i] = byte(i)
	}
	return b
}

func TestDeflateDecodesZlibStream(t *testing.T) {
	want := bytes.Repeat([]byte("Mass_200crit "), 50)
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(want)
	w.Close()

	got, err := NewDeflate(6).Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q", got)
	}
	if _, err := NewDeflate(6).Decode([]byte("not zlib")); err == nil {
		t.Error("expected error for corrupt stream")
	}
}

func TestShuffle(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	s := Shuffle{Size: 4}

	enc, _ := s.Encode(in)
	want := []byte{1, 5, 9, 2, 6, 10, 3, 7, 11, 4, 8, 12, 13}
	if !bytes.Equal(enc, want) {
		t.Errorf("Encode = %v, want %v", enc, want)
	}
	dec, _ := s.Decode(enc)
	if !bytes.Equal(dec, in) {
		t.Errorf("Decode = %v, want %v", dec, in)
	}

	for _, s := range []Shuffle{{Size: 1}, {Size: 0}, {Size: 16}} {
		if out, _ := s.Encode(in); !bytes.Equal(out, in) {
			t.Errorf("size %d changed data: %v", s.Size, out)
		}
	}
}

func TestFletcher32(t *testing.T) {
	data := []byte("abcde")
	enc, err := Fletcher32{}.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != len(data)+4 || !bytes.Equal(enc[:len(data)], data) {
		t.Fatalf("Encode = %v", enc)
	}
	dec, err := Fletcher32{}.Decode(enc)
	if err != nil || !bytes.Equal(dec, data) {
		t.Errorf("Decode = %q, %v", dec, err)
	}

	enc[0] ^= 0xff
	if _, err := (Fletcher32{}).Decode(enc); !errors.Is(err, ErrChecksum) {
		t.Errorf("corrupt err = %v", err)
	}
	if _, err := (Fletcher32{}).Decode([]byte{1, 2}); !errors.Is(err, ErrChecksum) {
		t.Errorf("short err = %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		info    message.FilterInfo
		wantID  uint16
		wantNil bool
		wantErr bool
	}{
		{"deflate", message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{4}}, message.FilterDeflate, false, false},
		{"shuffle", message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{8}}, message.FilterShuffle, false, false},
		{"fletcher32", message.FilterInfo{ID: message.FilterFletcher32}, message.FilterFletcher32, false, false},
		{"szip", message.FilterInfo{ID: message.FilterSZIP}, 0, true, true},
		{"unknown", message.FilterInfo{ID: 32000}, 0, true, true},
		{"unknown optional", message.FilterInfo{ID: 32000, Flags: 1}, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.info)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupported) {
				t.Errorf("err = %v, want ErrUnsupported", err)
			}
			if (f == nil) != tt.wantNil {
				t.Fatalf("filter = %v", f)
			}
			if f != nil && f.ID() != tt.wantID {
				t.Errorf("ID = %d, want %d", f.ID(), tt.wantID)
			}
		})
	}

	f, _ := New(message.FilterInfo{ID: message.FilterDeflate})
	if f.(*Deflate).Level != 6 {
		t.Errorf("default level = %d", f.(*Deflate).Level)
	}
}

func TestPipelineRoundTrip(t *testing.T) {
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{
		{ID: message.FilterShuffle, ClientData: []uint32{8}},
		{ID: 32000, Flags: 1},
		{ID: message.FilterDeflate, ClientData: []uint32{4}},
		{ID: message.FilterFletcher32},
	}}
	p, err := NewPipeline(fp)
	if err != nil {
		t.Fatal(err)
	}
	if p.Empty() {
		t.Fatal("pipeline is empty")
	}

	data := float64Bytes(512)
	enc, err := p.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) >= len(data) {
		t.Errorf("encoded %d bytes from %d", len(enc), len(data))
	}
	dec, err := p.Decode(enc, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("round trip mismatch")
	}
}

func TestPipelineMask(t *testing.T) {
	p, err := NewPipeline(&message.FilterPipeline{Filters: []message.FilterInfo{
		{ID: message.FilterShuffle, ClientData: []uint32{4}},
		{ID: message.FilterDeflate},
	}})
	if err != nil {
		t.Fatal(err)
	}

	// chunk stored shuffled but not deflated
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	shuffled, _ := Shuffle{Size: 4}.Encode(in)
	got, err := p.Decode(shuffled, 1<<1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, in) {
		t.Errorf("got %v, want %v", got, in)
	}
	if got, _ := p.Decode(in, 0b11); !bytes.Equal(got, in) {
		t.Errorf("fully masked chunk changed: %v", got)
	}
}

func TestPipelineEmpty(t *testing.T) {
	for _, fp := range []*message.FilterPipeline{nil, {}, {Filters: []message.FilterInfo{{ID: 32000, Flags: 1}}}} {
		p, err := NewPipeline(fp)
		if err != nil {
			t.Fatal(err)
		}
		if !p.Empty() {
			t.Errorf("pipeline %+v not empty", fp)
		}
		if got, _ := p.Decode([]byte("raw"), 0); string(got) != "raw" {
			t.Errorf("Decode = %q", got)
		}
	}
	if _, err := NewPipeline(&message.FilterPipeline{Filters: []message.FilterInfo{{ID: message.FilterNBit}}}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("n-bit err = %v", err)
	}
}
