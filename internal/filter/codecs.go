package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

var ErrChecksum = errors.New("fletcher32 checksum mismatch")

// Deflate is zlib compression. Catalogues are usually written at level 4
// to 6 on the chunked per-halo datasets.
type Deflate struct {
	Level int
}

func NewDeflate(level int) *Deflate { return &Deflate{Level: level} }

func (*Deflate) ID() uint16 { return message.FilterDeflate }

func (f *Deflate) Decode(in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (f *Deflate) Encode(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Shuffle regroups the bytes of Size-byte elements so byte k of every
// element is contiguous. Bytes past the last whole element are left in
// place.
type Shuffle struct {
	Size int
}

func (Shuffle) ID() uint16 { return message.FilterShuffle }

func (f Shuffle) Decode(in []byte) ([]byte, error) { return f.transpose(in, false), nil }

func (f Shuffle) Encode(in []byte) ([]byte, error) { return f.transpose(in, true), nil }

func (f Shuffle) transpose(in []byte, shuffle bool) []byte {
	n := 0
	if f.Size > 1 {
		n = len(in) / f.Size
	}
	if n <= 1 {
		return in
	}
	out := make([]byte, len(in))
	for i := range n {
		for k := range f.Size {
			if shuffle {
				out[k*n+i] = in[i*f.Size+k]
			} else {
				out[i*f.Size+k] = in[k*n+i]
			}
		}
	}
	copy(out[n*f.Size:], in[n*f.Size:])
	return out
}

// Fletcher32 appends a Fletcher-32 checksum of the data.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (Fletcher32) Decode(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrChecksum, len(in))
	}
	data, tail := in[:len(in)-4], in[len(in)-4:]
	stored := uint32(tail[0]) | uint32(tail[1])<<8 | uint32(tail[2])<<16 | uint32(tail[3])<<24
	if sum := binary.Fletcher32(data); sum != stored {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksum, stored, sum)
	}
	return data, nil
}

func (Fletcher32) Encode(in []byte) ([]byte, error) {
	sum := binary.Fletcher32(in)
	return append(bytes.Clone(in), byte(sum), byte(sum>>8), byte(sum>>16), byte(sum>>24)), nil
}
