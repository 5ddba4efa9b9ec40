// Package filter runs chunk data through an HDF5 filter pipeline. Reading
// applies the filters last to first and honours each chunk's filter mask;
// writing applies them first to last.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// Filter decodes one stage of a pipeline.
type Filter interface {
	ID() uint16
	Decode(in []byte) ([]byte, error)
}

// Encoder is a Filter that can also be applied when writing.
type Encoder interface {
	Filter
	Encode(in []byte) ([]byte, error)
}

var ErrUnsupported = errors.New("unsupported filter")

// registry maps filter IDs to constructors taking the client data.
var registry = map[uint16]func(cd []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(int(param(cd, 6))) },
	message.FilterShuffle:    func(cd []uint32) Filter { return Shuffle{Size: int(param(cd, 1))} },
	message.FilterFletcher32: func([]uint32) Filter { return Fletcher32{} },
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "Fletcher32",
	message.FilterSZIP:        "SZIP",
	message.FilterNBit:        "N-bit",
	message.FilterScaleOffset: "scale-offset",
}

func param(cd []uint32, def uint32) uint32 {
	if len(cd) == 0 || cd[0] == 0 {
		return def
	}
	return cd[0]
}

// New returns the filter described by info. Unknown optional filters
// return nil and no error.
func New(info message.FilterInfo) (Filter, error) {
	if ctor, ok := registry[info.ID]; ok {
		return ctor(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, ok := names[info.ID]; ok {
		return nil, fmt.Errorf("%w: %s (ID %d)", ErrUnsupported, name, info.ID)
	}
	return nil, fmt.Errorf("%w: ID %d", ErrUnsupported, info.ID)
}

// Pipeline is the ordered filter list of one dataset. Mask bits refer to
// positions in the message, so skipped optional filters keep their slot.
type Pipeline struct {
	filters []Filter
}

func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	if fp == nil {
		return &Pipeline{}, nil
	}
	p := &Pipeline{filters: make([]Filter, len(fp.Filters))}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		p.filters[i] = f
	}
	return p, nil
}

// Empty reports whether decoding is the identity.
func (p *Pipeline) Empty() bool {
	for _, f := range p.filters {
		if f != nil {
			return false
		}
	}
	return true
}

// Decode undoes the pipeline. Bit i of mask set means filter i was not
// applied to this chunk.
func (p *Pipeline) Decode(in []byte, mask uint32) ([]byte, error) {
	data := in
	for i := len(p.filters) - 1; i >= 0; i-- {
		f := p.filters[i]
		if f == nil || mask&(1<<i) != 0 {
			continue
		}
		var err error
		if data, err = f.Decode(data); err != nil {
			return nil, fmt.Errorf("%s filter: %w", names[f.ID()], err)
		}
	}
	return data, nil
}

// Encode applies every filter in order. All of them must be Encoders.
func (p *Pipeline) Encode(in []byte) ([]byte, error) {
	data := in
	for _, f := range p.filters {
		if f == nil {
			continue
		}
		enc, ok := f.(Encoder)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot encode", ErrUnsupported, names[f.ID()])
		}
		var err error
		if data, err = enc.Encode(data); err != nil {
			return nil, fmt.Errorf("%s filter: %w", names[f.ID()], err)
		}
	}
	return data, nil
}
