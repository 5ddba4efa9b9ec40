package object

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/message"
)

// MinGroupChunkSize is the minimum message area of a group header. Readers
// such as h5py expect room for a few links before a continuation.
const MinGroupChunkSize = 120

// Encode serializes a v2 object header holding messages. The message area
// is padded with a NIL message up to minChunkSize bytes. cfg supplies the
// offset and length sizes of the target file.
func Encode(cfg binary.Config, messages []message.Message, minChunkSize int) ([]byte, error) {
	sizer := binary.NewWriter(&buffer{}, cfg)

	messagesSize := 0
	for _, msg := range messages {
		messagesSize += messageSize(sizer, msg)
	}
	chunkSize := max(messagesSize, minChunkSize)
	padding := chunkSize - messagesSize
	if padding > 0 && padding < 4 {
		// a NIL message needs its 4-byte header
		chunkSize += 4 - padding
		padding = 4
	}
	sizeFlag := chunkSizeFlag(int64(chunkSize))

	buf := &buffer{}
	w := binary.NewWriter(buf, cfg)
	if err := w.WriteBytes(SignatureV2); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(2); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(sizeFlag); err != nil {
		return nil, err
	}
	if err := w.WriteUintN(uint64(chunkSize), 1<<sizeFlag); err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if err := writeMessage(w, msg); err != nil {
			return nil, err
		}
	}
	if padding > 0 {
		if err := writeNil(w, padding); err != nil {
			return nil, err
		}
	}

	if err := w.WriteUint32(binary.Lookup3Checksum(buf.b[:w.Pos()])); err != nil {
		return nil, err
	}
	return buf.b[:w.Pos()], nil
}

// Write encodes a header and writes it at the writer's position.
func Write(w *binary.Writer, messages []message.Message, minChunkSize int) (int64, error) {
	data, err := Encode(writerConfig(w), messages, minChunkSize)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), w.WriteBytes(data)
}

func writerConfig(w *binary.Writer) binary.Config {
	return binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	}
}

func writeMessage(w *binary.Writer, msg message.Message) error {
	s, ok := msg.(message.Serializable)
	if !ok {
		return nil
	}
	size := message.SerializedSize(msg, w)
	if size > 0xFFFF {
		return fmt.Errorf("%w: message type %d needs %d bytes", ErrMessageTooLarge, msg.Type(), size)
	}
	if err := w.WriteUint8(uint8(msg.Type())); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(size)); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil {
		return err
	}
	return s.Serialize(w)
}

func writeNil(w *binary.Writer, size int) error {
	if err := w.WriteUint8(uint8(message.TypeNIL)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(size - 4)); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil {
		return err
	}
	return w.WriteZeros(size - 4)
}

// messageSize is the on-disk size of msg including its 4-byte v2 prefix
// (type, size, flags). Messages that cannot be serialized are skipped.
func messageSize(w *binary.Writer, msg message.Message) int {
	if _, ok := msg.(message.Serializable); !ok {
		return 0
	}
	return 4 + message.SerializedSize(msg, w)
}

// chunkSizeFlag returns the flag bits selecting a 1, 2, 4 or 8 byte chunk
// size field.
func chunkSizeFlag(size int64) uint8 {
	switch {
	case size <= 0xFF:
		return 0
	case size <= 0xFFFF:
		return 1
	case size <= 0xFFFFFFFF:
		return 2
	}
	return 3
}

// buffer is a growable io.WriterAt.
type buffer struct {
	b []byte
}

func (b *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.b) {
		b.b = append(b.b, make([]byte, end-len(b.b))...)
	}
	copy(b.b[off:], p)
	return len(p), nil
}

// NewGroupHeader returns the messages of a new-style group holding links
// and attrs.
func NewGroupHeader(links []*message.Link, attrs []*message.Attribute) []message.Message {
	messages := make([]message.Message, 0, len(links)+len(attrs)+2)
	messages = append(messages, message.NewLinkInfo(), message.NewGroupInfo())
	for _, link := range links {
		messages = append(messages, link)
	}
	for _, attr := range attrs {
		messages = append(messages, attr)
	}
	return messages
}

// NewDatasetHeader returns the messages of a dataset. pipeline may be nil.
func NewDatasetHeader(
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	layout *message.DataLayout,
	pipeline *message.FilterPipeline,
	attrs []*message.Attribute,
) []message.Message {
	messages := []message.Message{dataspace, datatype}
	if pipeline != nil {
		messages = append(messages, pipeline)
	}
	messages = append(messages, layout)
	for _, attr := range attrs {
		messages = append(messages, attr)
	}
	return messages
}
