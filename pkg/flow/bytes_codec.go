package flow

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// BytesCodec is a simple framing codec using varint length-prefixed frames
// to exchange []byte over a stream.
type BytesCodec struct {
	copyBuffers  bool
	maxFrameSize uint64
}

// NewBytesCodec returns a codec copying buffers sent over local flows when
// `localCopy` is set. Frames larger than `maxFrameSize` are rejected in
// both directions; zero means [DefaultMaxFrameSize].
func NewBytesCodec(localCopy bool, maxFrameSize uint64) BytesCodec {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return BytesCodec{
		copyBuffers:  localCopy,
		maxFrameSize: maxFrameSize,
	}
}

func (enc BytesCodec) limit() uint64 {
	if enc.maxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return enc.maxFrameSize
}

func (enc BytesCodec) Encode(w io.Writer, msg interface{}) error {
	buf, ok := msg.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T instead of []byte", ErrFlowTypeMismatch, msg)
	}
	if uint64(len(buf)) > enc.limit() {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(buf))
	}

	prefixed := protowire.AppendVarint(make([]byte, 0, binary.MaxVarintLen64+len(buf)), uint64(len(buf)))
	prefixed = append(prefixed, buf...)
	_, err := w.Write(prefixed)
	return err
}

func (enc BytesCodec) ProcessLocal(msg interface{}) (interface{}, error) {
	if !enc.copyBuffers {
		return msg, nil
	}

	buf, ok := msg.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: got %T instead of []byte", ErrFlowTypeMismatch, msg)
	}

	cloned := make([]byte, len(buf))
	copy(cloned, buf)
	return cloned, nil
}

// Decode reads exactly one frame. The prefix is read byte by byte so we
// never consume bytes belonging to the next frame.
func (enc BytesCodec) Decode(r io.Reader) (interface{}, error) {
	buf := make([]byte, binary.MaxVarintLen64)
	n := 0
	for n < len(buf) {
		if _, err := io.ReadFull(r, buf[n:n+1]); err != nil {
			return nil, err
		}
		n++
		if buf[n-1] < 0x80 {
			break
		}
	}

	prefix, prefixSize := protowire.ConsumeVarint(buf[:n])
	if err := protowire.ParseError(prefixSize); err != nil {
		return nil, err
	}
	if prefix > enc.limit() {
		return nil, fmt.Errorf("%w: peer announced %d bytes", ErrFrameTooLarge, prefix)
	}

	frame := make([]byte, prefix)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
