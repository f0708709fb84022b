package flow

import (
	"encoding"
	"fmt"
	"io"
)

// BinaryMessage is implemented by types owning their wire format.
type BinaryMessage interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// BinaryCodec frames [BinaryMessage] values with a [BytesCodec].
type BinaryCodec[Msg BinaryMessage] struct {
	inner BytesCodec
	alloc func() Msg
	clone func(Msg) Msg
}

// NewBinaryCodec builds a codec allocating decoded values with `alloc`.
// When `clone` is non-nil, values crossing a local flow are cloned with
// it so both ends never share memory.
func NewBinaryCodec[Msg BinaryMessage](alloc func() Msg, clone func(Msg) Msg, maxFrameSize uint64) BinaryCodec[Msg] {
	return BinaryCodec[Msg]{
		inner: NewBytesCodec(false, maxFrameSize),
		alloc: alloc,
		clone: clone,
	}
}

func (enc BinaryCodec[Msg]) Encode(w io.Writer, msg interface{}) error {
	message, ok := msg.(Msg)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrFlowTypeMismatch, msg)
	}

	buf, err := message.MarshalBinary()
	if err != nil {
		return err
	}

	return enc.inner.Encode(w, buf)
}

func (enc BinaryCodec[Msg]) ProcessLocal(msg interface{}) (interface{}, error) {
	if enc.clone == nil {
		return msg, nil
	}

	message, ok := msg.(Msg)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrFlowTypeMismatch, msg)
	}

	return enc.clone(message), nil
}

func (enc BinaryCodec[Msg]) Decode(r io.Reader) (interface{}, error) {
	buf, err := enc.inner.Decode(r)
	if err != nil {
		return nil, err
	}

	allocated := enc.alloc()
	if err := allocated.UnmarshalBinary(buf.([]byte)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return allocated, nil
}
