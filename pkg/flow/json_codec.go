package flow

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// JSONCodec frames JSON documents with a [BytesCodec]. It is meant for
// small control messages such as handshakes, not for bulk traffic.
type JSONCodec[Msg any] struct {
	frames BytesCodec
	alloc  func() Msg
}

// NewJSONCodec returns a codec decoding into new values of `Msg`, which
// must be a pointer type. `maxFrameSize` bounds encoded documents; zero
// means [DefaultMaxFrameSize].
func NewJSONCodec[Msg any](maxFrameSize uint64) JSONCodec[Msg] {
	t := reflect.TypeFor[Msg]()
	if t.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("flow: json codec needs a pointer type, got %s", t))
	}

	return JSONCodec[Msg]{
		frames: NewBytesCodec(false, maxFrameSize),
		alloc: func() Msg {
			return reflect.New(t.Elem()).Interface().(Msg)
		},
	}
}

func (c JSONCodec[Msg]) Encode(w io.Writer, msg interface{}) error {
	if _, ok := msg.(Msg); !ok {
		return fmt.Errorf("%w: got %T instead of %s", ErrFlowTypeMismatch, msg, reflect.TypeFor[Msg]())
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.frames.Encode(w, buf)
}

// ProcessLocal round-trips `msg` through JSON so the receiving end never
// shares memory with the sender.
func (c JSONCodec[Msg]) ProcessLocal(msg interface{}) (interface{}, error) {
	if _, ok := msg.(Msg); !ok {
		return nil, fmt.Errorf("%w: got %T instead of %s", ErrFlowTypeMismatch, msg, reflect.TypeFor[Msg]())
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return c.unmarshal(buf)
}

func (c JSONCodec[Msg]) Decode(r io.Reader) (interface{}, error) {
	frame, err := c.frames.Decode(r)
	if err != nil {
		return nil, err
	}
	msg, err := c.unmarshal(frame.([]byte))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return msg, nil
}

// DecodeOne reads a single document.
func (c JSONCodec[Msg]) DecodeOne(r io.Reader) (Msg, error) {
	var zero Msg
	elem, err := c.Decode(r)
	if err != nil {
		return zero, err
	}
	return elem.(Msg), nil
}

func (c JSONCodec[Msg]) unmarshal(buf []byte) (Msg, error) {
	result := c.alloc()
	if err := json.Unmarshal(buf, result); err != nil {
		var zero Msg
		return zero, err
	}
	return result, nil
}
