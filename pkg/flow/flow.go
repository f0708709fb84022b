// Package flow provides typed, goroutine-backed flows on top of raw
// transports: in-process buffered channels or QUIC streams.
package flow

import "errors"

var (
	ErrFlowClosed       = errors.New("flow closed")
	ErrFrameTooLarge    = errors.New("flow: frame is larger than the allowed maximum")
	ErrFlowTypeMismatch = errors.New("flow: unexpected message type")

	// ErrMalformed is wrapped by decoders when a frame was read entirely
	// but its content could not be decoded. The flow stays usable.
	ErrMalformed = errors.New("flow: malformed message")
)

// DefaultMaxFrameSize bounds decoded frames when the codec does not say
// otherwise.
const DefaultMaxFrameSize = 4 << 20

// Raw is a bidirectional raw flow.
//
// Most users should not use it directly but wrap it
// in a [Sender] and [Receiver], or a [Duplex], for a better DX.
type Raw struct {
	RawReceiver
	RawSender
}

func (r Raw) Close() error {
	return errors.Join(r.RawReceiver.Close(), r.RawSender.Close())
}

// Duplex is a thread-safe, typed, bidirectional flow.
type Duplex[T any] struct {
	*Sender[T]
	*Receiver[T]
}

// NewDuplex wraps both halves of `raw`.
func NewDuplex[T any](raw Raw, enc Encoder, dec Decoder, bufferSize uint) *Duplex[T] {
	return &Duplex[T]{
		Sender:   NewSender[T](raw.RawSender, enc, bufferSize),
		Receiver: NewReceiver[T](raw.RawReceiver, dec, bufferSize),
	}
}

// Close flushes and closes the sending half, then the receiving one.
func (d *Duplex[T]) Close() error {
	return errors.Join(d.Sender.Close(), d.Receiver.Close())
}
