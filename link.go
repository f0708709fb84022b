package subway

import (
	"context"
	"fmt"

	"github.com/raskyld/subway/pkg/flow"
)

// Link is the transport binding of a peer. Links are full-duplex: `Send`
// and `Recv` are called from different goroutines, but each of them is
// never called concurrently with itself.
//
// `Recv` returns an error wrapping `ErrInvalidFrame` when a single
// envelope could not be decoded. The link stays up and the next `Recv`
// reads the following envelope. Any other error closes the link.
type Link interface {
	Send(ctx context.Context, env *Envelope) error
	Recv(ctx context.Context) (*Envelope, error)
	Close() error
}

// ProtocolVersion is negotiated by handshakes and used as ALPN.
const ProtocolVersion = "subway/1"

// DefaultMaxFrameSize bounds envelopes read from remote peers.
const DefaultMaxFrameSize = flow.DefaultMaxFrameSize

// maxHelloSize bounds handshakes, metadata included.
const maxHelloSize = 64 << 10

// DefaultLinkBuffer is how many envelopes links buffer in each direction.
const DefaultLinkBuffer = 64

var _ Link = (*flow.Duplex[*Envelope])(nil)

// EnvelopeCodec frames envelopes on streams. With `localCopy`, envelopes
// crossing an in-process flow are deep-copied.
func EnvelopeCodec(localCopy bool, maxFrameSize uint64) flow.BinaryCodec[*Envelope] {
	var clone func(*Envelope) *Envelope
	if localCopy {
		clone = (*Envelope).Clone
	}
	return flow.NewBinaryCodec(func() *Envelope { return &Envelope{} }, clone, maxFrameSize)
}

// Pipe returns both ends of an in-process link. Envelopes are copied as
// they cross it, and closing one end makes the other fail.
func Pipe(bufferSize uint) (*flow.Duplex[*Envelope], *flow.Duplex[*Envelope]) {
	left, right := flow.NewLocalPair(bufferSize)
	codec := EnvelopeCodec(true, 0)
	return flow.NewDuplex[*Envelope](left, codec, codec, bufferSize),
		flow.NewDuplex[*Envelope](right, codec, codec, bufferSize)
}

// Connect links two in-process buses with a `Pipe`.
func Connect(a, b *Bus) error {
	left, right := Pipe(DefaultLinkBuffer)
	if _, err := a.AddPeer(b.ID(), left, b.Meta()); err != nil {
		_ = left.Close()
		_ = right.Close()
		return err
	}
	if _, err := b.AddPeer(a.ID(), right, a.Meta()); err != nil {
		_ = a.RemovePeer(b.ID())
		_ = right.Close()
		return err
	}
	return nil
}

// hello is the first frame each side of a remote link sends.
type hello struct {
	Version string `json:"version"`
	ID      string `json:"id"`
	Meta    Meta   `json:"meta,omitempty"`
}

func (b *Bus) localHello() *hello {
	return &hello{
		Version: ProtocolVersion,
		ID:      b.id,
		Meta:    b.Meta(),
	}
}

// check validates the hello received from a remote node.
func (h *hello) check(self string) error {
	if h == nil {
		return fmt.Errorf("%w: empty hello", ErrHello)
	}
	if h.Version != ProtocolVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrHello, h.Version)
	}
	if !ValidateID(h.ID) {
		return fmt.Errorf("%w: %w: %q", ErrHello, ErrInvalidID, h.ID)
	}
	if h.ID == self {
		return fmt.Errorf("%w: remote node claims our id %q", ErrHello, h.ID)
	}
	return nil
}
