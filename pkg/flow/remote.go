package flow

import (
	"github.com/quic-go/quic-go"
)

// StreamErrCancelled is the application error code used when a receiver
// gives up on a QUIC stream.
const StreamErrCancelled quic.StreamErrorCode = 0xC

type RemoteSender struct {
	quic.SendStream
}

var _ RawSender = RemoteSender{}

func (s RemoteSender) Send(enc Encoder, msg interface{}) error {
	return enc.Encode(s.SendStream, msg)
}

type RemoteReceiver struct {
	quic.ReceiveStream
}

var _ RawReceiver = RemoteReceiver{}

func (r RemoteReceiver) Recv(dec Decoder) (interface{}, error) {
	return dec.Decode(r.ReceiveStream)
}

func (r RemoteReceiver) Close() error {
	r.CancelRead(StreamErrCancelled)
	return nil
}

// NewRemote splits a bidirectional QUIC stream into a [Raw] flow.
func NewRemote(stream quic.Stream) Raw {
	return Raw{
		RawReceiver: RemoteReceiver{stream},
		RawSender:   RemoteSender{stream},
	}
}
