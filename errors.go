package subway

import (
	"errors"
	"strconv"

	"github.com/quic-go/quic-go"
)

var (
	ErrInvalidCfg     = errors.New("bus: invalid options")
	ErrInvalidID      = errors.New("bus: ids must be non-empty and must not contain dots")
	ErrBusClosed      = errors.New("bus: closed")
	ErrPeerExists     = errors.New("bus: a peer with this id is already registered")
	ErrPeerRemoved    = errors.New("bus: peer was removed")
	ErrInvalidPath    = errors.New("bus: invalid path")
	ErrNoPeer         = errors.New("bus: NO_PEER")
	ErrNonUniquePeer  = errors.New("bus: NON_UNIQUE_PEER")
	ErrNoPeerMatch    = errors.New("no peer matches the query")
	ErrAmbiguousPeer  = errors.New("several peers match the query")
	ErrUnknownMessage = errors.New("bus: UNKNOWN_MESSAGE")
	ErrStatus         = errors.New("bus: non-2xx response")
	ErrCallTimeout    = errors.New("bus: call timed out")
	ErrQueryInvalid   = errors.New("bus: query is invalid")
	ErrInvalidFrame   = errors.New("bus: invalid envelope frame")
	ErrInvalidRequest = errors.New("bus: invalid request")
	ErrHandlerFailed  = errors.New("bus: request handler failed")

	ErrNoTLSConfig     = errors.New("transport: TlsConfig is required")
	ErrHello           = errors.New("transport: hello exchange failed")
	ErrShutdown        = errors.New("transport: shutting down")
	ErrInvalidAddr     = errors.New("transport: the address you provided is invalid")
	ErrBufferSize      = errors.New("transport: the kernel refused the requested UDP buffer size")
	ErrUdpNotAvailable = errors.New("transport: UDP listener is not available")

	ErrDiscovery = errors.New("discovery: could not join cluster")
)

var (
	QErrStreamProtocolViolation = quic.StreamErrorCode(0xFF)
)

var (
	QErrInternal = QuicApplicationError{
		Code:   0x1,
		Prefix: "internal",
	}
	QErrHello = QuicApplicationError{
		Code:   0x2,
		Prefix: "hello",
	}
	QErrShutdown = QuicApplicationError{
		Code:   0x3,
		Prefix: "shutdown",
	}
	QErrPeerConflict = QuicApplicationError{
		Code:   0x4,
		Prefix: "peer conflict",
	}
)

type QuicApplicationError struct {
	Code   uint64
	Prefix string
}

func (qerr *QuicApplicationError) Close(conn quic.Connection, msg string) error {
	if conn != nil {
		return conn.CloseWithError(
			quic.ApplicationErrorCode(qerr.Code),
			qerr.Prefix+": "+msg,
		)
	}
	return nil
}

// StatusError is returned when a call resolves with a response whose status
// code is outside of [200, 300).
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error returns the bare status code so callers can match on it.
func (serr *StatusError) Error() string {
	return strconv.Itoa(serr.StatusCode)
}

func (serr *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// selectionError keeps both the umbrella NON_UNIQUE_PEER error and the
// precise cause in the chain.
type selectionError struct {
	cause   error
	matched int
}

func (serr *selectionError) Error() string {
	return ErrNonUniquePeer.Error() + ": " + serr.cause.Error() + " (" + strconv.Itoa(serr.matched) + " matched)"
}

func (serr *selectionError) Unwrap() []error {
	return []error{ErrNonUniquePeer, serr.cause}
}
