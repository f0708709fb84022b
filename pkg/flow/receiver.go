package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// RawReceiver is a non-thread safe and blocking flow which should
// only be used by power users.
//
// Methods MUST NOT be called concurrently.
type RawReceiver interface {
	Recv(Decoder) (interface{}, error)
	Close() error
}

// Decoder can decode messages from a byte stream.
// Errors wrapping [ErrMalformed] reject a single frame, any other error
// is final.
type Decoder interface {
	Decode(io.Reader) (interface{}, error)
}

// received is a decoded message, or the reason a frame was rejected.
type received[T any] struct {
	msg T
	err error
}

// Receiver is a thread-safe and typed flow reader.
type Receiver[T any] struct {
	raw RawReceiver
	dec Decoder

	readCh     chan received[T]
	closeCh    chan struct{}
	mainLoopWg sync.WaitGroup

	// handle Close sync.
	err error
	lk  sync.Mutex
}

func NewReceiver[T any](raw RawReceiver, dec Decoder, bufferSize uint) *Receiver[T] {
	r := &Receiver[T]{
		raw: raw,
		dec: dec,

		readCh:  make(chan received[T], bufferSize),
		closeCh: make(chan struct{}),
	}

	r.mainLoopWg.Add(1)
	go r.run()

	return r
}

// Recv returns the next message. Messages already buffered are still
// delivered after the raw flow failed; the failure cause is returned
// afterwards.
//
// A malformed frame is reported with an error wrapping [ErrMalformed],
// and the following messages can still be received.
func (r *Receiver[T]) Recv(ctx context.Context) (result T, err error) {
	select {
	case <-ctx.Done():
		return result, ctx.Err()
	case elem, ok := <-r.readCh:
		if !ok {
			return result, r.cause()
		}
		return elem.msg, elem.err
	}
}

func (r *Receiver[T]) cause() error {
	r.lk.Lock()
	defer r.lk.Unlock()
	return r.err
}

func (r *Receiver[T]) Close() error {
	return r.closeWith(ErrFlowClosed, true)
}

func (r *Receiver[T]) closeWith(cause error, mustWait bool) error {
	r.lk.Lock()
	if r.err != nil {
		r.lk.Unlock()
		return nil
	}
	r.err = cause
	close(r.closeCh)
	err := r.raw.Close()
	r.lk.Unlock()
	if mustWait {
		r.mainLoopWg.Wait()
	}
	close(r.readCh)
	return err
}

func (r *Receiver[T]) run() {
	defer r.mainLoopWg.Done()
	for {
		elem, err := r.raw.Recv(r.dec)
		if errors.Is(err, ErrMalformed) {
			if !r.push(received[T]{err: err}) {
				return
			}
			continue
		}
		if err != nil {
			_ = r.closeWith(err, false)
			return
		}

		msg, ok := elem.(T)
		if !ok {
			_ = r.closeWith(
				fmt.Errorf(
					"%w: decoder returned %s instead of %s",
					ErrFlowTypeMismatch,
					reflect.TypeOf(elem),
					reflect.TypeFor[T](),
				),
				false,
			)
			return
		}

		if !r.push(received[T]{msg: msg}) {
			return
		}
	}
}

func (r *Receiver[T]) push(elem received[T]) bool {
	select {
	case <-r.closeCh:
		return false
	case r.readCh <- elem:
		return true
	}
}
