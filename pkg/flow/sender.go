package flow

import (
	"context"
	"io"
	"sync"
)

// RawSender is a non-thread safe and blocking flow which should
// only be used by power users.
//
// Methods MUST NOT be called concurrently.
type RawSender interface {
	Send(Encoder, interface{}) error
	Close() error
}

// Encoder can encode messages on a byte stream.
// It is supposed to return an error only when a final error is
// encountered.
type Encoder interface {
	Encode(io.Writer, interface{}) error
	ProcessLocal(interface{}) (interface{}, error)
}

type Clonable interface {
	Clone() interface{}
}

// Sender is a thread-safe and typed flow writer.
type Sender[T any] struct {
	raw RawSender
	enc Encoder

	writeCh    chan T
	closeCh    chan struct{}
	mainLoopWg sync.WaitGroup

	// handle Close sync.
	writer   sync.WaitGroup
	err      error
	closeErr error
	lk       sync.Mutex
}

func NewSender[T any](raw RawSender, enc Encoder, bufferSize uint) *Sender[T] {
	w := &Sender[T]{
		raw: raw,
		enc: enc,

		writeCh: make(chan T, bufferSize),
		closeCh: make(chan struct{}),
	}

	w.mainLoopWg.Add(1)
	go w.run()

	return w
}

// Send queues `msg`. A nil error does not mean the message reached the
// other end, only that it was accepted before the flow closed.
func (w *Sender[T]) Send(ctx context.Context, msg T) error {
	w.lk.Lock()
	if w.err != nil {
		err := w.err
		w.lk.Unlock()
		return err
	}
	w.writer.Add(1)
	defer w.writer.Done()
	w.lk.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.closeCh:
		return ErrFlowClosed
	case w.writeCh <- msg:
	}

	return nil
}

// Close flushes queued messages and closes the underlying raw flow.
func (w *Sender[T]) Close() error {
	w.closeWith(ErrFlowClosed)
	w.mainLoopWg.Wait()
	return w.closeErr
}

func (w *Sender[T]) closeWith(cause error) {
	w.lk.Lock()
	defer w.lk.Unlock()
	if w.err != nil {
		return
	}
	w.err = cause
	close(w.closeCh)
	w.writer.Wait()
	close(w.writeCh)
}

func (w *Sender[T]) run() {
	defer w.mainLoopWg.Done()
	failed := false
	for msg := range w.writeCh {
		if failed {
			continue
		}

		if err := w.raw.Send(w.enc, msg); err != nil {
			failed = true
			w.closeWith(err)
		}
	}

	// the raw flow is only closed once every queued message was written.
	w.closeErr = w.raw.Close()
}
