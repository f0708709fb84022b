package flow

import "sync"

// LocalFlow is an in-process raw flow backed by a buffered channel.
// Values go through [Encoder.ProcessLocal] instead of being serialized.
type LocalFlow struct {
	data    chan interface{}
	lk      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func NewLocalFlow(bufferSize uint) *LocalFlow {
	return &LocalFlow{
		data:    make(chan interface{}, bufferSize),
		closeCh: make(chan struct{}),
	}
}

// NewLocalPair returns both ends of an in-process bidirectional flow.
// Closing any half of one end is observed by the matching half of the
// other end.
func NewLocalPair(bufferSize uint) (Raw, Raw) {
	ab := NewLocalFlow(bufferSize)
	ba := NewLocalFlow(bufferSize)
	return Raw{RawSender: ab, RawReceiver: ba}, Raw{RawSender: ba, RawReceiver: ab}
}

func (fl *LocalFlow) Recv(_ Decoder) (interface{}, error) {
	elem, ok := <-fl.data
	if !ok {
		return nil, ErrFlowClosed
	}
	return elem, nil
}

func (fl *LocalFlow) Send(encoder Encoder, msg interface{}) error {
	fl.lk.Lock()
	if fl.closed {
		fl.lk.Unlock()
		return ErrFlowClosed
	}
	fl.wg.Add(1)
	defer fl.wg.Done()
	fl.lk.Unlock()

	toSend, err := encoder.ProcessLocal(msg)
	if err != nil {
		return err
	}

	select {
	case fl.data <- toSend:
		return nil
	case <-fl.closeCh:
		return ErrFlowClosed
	}
}

// Close is idempotent. Values already buffered remain readable.
func (fl *LocalFlow) Close() error {
	fl.lk.Lock()
	defer fl.lk.Unlock()
	if fl.closed {
		return nil
	}
	fl.closed = true
	close(fl.closeCh)
	fl.wg.Wait()
	close(fl.data)
	return nil
}
