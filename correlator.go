package subway

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// PendingCall describes a call waiting for its response.
type PendingCall struct {
	ID    string    `json:"id"`
	Peer  string    `json:"peer"`
	Since time.Time `json:"since"`
}

type callResult struct {
	env *Envelope
	err error
}

type pendingCall struct {
	PendingCall
	done chan callResult
}

// pendingTable correlates responses to the calls which are waiting for
// them. Each slot is resolved at most once: the first of a response, a
// failure or a cancellation removes it.
type pendingTable struct {
	lk       sync.Mutex
	calls    map[string]*pendingCall
	onChange func(int)
}

func newPendingTable(onChange func(int)) *pendingTable {
	return &pendingTable{
		calls:    make(map[string]*pendingCall),
		onChange: onChange,
	}
}

// register reserves the slot for request `id`, issued through `peer`.
func (pt *pendingTable) register(id, peer string) (*pendingCall, error) {
	pt.lk.Lock()
	defer pt.lk.Unlock()
	if _, has := pt.calls[id]; has {
		return nil, fmt.Errorf("%w: duplicate request id %q", ErrInvalidRequest, id)
	}
	call := &pendingCall{
		PendingCall: PendingCall{
			ID:    id,
			Peer:  peer,
			Since: time.Now(),
		},
		done: make(chan callResult, 1),
	}
	pt.calls[id] = call
	pt.changed()
	return call, nil
}

// resolve hands `env` to the call it answers. It reports false when no
// call is waiting for it.
func (pt *pendingTable) resolve(env *Envelope) bool {
	pt.lk.Lock()
	defer pt.lk.Unlock()
	call, has := pt.calls[env.InReplyTo]
	if !has {
		return false
	}
	delete(pt.calls, env.InReplyTo)
	call.done <- callResult{env: env}
	pt.changed()
	return true
}

// cancel forgets about call `id`, if still pending.
func (pt *pendingTable) cancel(id string) {
	pt.lk.Lock()
	defer pt.lk.Unlock()
	if _, has := pt.calls[id]; has {
		delete(pt.calls, id)
		pt.changed()
	}
}

// failPeer fails every call issued through `peer`.
func (pt *pendingTable) failPeer(peer string, err error) int {
	pt.lk.Lock()
	defer pt.lk.Unlock()
	failed := 0
	for id, call := range pt.calls {
		if call.Peer != peer {
			continue
		}
		delete(pt.calls, id)
		call.done <- callResult{err: err}
		failed++
	}
	if failed > 0 {
		pt.changed()
	}
	return failed
}

func (pt *pendingTable) failAll(err error) {
	pt.lk.Lock()
	defer pt.lk.Unlock()
	for id, call := range pt.calls {
		delete(pt.calls, id)
		call.done <- callResult{err: err}
	}
	pt.changed()
}

func (pt *pendingTable) snapshot() []PendingCall {
	pt.lk.Lock()
	calls := make([]PendingCall, 0, len(pt.calls))
	for _, call := range pt.calls {
		calls = append(calls, call.PendingCall)
	}
	pt.lk.Unlock()

	slices.SortFunc(calls, func(a, b PendingCall) int {
		return a.Since.Compare(b.Since)
	})
	return calls
}

func (pt *pendingTable) changed() {
	if pt.onChange != nil {
		pt.onChange(len(pt.calls))
	}
}

// Pending returns the calls still waiting for a response, oldest first.
func (b *Bus) Pending() []PendingCall {
	return b.pending.snapshot()
}
