package subway

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Peer is a neighbour reachable through a `Link`.
type Peer struct {
	id      string
	meta    Meta
	link    Link
	addedAt time.Time

	outbox    chan *Envelope
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (p *Peer) ID() string {
	return p.id
}

// Meta returns a copy of the metadata the peer advertised.
func (p *Peer) Meta() Meta {
	return maps.Clone(p.meta)
}

// AddedAt returns when the peer was registered.
func (p *Peer) AddedAt() time.Time {
	return p.addedAt
}

// Attributes is the projection queries are matched against: the peer
// metadata plus its `id`. The id always wins over a metadata key of the
// same name.
func (p *Peer) Attributes() map[string]any {
	attrs := make(map[string]any, len(p.meta)+1)
	for k, v := range p.meta {
		attrs[k] = v
	}
	attrs["id"] = p.id
	return attrs
}

// Closed is closed once the peer was removed.
func (p *Peer) Closed() <-chan struct{} {
	return p.closeCh
}

func (p *Peer) isClosed() bool {
	select {
	case <-p.closeCh:
		return true
	default:
		return false
	}
}

// emit queues `env` for the outgoing loop.
func (p *Peer) emit(ctx context.Context, env *Envelope) error {
	select {
	case <-p.closeCh:
		return fmt.Errorf("%w: %s", ErrPeerRemoved, p.id)
	default:
	}

	select {
	case <-p.closeCh:
		return fmt.Errorf("%w: %s", ErrPeerRemoved, p.id)
	case <-ctx.Done():
		return ctx.Err()
	case p.outbox <- env:
		return nil
	}
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		_ = p.link.Close()
	})
}

// AddPeer registers neighbour `id`, reachable through `link`, and starts
// its routing loops. The bus owns the link from now on: it is closed when
// the peer is removed or the bus is closed.
func (b *Bus) AddPeer(id string, link Link, meta Meta) (*Peer, error) {
	if !ValidateID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if id == b.id {
		return nil, fmt.Errorf("%w: %q is the local node", ErrPeerExists, id)
	}
	if link == nil {
		return nil, fmt.Errorf("%w: nil link", ErrInvalidCfg)
	}

	p := &Peer{
		id:      id,
		meta:    maps.Clone(meta),
		link:    link,
		addedAt: time.Now(),
		outbox:  make(chan *Envelope, b.cfg.outboxSize),
		closeCh: make(chan struct{}),
	}

	b.lk.Lock()
	if b.shutdown {
		b.lk.Unlock()
		return nil, ErrBusClosed
	}
	if _, has := b.index.Get(id); has {
		b.lk.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrPeerExists, id)
	}
	b.peers = append(b.peers, p)
	b.index.Insert(id, p)
	count := len(b.peers)

	b.wg.Add(2)
	go b.routeIncoming(p)
	go b.dispatchOutgoing(p)
	b.lk.Unlock()

	b.gauge(MetricPeers, float32(count))
	b.logger.Info("peer added", LabelPeer.L(id))
	return p, nil
}

// RemovePeer unregisters neighbour `id` and closes its link. Pending calls
// whose first hop was that peer fail with `ErrPeerRemoved`.
func (b *Bus) RemovePeer(id string) error {
	p := b.peer(id)
	if p == nil {
		return fmt.Errorf("%w: %s has no peer %q", ErrNoPeer, b.id, id)
	}
	b.detach(p, nil)
	return nil
}

// detach removes `p` if it still is the registered peer for its id: a
// failing link must not evict a peer which replaced it.
func (b *Bus) detach(p *Peer, cause error) {
	b.lk.Lock()
	current, has := b.index.Get(p.id)
	registered := has && current.(*Peer) == p
	if registered {
		b.index.Delete(p.id)
		b.peers = slices.DeleteFunc(b.peers, func(other *Peer) bool {
			return other == p
		})
	}
	count := len(b.peers)
	b.lk.Unlock()

	p.close()
	if !registered {
		return
	}

	failure := fmt.Errorf("%w: %s", ErrPeerRemoved, p.id)
	if cause != nil {
		failure = fmt.Errorf("%w: %s: %w", ErrPeerRemoved, p.id, cause)
	}
	failed := b.pending.failPeer(p.id, failure)

	b.gauge(MetricPeers, float32(count))
	if cause != nil {
		b.logger.Warn("peer removed", LabelPeer.L(p.id), LabelError.L(cause), "failed_calls", failed)
	} else {
		b.logger.Info("peer removed", LabelPeer.L(p.id), "failed_calls", failed)
	}
}

// Peers returns the current neighbours in insertion order.
func (b *Bus) Peers() []*Peer {
	b.lk.RLock()
	defer b.lk.RUnlock()
	return slices.Clone(b.peers)
}

// Peer returns the neighbour `id`, if registered.
func (b *Bus) Peer(id string) (*Peer, bool) {
	p := b.peer(id)
	return p, p != nil
}

func (b *Bus) peer(id string) *Peer {
	b.lk.RLock()
	defer b.lk.RUnlock()
	p, has := b.index.Get(id)
	if !has {
		return nil
	}
	return p.(*Peer)
}

// ScanPeers returns the ids of the neighbours starting with `prefix`, in
// lexical order.
func (b *Bus) ScanPeers(prefix string) []string {
	b.lk.RLock()
	defer b.lk.RUnlock()
	var ids []string
	b.index.WalkPrefix(prefix, func(id string, _ interface{}) bool {
		ids = append(ids, id)
		return false
	})
	return ids
}
