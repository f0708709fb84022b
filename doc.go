// *Subway* is a minimal, source-routed, request/response message bus.
//
// Every process hosts a `Bus` node, identified by a short id, which is linked
// to its neighbours (its `Peer`s). A request names the whole route it must
// travel: `a.b.c` means "from `a`, through `b`, to `c`". Relays do not know
// anything about the topology, they just hand the envelope to the hop that
// follows them in the path.
//
// ## How it works
//
// A request is wrapped in an `Envelope` carrying its `Path`. Each node finds
// its own position in the path:
//
// * In the middle, it relays the envelope to the next hop.
// * At the end, it serves the request with its `Handler` and sends the reply
// along the reversed path.
// * At the end of a reply path, it resolves the call which was waiting for it.
//
// Neighbours can also be selected by their metadata, with a `Match` document
// or an `Expr` expression, as long as exactly one of them matches.
//
// Links are pluggable. Three come with the package:
//
// * `Pipe`, in-process, backed by Go channels. (Envelopes are still *copied*.)
// * `Transport`, QUIC streams secured with mTLS, optionally fed by `Discovery`
// which finds the other nodes with a UDP gossip protocol.
// * `WebSocketServer` and `DialWebSocket`, for nodes behind HTTP proxies.
//
// ## Design Principles
//
// > `subway` is **explicit** and **minimalist**.
//
// ### Explicit
//
// There is no routing table, no path discovery and no retry. Callers say
// exactly where a request goes, and a request which cannot reach its
// destination fails loudly: the node which could not relay it answers with a
// 502 instead of letting the caller wait for its deadline.
//
// ### Minimalist
//
// A node is a handler, a set of links and a table of pending calls. Everything
// else (discovery, heartbeats, the admin API) is optional and built on top of
// the same `Fetch` primitive.
package subway
