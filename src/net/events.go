package net

import (
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Event is a typed notification produced by one of the transport's
// subsystems (discovery, identify, connection manager, pubsub) and pushed
// onto a single ordered queue. The node drains one event per loop iteration.
type Event interface{}

// PeerFoundEvent is emitted when local-network discovery finds a peer.
type PeerFoundEvent struct {
	Peer peer.AddrInfo
}

// PeerExpiredEvent is emitted when a locally discovered peer's announcement
// lapses. It is informational only; addresses are aged out by the peerstore
// independently.
type PeerExpiredEvent struct {
	Peer peer.AddrInfo
}

// PeerIdentifiedEvent is emitted when the identify exchange with a peer
// completes, carrying the listen addresses it advertises.
type PeerIdentifiedEvent struct {
	Peer            peer.ID
	ListenAddrs     []ma.Multiaddr
	ProtocolVersion string
}

// ClosestPeersEvent carries the result of a routing-table lookup for the
// peers closest to a random key.
type ClosestPeersEvent struct {
	Peers []peer.ID
	Err   error
}

// BootstrapDoneEvent is emitted when a routing-table refresh triggered by a
// bootstrap completes.
type BootstrapDoneEvent struct {
	Err error
}

// ReachabilityEvent is emitted when the node's NAT reachability status
// changes.
type ReachabilityEvent struct {
	Reachability network.Reachability
}

// ConnUpgradeEvent traces one step of a hole-punched direct connection
// upgrade with a relayed peer. It is informational only; Err is set when the
// step failed.
type ConnUpgradeEvent struct {
	Peer peer.ID
	Type string
	Err  error
}

// ListenAddrEvent is emitted for each address the transport listens on.
type ListenAddrEvent struct {
	Addr ma.Multiaddr
}

// ConnectedEvent is emitted when a connection to a peer is established.
type ConnectedEvent struct {
	Peer      peer.ID
	Direction network.Direction
}

// DisconnectedEvent is emitted when the last connection to a peer closes.
type DisconnectedEvent struct {
	Peer peer.ID
}

// DialErrorEvent is emitted when a fire-and-forget dial fails. There is no
// retry; future discovery or re-bootstrap cycles dial again naturally.
type DialErrorEvent struct {
	Peer peer.ID
	Err  error
}

// MessageEvent carries the opaque payload of a pubsub message received on
// the handshake topic. Messages published by this node are filtered out by
// the transport.
type MessageEvent struct {
	From peer.ID
	Data []byte
}
