// Package net provides the network transport behind a howdy node: an
// encrypted libp2p host with gossipsub messaging, Kademlia routing and
// local-network discovery. All subsystems report through one typed event
// queue; dials are fire-and-forget and their outcomes come back as events.
package net

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Transport is the interface the node uses to interact with the network. It
// is implemented by LibP2PTransport and, for tests, by InmemTransport.
type Transport interface {
	// LocalID returns this node's peer ID.
	LocalID() peer.ID

	// ListenAddrs returns the addresses the transport is listening on.
	ListenAddrs() []ma.Multiaddr

	// Consumer returns the channel on which the transport delivers events,
	// in arrival order.
	Consumer() <-chan Event

	// ConnectedPeers returns the peers with at least one live connection.
	ConnectedPeers() []peer.ID

	// IsConnected reports whether there is a live connection to the peer.
	IsConnected(p peer.ID) bool

	// AddAddress registers an address for a peer. Registration is
	// idempotent; duplicate submissions leave a single entry.
	AddAddress(p peer.ID, addr ma.Multiaddr)

	// PeerAddrs returns the known addresses of a peer.
	PeerAddrs(p peer.ID) []ma.Multiaddr

	// Dial attempts a connection to a peer using its known addresses. It
	// returns immediately; failure surfaces as a DialErrorEvent.
	Dial(p peer.ID)

	// DialAddrs attempts a connection to a peer at specific addresses. It
	// returns immediately; failure surfaces as a DialErrorEvent.
	DialAddrs(pi peer.AddrInfo)

	// Publish broadcasts a payload on the handshake topic. The returned
	// error only covers enqueueing; delivery is best-effort.
	Publish(data []byte) error

	// Bootstrap dials the configured bootstrap nodes and re-seeds the
	// routing table.
	Bootstrap() error

	// FindRandomPeers issues a routing-table lookup for the peers closest
	// to a random key. Results surface as a ClosestPeersEvent.
	FindRandomPeers()

	// Close tears down the transport.
	Close() error
}

// ParsePeerAddr parses a multiaddress that must identify a peer with a
// trailing /p2p/ component. It is used to validate --connect addresses
// before any dial is attempted.
func ParsePeerAddr(addr string) (*peer.AddrInfo, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}

	pi, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return nil, fmt.Errorf("multiaddr must contain a peer ID: %v", err)
	}

	return pi, nil
}
