package node

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"github.com/howdynet/howdy/src/handshake"
	"github.com/howdynet/howdy/src/net"
)

// processEvent dispatches one event to its handler. Handlers run to
// completion; every network side effect they issue is fire-and-forget.
func (n *Node) processEvent(ev net.Event) {
	switch e := ev.(type) {
	case net.PeerFoundEvent:
		n.handlePeerFound(e)
	case net.PeerExpiredEvent:
		// Addresses are aged out by the peerstore; nothing to remove here.
		n.logger.WithField("peer", e.Peer.ID).Debug("Local peer expired")
	case net.PeerIdentifiedEvent:
		n.handlePeerIdentified(e)
	case net.ClosestPeersEvent:
		n.handleClosestPeers(e)
	case net.BootstrapDoneEvent:
		if e.Err != nil {
			n.logger.WithError(e.Err).Debug("Routing table refresh failed")
		} else {
			n.logger.Debug("Routing table refresh complete")
		}
	case net.ReachabilityEvent:
		n.logger.WithField("reachability", e.Reachability.String()).Info("NAT reachability changed")
	case net.ConnUpgradeEvent:
		if e.Err != nil {
			n.logger.WithError(e.Err).WithFields(logrus.Fields{
				"peer": e.Peer,
				"type": e.Type,
			}).Warn("Direct connection upgrade failed")
		} else {
			n.logger.WithFields(logrus.Fields{
				"peer": e.Peer,
				"type": e.Type,
			}).Info("Direct connection upgrade")
		}
	case net.ListenAddrEvent:
		n.logger.WithField("addr", fmt.Sprintf("%s/p2p/%s", e.Addr, n.trans.LocalID())).Info("Listening")
	case net.ConnectedEvent:
		n.handleConnected(e)
	case net.DisconnectedEvent:
		n.logger.WithField("peer", e.Peer).Info("Disconnected from peer")
	case net.DialErrorEvent:
		n.logger.WithError(e.Err).WithField("peer", e.Peer).Warn("Outgoing connection error")
	case net.MessageEvent:
		n.handleHandshakeMessage(e)
	default:
		n.logger.WithField("event", fmt.Sprintf("%T", ev)).Error("Unexpected event")
	}
}

// handlePeerFound registers a locally discovered peer's addresses and dials
// it. A dial failure is not retried here; the next discovery or re-bootstrap
// cycle dials again naturally.
func (n *Node) handlePeerFound(e net.PeerFoundEvent) {
	if e.Peer.ID == n.trans.LocalID() {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"peer":  e.Peer.ID,
		"addrs": e.Peer.Addrs,
	}).Info("Discovered local peer")

	for _, a := range e.Peer.Addrs {
		n.trans.AddAddress(e.Peer.ID, a)
	}

	n.dial(e.Peer.ID)
}

// handlePeerIdentified registers the listen addresses a peer advertises
// through the identify exchange.
func (n *Node) handlePeerIdentified(e net.PeerIdentifiedEvent) {
	n.logger.WithFields(logrus.Fields{
		"peer":             e.Peer,
		"protocol_version": e.ProtocolVersion,
	}).Info("Identified peer")

	for _, a := range e.ListenAddrs {
		n.trans.AddAddress(e.Peer, a)
	}
}

// handleClosestPeers dials every lookup result we are not already connected
// to. This is how routing-table lookups feed back into connections.
func (n *Node) handleClosestPeers(e net.ClosestPeersEvent) {
	if e.Err != nil {
		n.logger.WithError(e.Err).Debug("Closest-peers lookup failed")
		return
	}

	n.logger.WithField("count", len(e.Peers)).Info("Found peers close to key")

	for _, p := range e.Peers {
		if p == n.trans.LocalID() || n.trans.IsConnected(p) {
			continue
		}
		n.dial(p)
	}
}

// handleConnected greets a newly connected peer right away. The peer also
// receives the periodic broadcast, so a greeting may arrive twice within
// one handshake interval.
func (n *Node) handleConnected(e net.ConnectedEvent) {
	n.logger.WithFields(logrus.Fields{
		"peer":      e.Peer,
		"direction": e.Direction.String(),
	}).Info("Connected to peer")

	n.sendHandshake(e.Peer)
}

// handleHandshakeMessage parses and logs a received greeting. Malformed
// payloads are dropped; a later broadcast will arrive if the peer is still
// connected.
func (n *Node) handleHandshakeMessage(e net.MessageEvent) {
	m := new(handshake.Message)
	if err := m.Unmarshal(e.Data); err != nil {
		n.logger.WithError(err).WithField("from", e.From).Warn("Failed to parse handshake message")

		n.statsLock.Lock()
		n.decodeErrors++
		n.statsLock.Unlock()
		return
	}

	n.statsLock.Lock()
	n.handshakesReceived++
	n.statsLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"from":    e.From,
		"name":    m.DisplayName(),
		"message": m.Message,
	}).Info("Received handshake")
}

// sendHandshake publishes one greeting on the shared topic. Delivery to the
// new peer relies on its topic subscription, not on addressing.
func (n *Node) sendHandshake(p peer.ID) {
	m := handshake.New(n.conf.Moniker, n.trans.LocalID())
	if n.publish(m) {
		n.logger.WithField("peer", p).Info("Sent handshake")
	}
}

// broadcastHandshake publishes one periodic greeting if at least one peer is
// connected. One publish reaches every subscriber; there is no per-peer
// loop.
func (n *Node) broadcastHandshake() {
	connected := n.trans.ConnectedPeers()
	if len(connected) == 0 {
		return
	}

	n.logger.WithField("peers", len(connected)).Info("Broadcasting handshake")

	m := handshake.NewPeriodic(n.conf.Moniker, n.trans.LocalID())
	n.publish(m)
	n.logStats()
}

// publish serializes and publishes a handshake. Failures are recoverable:
// they are logged and the loop continues.
func (n *Node) publish(m *handshake.Message) bool {
	data, err := m.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("Failed to marshal handshake message")
		return false
	}

	if err := n.trans.Publish(data); err != nil {
		n.logger.WithError(err).Error("Failed to publish handshake message")
		return false
	}

	n.statsLock.Lock()
	n.handshakesSent++
	n.statsLock.Unlock()

	return true
}

// dial issues a fire-and-forget connection attempt. The outcome surfaces
// later as a Connected or DialError event.
func (n *Node) dial(p peer.ID) {
	n.countDial()
	n.trans.Dial(p)
}
