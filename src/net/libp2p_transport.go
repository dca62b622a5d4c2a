package net

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/protocol/holepunch"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/howdynet/howdy/src/config"
	"github.com/howdynet/howdy/src/handshake"
	"github.com/howdynet/howdy/src/version"
)

const (
	// ProtocolVersion is advertised through the identify exchange. It is
	// carried outside the handshake payload, which has no version field.
	ProtocolVersion = "/howdy/1.0.0"

	// mdnsServiceTag names the local-network discovery service. Only nodes
	// using the same tag find each other over mDNS.
	mdnsServiceTag = "howdy-mdns"

	// eventQueueSize bounds the event fan-in queue. Producers drop events
	// rather than block when the consumer falls behind.
	eventQueueSize = 256

	lookupTimeout = 30 * time.Second
)

// LibP2PTransport implements Transport on a libp2p host with TCP, noise
// encryption and yamux multiplexing. Gossipsub carries the handshake topic,
// a Kademlia DHT provides the routing table, and mDNS provides local
// discovery. NAT traversal (AutoNAT, hole punching, relay) is handled by
// the host; its status changes surface as events.
type LibP2PTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	host  host.Host
	dht   *dht.IpfsDHT
	psub  *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	mdns  mdns.Service

	bootstrapPeers []peer.AddrInfo

	eventCh chan Event
	logger  *logrus.Entry
}

// NewLibP2PTransport creates the host and all its subsystems. Any error
// here is fatal to the process.
func NewLibP2PTransport(conf *config.Config, key crypto.PrivKey, logger *logrus.Entry) (*LibP2PTransport, error) {
	ctx, cancel := context.WithCancel(context.Background())

	t := &LibP2PTransport{
		ctx:     ctx,
		cancel:  cancel,
		eventCh: make(chan Event, eventQueueSize),
		logger:  logger,
	}

	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", conf.Port)

	opts := []libp2p.Option{
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ProtocolVersion(ProtocolVersion),
		libp2p.UserAgent("howdy/" + version.Version),
		libp2p.EnableHolePunching(holepunch.WithTracer(&holePunchTracer{t: t})),
		libp2p.EnableNATService(),
		libp2p.NATPortMap(),
	}

	if conf.Relay {
		opts = append(opts, libp2p.EnableRelayService())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating libp2p host: %v", err)
	}
	t.host = h

	mode := dht.ModeClient
	if conf.DHT {
		mode = dht.ModeServer
	}

	kad, err := dht.New(ctx, h, dht.Mode(mode))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("creating DHT: %v", err)
	}
	t.dht = kad

	if conf.Bootstrap {
		t.bootstrapPeers = dht.GetDefaultBootstrapPeerAddrInfos()
		for _, pi := range t.bootstrapPeers {
			h.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.PermanentAddrTTL)
			t.logger.WithField("peer", pi.ID).Debug("Added bootstrap node")
		}
	}

	psub, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
		pubsub.WithMessageIdFn(hashMessageID),
	)
	if err != nil {
		t.teardown()
		return nil, fmt.Errorf("creating gossipsub: %v", err)
	}
	t.psub = psub

	topic, err := psub.Join(handshake.Topic)
	if err != nil {
		t.teardown()
		return nil, fmt.Errorf("joining topic %s: %v", handshake.Topic, err)
	}
	t.topic = topic

	sub, err := topic.Subscribe()
	if err != nil {
		t.teardown()
		return nil, fmt.Errorf("subscribing to topic %s: %v", handshake.Topic, err)
	}
	t.sub = sub

	t.logger.WithField("topic", handshake.Topic).Debug("Subscribed to handshake topic")

	if conf.MDNS {
		svc := mdns.NewMdnsService(h, mdnsServiceTag, &mdnsNotifee{t: t})
		if err := svc.Start(); err != nil {
			t.logger.WithError(err).Warn("Cannot start mDNS discovery")
		} else {
			t.mdns = svc
		}
	}

	h.Network().Notify(&netNotifiee{t: t})

	go t.readSubscription()
	go t.watchBus()

	// The host binds its listeners during construction, before the notifiee
	// is registered, so report the initial addresses here.
	for _, addr := range h.Addrs() {
		t.push(ListenAddrEvent{Addr: addr})
	}

	return t, nil
}

// hashMessageID derives pubsub message IDs from the payload so that the
// same handshake relayed along different paths deduplicates.
func hashMessageID(m *pb.Message) string {
	h := sha256.Sum256(m.Data)
	return hex.EncodeToString(h[:])
}

// LocalID implements the Transport interface.
func (t *LibP2PTransport) LocalID() peer.ID {
	return t.host.ID()
}

// ListenAddrs implements the Transport interface.
func (t *LibP2PTransport) ListenAddrs() []ma.Multiaddr {
	return t.host.Addrs()
}

// Consumer implements the Transport interface.
func (t *LibP2PTransport) Consumer() <-chan Event {
	return t.eventCh
}

// ConnectedPeers implements the Transport interface.
func (t *LibP2PTransport) ConnectedPeers() []peer.ID {
	return t.host.Network().Peers()
}

// IsConnected implements the Transport interface.
func (t *LibP2PTransport) IsConnected(p peer.ID) bool {
	return t.host.Network().Connectedness(p) == network.Connected
}

// AddAddress implements the Transport interface. The peerstore keeps one
// entry per (peer, address) pair and refreshes its TTL on resubmission.
func (t *LibP2PTransport) AddAddress(p peer.ID, addr ma.Multiaddr) {
	t.host.Peerstore().AddAddr(p, addr, peerstore.AddressTTL)
}

// PeerAddrs implements the Transport interface.
func (t *LibP2PTransport) PeerAddrs(p peer.ID) []ma.Multiaddr {
	return t.host.Peerstore().Addrs(p)
}

// Dial implements the Transport interface.
func (t *LibP2PTransport) Dial(p peer.ID) {
	t.DialAddrs(peer.AddrInfo{ID: p})
}

// DialAddrs implements the Transport interface.
func (t *LibP2PTransport) DialAddrs(pi peer.AddrInfo) {
	go func() {
		if err := t.host.Connect(t.ctx, pi); err != nil {
			t.push(DialErrorEvent{Peer: pi.ID, Err: err})
		}
	}()
}

// Publish implements the Transport interface.
func (t *LibP2PTransport) Publish(data []byte) error {
	return t.topic.Publish(t.ctx, data)
}

// Bootstrap implements the Transport interface. It dials the well-known
// bootstrap nodes (when bootstrapping is enabled) and triggers a routing
// table refresh whose completion surfaces as a BootstrapDoneEvent.
func (t *LibP2PTransport) Bootstrap() error {
	for _, pi := range t.bootstrapPeers {
		t.logger.WithField("peer", pi.ID).Debug("Dialing bootstrap node")
		t.DialAddrs(pi)
	}

	if err := t.dht.Bootstrap(t.ctx); err != nil {
		return err
	}

	errCh := t.dht.RefreshRoutingTable()
	go func() {
		select {
		case err := <-errCh:
			t.push(BootstrapDoneEvent{Err: err})
		case <-t.ctx.Done():
		}
	}()

	return nil
}

// FindRandomPeers implements the Transport interface.
func (t *LibP2PTransport) FindRandomPeers() {
	go func() {
		key := make([]byte, 32)
		rand.Read(key)

		ctx, cancel := context.WithTimeout(t.ctx, lookupTimeout)
		defer cancel()

		peers, err := t.dht.GetClosestPeers(ctx, string(key))
		if t.ctx.Err() != nil {
			return
		}
		t.push(ClosestPeersEvent{Peers: peers, Err: err})
	}()
}

// Close implements the Transport interface.
func (t *LibP2PTransport) Close() error {
	t.cancel()
	t.sub.Cancel()
	return t.teardown()
}

func (t *LibP2PTransport) teardown() error {
	t.cancel()

	if t.mdns != nil {
		if err := t.mdns.Close(); err != nil {
			t.logger.WithError(err).Warn("Closing mDNS discovery")
		}
	}

	if t.dht != nil {
		if err := t.dht.Close(); err != nil {
			return err
		}
	}

	return t.host.Close()
}

// readSubscription forwards handshake payloads from the pubsub subscription
// onto the event queue, skipping this node's own messages.
func (t *LibP2PTransport) readSubscription() {
	for {
		msg, err := t.sub.Next(t.ctx)
		if err != nil {
			if t.ctx.Err() == nil {
				t.logger.WithError(err).Warn("Handshake subscription closed")
			}
			return
		}

		if msg.ReceivedFrom == t.host.ID() {
			continue
		}

		t.push(MessageEvent{From: msg.ReceivedFrom, Data: msg.Data})
	}
}

// watchBus translates host bus events (identify results, NAT reachability)
// into transport events.
func (t *LibP2PTransport) watchBus() {
	sub, err := t.host.EventBus().Subscribe([]interface{}{
		new(event.EvtPeerIdentificationCompleted),
		new(event.EvtLocalReachabilityChanged),
	})
	if err != nil {
		t.logger.WithError(err).Warn("Cannot subscribe to host event bus")
		return
	}
	defer sub.Close()

	for {
		select {
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			switch evt := e.(type) {
			case event.EvtPeerIdentificationCompleted:
				t.push(PeerIdentifiedEvent{
					Peer:            evt.Peer,
					ListenAddrs:     evt.ListenAddrs,
					ProtocolVersion: evt.ProtocolVersion,
				})
			case event.EvtLocalReachabilityChanged:
				t.push(ReachabilityEvent{Reachability: evt.Reachability})
			}
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *LibP2PTransport) push(ev Event) {
	select {
	case t.eventCh <- ev:
	default:
		t.logger.WithField("event", fmt.Sprintf("%T", ev)).Warn("Event queue full, dropping event")
	}
}

// holePunchTracer relays direct-connection-upgrade steps onto the event
// queue.
type holePunchTracer struct {
	t *LibP2PTransport
}

func (h *holePunchTracer) Trace(evt *holepunch.Event) {
	e := ConnUpgradeEvent{Peer: evt.Remote, Type: evt.Type}

	switch v := evt.Evt.(type) {
	case *holepunch.EndHolePunchEvt:
		if !v.Success {
			e.Err = errors.New(v.Error)
		}
	case *holepunch.DirectDialEvt:
		if !v.Success {
			e.Err = errors.New(v.Error)
		}
	case *holepunch.ProtocolErrorEvt:
		e.Err = errors.New(v.Error)
	}

	h.t.push(e)
}

// mdnsNotifee pushes local-network discovery results onto the event queue.
type mdnsNotifee struct {
	t *LibP2PTransport
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.t.host.ID() {
		return
	}
	m.t.push(PeerFoundEvent{Peer: pi})
}

// netNotifiee relays connection lifecycle notifications onto the event
// queue.
type netNotifiee struct {
	t *LibP2PTransport
}

func (n *netNotifiee) Listen(_ network.Network, addr ma.Multiaddr) {
	n.t.push(ListenAddrEvent{Addr: addr})
}

func (n *netNotifiee) ListenClose(network.Network, ma.Multiaddr) {}

func (n *netNotifiee) Connected(_ network.Network, c network.Conn) {
	n.t.push(ConnectedEvent{Peer: c.RemotePeer(), Direction: c.Stat().Direction})
}

func (n *netNotifiee) Disconnected(_ network.Network, c network.Conn) {
	n.t.push(DisconnectedEvent{Peer: c.RemotePeer()})
}
