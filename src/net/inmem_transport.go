package net

import (
	"crypto/rand"
	"sync"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// InmemTransport implements the Transport interface without touching the
// network. It records the commands it receives and lets tests push events
// onto the queue, playing the role of every collaborator at once.
type InmemTransport struct {
	l sync.Mutex

	id      peer.ID
	eventCh chan Event

	connected map[peer.ID]bool
	addrs     map[peer.ID][]ma.Multiaddr

	published  [][]byte
	publishErr error
	dialed     []peer.ID
	bootstraps int
	lookups    int
}

// NewInmemTransport returns a fresh in-memory transport for the given local
// peer ID.
func NewInmemTransport(id peer.ID) *InmemTransport {
	return &InmemTransport{
		id:        id,
		eventCh:   make(chan Event, 16),
		connected: make(map[peer.ID]bool),
		addrs:     make(map[peer.ID][]ma.Multiaddr),
	}
}

// RandomPeerID generates a fresh peer ID from a throwaway ed25519 key.
func RandomPeerID() (peer.ID, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return "", err
	}
	return peer.IDFromPrivateKey(priv)
}

// LocalID implements the Transport interface.
func (t *InmemTransport) LocalID() peer.ID {
	return t.id
}

// ListenAddrs implements the Transport interface.
func (t *InmemTransport) ListenAddrs() []ma.Multiaddr {
	return nil
}

// Consumer implements the Transport interface.
func (t *InmemTransport) Consumer() <-chan Event {
	return t.eventCh
}

// ConnectedPeers implements the Transport interface.
func (t *InmemTransport) ConnectedPeers() []peer.ID {
	t.l.Lock()
	defer t.l.Unlock()

	peers := []peer.ID{}
	for p, ok := range t.connected {
		if ok {
			peers = append(peers, p)
		}
	}
	return peers
}

// IsConnected implements the Transport interface.
func (t *InmemTransport) IsConnected(p peer.ID) bool {
	t.l.Lock()
	defer t.l.Unlock()
	return t.connected[p]
}

// AddAddress implements the Transport interface. Duplicate (peer, address)
// pairs are kept once.
func (t *InmemTransport) AddAddress(p peer.ID, addr ma.Multiaddr) {
	t.l.Lock()
	defer t.l.Unlock()

	for _, a := range t.addrs[p] {
		if a.Equal(addr) {
			return
		}
	}
	t.addrs[p] = append(t.addrs[p], addr)
}

// PeerAddrs implements the Transport interface.
func (t *InmemTransport) PeerAddrs(p peer.ID) []ma.Multiaddr {
	t.l.Lock()
	defer t.l.Unlock()
	return append([]ma.Multiaddr{}, t.addrs[p]...)
}

// Dial implements the Transport interface.
func (t *InmemTransport) Dial(p peer.ID) {
	t.l.Lock()
	defer t.l.Unlock()
	t.dialed = append(t.dialed, p)
}

// DialAddrs implements the Transport interface.
func (t *InmemTransport) DialAddrs(pi peer.AddrInfo) {
	t.Dial(pi.ID)
}

// Publish implements the Transport interface.
func (t *InmemTransport) Publish(data []byte) error {
	t.l.Lock()
	defer t.l.Unlock()

	if t.publishErr != nil {
		return t.publishErr
	}
	t.published = append(t.published, data)
	return nil
}

// Bootstrap implements the Transport interface.
func (t *InmemTransport) Bootstrap() error {
	t.l.Lock()
	defer t.l.Unlock()
	t.bootstraps++
	return nil
}

// FindRandomPeers implements the Transport interface.
func (t *InmemTransport) FindRandomPeers() {
	t.l.Lock()
	defer t.l.Unlock()
	t.lookups++
}

// Close implements the Transport interface.
func (t *InmemTransport) Close() error {
	return nil
}

// PushEvent places an event on the queue, as a live subsystem would.
func (t *InmemTransport) PushEvent(ev Event) {
	t.eventCh <- ev
}

// SetConnected marks a peer as connected or disconnected.
func (t *InmemTransport) SetConnected(p peer.ID, up bool) {
	t.l.Lock()
	defer t.l.Unlock()
	t.connected[p] = up
}

// SetPublishError makes subsequent Publish calls fail.
func (t *InmemTransport) SetPublishError(err error) {
	t.l.Lock()
	defer t.l.Unlock()
	t.publishErr = err
}

// Published returns the payloads published so far.
func (t *InmemTransport) Published() [][]byte {
	t.l.Lock()
	defer t.l.Unlock()
	return append([][]byte{}, t.published...)
}

// Dialed returns the peers dialed so far, in order.
func (t *InmemTransport) Dialed() []peer.ID {
	t.l.Lock()
	defer t.l.Unlock()
	return append([]peer.ID{}, t.dialed...)
}

// Bootstraps returns how many times Bootstrap was called.
func (t *InmemTransport) Bootstraps() int {
	t.l.Lock()
	defer t.l.Unlock()
	return t.bootstraps
}

// Lookups returns how many times FindRandomPeers was called.
func (t *InmemTransport) Lookups() int {
	t.l.Lock()
	defer t.l.Unlock()
	return t.lookups
}
