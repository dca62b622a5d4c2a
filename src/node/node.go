// Package node implements the orchestration loop of a howdy node. One
// goroutine multiplexes the transport's event queue with two periodic
// timers (handshake broadcast, network re-bootstrap); exactly one source is
// consumed and fully handled per iteration, so handlers never run
// concurrently with each other.
package node

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/howdynet/howdy/src/config"
	"github.com/howdynet/howdy/src/net"
)

// Node is the top-level control loop of a howdy node.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	trans net.Transport
	netCh <-chan net.Event

	sigintCh     chan os.Signal
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	start time.Time

	statsLock          sync.Mutex
	handshakesSent     int
	handshakesReceived int
	dialAttempts       int
	decodeErrors       int
}

// NewNode is a factory method that returns a Node instance.
func NewNode(conf *config.Config, trans net.Transport) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:       conf,
		logger:     conf.Logger().WithField("this_id", trans.LocalID().String()),
		trans:      trans,
		netCh:      trans.Consumer(),
		sigintCh:   sigintCh,
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}

	return &node
}

// Init validates and issues the startup dial. A --connect address without a
// peer ID is rejected here, before any dial is attempted.
func (n *Node) Init() error {
	n.logger.WithFields(logrus.Fields{
		"peer_id": n.trans.LocalID().String(),
		"moniker": n.conf.Moniker,
	}).Debug("Init node")

	if n.conf.ConnectAddr != "" {
		pi, err := net.ParsePeerAddr(n.conf.ConnectAddr)
		if err != nil {
			return fmt.Errorf("invalid connect address %s: %v", n.conf.ConnectAddr, err)
		}

		n.logger.WithFields(logrus.Fields{
			"peer": pi.ID,
			"addr": n.conf.ConnectAddr,
		}).Info("Connecting to peer")

		n.countDial()
		n.trans.DialAddrs(*pi)
	}

	return nil
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync() {
	go n.Run()
}

// Run invokes the main loop of the node. It blocks until Shutdown is called
// or a SIGINT is received.
func (n *Node) Run() {
	n.setState(Running)

	n.logger.WithField("state", n.getState().String()).Info("Node is running and ready to connect")

	// Initial seeding of the discovery network. Failures are recoverable;
	// the discovery timer repeats this forever.
	n.bootstrap()

	handshakeTicker := time.NewTicker(n.conf.HandshakeInterval)
	defer handshakeTicker.Stop()

	discoveryTicker := time.NewTicker(n.conf.DiscoveryInterval)
	defer discoveryTicker.Stop()

	for {
		select {
		case ev := <-n.netCh:
			n.processEvent(ev)
		case <-handshakeTicker.C:
			n.broadcastHandshake()
		case <-discoveryTicker.C:
			n.logger.Info("Periodic network discovery")
			n.bootstrap()
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			n.Shutdown()
			return
		case <-n.shutdownCh:
			return
		}
	}
}

// bootstrap re-seeds the routing table and starts a random walk to discover
// new peers. Neither failure is fatal.
func (n *Node) bootstrap() {
	if err := n.trans.Bootstrap(); err != nil {
		n.logger.WithError(err).Debug("Bootstrap failed")
	}
	n.trans.FindRandomPeers()
}

// Shutdown stops the main loop. It is safe to call more than once.
func (n *Node) Shutdown() {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")
		n.setState(Shutdown)
		close(n.shutdownCh)
	}
}

// GetStats returns the node's operational counters.
func (n *Node) GetStats() map[string]string {
	n.statsLock.Lock()
	defer n.statsLock.Unlock()

	timeElapsed := time.Since(n.start)

	s := map[string]string{
		"state":               n.getState().String(),
		"uptime_seconds":      strconv.FormatFloat(timeElapsed.Seconds(), 'f', 0, 64),
		"connected_peers":     strconv.Itoa(len(n.trans.ConnectedPeers())),
		"handshakes_sent":     strconv.Itoa(n.handshakesSent),
		"handshakes_received": strconv.Itoa(n.handshakesReceived),
		"dial_attempts":       strconv.Itoa(n.dialAttempts),
		"decode_errors":       strconv.Itoa(n.decodeErrors),
		"moniker":             n.conf.Moniker,
	}
	return s
}

// PeerInfo describes one connected peer for the HTTP service.
type PeerInfo struct {
	ID    string   `json:"id"`
	Addrs []string `json:"addrs"`
}

// Peers returns the currently connected peers with their known addresses.
func (n *Node) Peers() []PeerInfo {
	peers := []PeerInfo{}
	for _, p := range n.trans.ConnectedPeers() {
		info := PeerInfo{ID: p.String()}
		for _, a := range n.trans.PeerAddrs(p) {
			info.Addrs = append(info.Addrs, a.String())
		}
		peers = append(peers, info)
	}
	return peers
}

// AddressInfo describes this node's identity and listen addresses.
type AddressInfo struct {
	PeerID      string   `json:"peer_id"`
	Moniker     string   `json:"moniker,omitempty"`
	ListenAddrs []string `json:"listen_addrs"`
}

// Address returns this node's identity and full listen addresses.
func (n *Node) Address() AddressInfo {
	info := AddressInfo{
		PeerID:  n.trans.LocalID().String(),
		Moniker: n.conf.Moniker,
	}
	for _, a := range n.trans.ListenAddrs() {
		info.ListenAddrs = append(info.ListenAddrs, fmt.Sprintf("%s/p2p/%s", a, n.trans.LocalID()))
	}
	return info
}

func (n *Node) logStats() {
	stats := n.GetStats()
	n.logger.WithFields(logrus.Fields{
		"connected_peers":     stats["connected_peers"],
		"handshakes_sent":     stats["handshakes_sent"],
		"handshakes_received": stats["handshakes_received"],
		"dial_attempts":       stats["dial_attempts"],
		"decode_errors":       stats["decode_errors"],
	}).Debug("Stats")
}

func (n *Node) countDial() {
	n.statsLock.Lock()
	defer n.statsLock.Unlock()
	n.dialAttempts++
}
