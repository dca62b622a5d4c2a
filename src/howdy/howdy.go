// Package howdy ties the pieces of a node together: identity key, network
// transport, orchestration loop and HTTP service.
package howdy

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/sirupsen/logrus"

	"github.com/howdynet/howdy/src/config"
	"github.com/howdynet/howdy/src/keys"
	"github.com/howdynet/howdy/src/net"
	"github.com/howdynet/howdy/src/node"
	"github.com/howdynet/howdy/src/service"
)

// Howdy is the engine that assembles and runs a node. Any error out of
// Init is an unrecoverable setup failure; Run never returns until the
// process is terminated.
type Howdy struct {
	Config    *config.Config
	Key       crypto.PrivKey
	Node      *node.Node
	Transport net.Transport
	Service   *service.Service

	logger *logrus.Entry
}

// NewHowdy instantiates the engine with a config object.
func NewHowdy(config *config.Config) *Howdy {
	engine := &Howdy{
		Config: config,
		logger: config.Logger(),
	}

	return engine
}

func (h *Howdy) initKey() error {
	pemKey := keys.NewPemKey(h.Config.Keyfile())

	key, err := pemKey.ReadKey()
	if err != nil {
		h.logger.WithField("file", h.Config.Keyfile()).Warn("Cannot read private key, generating a new one")

		key, err = keys.Generate()
		if err != nil {
			return fmt.Errorf("generating private key: %v", err)
		}

		if err := pemKey.WriteKey(key); err != nil {
			return fmt.Errorf("writing private key: %v", err)
		}

		dump, _ := keys.ToPemKey(key)
		h.logger.WithField("peer_id", dump.PeerID).Info("Created a new key")
	}

	h.Key = key

	return nil
}

func (h *Howdy) initTransport() error {
	transport, err := net.NewLibP2PTransport(h.Config, h.Key, h.logger)
	if err != nil {
		return err
	}

	h.Transport = transport

	h.logger.WithField("peer_id", transport.LocalID().String()).Info("Local peer ID")

	return nil
}

func (h *Howdy) initNode() error {
	h.Node = node.NewNode(h.Config, h.Transport)
	return h.Node.Init()
}

func (h *Howdy) initService() error {
	if !h.Config.NoService {
		h.Service = service.NewService(h.Config.ServiceAddr, h.Node, h.logger)
	}
	return nil
}

// Init runs the one-time setup sequence. Every error here is fatal to the
// process.
func (h *Howdy) Init() error {
	if err := h.initKey(); err != nil {
		return err
	}

	if err := h.initTransport(); err != nil {
		return err
	}

	if err := h.initNode(); err != nil {
		return err
	}

	if err := h.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the optional HTTP service and blocks in the node's main loop.
func (h *Howdy) Run() {
	if h.Service != nil {
		go h.Service.Serve()
	}

	h.Node.Run()

	if err := h.Transport.Close(); err != nil {
		h.logger.WithError(err).Error("Closing transport")
	}
}
