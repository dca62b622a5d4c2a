package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/howdynet/howdy/src/node"
)

// Service exposes read-only node information over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService creates the service and registers its handlers.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering howdy API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.HandleFunc("/address", s.makeHandler(s.GetAddress))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving howdy API")

	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns the node's operational counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers returns the currently connected peers and their addresses.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	peers := s.node.Peers()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(peers)
}

// GetAddress returns this node's peer ID and listen addresses.
func (s *Service) GetAddress(w http.ResponseWriter, r *http.Request) {
	address := s.node.Address()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(address)
}
