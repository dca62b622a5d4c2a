// Package handshake defines the greeting message that nodes broadcast to
// each other over the shared pubsub topic.
package handshake

import (
	"bytes"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/ugorji/go/codec"
)

// Topic is the well-known pubsub topic on which handshakes are exchanged.
const Topic = "howdy-handshakes"

// DefaultNodeName is used in greetings when no display name is configured.
const DefaultNodeName = "Anonymous Node"

// Message is a one-shot identity/greeting payload. A fresh Message is built
// for every send; received messages are logged and discarded.
type Message struct {
	NodeName  string `json:"node_name,omitempty"`
	PeerID    string `json:"peer_id"`
	Timestamp uint64 `json:"timestamp"`
	Message   string `json:"message"`
}

// New returns the greeting sent when a connection is established. PeerID is
// always the sender's own ID; this is how receivers attribute the greeting.
func New(nodeName string, self peer.ID) *Message {
	return &Message{
		NodeName:  nodeName,
		PeerID:    self.String(),
		Timestamp: uint64(time.Now().Unix()),
		Message:   fmt.Sprintf("Hello from %s! 👋", displayName(nodeName)),
	}
}

// NewPeriodic returns the greeting sent on the broadcast timer.
func NewPeriodic(nodeName string, self peer.ID) *Message {
	return &Message{
		NodeName:  nodeName,
		PeerID:    self.String(),
		Timestamp: uint64(time.Now().Unix()),
		Message: fmt.Sprintf("Periodic handshake from %s! Current time: %s",
			displayName(nodeName),
			time.Now().UTC().Format("15:04:05")),
	}
}

// DisplayName returns the sender's name or the anonymous default.
func (m *Message) DisplayName() string {
	return displayName(m.NodeName)
}

// Marshal - json encoding of Message
func (m *Message) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal parses a Message from its json encoding. Failures are
// non-fatal for the node: the caller logs and discards the payload.
func (m *Message) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(m); err != nil {
		return err
	}

	return nil
}

func displayName(name string) string {
	if name == "" {
		return DefaultNodeName
	}
	return name
}
