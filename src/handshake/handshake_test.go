package handshake

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

func randomPeerID(t *testing.T) peer.ID {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}

	return id
}

func TestNewDefaults(t *testing.T) {
	self := randomPeerID(t)

	m := New("", self)

	if m.PeerID != self.String() {
		t.Fatalf("PeerID should be %s, not %s", self, m.PeerID)
	}

	if m.DisplayName() != DefaultNodeName {
		t.Fatalf("DisplayName should be %s, not %s", DefaultNodeName, m.DisplayName())
	}

	expected := "Hello from Anonymous Node! 👋"
	if m.Message != expected {
		t.Fatalf("Message should be %#v, not %#v", expected, m.Message)
	}

	if m.Timestamp == 0 {
		t.Fatal("Timestamp should be set")
	}
}

func TestNewPeriodic(t *testing.T) {
	self := randomPeerID(t)

	m := NewPeriodic("alice", self)

	if m.DisplayName() != "alice" {
		t.Fatalf("DisplayName should be alice, not %s", m.DisplayName())
	}

	if !strings.HasPrefix(m.Message, "Periodic handshake from alice! Current time: ") {
		t.Fatalf("unexpected periodic message: %#v", m.Message)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	self := randomPeerID(t)

	m := New("bob", self)

	data, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var m2 Message
	if err := m2.Unmarshal(data); err != nil {
		t.Fatal(err)
	}

	if m2.NodeName != m.NodeName {
		t.Fatalf("NodeName should be %s, not %s", m.NodeName, m2.NodeName)
	}
	if m2.PeerID != m.PeerID {
		t.Fatalf("PeerID should be %s, not %s", m.PeerID, m2.PeerID)
	}
	if m2.Timestamp != m.Timestamp {
		t.Fatalf("Timestamp should be %d, not %d", m.Timestamp, m2.Timestamp)
	}
	if m2.Message != m.Message {
		t.Fatalf("Message should be %#v, not %#v", m.Message, m2.Message)
	}
}

func TestTimestampNonDecreasing(t *testing.T) {
	self := randomPeerID(t)

	m1 := New("", self)
	m2 := NewPeriodic("", self)

	if m2.Timestamp < m1.Timestamp {
		t.Fatalf("timestamps went backwards: %d then %d", m1.Timestamp, m2.Timestamp)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	payloads := [][]byte{
		[]byte("not json at all"),
		[]byte(`{"peer_id":`),
		{0xff, 0x00, 0x13, 0x37},
	}

	for _, p := range payloads {
		var m Message
		if err := m.Unmarshal(p); err == nil {
			t.Fatalf("expected error unmarshalling %q", p)
		}
	}
}
