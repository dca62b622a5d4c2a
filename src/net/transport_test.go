package net

import (
	"fmt"
	"testing"
)

func TestParsePeerAddr(t *testing.T) {
	id, err := RandomPeerID()
	if err != nil {
		t.Fatal(err)
	}

	addr := fmt.Sprintf("/ip4/127.0.0.1/tcp/1337/p2p/%s", id)

	pi, err := ParsePeerAddr(addr)
	if err != nil {
		t.Fatal(err)
	}

	if pi.ID != id {
		t.Fatalf("peer ID should be %s, not %s", id, pi.ID)
	}

	if len(pi.Addrs) != 1 {
		t.Fatalf("expected 1 address, got %d", len(pi.Addrs))
	}

	if pi.Addrs[0].String() != "/ip4/127.0.0.1/tcp/1337" {
		t.Fatalf("unexpected address %s", pi.Addrs[0])
	}
}

func TestParsePeerAddrNoPeerID(t *testing.T) {
	if _, err := ParsePeerAddr("/ip4/127.0.0.1/tcp/1337"); err == nil {
		t.Fatal("expected error for address without /p2p/ component")
	}
}

func TestParsePeerAddrGarbage(t *testing.T) {
	if _, err := ParsePeerAddr("definitely not a multiaddr"); err == nil {
		t.Fatal("expected error for garbage address")
	}
}
