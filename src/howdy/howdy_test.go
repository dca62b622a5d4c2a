package howdy

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/howdynet/howdy/src/config"
)

func newTestEngine(t *testing.T, moniker string) *Howdy {
	conf := config.NewTestConfig(t)
	conf.SetDataDir(t.TempDir())
	conf.Moniker = moniker
	conf.Port = 0
	conf.HandshakeInterval = 1 * time.Second

	return NewHowdy(conf)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// TestTwoNodeHandshake wires two engines over the loopback interface, with
// every discovery mechanism turned off, and checks that the startup dial
// leads to greetings flowing both ways.
func TestTwoNodeHandshake(t *testing.T) {
	alice := newTestEngine(t, "alice")
	if err := alice.Init(); err != nil {
		t.Fatal(err)
	}
	defer alice.Transport.Close()

	var dialAddr string
	for _, a := range alice.Transport.ListenAddrs() {
		if strings.Contains(a.String(), "127.0.0.1") {
			dialAddr = fmt.Sprintf("%s/p2p/%s", a, alice.Transport.LocalID())
			break
		}
	}
	if dialAddr == "" {
		t.Fatal("no loopback listen address")
	}

	alice.Node.RunAsync()
	defer alice.Node.Shutdown()

	bob := newTestEngine(t, "bob")
	bob.Config.ConnectAddr = dialAddr
	if err := bob.Init(); err != nil {
		t.Fatal(err)
	}
	defer bob.Transport.Close()

	bob.Node.RunAsync()
	defer bob.Node.Shutdown()

	waitFor(t, 10*time.Second, "connection", func() bool {
		return alice.Transport.IsConnected(bob.Transport.LocalID()) &&
			bob.Transport.IsConnected(alice.Transport.LocalID())
	})

	received := func(h *Howdy) int {
		count, _ := strconv.Atoi(h.Node.GetStats()["handshakes_received"])
		return count
	}

	waitFor(t, 15*time.Second, "handshakes", func() bool {
		return received(alice) >= 1 && received(bob) >= 1
	})

	if got := alice.Node.Address().Moniker; got != "alice" {
		t.Fatalf("moniker should be alice, not %s", got)
	}

	if peers := alice.Node.Peers(); len(peers) != 1 {
		t.Fatalf("alice should report 1 peer, not %d", len(peers))
	}
}

// TestInitKeyPersistence checks that the identity survives a restart: two
// engines over the same datadir must derive the same peer ID.
func TestInitKeyPersistence(t *testing.T) {
	conf := config.NewTestConfig(t)
	conf.SetDataDir(t.TempDir())
	conf.Port = 0

	first := NewHowdy(conf)
	if err := first.Init(); err != nil {
		t.Fatal(err)
	}
	firstID := first.Transport.LocalID()
	if err := first.Transport.Close(); err != nil {
		t.Fatal(err)
	}

	second := NewHowdy(conf)
	if err := second.Init(); err != nil {
		t.Fatal(err)
	}
	defer second.Transport.Close()

	if second.Transport.LocalID() != firstID {
		t.Fatalf("peer ID should be %s after restart, not %s",
			firstID, second.Transport.LocalID())
	}
}
