package keys

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestReadWriteKey(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config", "priv_key.pem")

	priv, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	pemKey := NewPemKey(file)

	if err := pemKey.WriteKey(priv); err != nil {
		t.Fatal(err)
	}

	key, err := pemKey.ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	if !key.Equals(priv) {
		t.Fatal("recovered key does not match the original")
	}
}

func TestGeneratePemKey(t *testing.T) {
	dump, err := GeneratePemKey()
	if err != nil {
		t.Fatal(err)
	}

	if dump.PeerID == "" {
		t.Fatal("PeerID should not be empty")
	}

	if !strings.Contains(dump.PrivateKey, "LIBP2P PRIVATE KEY") {
		t.Fatalf("unexpected PEM block: %s", dump.PrivateKey)
	}

	// The dump must round-trip through the PEM reader.
	key, err := ReadKeyFromBuf([]byte(dump.PrivateKey))
	if err != nil {
		t.Fatal(err)
	}

	dump2, err := ToPemKey(key)
	if err != nil {
		t.Fatal(err)
	}

	if dump2.PeerID != dump.PeerID {
		t.Fatalf("PeerID should be %s, not %s", dump.PeerID, dump2.PeerID)
	}
}

func TestReadKeyFromBufNotPem(t *testing.T) {
	if _, err := ReadKeyFromBuf([]byte("this is not a PEM file")); err == nil {
		t.Fatal("expected error reading non-PEM data")
	}
}
