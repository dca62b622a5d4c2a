// Package keys handles the node's identity keypair. The private key is an
// ed25519 libp2p key kept in a PEM file in the datadir; the peer ID is
// derived from the public key.
package keys

import (
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

const pemBlockType = "LIBP2P PRIVATE KEY"

// PemKey is a private key file in PEM format.
type PemKey struct {
	l    sync.Mutex
	path string
}

// NewPemKey creates a PemKey handle for the given file path.
func NewPemKey(path string) *PemKey {
	return &PemKey{path: path}
}

// ReadKey reads the private key from the file.
func (k *PemKey) ReadKey() (crypto.PrivKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := os.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	return ReadKeyFromBuf(buf)
}

// ReadKeyFromBuf parses a private key from PEM data.
func ReadKeyFromBuf(buf []byte) (crypto.PrivKey, error) {
	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, fmt.Errorf("error decoding PEM block from data")
	}

	return crypto.UnmarshalPrivateKey(block.Bytes)
}

// WriteKey writes the private key to the file, creating the parent directory
// if necessary.
func (k *PemKey) WriteKey(key crypto.PrivKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	dump, err := ToPemKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(k.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.path, []byte(dump.PrivateKey), 0600)
}

// PemDump contains the PEM-encoded private key and the peer ID derived from
// the corresponding public key.
type PemDump struct {
	PeerID     string
	PrivateKey string
}

// Generate creates a new ed25519 private key.
func Generate() (crypto.PrivKey, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// GeneratePemKey creates a new ed25519 keypair.
func GeneratePemKey() (*PemDump, error) {
	priv, err := Generate()
	if err != nil {
		return nil, err
	}

	return ToPemKey(priv)
}

// ToPemKey converts a private key into a PemDump.
func ToPemKey(priv crypto.PrivKey) (*PemDump, error) {
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	b, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	pemBlock := &pem.Block{Type: pemBlockType, Bytes: b}
	data := pem.EncodeToMemory(pemBlock)

	return &PemDump{
		PeerID:     id.String(),
		PrivateKey: string(data),
	}, nil
}
