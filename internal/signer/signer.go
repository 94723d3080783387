// Package signer manages the worker-side signing identity. Each off-chain
// worker loads (or generates) an ed25519 keypair from a file and derives
// its wallet address from the public key, so restarts keep the same
// identity and the same instruction partition.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// walletNamespace seeds the wallet address derivation from a public key.
var walletNamespace = uuid.MustParse("5a11e7a9-0000-4000-8000-6f6d6e69736f")

// Signer is a worker identity: an ed25519 keypair plus the monotonic
// source sequence for the wallet's instruction partition.
type Signer struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	wallet uuid.UUID
	seq    atomic.Int64
}

// Load reads a hex-encoded ed25519 private key from path, generating and
// writing a fresh one when the file does not exist.
func Load(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generate(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode keypair %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	return New(ed25519.PrivateKey(raw)), nil
}

func generate(path string) (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	encoded := hex.EncodeToString(priv)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write keypair %s: %w", path, err)
	}
	return New(priv), nil
}

// New wraps an existing private key.
func New(priv ed25519.PrivateKey) *Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{
		priv:   priv,
		pub:    pub,
		wallet: DeriveWallet(pub),
	}
}

// DeriveWallet maps an ed25519 public key to its wallet address.
func DeriveWallet(pub ed25519.PublicKey) uuid.UUID {
	return uuid.NewSHA1(walletNamespace, pub)
}

// Wallet returns the signer's wallet address.
func (s *Signer) Wallet() uuid.UUID { return s.wallet }

// Sign signs msg with the private key.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// NextSequence returns the next source sequence for this wallet's
// partition and advances the counter.
func (s *Signer) NextSequence() int64 {
	return s.seq.Add(1) - 1
}

// SetSequence positions the counter, used after recovering the last
// submitted sequence from the ledger.
func (s *Signer) SetSequence(next int64) {
	s.seq.Store(next)
}

// EphemeralAccount generates a fresh keypair and returns its derived
// address. Liquidators use one per partial native split.
func EphemeralAccount() (uuid.UUID, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	return DeriveWallet(pub), nil
}
