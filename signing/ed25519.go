package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"
)

// Ed25519Signer signs sha256(message) with Ed25519.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

type Ed25519Verifier struct {
	pub ed25519.PublicKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if l := len(priv); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing: ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, l)
	}
	return &Ed25519Signer{priv: priv}, nil
}

// NewEd25519SignerFromSeed derives the key pair from a 32-byte seed.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if l := len(seed); l != ed25519.SeedSize {
		return nil, fmt.Errorf("signing: ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, l)
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func GenerateEd25519Signer(rand io.Reader) (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv}, nil
}

func NewEd25519Verifier(pub ed25519.PublicKey) (*Ed25519Verifier, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signing: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return &Ed25519Verifier{pub: pub}, nil
}

func (s *Ed25519Signer) Scheme() Scheme { return Ed25519SHA256 }

func (s *Ed25519Signer) SignMessage(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.priv, digest[:]), nil
}

func (s *Ed25519Signer) Verifier() Verifier {
	return &Ed25519Verifier{pub: s.priv.Public().(ed25519.PublicKey)}
}

func (s *Ed25519Signer) PrivateKey() ed25519.PrivateKey { return s.priv }

func (v *Ed25519Verifier) Scheme() Scheme { return Ed25519SHA256 }

func (v *Ed25519Verifier) VerifyMessage(message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	digest := sha256.Sum256(message)
	return ed25519.Verify(v.pub, digest[:], sig)
}

func (v *Ed25519Verifier) PublicKey() ed25519.PublicKey { return v.pub }

var (
	_ Signer   = (*Ed25519Signer)(nil)
	_ Verifier = (*Ed25519Verifier)(nil)
)
