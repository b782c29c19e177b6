package signing

import (
	"errors"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Dilithium3Signer signs hash(message) with Dilithium mode 3.
// hashAlg must be one of: sha256, sha512, sha3-256, blake3.
type Dilithium3Signer struct {
	priv    *mode3.PrivateKey
	pub     *mode3.PublicKey
	hashAlg string
}

type Dilithium3Verifier struct {
	pub     *mode3.PublicKey
	hashAlg string
}

func NewDilithium3Signer(priv *mode3.PrivateKey, hashAlg string) (*Dilithium3Signer, error) {
	if priv == nil {
		return nil, errors.New("signing: missing dilithium3 private key")
	}
	if err := CheckHashAlg(hashAlg); err != nil {
		return nil, err
	}
	pub, ok := priv.Public().(*mode3.PublicKey)
	if !ok {
		return nil, errors.New("signing: unexpected dilithium3 public key type")
	}
	return &Dilithium3Signer{priv: priv, pub: pub, hashAlg: hashAlg}, nil
}

// GenerateDilithium3Signer returns a signer over a new Dilithium3 key pair.
func GenerateDilithium3Signer(rand io.Reader, hashAlg string) (*Dilithium3Signer, error) {
	if err := CheckHashAlg(hashAlg); err != nil {
		return nil, err
	}
	pk, sk, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{priv: sk, pub: pk, hashAlg: hashAlg}, nil
}

func NewDilithium3Verifier(pub *mode3.PublicKey, hashAlg string) (*Dilithium3Verifier, error) {
	if pub == nil {
		return nil, errors.New("signing: missing dilithium3 public key")
	}
	if err := CheckHashAlg(hashAlg); err != nil {
		return nil, err
	}
	return &Dilithium3Verifier{pub: pub, hashAlg: hashAlg}, nil
}

func (s *Dilithium3Signer) Scheme() Scheme { return Dilithium3 }

func (s *Dilithium3Signer) SignMessage(message []byte) ([]byte, error) {
	digest, err := digestFor(s.hashAlg, message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

func (s *Dilithium3Signer) Verifier() Verifier {
	return &Dilithium3Verifier{pub: s.pub, hashAlg: s.hashAlg}
}

func (s *Dilithium3Signer) PrivateKey() *mode3.PrivateKey { return s.priv }
func (s *Dilithium3Signer) HashAlg() string               { return s.hashAlg }

func (v *Dilithium3Verifier) Scheme() Scheme { return Dilithium3 }

func (v *Dilithium3Verifier) VerifyMessage(message, sig []byte) bool {
	if len(sig) != mode3.SignatureSize {
		return false
	}
	digest, err := digestFor(v.hashAlg, message)
	if err != nil {
		return false
	}
	return mode3.Verify(v.pub, digest, sig)
}

func (v *Dilithium3Verifier) PublicKey() *mode3.PublicKey { return v.pub }
func (v *Dilithium3Verifier) HashAlg() string             { return v.hashAlg }

var (
	_ Signer   = (*Dilithium3Signer)(nil)
	_ Verifier = (*Dilithium3Verifier)(nil)
)
