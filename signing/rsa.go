package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// MinRSABits is the smallest RSA modulus accepted for signing.
const MinRSABits = 2048

var rsaGenerateKey = rsa.GenerateKey

type RSASigner struct {
	priv *rsa.PrivateKey
}

type RSAVerifier struct {
	pub *rsa.PublicKey
}

// NewRSASigner wraps an existing RSA private key.
func NewRSASigner(priv *rsa.PrivateKey) (*RSASigner, error) {
	if priv == nil {
		return nil, errors.New("signing: nil rsa private key")
	}
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("signing: invalid rsa private key: %w", err)
	}
	return &RSASigner{priv: priv}, nil
}

// GenerateRSASigner creates a fresh RSA key of the given size.
func GenerateRSASigner(bits int) (*RSASigner, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("signing: rsa key must be at least %d bits", MinRSABits)
	}
	k, err := rsaGenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{priv: k}, nil
}

// NewRSAVerifier wraps an RSA public key.
func NewRSAVerifier(pub *rsa.PublicKey) (*RSAVerifier, error) {
	if pub == nil || pub.N == nil {
		return nil, errors.New("signing: nil rsa public key")
	}
	return &RSAVerifier{pub: pub}, nil
}

func (s *RSASigner) Scheme() Scheme { return RSAPKCS1v15SHA256 }

func (s *RSASigner) SignMessage(message []byte) ([]byte, error) {
	h := sha256.Sum256(message)
	return rsa.SignPKCS1v15(rand.Reader, s.priv, crypto.SHA256, h[:])
}

func (s *RSASigner) Verifier() Verifier { return &RSAVerifier{pub: &s.priv.PublicKey} }

// PrivateKey exposes the key for serialization.
func (s *RSASigner) PrivateKey() *rsa.PrivateKey { return s.priv }

func (v *RSAVerifier) Scheme() Scheme { return RSAPKCS1v15SHA256 }

func (v *RSAVerifier) VerifyMessage(message, sig []byte) bool {
	if len(sig) != v.pub.Size() {
		return false
	}
	h := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, h[:], sig) == nil
}

func (v *RSAVerifier) PublicKey() *rsa.PublicKey { return v.pub }

var (
	_ Signer   = (*RSASigner)(nil)
	_ Verifier = (*RSAVerifier)(nil)
)
