// Package signing signs canonical record bytes and verifies signatures over them.
//
// Sign returns the signature as standard padded base64 text. Verify is total:
// any malformed input (bad encoding, wrong length, missing key, a failure deep
// inside a primitive) yields false and never an error or panic.
//
// Key material is parsed elsewhere (see package keys); this package only deals
// with already-parsed keys.
package signing

import (
	"encoding/base64"
	"errors"
)

// Scheme names a signature scheme.
type Scheme string

const (
	// RSAPKCS1v15SHA256 is RSASSA-PKCS1-v1_5 over a SHA-256 digest.
	RSAPKCS1v15SHA256 Scheme = "rsa-pkcs1v15-sha256"
	// Ed25519SHA256 is Ed25519 over sha256(message).
	Ed25519SHA256 Scheme = "ed25519"
	// Dilithium3 is CRYSTALS-Dilithium mode 3 over a configurable digest.
	Dilithium3 Scheme = "dilithium3"
)

// Signer is the private half of a key pair. Implementations are immutable and
// safe for concurrent use.
type Signer interface {
	Scheme() Scheme
	SignMessage(message []byte) ([]byte, error)
	Verifier() Verifier
}

// Verifier is the public half of a key pair.
type Verifier interface {
	Scheme() Scheme
	VerifyMessage(message, sig []byte) bool
}

var errNilSigner = errors.New("signing: nil signer")

// Sign signs canonical bytes and returns base64 signature text.
func Sign(s Signer, canonical []byte) (string, error) {
	if s == nil {
		return "", errNilSigner
	}
	sig, err := s.SignMessage(canonical)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether sigB64 is a valid signature over canonical bytes.
func Verify(v Verifier, canonical []byte, sigB64 string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if v == nil || sigB64 == "" {
		return false
	}
	sig, err := decodeBase64(sigB64)
	if err != nil || len(sig) == 0 {
		return false
	}
	return v.VerifyMessage(canonical, sig)
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
