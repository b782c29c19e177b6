package keys

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/signing"
)

const (
	blockRSAPrivate        = "RSA PRIVATE KEY"
	blockPKCS8Private      = "PRIVATE KEY"
	blockRSAPublic         = "RSA PUBLIC KEY"
	blockPKIXPublic        = "PUBLIC KEY"
	blockDilithium3Private = "DILITHIUM3 PRIVATE KEY"
	blockDilithium3Public  = "DILITHIUM3 PUBLIC KEY"

	headerHashAlg = "Hash-Alg"
)

const (
	ruleKeyRead        = "CERT-KEY-001"
	ruleKeyNoPEM       = "CERT-KEY-002"
	ruleKeyBlockType   = "CERT-KEY-003"
	ruleKeyParse       = "CERT-KEY-004"
	ruleKeyUnsupported = "CERT-KEY-005"
	ruleKeyRejected    = "CERT-KEY-006"
	ruleKeyEncode      = "CERT-KEY-007"
)

func keyErr(rule, msg string, cause error) error {
	return certerr.Wrap(certerr.KindKeyLoad, rule, msg, cause)
}

// LoadSigner reads a private key PEM file.
func LoadSigner(path string) (signing.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, keyErr(ruleKeyRead, fmt.Sprintf("read private key %s", path), err)
	}
	return ParseSigner(b)
}

// LoadVerifier reads a public key PEM file. A private key file is accepted too
// and yields its public half.
func LoadVerifier(path string) (signing.Verifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, keyErr(ruleKeyRead, fmt.Sprintf("read public key %s", path), err)
	}
	return ParseVerifier(b)
}

func decodeBlock(data []byte) (*pem.Block, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, keyErr(ruleKeyNoPEM, "no PEM block found", nil)
	}
	if _, encrypted := block.Headers["DEK-Info"]; encrypted {
		return nil, keyErr(ruleKeyUnsupported, "encrypted PEM keys are not supported", nil)
	}
	return block, nil
}

func hashAlgOf(block *pem.Block) (string, error) {
	alg := block.Headers[headerHashAlg]
	if alg == "" {
		alg = signing.HashSHA256
	}
	if err := signing.CheckHashAlg(alg); err != nil {
		return "", keyErr(ruleKeyUnsupported, "dilithium3 hash algorithm", err)
	}
	return alg, nil
}

// ParseSigner parses the first PEM block of data as a private key.
func ParseSigner(data []byte) (signing.Signer, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}

	var s signing.Signer
	switch block.Type {
	case blockRSAPrivate:
		k, perr := x509.ParsePKCS1PrivateKey(block.Bytes)
		if perr != nil {
			return nil, keyErr(ruleKeyParse, "parse PKCS#1 private key", perr)
		}
		s, err = signing.NewRSASigner(k)
	case blockPKCS8Private:
		k, perr := x509.ParsePKCS8PrivateKey(block.Bytes)
		if perr != nil {
			return nil, keyErr(ruleKeyParse, "parse PKCS#8 private key", perr)
		}
		switch k := k.(type) {
		case *rsa.PrivateKey:
			s, err = signing.NewRSASigner(k)
		case ed25519.PrivateKey:
			s, err = signing.NewEd25519Signer(k)
		default:
			return nil, keyErr(ruleKeyUnsupported, fmt.Sprintf("unsupported private key type %T", k), nil)
		}
	case blockDilithium3Private:
		alg, herr := hashAlgOf(block)
		if herr != nil {
			return nil, herr
		}
		var k mode3.PrivateKey
		if perr := k.UnmarshalBinary(block.Bytes); perr != nil {
			return nil, keyErr(ruleKeyParse, "parse dilithium3 private key", perr)
		}
		s, err = signing.NewDilithium3Signer(&k, alg)
	default:
		return nil, keyErr(ruleKeyBlockType, fmt.Sprintf("unexpected PEM block %q for a private key", block.Type), nil)
	}
	if err != nil {
		return nil, keyErr(ruleKeyRejected, "private key rejected", err)
	}
	return s, nil
}

// ParseVerifier parses the first PEM block of data as a public key.
func ParseVerifier(data []byte) (signing.Verifier, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}

	var v signing.Verifier
	switch block.Type {
	case blockRSAPublic:
		k, perr := x509.ParsePKCS1PublicKey(block.Bytes)
		if perr != nil {
			return nil, keyErr(ruleKeyParse, "parse PKCS#1 public key", perr)
		}
		v, err = signing.NewRSAVerifier(k)
	case blockPKIXPublic:
		k, perr := x509.ParsePKIXPublicKey(block.Bytes)
		if perr != nil {
			return nil, keyErr(ruleKeyParse, "parse PKIX public key", perr)
		}
		switch k := k.(type) {
		case *rsa.PublicKey:
			v, err = signing.NewRSAVerifier(k)
		case ed25519.PublicKey:
			v, err = signing.NewEd25519Verifier(k)
		default:
			return nil, keyErr(ruleKeyUnsupported, fmt.Sprintf("unsupported public key type %T", k), nil)
		}
	case blockDilithium3Public:
		alg, herr := hashAlgOf(block)
		if herr != nil {
			return nil, herr
		}
		var k mode3.PublicKey
		if perr := k.UnmarshalBinary(block.Bytes); perr != nil {
			return nil, keyErr(ruleKeyParse, "parse dilithium3 public key", perr)
		}
		v, err = signing.NewDilithium3Verifier(&k, alg)
	case blockRSAPrivate, blockPKCS8Private, blockDilithium3Private:
		s, serr := ParseSigner(data)
		if serr != nil {
			return nil, serr
		}
		return s.Verifier(), nil
	default:
		return nil, keyErr(ruleKeyBlockType, fmt.Sprintf("unexpected PEM block %q for a public key", block.Type), nil)
	}
	if err != nil {
		return nil, keyErr(ruleKeyRejected, "public key rejected", err)
	}
	return v, nil
}

// EncodeSigner serializes the private key as PEM. RSA keys use PKCS#1 so the
// files interoperate with tools that expect "RSA PRIVATE KEY"; Ed25519 uses PKCS#8.
func EncodeSigner(s signing.Signer) ([]byte, error) {
	var block *pem.Block
	switch s := s.(type) {
	case *signing.RSASigner:
		block = &pem.Block{Type: blockRSAPrivate, Bytes: x509.MarshalPKCS1PrivateKey(s.PrivateKey())}
	case *signing.Ed25519Signer:
		der, err := x509.MarshalPKCS8PrivateKey(s.PrivateKey())
		if err != nil {
			return nil, keyErr(ruleKeyEncode, "marshal ed25519 private key", err)
		}
		block = &pem.Block{Type: blockPKCS8Private, Bytes: der}
	case *signing.Dilithium3Signer:
		raw, err := s.PrivateKey().MarshalBinary()
		if err != nil {
			return nil, keyErr(ruleKeyEncode, "marshal dilithium3 private key", err)
		}
		block = &pem.Block{
			Type:    blockDilithium3Private,
			Headers: map[string]string{headerHashAlg: s.HashAlg()},
			Bytes:   raw,
		}
	default:
		return nil, keyErr(ruleKeyEncode, fmt.Sprintf("cannot encode signer %T", s), nil)
	}
	return pem.EncodeToMemory(block), nil
}

// EncodeVerifier serializes the public key as PEM (PKIX for RSA and Ed25519).
func EncodeVerifier(v signing.Verifier) ([]byte, error) {
	block, err := publicBlock(v)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

func publicBlock(v signing.Verifier) (*pem.Block, error) {
	switch v := v.(type) {
	case *signing.RSAVerifier:
		der, err := x509.MarshalPKIXPublicKey(v.PublicKey())
		if err != nil {
			return nil, keyErr(ruleKeyEncode, "marshal rsa public key", err)
		}
		return &pem.Block{Type: blockPKIXPublic, Bytes: der}, nil
	case *signing.Ed25519Verifier:
		der, err := x509.MarshalPKIXPublicKey(v.PublicKey())
		if err != nil {
			return nil, keyErr(ruleKeyEncode, "marshal ed25519 public key", err)
		}
		return &pem.Block{Type: blockPKIXPublic, Bytes: der}, nil
	case *signing.Dilithium3Verifier:
		raw, err := v.PublicKey().MarshalBinary()
		if err != nil {
			return nil, keyErr(ruleKeyEncode, "marshal dilithium3 public key", err)
		}
		return &pem.Block{
			Type:    blockDilithium3Public,
			Headers: map[string]string{headerHashAlg: v.HashAlg()},
			Bytes:   raw,
		}, nil
	default:
		return nil, keyErr(ruleKeyEncode, fmt.Sprintf("cannot encode verifier %T", v), nil)
	}
}
