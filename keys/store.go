package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nullbytes.dev/wipecert/signing"
)

const (
	privateFile = "private.pem"
	publicFile  = "public.pem"
)

// KeyStore keeps named key pairs as <Directory>/<name>/{private,public}.pem.
// Private files are written 0600 and never overwritten unless asked.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name        string
	Scheme      signing.Scheme
	Fingerprint string
	HasPrivate  bool
}

// DefaultDirectory is ~/.wipecert/keys.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wipecert", "keys"), nil
}

// OpenKeyStore returns a store rooted at dir, or at DefaultDirectory when dir is empty.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: dir}, nil
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", r)
	}
	return nil
}

func (ks *KeyStore) PrivateKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, privateFile)
}

func (ks *KeyStore) PublicKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, publicFile)
}

// Generate creates a key pair for scheme under name. hashAlg only applies to
// dilithium3. RSA keys are MinRSABits long.
func (ks *KeyStore) Generate(name string, scheme signing.Scheme, hashAlg string, overwrite bool) (KeyEntry, error) {
	var (
		s   signing.Signer
		err error
	)
	switch scheme {
	case signing.RSAPKCS1v15SHA256, "":
		s, err = signing.GenerateRSASigner(signing.MinRSABits)
	case signing.Ed25519SHA256:
		s, err = signing.GenerateEd25519Signer(rand.Reader)
	case signing.Dilithium3:
		if hashAlg == "" {
			hashAlg = signing.HashSHA256
		}
		s, err = signing.GenerateDilithium3Signer(rand.Reader, hashAlg)
	default:
		return KeyEntry{}, fmt.Errorf("unsupported scheme %q", scheme)
	}
	if err != nil {
		return KeyEntry{}, err
	}
	return ks.Save(name, s, overwrite)
}

// ImportEd25519Seed stores the Ed25519 key pair derived from a hex seed.
func (ks *KeyStore) ImportEd25519Seed(name, seedHex string, overwrite bool) (KeyEntry, error) {
	seed, err := ParseSeedHex(seedHex)
	if err != nil {
		return KeyEntry{}, err
	}
	s, err := signing.NewEd25519SignerFromSeed(seed)
	if err != nil {
		return KeyEntry{}, err
	}
	return ks.Save(name, s, overwrite)
}

// Save writes both halves of s under name.
func (ks *KeyStore) Save(name string, s signing.Signer, overwrite bool) (KeyEntry, error) {
	if err := CheckKeyName(name); err != nil {
		return KeyEntry{}, err
	}
	priv, err := EncodeSigner(s)
	if err != nil {
		return KeyEntry{}, err
	}
	pub, err := EncodeVerifier(s.Verifier())
	if err != nil {
		return KeyEntry{}, err
	}
	if err := writeFile(ks.PrivateKeyPath(name), priv, 0o600, overwrite); err != nil {
		return KeyEntry{}, err
	}
	if err := writeFile(ks.PublicKeyPath(name), pub, 0o644, true); err != nil {
		return KeyEntry{}, err
	}
	fp, err := Fingerprint(s.Verifier())
	if err != nil {
		return KeyEntry{}, err
	}
	return KeyEntry{Name: name, Scheme: s.Scheme(), Fingerprint: fp, HasPrivate: true}, nil
}

// ExportPublic returns the public PEM for name.
func (ks *KeyStore) ExportPublic(name string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(ks.PublicKeyPath(name))
	if err != nil {
		return nil, err
	}
	if _, err := ParseVerifier(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (ks *KeyStore) Signer(name string) (signing.Signer, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadSigner(ks.PrivateKeyPath(name))
}

func (ks *KeyStore) Verifier(name string) (signing.Verifier, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadVerifier(ks.PublicKeyPath(name))
}

// ListKeys returns every readable key pair, sorted by name. Directories
// without a parseable public key are skipped.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && CheckKeyName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []KeyEntry
	for _, name := range names {
		v, err := LoadVerifier(ks.PublicKeyPath(name))
		if err != nil {
			continue
		}
		fp, err := Fingerprint(v)
		if err != nil {
			continue
		}
		_, perr := os.Stat(ks.PrivateKeyPath(name))
		out = append(out, KeyEntry{Name: name, Scheme: v.Scheme(), Fingerprint: fp, HasPrivate: perr == nil})
	}
	return out, nil
}

// Fingerprint is "sha256:" + hex of the encoded public key bytes.
func Fingerprint(v signing.Verifier) (string, error) {
	block, err := publicBlock(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(block.Bytes)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func writeFile(path string, data []byte, perm os.FileMode, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}
