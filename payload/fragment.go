package payload

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"

	"nullbytes.dev/wipecert/certerr"
)

// MaxDecompressedBytes caps the inflated size of a fragment.
const MaxDecompressedBytes = 8 << 20

const (
	ruleAlphabet   = "CERT-FRAG-001"
	ruleDecompress = "CERT-FRAG-002"
	ruleShape      = "CERT-FRAG-003"
)

// EncodeFragment compresses the serialized payload into a fragment.
func EncodeFragment(p Payload) (string, error) {
	raw, err := Marshal(p)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", certerr.Wrap(certerr.KindInternal, "CERT-FRAG-100", "zlib writer", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", certerr.Wrap(certerr.KindInternal, "CERT-FRAG-100", "zlib write", err)
	}
	if err := zw.Close(); err != nil {
		return "", certerr.Wrap(certerr.KindInternal, "CERT-FRAG-100", "zlib close", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeFragment reverses EncodeFragment. Fragments produced with or without
// trailing padding are accepted.
func DecodeFragment(fragment string) (Payload, error) {
	if fragment == "" {
		return Payload{}, certerr.New(certerr.KindFragmentDecode, ruleAlphabet, "empty fragment")
	}
	padded := fragment + strings.Repeat("=", (4-len(fragment)%4)%4)
	compressed, err := base64.URLEncoding.DecodeString(padded)
	if err != nil {
		return Payload{}, certerr.Wrap(certerr.KindFragmentDecode, ruleAlphabet, "fragment is not base64url", err)
	}
	raw, err := inflate(compressed)
	if err != nil {
		return Payload{}, err
	}
	return Parse(raw)
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleDecompress, "fragment is not zlib data", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, MaxDecompressedBytes+1))
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleDecompress, "fragment decompression failed", err)
	}
	if len(raw) > MaxDecompressedBytes {
		return nil, certerr.New(certerr.KindFragmentDecode, ruleDecompress, "fragment inflates past the size limit")
	}
	return raw, nil
}
