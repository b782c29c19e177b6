// Package cidutil derives and parses the content identifiers used for hosted
// certificate payloads.
package cidutil

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ForPayload returns the CIDv1 (raw codec, sha2-256 multihash) of the bytes.
func ForPayload(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is ForPayload rendered in its default multibase form.
func String(data []byte) string {
	c, err := ForPayload(data)
	if err != nil {
		// unreachable for SHA2_256 with default length
		return ""
	}
	return c.String()
}

// Parse decodes a CID string, accepting an optional ipfs:// or /ipfs/ prefix.
func Parse(s string) (cid.Cid, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "ipfs://")
	s = strings.TrimPrefix(s, "/ipfs/")
	return cid.Decode(s)
}

// Matches reports whether c addresses exactly data.
func Matches(c cid.Cid, data []byte) bool {
	got, err := c.Prefix().Sum(data)
	if err != nil {
		return false
	}
	return got.Equals(c)
}
