// Command fragment_vector_gen prints a deterministic issuance vector: the
// canonical record, its Ed25519 signature, the offline fragment and the CID of
// the serialized payload.
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/signing"
)

func mustSigner(seedByte byte) *signing.Ed25519Signer {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	s, err := signing.NewEd25519SignerFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return s
}

func main() {
	s := mustSigner(0xA1)
	record := canon.Record{
		"PersonPerformingSanitization": map[string]any{"Name": "Vector Operator", "Organization": "NullBytes"},
		"MediaInformation":             map[string]any{"SerialNumber": "VEC-0001", "MediaType": "SSD"},
		"SanitizationDetails":          map[string]any{"MethodType": "Purge", "NumberOfPasses": 1},
		"MediaDestination":             map[string]any{"Option": "Reuse"},
	}
	if len(os.Args) == 2 {
		var err error
		record, err = canon.ReadFile(os.Args[1])
		if err != nil {
			panic(err)
		}
	}

	canonical, err := canon.Canonicalize(record)
	if err != nil {
		panic(err)
	}
	sig, err := signing.Sign(s, canonical)
	if err != nil {
		panic(err)
	}
	pl := payload.Embed(record, sig)
	raw, err := payload.Marshal(pl)
	if err != nil {
		panic(err)
	}
	frag, err := payload.EncodeFragment(pl)
	if err != nil {
		panic(err)
	}
	pub := s.Verifier().(*signing.Ed25519Verifier).PublicKey()

	fmt.Printf("PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(pub))
	fmt.Printf("CANONICAL=%s\n", canonical)
	fmt.Printf("SIGNATURE=%s\n", sig)
	fmt.Printf("PAYLOAD_CID=%s\n", cidutil.String(raw))
	fmt.Printf("FRAGMENT=%s\n", frag)
}
