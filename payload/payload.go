// Package payload binds a record to its signature and moves the pair in and
// out of the compact URL fragment carried by the certificate QR code.
//
// The serialized form is canonical JSON {"cert":<record>,"sig":<base64>}. The
// fragment form is that JSON, zlib-compressed at level 9 and base64url-encoded
// with the padding removed. Nothing here verifies signatures.
package payload

import (
	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/certerr"
)

const (
	KeyRecord    = "cert"
	KeySignature = "sig"
)

type Payload struct {
	Record    canon.Record
	Signature string
}

// Embed pairs a record with its signature.
func Embed(r canon.Record, sig string) Payload {
	return Payload{Record: r, Signature: sig}
}

// Marshal returns the canonical serialized payload.
func Marshal(p Payload) ([]byte, error) {
	if p.Record == nil {
		return nil, certerr.New(certerr.KindMalformedRecord, "CERT-CANON-001", "payload record is nil")
	}
	return canon.Marshal(map[string]any{
		KeyRecord:    p.Record,
		KeySignature: p.Signature,
	})
}

// Parse reads a serialized payload. Both keys are required; the record must be
// an object and the signature a string. Other keys are ignored.
func Parse(b []byte) (Payload, error) {
	obj, err := canon.Parse(b)
	if err != nil {
		return Payload{}, certerr.Wrap(certerr.KindFragmentDecode, ruleShape, "payload is not a JSON object", err)
	}
	rawRecord, ok := obj[KeyRecord]
	if !ok {
		return Payload{}, certerr.New(certerr.KindFragmentDecode, ruleShape, `payload has no "cert" key`)
	}
	record, ok := rawRecord.(map[string]any)
	if !ok {
		return Payload{}, certerr.New(certerr.KindFragmentDecode, ruleShape, `payload "cert" is not an object`)
	}
	rawSig, ok := obj[KeySignature]
	if !ok {
		return Payload{}, certerr.New(certerr.KindFragmentDecode, ruleShape, `payload has no "sig" key`)
	}
	sig, ok := rawSig.(string)
	if !ok {
		return Payload{}, certerr.New(certerr.KindFragmentDecode, ruleShape, `payload "sig" is not a string`)
	}
	return Payload{Record: record, Signature: sig}, nil
}

// Equal compares two payloads after canonicalization.
func Equal(a, b Payload) bool {
	return a.Signature == b.Signature && canon.Equal(a.Record, b.Record)
}
