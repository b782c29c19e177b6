package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	"nullbytes.dev/wipecert/certerr"
)

// Parse decodes a JSON object into a Record. Numbers are kept as json.Number
// so their exact text survives until canonicalization.
func Parse(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, certerr.Wrap(certerr.KindMalformedRecord, "CERT-CANON-010", "record is not valid JSON", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, certerr.New(certerr.KindMalformedRecord, "CERT-CANON-011", "trailing data after record")
	}
	r, ok := v.(map[string]any)
	if !ok {
		return nil, certerr.New(certerr.KindMalformedRecord, "CERT-CANON-012", "record must be a JSON object")
	}
	return r, nil
}

// ReadFile reads and parses a JSON record file.
func ReadFile(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
