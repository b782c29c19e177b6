// Package docmeta reads and writes named string properties on a carrier
// document, which is how a signed payload travels inside the certificate PDF.
package docmeta

import (
	"fmt"

	"nullbytes.dev/wipecert/canon"
)

// DefaultKey is the property holding the serialized payload.
const DefaultKey = "CertPayload"

// Store embeds string properties in a document.
//
// Read reports ok == false when the document has no such property; it never
// substitutes an empty value. err is reserved for documents that cannot be
// read at all.
type Store interface {
	Write(doc []byte, key, value string) ([]byte, error)
	Read(doc []byte, key string) (value string, ok bool, err error)
}

// Memory treats the document as a JSON object of string properties. An empty
// document is an object with no properties.
type Memory struct{}

var _ Store = Memory{}

func (Memory) Write(doc []byte, key, value string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("docmeta: empty property key")
	}
	props, err := memoryProps(doc)
	if err != nil {
		return nil, err
	}
	props[key] = value
	return canon.Marshal(props)
}

func (Memory) Read(doc []byte, key string) (string, bool, error) {
	props, err := memoryProps(doc)
	if err != nil {
		return "", false, err
	}
	v, ok := props[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("docmeta: property %q is not a string", key)
	}
	return s, true, nil
}

func memoryProps(doc []byte) (map[string]any, error) {
	if len(doc) == 0 {
		return map[string]any{}, nil
	}
	props, err := canon.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("docmeta: carrier is not a property object: %w", err)
	}
	return props, nil
}
