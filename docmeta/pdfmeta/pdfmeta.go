// Package pdfmeta stores docmeta properties in the Info dictionary of a PDF.
package pdfmeta

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"nullbytes.dev/wipecert/docmeta"
)

func init() {
	// pdfcpu otherwise creates a configuration directory under the user's home.
	model.ConfigPath = "disable"
}

// escapeMark prefixes stored values that are empty or already start with it.
// pdfcpu drops empty Info entries, so "" is kept as a lone mark. Values written
// by issuance start with '{' and are stored verbatim.
const escapeMark = "~"

func encodeValue(v string) string {
	if v == "" || strings.HasPrefix(v, escapeMark) {
		return escapeMark + v
	}
	return v
}

func decodeValue(s string) string {
	return strings.TrimPrefix(s, escapeMark)
}

// Store reads and writes custom Info dictionary entries with pdfcpu.
type Store struct {
	conf *model.Configuration
}

var _ docmeta.Store = (*Store)(nil)

func New() *Store {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Store{conf: conf}
}

func (s *Store) Write(doc []byte, key, value string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("pdfmeta: empty property key")
	}
	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(doc), &out, map[string]string{key: encodeValue(value)}, s.conf); err != nil {
		return nil, fmt.Errorf("pdfmeta: add property %q: %w", key, err)
	}
	return out.Bytes(), nil
}

func (s *Store) Read(doc []byte, key string) (string, bool, error) {
	props, err := api.Properties(bytes.NewReader(doc), s.conf)
	if err != nil {
		return "", false, fmt.Errorf("pdfmeta: read properties: %w", err)
	}
	v, ok := props[key]
	if !ok {
		return "", false, nil
	}
	return decodeValue(v), true, nil
}
