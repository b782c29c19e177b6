package issue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactNames are file names relative to the output directory, or absolute
// paths. An empty name skips that artifact.
type ArtifactNames struct {
	Document  string
	QR        string
	Record    string
	Signature string
	Locator   string
}

func DefaultArtifactNames() ArtifactNames {
	return ArtifactNames{
		Document:  "certificate.pdf",
		QR:        "certificate_qr.png",
		Record:    "certificate.json",
		Signature: "certificate.sig.b64",
		Locator:   "certificate_qr_url.txt",
	}
}

// WriteArtifacts writes the certificate files into dir and returns the paths
// written, in a fixed order.
func WriteArtifacts(dir string, cert *Certificate, names ArtifactNames) ([]string, error) {
	if cert == nil {
		return nil, fmt.Errorf("issue: nil certificate")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("issue: create output dir: %w", err)
	}
	record, err := indentRecord(cert)
	if err != nil {
		return nil, err
	}

	files := []struct {
		name string
		data []byte
	}{
		{names.Document, cert.Document},
		{names.QR, cert.QRPNG},
		{names.Record, record},
		{names.Signature, []byte(cert.Signature)},
		{names.Locator, []byte(cert.Locator)},
	}
	var written []string
	for _, f := range files {
		if f.name == "" || f.data == nil {
			continue
		}
		path := f.name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return written, fmt.Errorf("issue: write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// indentRecord renders the signed record for humans. The file is informative
// only; verification always recanonicalizes.
func indentRecord(cert *Certificate) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cert.Record); err != nil {
		return nil, fmt.Errorf("issue: encode record: %w", err)
	}
	return buf.Bytes(), nil
}
