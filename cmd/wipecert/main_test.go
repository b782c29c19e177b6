package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/docmeta/pdfmeta"
)

const seedHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// setup creates a key store with one ed25519 key and a config pointing at it.
func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	store := filepath.Join(dir, "keys")
	code, out, errOut := runCLI(t, "key", "generate", "--store", store, "--name", "issuer", "--scheme", "ed25519", "--seed-hex", seedHex)
	if code != 0 {
		t.Fatalf("key generate: code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "Created ed25519 key: sha256:") {
		t.Fatalf("unexpected key generate output: %q", out)
	}
	configPath = filepath.Join(dir, "wipecert.yaml")
	cfg := "verifier_base: https://verify.example\nkeys:\n  store: " + store + "\nlog:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir, configPath
}

func TestRun_Usage(t *testing.T) {
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("no args: code=%d", code)
	}
	if code, _, _ := runCLI(t, "bogus"); code != 2 {
		t.Fatalf("unknown command: code=%d", code)
	}
	if code, out, _ := runCLI(t, "help"); code != 0 || !strings.Contains(out, "wipecert issue") {
		t.Fatalf("help: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "issue"); code != 2 {
		t.Fatalf("issue without --json: code=%d", code)
	}
	if code, _, _ := runCLI(t, "key"); code != 2 {
		t.Fatalf("key without subcommand: code=%d", code)
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	dir, configPath := setup(t)
	record := filepath.Join(dir, "record.json")
	if err := os.WriteFile(record, []byte(`{"MediaInformation":{"SerialNumber":"SN-1"},"Passes":3}`), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	code, out, errOut := runCLI(t, "issue", "--config", configPath, "--key-name", "issuer", "--json", record, "--out-dir", outDir, "--no-upload")
	if code != 0 {
		t.Fatalf("issue: code=%d stderr=%s", code, errOut)
	}
	locator := strings.TrimSpace(out)
	if !strings.HasPrefix(locator, "https://verify.example/#") {
		t.Fatalf("locator = %q", locator)
	}
	for _, name := range []string{"certificate.pdf", "certificate_qr.png", "certificate.json", "certificate.sig.b64", "certificate_qr_url.txt"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
	pdfPath := filepath.Join(outDir, "certificate.pdf")

	code, out, errOut = runCLI(t, "verify", "--config", configPath, "--key-name", "issuer", pdfPath)
	if code != 0 || !strings.HasPrefix(out, "valid\n") {
		t.Fatalf("verify: code=%d out=%q stderr=%s", code, out, errOut)
	}

	code, out, errOut = runCLI(t, "verify-url", "--config", configPath, "--key-name", "issuer", locator)
	if code != 0 || !strings.HasPrefix(out, "valid\n") {
		t.Fatalf("verify-url: code=%d out=%q stderr=%s", code, out, errOut)
	}

	code, out, _ = runCLI(t, "decode", locator)
	if code != 0 || !strings.Contains(out, `"SerialNumber":"SN-1"`) {
		t.Fatalf("decode: code=%d out=%q", code, out)
	}

	doc, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	embedded, ok, err := pdfmeta.New().Read(doc, "CertPayload")
	if err != nil || !ok {
		t.Fatalf("read metadata: ok=%v err=%v", ok, err)
	}
	code, out, _ = runCLI(t, "payload-cid", "--pdf", pdfPath)
	if code != 0 || strings.TrimSpace(out) != cidutil.String([]byte(embedded)) {
		t.Fatalf("payload-cid: code=%d out=%q", code, out)
	}
}

func TestVerify_Outcomes(t *testing.T) {
	dir, configPath := setup(t)

	noPayload := filepath.Join(dir, "plain.json")
	if err := os.WriteFile(noPayload, []byte(`{"Title":"x"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, out, _ := runCLI(t, "verify", "--config", configPath, "--key-name", "issuer", "--carrier", "json", noPayload)
	if code != 1 || strings.TrimSpace(out) != "no-payload-found" {
		t.Fatalf("no payload: code=%d out=%q", code, out)
	}

	tampered := filepath.Join(dir, "tampered.json")
	if err := os.WriteFile(tampered, []byte(`{"CertPayload":"{\"cert\":{\"a\":1},\"sig\":\"AAAA\"}"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, out, errOut := runCLI(t, "verify", "--config", configPath, "--key-name", "issuer", "--carrier", "json", tampered)
	if code != 1 || !strings.HasPrefix(out, "invalid-signature\n") || !strings.Contains(errOut, "UNTRUSTED") {
		t.Fatalf("tampered: code=%d out=%q stderr=%q", code, out, errOut)
	}

	code, _, errOut = runCLI(t, "verify-url", "--config", configPath, "--key-name", "issuer", "https://verify.example/#@@@")
	if code != 1 || !strings.Contains(errOut, "cannot verify") {
		t.Fatalf("bad fragment: code=%d stderr=%q", code, errOut)
	}
}

func TestKeyListAndExport(t *testing.T) {
	dir, _ := setup(t)
	store := filepath.Join(dir, "keys")

	code, out, _ := runCLI(t, "key", "list", "--store", store)
	if code != 0 || !strings.HasPrefix(out, "issuer\ted25519\tsha256:") || !strings.HasSuffix(out, "\tprivate\n") {
		t.Fatalf("key list: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "key", "export", "--store", store, "--name", "issuer")
	if code != 0 || !strings.Contains(out, "-----BEGIN PUBLIC KEY-----") {
		t.Fatalf("key export: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "key", "generate", "--store", store, "--name", "issuer", "--scheme", "ed25519", "--seed-hex", seedHex); code != 1 {
		t.Fatalf("overwrite without --force: code=%d", code)
	}
	if code, _, _ := runCLI(t, "key", "generate", "--store", store, "--name", "x", "--seed-hex", seedHex); code != 2 {
		t.Fatalf("seed with rsa scheme: code=%d", code)
	}
}

func TestBackends(t *testing.T) {
	code, out, _ := runCLI(t, "backends")
	if code != 0 {
		t.Fatalf("backends: code=%d", code)
	}
	for _, name := range []string{"localfs", "grpc", "ipfs"} {
		if !strings.Contains(out, name) {
			t.Fatalf("backends output missing %s: %q", name, out)
		}
	}
}
