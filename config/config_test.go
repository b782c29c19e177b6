package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullbytes.dev/wipecert/storage/casconfig"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wipecert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Probe)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Upload)
	assert.Equal(t, 512, cfg.QRPixels)
}

func TestLoad_FileOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("WIPECERT_TEST_OWNER", "nullbytes")
	t.Setenv(TokenEnv, "from-env")
	path := writeConfig(t, `
verifier_base: https://nullbytes.github.io/Verifier_site
qr_pixels: 256
timeouts:
  upload: 2s
log:
  level: debug
  format: json
hosting:
  mode: github
  github:
    owner: ${WIPECERT_TEST_OWNER}
    repo: Cert_data
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://nullbytes.github.io/Verifier_site", cfg.VerifierBase)
	assert.Equal(t, 256, cfg.QRPixels)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Upload)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Probe, "unset fields keep defaults")
	assert.Equal(t, "nullbytes", cfg.Hosting.GitHub.Owner)
	assert.Equal(t, "main", cfg.Hosting.GitHub.Branch)
	assert.Equal(t, "from-env", cfg.Hosting.GitHub.Token)
	assert.Equal(t, "Issued by NullBytes", cfg.Subtitle)
}

func TestLoad_CASHosting(t *testing.T) {
	path := writeConfig(t, `
hosting:
  mode: cas
  cas:
    write_policy: all
    backends:
      - name: localfs
        config: {dir: /tmp/payloads}
      - name: grpc
        id: archive
        config: {target: "localhost:7777"}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Hosting.CAS.Backends, 2)
	assert.Equal(t, casconfig.WriteAll, cfg.Hosting.CAS.WritePolicy)
	assert.Equal(t, "archive", cfg.Hosting.CAS.Backends[1].ID)
	assert.Equal(t, "/tmp/payloads", cfg.Hosting.CAS.Backends[0].Config["dir"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "qr_pixels: [1"))
	require.Error(t, err)

	for name, content := range map[string]string{
		"relative base":   "verifier_base: /verify",
		"base with hash":  "verifier_base: https://v.example/#x",
		"bad mode":        "hosting: {mode: ftp}",
		"cas no backends": "hosting: {mode: cas}",
		"github no repo":  "hosting: {mode: github, github: {owner: x}}",
		"bad level":       "log: {level: loud}",
		"bad format":      "log: {format: xml}",
		"negative px":     "qr_pixels: -1",
		"empty meta key":  `metadata_key: ""`,
	} {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoad_GitHubModeFromToken(t *testing.T) {
	body := `
hosting:
  github:
    owner: nullbytes
    repo: Cert_data
`
	t.Setenv(TokenEnv, "from-env")
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, HostingGitHub, cfg.Hosting.Mode)

	t.Setenv(TokenEnv, "")
	cfg, err = Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, HostingNone, cfg.Hosting.Mode)

	t.Setenv(TokenEnv, "from-env")
	cfg, err = Load(writeConfig(t, body+"  mode: none\n"))
	require.NoError(t, err)
	assert.Equal(t, HostingNone, cfg.Hosting.Mode, "explicit mode wins")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, HostingNone, cfg.Hosting.Mode, "no owner or repo")
}
