// Package config loads the wipecert configuration file.
//
// The file is YAML. Environment variables are expanded before parsing, so
// secrets can be written as ${GITHUB_TOKEN}. Missing fields take the values
// from Default; CLI flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nullbytes.dev/wipecert/storage/casconfig"
)

const (
	HostingNone   = "none"
	HostingCAS    = "cas"
	HostingGitHub = "github"
)

// TokenEnv is consulted when hosting.github.token is empty.
const TokenEnv = "GITHUB_TOKEN"

type Config struct {
	VerifierBase string   `yaml:"verifier_base"`
	Keys         Keys     `yaml:"keys"`
	MetadataKey  string   `yaml:"metadata_key"`
	QRPixels     int      `yaml:"qr_pixels"`
	Subtitle     string   `yaml:"subtitle"`
	AssignID     bool     `yaml:"assign_id"`
	Timeouts     Timeouts `yaml:"timeouts"`
	Log          Log      `yaml:"log"`
	Hosting      Hosting  `yaml:"hosting"`
}

type Keys struct {
	Private string `yaml:"private"`
	Public  string `yaml:"public"`
	// Store is the key store directory used by "wipecert key".
	Store string `yaml:"store"`
}

type Timeouts struct {
	Probe  time.Duration `yaml:"probe"`
	Upload time.Duration `yaml:"upload"`
	Fetch  time.Duration `yaml:"fetch"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Hosting struct {
	Mode string           `yaml:"mode"`
	CAS  casconfig.Config `yaml:"cas"`
	// CASProbeAddr, when set, is dialed instead of pinging the store.
	CASProbeAddr string `yaml:"cas_probe_addr"`
	GitHub       GitHub `yaml:"github"`
}

type GitHub struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	Branch    string `yaml:"branch"`
	Dir       string `yaml:"dir"`
	Token     string `yaml:"token"`
	PagesBase string `yaml:"pages_base"`
	APIBase   string `yaml:"api_base"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Keys: Keys{
			Private: "keys/private.pem",
			Public:  "keys/public.pem",
		},
		MetadataKey: "CertPayload",
		QRPixels:    512,
		Subtitle:    "Issued by NullBytes",
		Timeouts: Timeouts{
			Probe:  3 * time.Second,
			Upload: 5 * time.Second,
			Fetch:  10 * time.Second,
		},
		Log:     Log{Level: "info", Format: "text"},
		Hosting: Hosting{Mode: HostingNone, GitHub: GitHub{Branch: "main"}},
	}
}

// Load reads path over Default. An empty path returns Default with the
// environment applied. When the file leaves hosting.mode unset, GitHub hosting
// is chosen if a token, owner and repo are all available.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.Hosting.Mode = ""
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	if cfg.Hosting.GitHub.Token == "" {
		cfg.Hosting.GitHub.Token = os.Getenv(TokenEnv)
	}
	if cfg.Hosting.Mode == "" {
		cfg.Hosting.Mode = HostingNone
		if gh := cfg.Hosting.GitHub; gh.Token != "" && gh.Owner != "" && gh.Repo != "" {
			cfg.Hosting.Mode = HostingGitHub
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.VerifierBase != "" {
		u, err := url.Parse(c.VerifierBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("verifier_base %q is not an absolute URL", c.VerifierBase))
		} else if u.Fragment != "" || strings.Contains(c.VerifierBase, "#") {
			errs = append(errs, errors.New("verifier_base must not contain '#'"))
		}
	}
	if c.MetadataKey == "" {
		errs = append(errs, errors.New("metadata_key must not be empty"))
	}
	if c.QRPixels < 0 {
		errs = append(errs, errors.New("qr_pixels must not be negative"))
	}
	if c.Timeouts.Probe < 0 || c.Timeouts.Upload < 0 || c.Timeouts.Fetch < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	switch c.Hosting.Mode {
	case "", HostingNone:
	case HostingCAS:
		if err := c.Hosting.CAS.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("hosting.cas: %w", err))
		}
	case HostingGitHub:
		if c.Hosting.GitHub.Owner == "" || c.Hosting.GitHub.Repo == "" {
			errs = append(errs, errors.New("hosting.github requires owner and repo"))
		}
	default:
		errs = append(errs, fmt.Errorf("hosting.mode %q is not none, cas or github", c.Hosting.Mode))
	}
	return errors.Join(errs...)
}
