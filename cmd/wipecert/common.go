package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/config"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/keys"
	"nullbytes.dev/wipecert/signing"
	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/casregistry"
)

// commonFlags are shared by every subcommand that reads the config file.
type commonFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Config file (YAML)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", "", "Log format: text or json")
}

func (c *commonFlags) load() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, l config.Log) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openCAS opens the configured payload store, or returns nil when hosting is
// not CAS based.
func openCAS(cfg config.Config) (storage.CAS, func() error, error) {
	if cfg.Hosting.Mode != config.HostingCAS {
		return nil, nil, nil
	}
	return cfg.Hosting.CAS.Open(casregistry.UsageCLI)
}

func buildUploader(cfg config.Config, cas storage.CAS) hosting.Uploader {
	switch cfg.Hosting.Mode {
	case config.HostingCAS:
		if cas == nil {
			return nil
		}
		return &hosting.CASUploader{CAS: cas, ProbeAddr: cfg.Hosting.CASProbeAddr}
	case config.HostingGitHub:
		gh := cfg.Hosting.GitHub
		return &hosting.GitHubUploader{
			Owner:     gh.Owner,
			Repo:      gh.Repo,
			Branch:    gh.Branch,
			Dir:       gh.Dir,
			Token:     gh.Token,
			PagesBase: gh.PagesBase,
			APIBase:   gh.APIBase,
		}
	default:
		return nil
	}
}

// loadSigner prefers a named key from the store over a PEM path.
func loadSigner(cfg config.Config, path, name string) (signing.Signer, error) {
	if name != "" {
		ks, err := keys.OpenKeyStore(cfg.Keys.Store)
		if err != nil {
			return nil, err
		}
		return ks.Signer(name)
	}
	if path == "" {
		path = cfg.Keys.Private
	}
	return keys.LoadSigner(path)
}

func loadVerifier(cfg config.Config, path, name string) (signing.Verifier, error) {
	if name != "" {
		ks, err := keys.OpenKeyStore(cfg.Keys.Store)
		if err != nil {
			return nil, err
		}
		return ks.Verifier(name)
	}
	if path == "" {
		path = cfg.Keys.Public
	}
	return keys.LoadVerifier(path)
}

// printRecord writes r as indented JSON without HTML escaping.
func printRecord(w io.Writer, r canon.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func cmdBackends(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("backends", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}
