package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/config"
	"nullbytes.dev/wipecert/docmeta/pdfmeta"
	"nullbytes.dev/wipecert/issue"
	"nullbytes.dev/wipecert/render"
)

func cmdIssue(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var common commonFlags
	var jsonPath string
	var outDir string
	var pdfOut string
	var qrOut string
	var subtitle string
	var verifierBase string
	var keyPath string
	var keyName string
	var noUpload bool
	var assignID bool
	var qrPixels int

	common.register(fs)
	fs.StringVar(&jsonPath, "json", "", "Sanitization record (JSON object)")
	fs.StringVar(&outDir, "out-dir", "out", "Output directory")
	fs.StringVar(&pdfOut, "pdf-out", "certificate.pdf", "Certificate PDF name (relative to --out-dir unless absolute)")
	fs.StringVar(&qrOut, "qr-out", "certificate_qr.png", "QR PNG name (relative to --out-dir unless absolute)")
	fs.StringVar(&subtitle, "subtitle", "", "Subtitle printed under the title")
	fs.StringVar(&verifierBase, "verifier-base", "", "Verifier site base URL")
	fs.StringVar(&keyPath, "key", "", "Private key PEM file")
	fs.StringVar(&keyName, "key-name", "", "Key name in the local key store")
	fs.BoolVar(&noUpload, "no-upload", false, "Skip hosting and always embed the offline fragment")
	fs.BoolVar(&assignID, "assign-id", false, "Add a uuid field to the record when it has none")
	fs.IntVar(&qrPixels, "qr-px", 0, "QR image size in pixels")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if jsonPath == "" {
		fmt.Fprintln(errOut, "missing --json")
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if verifierBase != "" {
		cfg.VerifierBase = verifierBase
	}
	if subtitle != "" {
		cfg.Subtitle = subtitle
	}
	if qrPixels > 0 {
		cfg.QRPixels = qrPixels
	}
	if assignID {
		cfg.AssignID = true
	}
	if noUpload {
		cfg.Hosting.Mode = config.HostingNone
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if cfg.VerifierBase == "" {
		fmt.Fprintln(errOut, "missing verifier base: set verifier_base in the config or pass --verifier-base")
		return 2
	}
	log := newLogger(errOut, cfg.Log)

	record, err := canon.ReadFile(jsonPath)
	if err != nil {
		fmt.Fprintf(errOut, "read record: %v\n", err)
		return 1
	}
	signer, err := loadSigner(cfg, keyPath, keyName)
	if err != nil {
		fmt.Fprintf(errOut, "load key: %v\n", err)
		return 1
	}

	cas, closeCAS, err := openCAS(cfg)
	if err != nil {
		log.Warn("payload store unavailable, issuing offline", "err", err)
	}
	if closeCAS != nil {
		defer closeCAS()
	}

	p := &issue.Pipeline{
		Signer:        signer,
		Uploader:      buildUploader(cfg, cas),
		QR:            render.QR{},
		Document:      render.PDF{},
		Meta:          pdfmeta.New(),
		MetaKey:       cfg.MetadataKey,
		VerifierBase:  cfg.VerifierBase,
		QRPixels:      cfg.QRPixels,
		Subtitle:      cfg.Subtitle,
		ProbeTimeout:  cfg.Timeouts.Probe,
		UploadTimeout: cfg.Timeouts.Upload,
		AssignID:      cfg.AssignID,
		Logger:        log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cert, err := p.Issue(ctx, record)
	if err != nil {
		fmt.Fprintf(errOut, "issue: %v\n", err)
		return 1
	}

	names := issue.DefaultArtifactNames()
	names.Document = pdfOut
	names.QR = qrOut
	written, err := issue.WriteArtifacts(outDir, cert, names)
	if err != nil {
		fmt.Fprintf(errOut, "write artifacts: %v\n", err)
		return 1
	}
	for _, path := range written {
		log.Info("wrote artifact", "path", path)
	}
	log.Info("certificate issued", "hosted", cert.Hosted, "locator_len", len(cert.Locator))
	_, _ = fmt.Fprintln(out, cert.Locator)
	return 0
}
