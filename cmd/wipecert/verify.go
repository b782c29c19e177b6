package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/docmeta"
	"nullbytes.dev/wipecert/docmeta/pdfmeta"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/verify"
)

type verifyFlags struct {
	common  commonFlags
	pubkey  string
	keyName string
}

func (v *verifyFlags) register(fs *flag.FlagSet) {
	v.common.register(fs)
	fs.StringVar(&v.pubkey, "pubkey", "", "Public key PEM file")
	fs.StringVar(&v.keyName, "key-name", "", "Key name in the local key store")
}

func (v *verifyFlags) pipeline(errOut io.Writer) (*verify.Pipeline, func(), error) {
	cfg, err := v.common.load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	verifier, err := loadVerifier(cfg, v.pubkey, v.keyName)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}
	log := newLogger(errOut, cfg.Log)
	p := &verify.Pipeline{
		Verifier:     verifier,
		Meta:         pdfmeta.New(),
		MetaKey:      cfg.MetadataKey,
		HTTP:         &hosting.HTTPFetcher{},
		FetchTimeout: cfg.Timeouts.Fetch,
		Logger:       log,
	}
	cleanup := func() {}
	cas, closeCAS, err := openCAS(cfg)
	if err != nil {
		log.Warn("payload store unavailable", "err", err)
	} else if cas != nil {
		p.CAS = &hosting.CASFetcher{CAS: cas}
		if closeCAS != nil {
			cleanup = func() { _ = closeCAS() }
		}
	}
	return p, cleanup, nil
}

func reportResult(res verify.Result, out io.Writer, errOut io.Writer) int {
	_, _ = fmt.Fprintln(out, res.Outcome)
	if res.Reference != "" {
		_, _ = fmt.Fprintf(out, "hosted: %s\n", res.Reference)
	}
	if res.Detail != "" && res.Outcome != verify.Valid {
		fmt.Fprintf(errOut, "detail: %s\n", res.Detail)
	}
	if res.Record == nil {
		return 1
	}
	if !res.Trusted() {
		fmt.Fprintln(errOut, "record below is UNTRUSTED")
	}
	if err := printRecord(out, res.Record); err != nil {
		fmt.Fprintf(errOut, "print record: %v\n", err)
		return 1
	}
	if res.Trusted() {
		return 0
	}
	return 1
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var vf verifyFlags
	var carrier string
	vf.register(fs)
	fs.StringVar(&carrier, "carrier", "pdf", "Carrier format: pdf, or json for a JSON property object")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wipecert verify [--pubkey <public.pem>] <certificate.pdf>")
		return 2
	}
	if carrier != "pdf" && carrier != "json" {
		fmt.Fprintf(errOut, "invalid --carrier: %q\n", carrier)
		return 2
	}
	p, cleanup, err := vf.pipeline(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer cleanup()
	if carrier == "json" {
		p.Meta = docmeta.Memory{}
	}

	doc, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read document: %v\n", err)
		return 1
	}
	res, err := p.VerifyDocument(doc)
	if err != nil {
		fmt.Fprintf(errOut, "cannot verify: %v\n", err)
		return 1
	}
	return reportResult(res, out, errOut)
}

func cmdVerifyURL(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify-url", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var vf verifyFlags
	vf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wipecert verify-url [--pubkey <public.pem>] <locator>")
		return 2
	}
	p, cleanup, err := vf.pipeline(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer cleanup()

	res, err := p.VerifyLocator(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "cannot verify: %v\n", err)
		return 1
	}
	return reportResult(res, out, errOut)
}

func cmdDecode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wipecert decode <locator|fragment>")
		return 2
	}
	_, frag := payload.SplitLocator(fs.Arg(0))
	p, err := payload.DecodeFragment(frag)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	raw, err := payload.Marshal(p)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	fmt.Fprintln(errOut, "signature NOT checked; use verify-url")
	_, _ = out.Write(raw)
	_, _ = fmt.Fprintln(out)
	return 0
}

func cmdPayloadCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("payload-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var fromPDF bool
	var metaKey string
	fs.BoolVar(&fromPDF, "pdf", false, "Read the payload from the PDF metadata instead of the raw file")
	fs.StringVar(&metaKey, "meta-key", docmeta.DefaultKey, "Metadata property holding the payload")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wipecert payload-cid [--pdf] <file>")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	if fromPDF {
		v, ok, err := pdfmeta.New().Read(data, metaKey)
		if err != nil {
			fmt.Fprintf(errOut, "read metadata: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintf(errOut, "no %q property\n", metaKey)
			return 1
		}
		data = []byte(v)
	}
	_, _ = fmt.Fprintln(out, cidutil.String(data))
	return 0
}
