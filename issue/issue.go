// Package issue turns a sanitization record into a signed certificate: the
// canonical bytes and signature, the locator carried by the QR code, and the
// carrier document with the payload embedded in its metadata.
package issue

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/docmeta"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/render"
	"nullbytes.dev/wipecert/signing"
)

const (
	DefaultProbeTimeout  = 3 * time.Second
	DefaultUploadTimeout = 5 * time.Second
	DefaultSubtitle      = "Issued by NullBytes"

	// IDField is added by AssignID when the record has no such key.
	IDField = "uuid"
)

// Pipeline holds the collaborators for issuing certificates. A Pipeline is not
// mutated by Issue and may be shared.
type Pipeline struct {
	Signer signing.Signer
	// Uploader is tried before falling back to the offline fragment. Nil
	// disables hosting.
	Uploader hosting.Uploader
	// QR and Document are optional; without them the certificate carries no
	// image or carrier document.
	QR       render.QRRenderer
	Document render.DocumentRenderer
	// Meta embeds the payload into the carrier. Required when Document is set.
	Meta    docmeta.Store
	MetaKey string

	VerifierBase string
	QRPixels     int
	Subtitle     string

	ProbeTimeout  time.Duration
	UploadTimeout time.Duration

	AssignID bool
	NewID    func() string

	Logger *slog.Logger
}

// Certificate is everything produced by one issuance.
type Certificate struct {
	Record    canon.Record
	Canonical []byte
	Signature string
	// Payload is the canonical {"cert","sig"} JSON, as embedded in metadata.
	Payload []byte
	// Fragment is the part of the locator after '#': either the hosted
	// reference or the encoded payload.
	Fragment string
	Hosted   bool
	Locator  string
	QRPNG    []byte
	Document []byte
	IssuedAt time.Time
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Issue runs the full issuance for r. Hosting problems never fail issuance;
// the certificate falls back to the self-contained fragment instead.
func (p *Pipeline) Issue(ctx context.Context, r canon.Record) (*Certificate, error) {
	if p.Signer == nil {
		return nil, certerr.New(certerr.KindKeyLoad, "CERT-KEY-001", "no signing key configured")
	}
	if r == nil {
		return nil, certerr.New(certerr.KindMalformedRecord, "CERT-CANON-001", "record is nil")
	}
	if p.Document != nil && p.Meta == nil {
		return nil, certerr.New(certerr.KindInternal, "CERT-ISSUE-100", "document renderer configured without a metadata store")
	}
	log := p.logger()

	record := r
	if p.AssignID {
		record = p.withID(r)
	}

	canonical, err := canon.Canonicalize(record)
	if err != nil {
		return nil, err
	}
	sig, err := signing.Sign(p.Signer, canonical)
	if err != nil {
		return nil, certerr.Wrap(certerr.KindInternal, "CERT-ISSUE-101", "sign record", err)
	}
	pl := payload.Embed(record, sig)
	raw, err := payload.Marshal(pl)
	if err != nil {
		return nil, err
	}

	cert := &Certificate{
		Record:    record,
		Canonical: canonical,
		Signature: sig,
		Payload:   raw,
		IssuedAt:  time.Now().UTC(),
	}

	if ref, ok := p.host(ctx, log, raw); ok {
		cert.Fragment, cert.Hosted = ref, true
		log.Info("certificate hosted", "ref", ref)
	} else {
		frag, err := payload.EncodeFragment(pl)
		if err != nil {
			return nil, err
		}
		cert.Fragment = frag
		log.Info("certificate using offline fragment", "fragment_len", len(frag))
	}
	cert.Locator = payload.Locator(p.VerifierBase, cert.Fragment)

	if p.QR != nil {
		px := p.QRPixels
		if px <= 0 {
			px = render.DefaultQRPixels
		}
		cert.QRPNG, err = p.QR.Render(cert.Locator, px)
		if err != nil {
			return nil, certerr.Wrap(certerr.KindInternal, "CERT-ISSUE-102", "render qr", err)
		}
	}

	if p.Document != nil {
		doc, err := p.Document.Render(render.Sheet{
			Subtitle: p.Subtitle,
			Record:   record,
			QRPNG:    cert.QRPNG,
			Locator:  cert.Locator,
		})
		if err != nil {
			return nil, certerr.Wrap(certerr.KindInternal, "CERT-ISSUE-103", "render document", err)
		}
		key := p.MetaKey
		if key == "" {
			key = docmeta.DefaultKey
		}
		cert.Document, err = p.Meta.Write(doc, key, string(raw))
		if err != nil {
			return nil, certerr.Wrap(certerr.KindInternal, "CERT-ISSUE-104", "embed payload", err)
		}
	}
	return cert, nil
}

// host runs the probe and upload, each under its own timeout. The bound holds
// even when the uploader ignores its context.
func (p *Pipeline) host(ctx context.Context, log *slog.Logger, raw []byte) (string, bool) {
	if p.Uploader == nil {
		log.Debug("hosting disabled")
		return "", false
	}
	err := within(ctx, orDefault(p.ProbeTimeout, DefaultProbeTimeout), p.Uploader.Probe,
		func(err error) error {
			return certerr.Wrap(certerr.KindUploadUnavailable, "CERT-HOST-004", "upload host probe timed out", err)
		})
	if err != nil {
		log.Info("upload host unreachable", "rule", certerr.RuleID(err), "err", err)
		return "", false
	}

	upload := func(ctx context.Context) hosting.Result { return p.Uploader.Upload(ctx, raw) }
	res := within(ctx, orDefault(p.UploadTimeout, DefaultUploadTimeout), upload,
		func(err error) hosting.Result {
			return hosting.Unavailable(certerr.Wrap(certerr.KindUploadUnavailable, "CERT-HOST-004", "upload timed out", err))
		})
	if !res.OK() {
		log.Info("upload failed", "rule", certerr.RuleID(res.Reason()), "err", res.Reason())
		return "", false
	}
	return res.Ref(), true
}

// within returns fn's result, or expired's once d elapses. A late fn keeps
// running and its result is dropped.
func within[T any](ctx context.Context, d time.Duration, fn func(context.Context) T, expired func(error) T) T {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	done := make(chan T, 1)
	go func() { done <- fn(ctx) }()
	select {
	case v := <-done:
		return v
	case <-ctx.Done():
		return expired(ctx.Err())
	}
}

// withID returns a shallow copy of r with IDField set, or r itself when the
// field is already present.
func (p *Pipeline) withID(r canon.Record) canon.Record {
	if _, ok := r[IDField]; ok {
		return r
	}
	out := make(canon.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	out[IDField] = newID()
	return out
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
