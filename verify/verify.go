// Package verify re-checks certificates from any of their carriers: the PDF
// metadata, a bare fragment, or the locator scanned from the QR code.
//
// A decoded payload is trusted only when Outcome is Valid. The signature is
// always checked against the canonical bytes of the record itself.
package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"nullbytes.dev/wipecert/canon"
	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/docmeta"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/payload"
	"nullbytes.dev/wipecert/signing"
)

type Outcome string

const (
	Valid            Outcome = "valid"
	InvalidSignature Outcome = "invalid-signature"
	NoPayload        Outcome = "no-payload-found"
)

// Source names where a verified payload came from.
type Source string

const (
	FromMetadata Source = "metadata"
	FromFragment Source = "fragment"
	FromHosted   Source = "hosted"
)

// DefaultFetchTimeout bounds one hosted fetch.
const DefaultFetchTimeout = 10 * time.Second

type Result struct {
	Outcome Outcome
	Source  Source
	// Record is untrusted unless Outcome is Valid.
	Record    canon.Record
	Signature string
	// Reference is the hosted reference when Source is FromHosted.
	Reference string
	Detail    string
}

func (r Result) Trusted() bool { return r.Outcome == Valid }

type Pipeline struct {
	Verifier signing.Verifier
	Meta     docmeta.Store
	MetaKey  string
	// HTTP fetches http(s) references; CAS fetches CID references. Either may
	// be nil, in which case such references cannot be verified.
	HTTP         hosting.Fetcher
	CAS          hosting.Fetcher
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// VerifyDocument checks the payload embedded in a carrier document. A
// document that cannot be read, has no payload property, or whose property
// does not parse reports NoPayload.
func (p *Pipeline) VerifyDocument(doc []byte) (Result, error) {
	if p.Meta == nil {
		return Result{}, certerr.New(certerr.KindInternal, "CERT-VERIFY-100", "no metadata store configured")
	}
	key := p.MetaKey
	if key == "" {
		key = docmeta.DefaultKey
	}
	value, ok, err := p.Meta.Read(doc, key)
	if err != nil {
		p.logger().Info("carrier unreadable", "err", err)
		return Result{Outcome: NoPayload, Source: FromMetadata, Detail: err.Error()}, nil
	}
	if !ok {
		return Result{Outcome: NoPayload, Source: FromMetadata, Detail: fmt.Sprintf("no %q property", key)}, nil
	}
	pl, err := payload.Parse([]byte(value))
	if err != nil {
		return Result{Outcome: NoPayload, Source: FromMetadata, Detail: err.Error()}, nil
	}
	return p.check(pl, FromMetadata)
}

// VerifyFragment decodes and checks an offline fragment. Decode failures are
// returned as FragmentDecodeFailure errors.
func (p *Pipeline) VerifyFragment(fragment string) (Result, error) {
	pl, err := payload.DecodeFragment(fragment)
	if err != nil {
		return Result{}, err
	}
	return p.check(pl, FromFragment)
}

// VerifyLocator checks what a scanned QR code points at. The part after '#'
// is fetched when it is an http(s) URL, decoded when it is a fragment, and
// fetched from the payload store when it only parses as a CID.
func (p *Pipeline) VerifyLocator(ctx context.Context, locator string) (Result, error) {
	_, ref := payload.SplitLocator(locator)
	if ref == "" {
		return Result{}, certerr.New(certerr.KindFragmentDecode, "CERT-FRAG-001", "locator has no fragment")
	}
	if isURL(ref) {
		return p.fetchAndCheck(ctx, p.HTTP, ref, nil)
	}

	pl, decodeErr := payload.DecodeFragment(ref)
	if decodeErr == nil {
		return p.check(pl, FromFragment)
	}
	id, err := cidutil.Parse(ref)
	if err != nil {
		return Result{}, decodeErr
	}
	return p.fetchAndCheck(ctx, p.CAS, id.String(), func(data []byte) error {
		if !cidutil.Matches(id, data) {
			return certerr.New(certerr.KindFragmentDecode, "CERT-HOST-012", "hosted payload does not match its CID")
		}
		return nil
	})
}

func (p *Pipeline) fetchAndCheck(ctx context.Context, f hosting.Fetcher, ref string, validate func([]byte) error) (Result, error) {
	if f == nil {
		return Result{}, certerr.New(certerr.KindFragmentDecode, "CERT-HOST-010", "no fetcher for hosted reference "+ref)
	}
	timeout := p.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := f.Fetch(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if validate != nil {
		if err := validate(data); err != nil {
			return Result{}, err
		}
	}
	pl, err := payload.Parse(data)
	if err != nil {
		return Result{}, err
	}
	res, err := p.check(pl, FromHosted)
	res.Reference = ref
	return res, err
}

func (p *Pipeline) check(pl payload.Payload, src Source) (Result, error) {
	if p.Verifier == nil {
		return Result{}, certerr.New(certerr.KindKeyLoad, "CERT-KEY-001", "no verification key configured")
	}
	canonical, err := canon.Canonicalize(pl.Record)
	if err != nil {
		return Result{}, err
	}
	res := Result{Source: src, Record: pl.Record, Signature: pl.Signature}
	if signing.Verify(p.Verifier, canonical, pl.Signature) {
		res.Outcome = Valid
	} else {
		res.Outcome = InvalidSignature
		res.Detail = "signature does not match record"
	}
	p.logger().Debug("payload checked", "source", string(src), "outcome", string(res.Outcome))
	return res, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
