// Package hosting publishes signed payloads to a place a verifier can fetch
// them from, and fetches them back.
//
// Uploads never fail the caller: Upload returns a Result that is either a
// hosted reference or the reason hosting was unavailable. Issuance falls back
// to the self-contained fragment on any unavailable result.
package hosting

import (
	"context"
	"net"

	"nullbytes.dev/wipecert/certerr"
)

const (
	ruleDisabled  = "CERT-HOST-001"
	ruleProbe     = "CERT-HOST-002"
	ruleUpload    = "CERT-HOST-003"
	ruleTimeout   = "CERT-HOST-004"
	ruleStatus    = "CERT-HOST-005"
	ruleFetch     = "CERT-HOST-010"
	ruleReference = "CERT-HOST-011"
)

// Result is the outcome of one upload attempt.
type Result struct {
	ref string
	err error
}

// Hosted is a successful upload addressable by ref.
func Hosted(ref string) Result { return Result{ref: ref} }

// Unavailable records why no hosted copy exists.
func Unavailable(reason error) Result {
	if reason == nil {
		reason = certerr.New(certerr.KindUploadUnavailable, ruleUpload, "upload unavailable")
	}
	return Result{err: reason}
}

func (r Result) OK() bool      { return r.err == nil && r.ref != "" }
func (r Result) Ref() string   { return r.ref }
func (r Result) Reason() error { return r.err }

// Uploader publishes serialized payloads.
type Uploader interface {
	// Probe is a cheap reachability check done before Upload.
	Probe(ctx context.Context) error
	Upload(ctx context.Context, data []byte) Result
}

// Disabled never hosts anything.
type Disabled struct{}

var _ Uploader = Disabled{}

func (Disabled) Probe(context.Context) error {
	return certerr.New(certerr.KindUploadUnavailable, ruleDisabled, "hosting disabled")
}

func (d Disabled) Upload(ctx context.Context, _ []byte) Result {
	return Unavailable(d.Probe(ctx))
}

// DialProbe opens and closes a TCP connection to addr (host:port).
func DialProbe(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return certerr.Wrap(certerr.KindUploadUnavailable, ruleProbe, "probe "+addr, err)
	}
	return conn.Close()
}

func unavailable(rule, msg string, cause error) Result {
	return Unavailable(certerr.Wrap(certerr.KindUploadUnavailable, rule, msg, cause))
}
