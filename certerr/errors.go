// Package certerr defines the structured error taxonomy shared by the
// certificate issuance and verification packages.
package certerr

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindMalformedRecord: the record fails canonicalization invariants.
	// Fatal for issuance and verification.
	KindMalformedRecord Kind = "MalformedRecord"
	// KindKeyLoad: key material is unreadable or unparseable.
	KindKeyLoad Kind = "KeyLoadFailure"
	// KindUploadUnavailable: the hosted-copy step failed. Recovered by the
	// offline fallback and only ever logged.
	KindUploadUnavailable Kind = "UploadUnavailable"
	// KindFragmentDecode: a fragment or serialized payload could not be decoded.
	KindFragmentDecode Kind = "FragmentDecodeFailure"
	// KindNoEmbeddedPayload: the carrier document has no payload at the expected key.
	KindNoEmbeddedPayload Kind = "NoEmbeddedPayload"
	// KindSignatureInvalid: decode succeeded but the signature does not match.
	KindSignatureInvalid Kind = "SignatureInvalid"
	KindInternal         Kind = "Internal"
)

// Error is the structured error type.
//
// RuleID is a stable identifier (e.g. CERT-CANON-002, CERT-FRAG-001) naming the
// violated invariant. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Wrap returns a structured error carrying cause. A nil cause behaves like New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// KindOf returns the Kind of a structured error, or "" for other errors.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
