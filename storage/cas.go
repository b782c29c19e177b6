// Package storage defines the content-addressed store that hosts signed
// certificate payloads, plus fallback and replication combinators.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// MaxObjectBytes bounds a single stored payload. Certificate payloads are a few
// kilobytes; anything near this limit is not a certificate.
const MaxObjectBytes = 4 << 20

// CAS is a content-addressed payload store.
//
// Contract:
//   - Put is idempotent and returns the CIDv1 (raw, sha2-256) of the bytes.
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the CID is absent and ErrCIDMismatch when the
//     stored bytes no longer hash to the CID.
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// Pinger is implemented by backends that can report reachability without
// touching an object.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks reachability of cas. Backends without a Pinger are assumed
// reachable.
func Ping(ctx context.Context, cas CAS) error {
	if cas == nil {
		return ErrNoBackend
	}
	if p, ok := cas.(Pinger); ok {
		return p.Ping(ctx)
	}
	return ctx.Err()
}

// CheckSize rejects empty and oversized objects.
func CheckSize(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxObjectBytes {
		return ErrTooLarge
	}
	return nil
}
