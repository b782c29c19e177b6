package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"nullbytes.dev/wipecert/cidutil"
)

// NamedCAS pairs a backend with the id used in reports and logs.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every object to all backends; reads fall back in order.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var (
	_ CAS    = ReplicatingCAS{}
	_ Pinger = ReplicatingCAS{}
)

// PutAll writes data to every backend and returns the CID each one reported.
// A backend that reports a CID other than the one computed locally fails the
// write with ErrCIDMismatch.
func (r ReplicatingCAS) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackend
	}
	want, err := cidutil.ForPayload(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, out, fmt.Errorf("storage: nil backend %q", b.Name)
		}
		got, err := b.CAS.Put(ctx, data)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, data)
	return id, err
}

func (r ReplicatingCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return r.fallback().Get(ctx, id)
}

func (r ReplicatingCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return r.fallback().Has(ctx, id)
}

// Ping requires every backend to be reachable, since Put writes to all of them.
func (r ReplicatingCAS) Ping(ctx context.Context) error {
	if len(r.Backends) == 0 {
		return ErrNoBackend
	}
	var errs []error
	for _, b := range r.Backends {
		if err := Ping(ctx, b.CAS); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r ReplicatingCAS) fallback() FallbackCAS {
	bs := make([]CAS, 0, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS != nil {
			bs = append(bs, b.CAS)
		}
	}
	return FallbackCAS{Backends: bs}
}
