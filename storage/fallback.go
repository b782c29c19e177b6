package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// FallbackCAS reads from backends in slice order and writes to the first one.
type FallbackCAS struct {
	Backends []CAS
}

var (
	_ CAS    = FallbackCAS{}
	_ Pinger = FallbackCAS{}
)

func (f FallbackCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(f.Backends) == 0 {
		return cid.Undef, ErrNoBackend
	}
	return f.Backends[0].Put(ctx, data)
}

func (f FallbackCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if len(f.Backends) == 0 {
		return nil, ErrNoBackend
	}
	var errs []error
	for _, b := range f.Backends {
		data, err := b.Get(ctx, id)
		if err == nil {
			return data, nil
		}
		if IsNotFound(err) {
			continue
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNotFound
}

func (f FallbackCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	var firstErr error
	for _, b := range f.Backends {
		ok, err := b.Has(ctx, id)
		if ok {
			return true, nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return false, firstErr
}

// Ping succeeds when the write backend is reachable.
func (f FallbackCAS) Ping(ctx context.Context) error {
	if len(f.Backends) == 0 {
		return ErrNoBackend
	}
	return Ping(ctx, f.Backends[0])
}
