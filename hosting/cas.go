package hosting

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"

	"nullbytes.dev/wipecert/certerr"
	"nullbytes.dev/wipecert/storage"
)

// CASUploader hosts payloads in a content-addressed store. The reference is
// the payload CID.
type CASUploader struct {
	CAS storage.CAS
	// ProbeAddr, when set, is dialed over TCP instead of pinging the store.
	ProbeAddr string
}

var _ Uploader = (*CASUploader)(nil)

func (u *CASUploader) Probe(ctx context.Context) error {
	if u.CAS == nil {
		return certerr.New(certerr.KindUploadUnavailable, ruleProbe, "no payload store configured")
	}
	if u.ProbeAddr != "" {
		return DialProbe(ctx, u.ProbeAddr)
	}
	if err := storage.Ping(ctx, u.CAS); err != nil {
		return certerr.Wrap(certerr.KindUploadUnavailable, ruleProbe, "payload store unreachable", err)
	}
	return nil
}

// Upload stores data. Backends that ignore ctx are not waited for past its
// deadline; their late result is dropped, which is harmless because puts are
// idempotent.
func (u *CASUploader) Upload(ctx context.Context, data []byte) Result {
	if u.CAS == nil {
		return unavailable(ruleUpload, "no payload store configured", nil)
	}
	type putResult struct {
		id  cid.Cid
		err error
	}
	done := make(chan putResult, 1)
	go func() {
		id, err := u.CAS.Put(ctx, data)
		done <- putResult{id, err}
	}()

	select {
	case <-ctx.Done():
		return unavailable(ruleTimeout, "payload store put timed out", ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return unavailable(ruleTimeout, "payload store put timed out", r.err)
			}
			return unavailable(ruleUpload, "payload store put failed", r.err)
		}
		return Hosted(r.id.String())
	}
}

// CASFetcher reads hosted payloads back by CID.
type CASFetcher struct {
	CAS storage.CAS
}

func (f *CASFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if f.CAS == nil {
		return nil, certerr.New(certerr.KindFragmentDecode, ruleFetch, "no payload store configured")
	}
	id, err := cid.Decode(ref)
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleReference, "reference is not a CID", err)
	}
	data, err := f.CAS.Get(ctx, id)
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleFetch, "fetch "+ref, err)
	}
	return data, nil
}
