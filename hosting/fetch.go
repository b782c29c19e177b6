package hosting

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"nullbytes.dev/wipecert/certerr"
)

// MaxFetchBytes bounds a fetched payload.
const MaxFetchBytes = 8 << 20

// Fetcher retrieves a hosted payload by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*CASFetcher)(nil)
)

// HTTPFetcher GETs http(s) references.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleReference, "bad hosted URL", err)
	}
	req.Header.Set("Accept", "application/json")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleFetch, "fetch "+ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, certerr.New(certerr.KindFragmentDecode, ruleFetch, fmt.Sprintf("fetch %s: %s", ref, resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, certerr.Wrap(certerr.KindFragmentDecode, ruleFetch, "read "+ref, err)
	}
	if len(data) > MaxFetchBytes {
		return nil, certerr.New(certerr.KindFragmentDecode, ruleFetch, "hosted payload exceeds the size limit")
	}
	return data, nil
}
