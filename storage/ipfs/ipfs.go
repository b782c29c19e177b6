// Package ipfs stores payloads as raw blocks in a local Kubo repository by
// running the ipfs CLI. No daemon is needed; the CID returned by Kubo is
// checked against the one computed locally.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/storage"
)

type CAS struct {
	bin string
	env []string
}

var (
	_ storage.CAS    = (*CAS)(nil)
	_ storage.Pinger = (*CAS)(nil)
)

type Options struct {
	// Bin is the ipfs executable. Defaults to "ipfs" on PATH.
	Bin string
	// RepoPath sets IPFS_PATH for every invocation when non-empty.
	RepoPath string
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	c := &CAS{bin: bin}
	if opts.RepoPath != "" {
		c.env = append(os.Environ(), "IPFS_PATH="+opts.RepoPath)
	}
	return c
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := storage.CheckSize(data); err != nil {
		return cid.Undef, err
	}
	want, err := cidutil.ForPayload(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := c.run(ctx, data,
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--pin=true",
	)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return want, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(ctx, nil, "block", "get", "--offline", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if !cidutil.Matches(id, out) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	_, err := c.run(ctx, nil, "block", "stat", "--offline", id.String())
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Ping checks that the binary runs and the repository opens.
func (c *CAS) Ping(ctx context.Context) error {
	_, err := c.run(ctx, nil, "repo", "stat", "--size-only")
	return err
}

func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(string(ee.Stderr)); s != "" {
			return nil, fmt.Errorf("ipfs: %s", s)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}
