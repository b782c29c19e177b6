// Command cascli puts, fetches and checks hosted certificate payloads in any
// registered payload store backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/hosting"
	"nullbytes.dev/wipecert/keys"
	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/casregistry"
	"nullbytes.dev/wipecert/verify"

	_ "nullbytes.dev/wipecert/storage/grpccas"
	_ "nullbytes.dev/wipecert/storage/ipfs"
	_ "nullbytes.dev/wipecert/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "has":
		return cmdHas(args[1:], out, errOut)
	case "ping":
		return cmdPing(args[1:], out, errOut)
	case "check":
		return cmdCheck(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "cascli: minimal payload store tool for walkthroughs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cascli put --backend localfs --localfs-dir <dir> <payload.json>")
	fmt.Fprintln(w, "  cascli get --backend localfs --localfs-dir <dir> --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  cascli has --backend localfs --localfs-dir <dir> --cid <cid>")
	fmt.Fprintln(w, "  cascli ping --backend grpc --grpc-target <host:port>")
	fmt.Fprintln(w, "  cascli check --backend localfs --localfs-dir <dir> --pubkey <public.pem> --cid <cid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - ipfs backend shells out to the local Kubo 'ipfs' CLI")
	fmt.Fprintln(w, "  - grpc backend talks to wipecert-casd")
	fmt.Fprintln(w, "  - payloads are stored as raw blocks (CIDv1 raw + sha2-256)")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *commonFlags) openCAS() (storage.CAS, func() error, error) {
	return casregistry.Open(c.backend, casregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

// parse handles the shared flags. ok is false when the command should return
// code immediately.
func parse(fs *flag.FlagSet, common *commonFlags, args []string, out io.Writer) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		return 2, false
	}
	if common.listBackends {
		printBackends(out)
		return 0, false
	}
	return 0, true
}

func withCAS(common *commonFlags, errOut io.Writer, fn func(storage.CAS) int) int {
	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(cas)
}

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: cascli put [common flags] <file>")
		return 2
	}
	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	return withCAS(&common, errOut, func(cas storage.CAS) int {
		id, err := cas.Put(context.Background(), b)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id.String())
		return 0
	})
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr string
	var outPath string
	fs.StringVar(&cidStr, "cid", "", "CID to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if cidStr == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}
	id, err := cidutil.Parse(cidStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 1
	}
	return withCAS(&common, errOut, func(cas storage.CAS) int {
		b, err := cas.Get(context.Background(), id)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if outPath == "" {
			_, _ = out.Write(b)
			return 0
		}
		if err := os.WriteFile(outPath, b, 0o600); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
			return 1
		}
		return 0
	})
}

func cmdHas(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("has", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr string
	fs.StringVar(&cidStr, "cid", "", "CID to look up")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	id, err := cidutil.Parse(cidStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 2
	}
	return withCAS(&common, errOut, func(cas storage.CAS) int {
		ok, err := cas.Has(context.Background(), id)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, ok)
		if !ok {
			return 1
		}
		return 0
	})
}

func cmdPing(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	return withCAS(&common, errOut, func(cas storage.CAS) int {
		if err := storage.Ping(context.Background(), cas); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	})
}

// cmdCheck fetches a hosted payload and verifies its signature.
func cmdCheck(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr string
	var pubkey string
	fs.StringVar(&cidStr, "cid", "", "Payload CID")
	fs.StringVar(&pubkey, "pubkey", "", "Public key PEM file")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if cidStr == "" || pubkey == "" {
		fmt.Fprintln(errOut, "usage: cascli check [common flags] --pubkey <public.pem> --cid <cid>")
		return 2
	}
	v, err := keys.LoadVerifier(pubkey)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return withCAS(&common, errOut, func(cas storage.CAS) int {
		p := &verify.Pipeline{Verifier: v, CAS: &hosting.CASFetcher{CAS: cas}}
		res, err := p.VerifyLocator(context.Background(), cidStr)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, res.Outcome)
		if res.Outcome != verify.Valid {
			return 1
		}
		return 0
	})
}
