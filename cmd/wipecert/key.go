package main

import (
	"flag"
	"fmt"
	"io"

	"nullbytes.dev/wipecert/keys"
	"nullbytes.dev/wipecert/signing"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "generate":
		return cmdKeyGenerate(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "wipecert key: minimal local key management (KMS-lite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wipecert key generate --name <name> [--scheme rsa-pkcs1v15-sha256|ed25519|dilithium3] [--hash <alg>] [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  wipecert key list")
	fmt.Fprintln(w, "  wipecert key export --name <name>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All subcommands accept --store <dir> (default ~/.wipecert/keys).")
}

func openStore(dir string, errOut io.Writer) (*keys.KeyStore, bool) {
	ks, err := keys.OpenKeyStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, false
	}
	return ks, true
}

func cmdKeyGenerate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key generate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var store string
	var name string
	var scheme string
	var hashAlg string
	var seedHex string
	var force bool

	fs.StringVar(&store, "store", "", "Key store directory")
	fs.StringVar(&name, "name", "", "Key name (directory under the key store)")
	fs.StringVar(&scheme, "scheme", string(signing.RSAPKCS1v15SHA256), "Signature scheme")
	fs.StringVar(&hashAlg, "hash", "", "Digest for dilithium3: sha256, sha512, sha3-256, blake3")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if seedHex != "" && signing.Scheme(scheme) != signing.Ed25519SHA256 {
		fmt.Fprintln(errOut, "--seed-hex requires --scheme ed25519")
		return 2
	}
	if hashAlg != "" {
		if err := signing.CheckHashAlg(hashAlg); err != nil {
			fmt.Fprintf(errOut, "invalid --hash: %v\n", err)
			return 2
		}
	}
	ks, ok := openStore(store, errOut)
	if !ok {
		return 1
	}

	var entry keys.KeyEntry
	var err error
	if seedHex != "" {
		entry, err = ks.ImportEd25519Seed(name, seedHex, force)
	} else {
		entry, err = ks.Generate(name, signing.Scheme(scheme), hashAlg, force)
	}
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created %s key: %s\n", entry.Scheme, entry.Fingerprint)
	fmt.Fprintf(out, "Stored at: %s\n", ks.PrivateKeyPath(name))
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var store string
	fs.StringVar(&store, "store", "", "Key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, ok := openStore(store, errOut)
	if !ok {
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		private := "public-only"
		if e.HasPrivate {
			private = "private"
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.Name, e.Scheme, e.Fingerprint, private)
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var store string
	var name string
	fs.StringVar(&store, "store", "", "Key store directory")
	fs.StringVar(&name, "name", "", "Key name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, ok := openStore(store, errOut)
	if !ok {
		return 1
	}
	pub, err := ks.ExportPublic(name)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = out.Write(pub)
	return 0
}
