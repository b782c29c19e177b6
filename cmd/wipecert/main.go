package main

import (
	"fmt"
	"io"
	"os"

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
	case "issue":
		return cmdIssue(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "verify-url":
		return cmdVerifyURL(args[1:], out, errOut)
	case "decode":
		return cmdDecode(args[1:], out, errOut)
	case "payload-cid":
		return cmdPayloadCID(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "backends":
		return cmdBackends(args[1:], out, errOut)
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
	fmt.Fprintln(w, "wipecert: sign and verify sanitization certificates")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wipecert issue --json <record.json> [--out-dir <dir>] [--pdf-out <file>] [--qr-out <file>] [--subtitle <text>] [--no-upload] [--assign-id] [--key <private.pem> | --key-name <name>]")
	fmt.Fprintln(w, "  wipecert verify [--pubkey <public.pem> | --key-name <name>] [--carrier pdf|json] <certificate.pdf>")
	fmt.Fprintln(w, "  wipecert verify-url [--pubkey <public.pem> | --key-name <name>] <locator>")
	fmt.Fprintln(w, "  wipecert decode <locator|fragment>")
	fmt.Fprintln(w, "  wipecert payload-cid [--pdf] <file>")
	fmt.Fprintln(w, "  wipecert key generate --name <name> [--scheme rsa-pkcs1v15-sha256|ed25519|dilithium3] [--hash <alg>] [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  wipecert key list")
	fmt.Fprintln(w, "  wipecert key export --name <name>")
	fmt.Fprintln(w, "  wipecert backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --config <wipecert.yaml>  --log-level debug|info|warn|error  --log-format text|json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - issue prints the QR locator to stdout; offline locators embed the whole signed payload")
	fmt.Fprintln(w, "  - hosting failures never fail issuance; the offline fragment is used instead")
	fmt.Fprintln(w, "  - verify exits 0 only for a valid signature")
	fmt.Fprintln(w, "  - decode does not check the signature")
	fmt.Fprintln(w, "  - KMS-lite stores keys under ~/.wipecert/keys/<name> (0600 private key files)")
}
