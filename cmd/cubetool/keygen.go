package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// runKeygen prints a fresh keypair in hex: an ed25519 signing pair for
// MUC/PMUC cubes, or an x25519 pair for single-/multi-recipient
// encryption (spec §4.5 "recipient identities are X25519 keys").
func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cubetool keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := fs.String("kind", "signing", "key kind: signing (ed25519) or recipient (x25519)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch *kind {
	case "signing":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "generate signing key: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "private_key=%s\n", hex.EncodeToString(priv))
		_, _ = fmt.Fprintf(stdout, "public_key=%s\n", hex.EncodeToString(pub))
		return 0
	case "recipient":
		pub, priv, err := box.GenerateKey(rand.Reader)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "generate recipient key: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "private_key=%s\n", hex.EncodeToString(priv[:]))
		_, _ = fmt.Fprintf(stdout, "public_key=%s\n", hex.EncodeToString(pub[:]))
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown -kind %q, want signing or recipient\n", *kind)
		return 2
	}
}
