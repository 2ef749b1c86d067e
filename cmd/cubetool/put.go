package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/veritum-project/cube/continuation"
	"github.com/veritum-project/cube/cryptochunk"
	"github.com/veritum-project/cube/cube"
	"github.com/veritum-project/cube/store"
	"github.com/veritum-project/cube/veritum"
)

// runPut compiles a Veritum out of a payload file and writes every
// resulting chunk into a bbolt-backed store, printing the chunk keys in
// split order so they can be handed to `cubetool get`.
func runPut(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cubetool put", flag.ContinueOnError)
	fs.SetOutput(stderr)

	typeName := fs.String("type", "FROZEN", "cube type: FROZEN(_NOTIFY)|PIC(_NOTIFY)|MUC(_NOTIFY)|PMUC(_NOTIFY)")
	storePath := fs.String("store", "", "bbolt store path (required)")
	difficulty := fs.Int("difficulty", 0, "hashcash trailing-zero-bit difficulty")
	in := fs.String("in", "-", "payload file, or - for stdin")
	signingKeyHex := fs.String("signing-key", "", "hex ed25519 private key (required for MUC/PMUC)")
	notifyHex := fs.String("notify", "", "hex 32-byte NOTIFY key (required for *_NOTIFY types)")
	updateCount := fs.Uint64("update-count", 0, "PMUC update counter")
	cryptoMode := fs.String("crypto", "none", "none|preshared|single|multi")
	presharedHex := fs.String("preshared-key", "", "hex 32-byte pre-shared key (crypto=preshared)")
	var recipients multiStringFlag
	fs.Var(&recipients, "recipient", "hex x25519 public key (repeatable; crypto=single takes exactly one, crypto=multi takes one or more)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *storePath == "" {
		_, _ = fmt.Fprintln(stderr, "put: -store is required")
		return 2
	}
	typ, err := parseType(*typeName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "put: %v\n", err)
		return 2
	}

	payload, err := readPayload(*in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "put: read payload: %v\n", err)
		return 1
	}

	tmpl := continuation.Template{Difficulty: *difficulty}

	if typ.IsSigned() {
		if *signingKeyHex == "" {
			_, _ = fmt.Fprintln(stderr, "put: -signing-key is required for MUC/PMUC types")
			return 2
		}
		raw, err := hex.DecodeString(*signingKeyHex)
		if err != nil || len(raw) != ed25519.PrivateKeySize {
			_, _ = fmt.Fprintf(stderr, "put: -signing-key must be %d hex-encoded bytes\n", ed25519.PrivateKeySize)
			return 2
		}
		tmpl.PrivateKey = ed25519.PrivateKey(raw)
	}
	if typ.IsNotify() {
		if *notifyHex == "" {
			_, _ = fmt.Fprintln(stderr, "put: -notify is required for *_NOTIFY types")
			return 2
		}
		n, err := parseHex32(*notifyHex)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "put: -notify: %v\n", err)
			return 2
		}
		tmpl.Notify = &n
	}
	if typ.IsPMUC() {
		tmpl.UpdateCount = *updateCount
	}

	crypto, err := buildCryptoOptions(*cryptoMode, *presharedHex, recipients)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "put: %v\n", err)
		return 2
	}

	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: payload}}

	ctx := context.Background()
	v, err := veritum.Compile(ctx, typ, fields, tmpl, crypto)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "put: compile: %v\n", err)
		return 1
	}

	st, err := store.Open(*storePath, store.Config{Difficulty: *difficulty})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "put: open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	for i, c := range v.Chunks {
		if _, _, err := st.Add(ctx, typ, c.Blob); err != nil {
			_, _ = fmt.Fprintf(stderr, "put: store chunk %d: %v\n", i, err)
			return 1
		}
	}

	_, _ = fmt.Fprintf(stdout, "type=%s header_chunks=%d chunk_count=%d\n", typ, v.HeaderChunks, len(v.Chunks))
	for i, c := range v.Chunks {
		role := "content"
		if i < v.HeaderChunks {
			role = "header"
		}
		_, _ = fmt.Fprintf(stdout, "chunk[%d] role=%s key=%s\n", i, role, hex.EncodeToString(c.Key[:]))
	}
	return 0
}

func readPayload(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// buildCryptoOptions resolves -crypto/-preshared-key/-recipient into the
// CryptoOptions veritum.Compile expects, or nil for a plaintext Veritum.
func buildCryptoOptions(mode, presharedHex string, recipients []string) (*veritum.CryptoOptions, error) {
	switch mode {
	case "none":
		return nil, nil
	case "preshared":
		if presharedHex == "" {
			return nil, fmt.Errorf("-preshared-key is required for crypto=preshared")
		}
		k, err := parseHex32(presharedHex)
		if err != nil {
			return nil, fmt.Errorf("-preshared-key: %w", err)
		}
		key := cryptochunk.Key(k)
		return &veritum.CryptoOptions{PresharedKey: &key}, nil
	case "single":
		if len(recipients) != 1 {
			return nil, fmt.Errorf("crypto=single requires exactly one -recipient")
		}
		pub, err := parseHex32(recipients[0])
		if err != nil {
			return nil, fmt.Errorf("-recipient: %w", err)
		}
		return &veritum.CryptoOptions{SingleRecipientPub: &pub}, nil
	case "multi":
		if len(recipients) == 0 {
			return nil, fmt.Errorf("crypto=multi requires at least one -recipient")
		}
		pubs := make([][32]byte, len(recipients))
		for i, r := range recipients {
			pub, err := parseHex32(r)
			if err != nil {
				return nil, fmt.Errorf("-recipient[%d]: %w", i, err)
			}
			pubs[i] = pub
		}
		return &veritum.CryptoOptions{MultiRecipientPubs: pubs}, nil
	default:
		return nil, fmt.Errorf("unknown -crypto %q, want none|preshared|single|multi", mode)
	}
}
