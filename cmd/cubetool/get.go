package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/veritum-project/cube/cryptochunk"
	"github.com/veritum-project/cube/cube"
	"github.com/veritum-project/cube/store"
	"github.com/veritum-project/cube/veritum"
)

// runGet recovers a Veritum's plaintext field list from a store given
// its chunk keys in split order, and prints every APPLICATION field it
// finds.
func runGet(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cubetool get", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("store", "", "bbolt store path (required)")
	keysCSV := fs.String("keys", "", "comma-separated hex chunk keys, in split order (required)")
	headerChunks := fs.Int("header-chunks", 0, "number of leading keys that are multi-recipient header chunks")
	cryptoMode := fs.String("crypto", "none", "none|preshared|single|multi")
	presharedHex := fs.String("preshared-key", "", "hex 32-byte pre-shared key (crypto=preshared)")
	privateKeyHex := fs.String("private-key", "", "hex x25519 private key (crypto=single|multi)")
	slotCount := fs.Int("slot-count", 0, "recipient count the sender addressed (crypto=multi)")
	out := fs.String("out", "-", "output file for the recovered payload, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *storePath == "" || *keysCSV == "" {
		_, _ = fmt.Fprintln(stderr, "get: -store and -keys are required")
		return 2
	}

	keyHexes := splitCSV(*keysCSV)
	if len(keyHexes) == 0 {
		_, _ = fmt.Fprintln(stderr, "get: -keys must list at least one key")
		return 2
	}

	st, err := store.Open(*storePath, store.DefaultConfig())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "get: open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	chunks := make([]*cube.CompiledCube, len(keyHexes))
	for i, kh := range keyHexes {
		key, err := parseHexKey(kh)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "get: key %d: %v\n", i, err)
			return 2
		}
		blob, ok, err := st.Get(key)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "get: fetch key %d: %v\n", i, err)
			return 1
		}
		if !ok {
			_, _ = fmt.Fprintf(stderr, "get: key %d not found in store\n", i)
			return 1
		}
		if len(blob) == 0 {
			_, _ = fmt.Fprintf(stderr, "get: key %d: empty blob\n", i)
			return 1
		}
		typ := cube.Type(blob[0])
		cc, err := cube.FromBlob(typ, blob, 0)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "get: decode key %d: %v\n", i, err)
			return 1
		}
		chunks[i] = cc
	}

	opts, err := buildDecryptOptions(*cryptoMode, *presharedHex, *privateKeyHex, *slotCount)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "get: %v\n", err)
		return 2
	}

	fields, err := veritum.FromChunks(chunks, *headerChunks, opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "get: recover: %v\n", err)
		return 1
	}

	w, closeFn, err := openOutput(*out, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "get: open output: %v\n", err)
		return 1
	}
	defer closeFn()

	wrote := false
	for _, f := range fields {
		if f.Type == cube.FieldAPPLICATION {
			if _, err := w.Write(f.Value); err != nil {
				_, _ = fmt.Fprintf(stderr, "get: write output: %v\n", err)
				return 1
			}
			wrote = true
		}
	}
	if !wrote {
		_, _ = fmt.Fprintln(stderr, "get: no APPLICATION field found in the recovered Veritum")
		return 1
	}
	return 0
}

func buildDecryptOptions(mode, presharedHex, privateKeyHex string, slotCount int) (veritum.DecryptOptions, error) {
	switch mode {
	case "none":
		return veritum.DecryptOptions{}, nil
	case "preshared":
		if presharedHex == "" {
			return veritum.DecryptOptions{}, fmt.Errorf("-preshared-key is required for crypto=preshared")
		}
		k, err := parseHex32(presharedHex)
		if err != nil {
			return veritum.DecryptOptions{}, fmt.Errorf("-preshared-key: %w", err)
		}
		key := cryptochunk.Key(k)
		return veritum.DecryptOptions{PresharedKey: &key}, nil
	case "single":
		priv, err := parsePrivateKey(privateKeyHex)
		if err != nil {
			return veritum.DecryptOptions{}, err
		}
		return veritum.DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: priv}}, nil
	case "multi":
		priv, err := parsePrivateKey(privateKeyHex)
		if err != nil {
			return veritum.DecryptOptions{}, err
		}
		if slotCount <= 0 {
			return veritum.DecryptOptions{}, fmt.Errorf("-slot-count must be positive for crypto=multi")
		}
		return veritum.DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: priv, SlotCount: slotCount}}, nil
	default:
		return veritum.DecryptOptions{}, fmt.Errorf("unknown -crypto %q, want none|preshared|single|multi", mode)
	}
}

func parsePrivateKey(s string) ([32]byte, error) {
	if s == "" {
		return [32]byte{}, fmt.Errorf("-private-key is required")
	}
	k, err := parseHex32(s)
	if err != nil {
		return [32]byte{}, fmt.Errorf("-private-key: %w", err)
	}
	return k, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { _ = f.Close() }, nil
}
