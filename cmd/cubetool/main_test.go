package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/nacl/box"

	"github.com/veritum-project/cube/cryptochunk"
	"github.com/veritum-project/cube/cube"
)

func runTool(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func keygen(t *testing.T, kind string) (pub, priv string) {
	t.Helper()
	out, errOut, code := runTool(t, "keygen", "-kind", kind)
	if code != 0 {
		t.Fatalf("keygen -kind %s: code=%d stderr=%s", kind, code, errOut)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "private_key=") {
			priv = strings.TrimPrefix(line, "private_key=")
		}
		if strings.HasPrefix(line, "public_key=") {
			pub = strings.TrimPrefix(line, "public_key=")
		}
	}
	if pub == "" || priv == "" {
		t.Fatalf("keygen output missing keys: %q", out)
	}
	return pub, priv
}

// chunkKeys parses `cubetool put`'s "chunk[i] role=... key=..." lines
// into an ordered list of hex keys.
func chunkKeys(t *testing.T, putStdout string) []string {
	t.Helper()
	var keys []string
	for _, line := range strings.Split(strings.TrimSpace(putStdout), "\n") {
		if !strings.HasPrefix(line, "chunk[") {
			continue
		}
		idx := strings.Index(line, "key=")
		if idx == -1 {
			t.Fatalf("put output line missing key=: %q", line)
		}
		keys = append(keys, line[idx+len("key="):])
	}
	if len(keys) == 0 {
		t.Fatalf("put output had no chunk lines: %q", putStdout)
	}
	return keys
}

func TestPutGetPlaintextRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cubes.db")
	inPath := filepath.Join(dir, "payload.txt")
	writeFile(t, inPath, "hello plaintext cube")

	putOut, putErr, code := runTool(t, "put", "-type", "FROZEN", "-store", storePath, "-in", inPath)
	if code != 0 {
		t.Fatalf("put: code=%d stderr=%s", code, putErr)
	}
	keys := chunkKeys(t, putOut)

	getOut, getErr, code := runTool(t, "get", "-store", storePath, "-keys", strings.Join(keys, ","))
	if code != 0 {
		t.Fatalf("get: code=%d stderr=%s", code, getErr)
	}
	if getOut != "hello plaintext cube" {
		t.Fatalf("recovered payload = %q", getOut)
	}
}

func TestPutGetPreSharedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cubes.db")
	inPath := filepath.Join(dir, "payload.txt")
	payload := strings.Repeat("pre-shared cube tool payload. ", 80)
	writeFile(t, inPath, payload)

	key := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))

	putOut, putErr, code := runTool(t, "put",
		"-type", "FROZEN", "-store", storePath, "-in", inPath,
		"-crypto", "preshared", "-preshared-key", key)
	if code != 0 {
		t.Fatalf("put: code=%d stderr=%s", code, putErr)
	}
	keys := chunkKeys(t, putOut)
	if len(keys) < 2 {
		t.Fatalf("expected a multi-chunk veritum for a large payload, got %d chunks", len(keys))
	}

	getOut, getErr, code := runTool(t, "get",
		"-store", storePath, "-keys", strings.Join(keys, ","),
		"-crypto", "preshared", "-preshared-key", key)
	if code != 0 {
		t.Fatalf("get: code=%d stderr=%s", code, getErr)
	}
	if getOut != payload {
		t.Fatalf("recovered payload mismatch: got %d bytes, want %d", len(getOut), len(payload))
	}

	wrongKey := hex.EncodeToString(bytes.Repeat([]byte{0x24}, 32))
	_, _, code = runTool(t, "get",
		"-store", storePath, "-keys", strings.Join(keys, ","),
		"-crypto", "preshared", "-preshared-key", wrongKey)
	if code == 0 {
		t.Fatalf("expected get to fail with the wrong pre-shared key")
	}
}

func TestPutGetSingleRecipientRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cubes.db")
	inPath := filepath.Join(dir, "payload.txt")
	writeFile(t, inPath, "single recipient veritum content")

	pub, priv := keygen(t, "recipient")

	putOut, putErr, code := runTool(t, "put",
		"-type", "FROZEN", "-store", storePath, "-in", inPath,
		"-crypto", "single", "-recipient", pub)
	if code != 0 {
		t.Fatalf("put: code=%d stderr=%s", code, putErr)
	}
	keys := chunkKeys(t, putOut)

	getOut, getErr, code := runTool(t, "get",
		"-store", storePath, "-keys", strings.Join(keys, ","),
		"-crypto", "single", "-private-key", priv)
	if code != 0 {
		t.Fatalf("get: code=%d stderr=%s", code, getErr)
	}
	if getOut != "single recipient veritum content" {
		t.Fatalf("recovered payload = %q", getOut)
	}
}

func TestPutGetMultiRecipientRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cubes.db")
	inPath := filepath.Join(dir, "payload.txt")
	writeFile(t, inPath, "multi recipient veritum content")

	const n = 3
	pubs := make([]string, n)
	privs := make([]string, n)
	for i := 0; i < n; i++ {
		pubs[i], privs[i] = keygen(t, "recipient")
	}

	args := []string{"put", "-type", "FROZEN", "-store", storePath, "-in", inPath, "-crypto", "multi"}
	for _, p := range pubs {
		args = append(args, "-recipient", p)
	}
	putOut, putErr, code := runTool(t, args...)
	if code != 0 {
		t.Fatalf("put: code=%d stderr=%s", code, putErr)
	}
	keys := chunkKeys(t, putOut)

	for i, priv := range privs {
		getOut, getErr, code := runTool(t, "get",
			"-store", storePath, "-keys", strings.Join(keys, ","),
			"-crypto", "multi", "-private-key", priv, "-slot-count", fmt.Sprint(n))
		if code != 0 {
			t.Fatalf("recipient %d get: code=%d stderr=%s", i, code, getErr)
		}
		if getOut != "multi recipient veritum content" {
			t.Fatalf("recipient %d recovered payload = %q", i, getOut)
		}
	}
}

// putResult parses `cubetool put`'s header_chunks=N summary line
// alongside its per-chunk key lines.
func putResult(t *testing.T, putStdout string) (headerChunks int, keys []string) {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(putStdout), "\n") {
		if strings.HasPrefix(line, "type=") {
			if _, err := fmt.Sscanf(line, "type=%s header_chunks=%d chunk_count=%d", new(string), &headerChunks, new(int)); err != nil {
				t.Fatalf("parse summary line %q: %v", line, err)
			}
		}
	}
	return headerChunks, chunkKeys(t, putStdout)
}

// TestPutGetMultiRecipientOverflow exercises a recipient list too large
// for one chunk's key-slot table, where put emits several header chunks
// sharing one content chain and a recipient needs only their own header
// plus the content chunks to recover the payload.
func TestPutGetMultiRecipientOverflow(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cubes.db")
	inPath := filepath.Join(dir, "payload.txt")
	writeFile(t, inPath, "overflow veritum content")

	capacity := cryptochunk.SlotCapacity(cube.DefForType(cube.TypeFrozen))
	n := capacity + capacity/2 // exceeds one chunk's slot capacity, forcing two groups

	pubsRaw := make([][32]byte, n)
	pubs := make([]string, n)
	privs := make([]string, n)
	for i := 0; i < n; i++ {
		pub, priv, err := box.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate keypair: %v", err)
		}
		pubsRaw[i] = *pub
		pubs[i] = hex.EncodeToString(pub[:])
		privs[i] = hex.EncodeToString(priv[:])
	}
	groups := cryptochunk.DistributeRecipients(pubsRaw, capacity)

	args := []string{"put", "-type", "FROZEN", "-store", storePath, "-in", inPath, "-crypto", "multi"}
	for _, p := range pubs {
		args = append(args, "-recipient", p)
	}
	putOut, putErr, code := runTool(t, args...)
	if code != 0 {
		t.Fatalf("put: code=%d stderr=%s", code, putErr)
	}
	headerChunks, keys := putResult(t, putOut)
	if headerChunks != len(groups) {
		t.Fatalf("header_chunks=%d, want %d (groups=%v)", headerChunks, len(groups), groupSizes(groups))
	}

	content := keys[headerChunks:]
	memberIdx := 0
	for gi, group := range groups {
		selected := append([]string{keys[gi]}, content...)

		getOut, getErr, code := runTool(t, "get",
			"-store", storePath, "-keys", strings.Join(selected, ","),
			"-header-chunks", "1",
			"-crypto", "multi", "-private-key", privs[memberIdx], "-slot-count", fmt.Sprint(len(group)))
		if code != 0 {
			t.Fatalf("group %d get: code=%d stderr=%s", gi, code, getErr)
		}
		if getOut != "overflow veritum content" {
			t.Fatalf("group %d recovered payload = %q", gi, getOut)
		}
		memberIdx += len(group)
	}
}

func groupSizes(groups [][][32]byte) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = len(g)
	}
	return out
}

func TestRunUnknownSubcommand(t *testing.T) {
	_, stderr, code := runTool(t, "bogus")
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
	if stderr == "" {
		t.Fatalf("expected usage output on stderr")
	}
}

func TestKeygenUnknownKind(t *testing.T) {
	_, _, code := runTool(t, "keygen", "-kind", "bogus")
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
