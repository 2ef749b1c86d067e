package veritum

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/nacl/box"

	"github.com/veritum-project/cube/continuation"
	"github.com/veritum-project/cube/cryptochunk"
	"github.com/veritum-project/cube/cube"
)

func genKeypair(t *testing.T) (pub, priv [32]byte) {
	t.Helper()
	p, s, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return *p, *s
}

func fieldsEqual(t *testing.T, got, want []cube.Field) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("field count mismatch: got %d want %d (%+v vs %+v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i].Type != want[i].Type || !bytes.Equal(got[i].Value, want[i].Value) {
			t.Fatalf("field %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
}

// withDate prepends to want the DATE field that recombining restores
// in front from the first content chunk (DATE is mapped to chunk -1).
func withDate(v *Veritum, want []cube.Field) []cube.Field {
	first := v.Chunks[v.HeaderChunks]
	date := make([]byte, cube.TimestampSize)
	cube.EncodeTimestamp(date, cube.DateOf(first.Type, first.Blob))
	return append([]cube.Field{{Type: cube.FieldDATE, Value: date}}, want...)
}

// assertNoPayload checks that FromChunks recovered none of the
// original payload — the empty-Veritum outcome spec §4.5/§7 call for
// when no supplied key material can open a chunk, as opposed to an
// error.
func assertNoPayload(t *testing.T, got []cube.Field, payload []byte) {
	t.Helper()
	for _, f := range got {
		if f.Type == cube.FieldAPPLICATION && bytes.Equal(f.Value, payload) {
			t.Fatalf("expected a failed decrypt to yield no recovered payload, got %+v", f)
		}
	}
}

func TestCompileFromChunksPlaintextRoundTrip(t *testing.T) {
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: []byte("hello plaintext veritum")}}
	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if v.HeaderChunks != 0 {
		t.Fatalf("expected no header chunks, got %d", v.HeaderChunks)
	}
	got, err := FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{})
	if err != nil {
		t.Fatalf("fromChunks: %v", err)
	}
	fieldsEqual(t, got, withDate(v, fields))
}

func TestCompileFromChunksPreSharedRoundTrip(t *testing.T) {
	var key cryptochunk.Key
	if _, err := rand.Read(key[:]); err != nil {
		t.Fatalf("key: %v", err)
	}
	payload := bytes.Repeat([]byte("pre-shared veritum content spanning many chunks. "), 60)
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: payload}}

	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, &CryptoOptions{PresharedKey: &key})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(v.Chunks) < 2 {
		t.Fatalf("expected multiple chunks for a large payload, got %d", len(v.Chunks))
	}
	if v.HeaderChunks != 0 {
		t.Fatalf("expected no header chunks, got %d", v.HeaderChunks)
	}

	got, err := FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{PresharedKey: &key})
	if err != nil {
		t.Fatalf("fromChunks: %v", err)
	}
	fieldsEqual(t, got, withDate(v, fields))

	var wrongKey cryptochunk.Key
	wrongKey[0] = key[0] ^ 0xFF
	got, err = FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{PresharedKey: &wrongKey})
	if err != nil {
		t.Fatalf("fromChunks with wrong key: expected no error (decrypt failure is absorbed), got %v", err)
	}
	assertNoPayload(t, got, payload)
}

func TestCompileFromChunksSingleRecipientRoundTrip(t *testing.T) {
	pub, priv := genKeypair(t)
	payload := bytes.Repeat([]byte("single recipient content. "), 80)
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: payload}}

	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, &CryptoOptions{SingleRecipientPub: &pub})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(v.Chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(v.Chunks))
	}

	got, err := FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: priv}})
	if err != nil {
		t.Fatalf("fromChunks: %v", err)
	}
	fieldsEqual(t, got, withDate(v, fields))

	_, otherPriv := genKeypair(t)
	got, err = FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: otherPriv}})
	if err != nil {
		t.Fatalf("fromChunks with unrelated private key: expected no error (decrypt failure is absorbed), got %v", err)
	}
	assertNoPayload(t, got, payload)
}

func TestCompileFromChunksMultiRecipientSmall(t *testing.T) {
	const n = 3
	pubs := make([][32]byte, n)
	privs := make([][32]byte, n)
	for i := range pubs {
		pubs[i], privs[i] = genKeypair(t)
	}
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: []byte("small group multi-recipient veritum")}}

	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, &CryptoOptions{MultiRecipientPubs: pubs})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if v.HeaderChunks != 0 {
		t.Fatalf("expected no header chunks for a recipient list within one chunk's capacity, got %d", v.HeaderChunks)
	}

	for i := range privs {
		got, err := FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: privs[i], SlotCount: n}})
		if err != nil {
			t.Fatalf("recipient %d fromChunks: %v", i, err)
		}
		fieldsEqual(t, got, withDate(v, fields))
	}
}

// TestCompileFromChunksMultiRecipientWrongKey exercises scenario 8.6:
// feeding a recipient's own chunks to a private key that isn't one of
// the addressed recipients yields an empty payload, not an error.
func TestCompileFromChunksMultiRecipientWrongKey(t *testing.T) {
	const n = 3
	pubs := make([][32]byte, n)
	for i := range pubs {
		pubs[i], _ = genKeypair(t)
	}
	payload := []byte("small group multi-recipient veritum")
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: payload}}

	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, &CryptoOptions{MultiRecipientPubs: pubs})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	_, outsiderPriv := genKeypair(t)
	got, err := FromChunks(v.Chunks, v.HeaderChunks, DecryptOptions{Recipient: &cryptochunk.Recipient{PrivateKey: outsiderPriv, SlotCount: n}})
	if err != nil {
		t.Fatalf("fromChunks with non-recipient key: expected no error (decrypt failure is absorbed), got %v", err)
	}
	assertNoPayload(t, got, payload)
}

// TestCompileFromChunksMultiRecipientOverflow covers a recipient list
// too large for one chunk's key-slot table: compile splits it across
// several equally sized header chunks sharing one session, and a
// recipient only needs their own header plus the content chain to
// recover the full message.
func TestCompileFromChunksMultiRecipientOverflow(t *testing.T) {
	def := cube.DefForType(cube.TypeFrozen)
	capacity := cryptochunk.SlotCapacity(def)
	if capacity <= 0 {
		t.Fatalf("non-positive slot capacity: %d", capacity)
	}

	const groupCount = 3
	total := capacity * groupCount
	pubs := make([][32]byte, total)
	privs := make([][32]byte, total)
	for i := range pubs {
		pubs[i], privs[i] = genKeypair(t)
	}
	fields := []cube.Field{{Type: cube.FieldAPPLICATION, Value: bytes.Repeat([]byte("overflow recipient veritum payload. "), 40)}}

	v, err := Compile(context.Background(), cube.TypeFrozen, fields, continuation.Template{}, &CryptoOptions{MultiRecipientPubs: pubs})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if v.HeaderChunks != groupCount {
		t.Fatalf("expected %d header chunks, got %d", groupCount, v.HeaderChunks)
	}

	for gi := 0; gi < groupCount; gi++ {
		headerAndContent := make([]*cube.CompiledCube, 0, 1+len(v.Chunks)-v.HeaderChunks)
		headerAndContent = append(headerAndContent, v.Chunks[gi])
		headerAndContent = append(headerAndContent, v.Chunks[v.HeaderChunks:]...)

		memberIdx := gi * capacity
		got, err := FromChunks(headerAndContent, 1, DecryptOptions{
			Recipient: &cryptochunk.Recipient{PrivateKey: privs[memberIdx], SlotCount: capacity},
		})
		if err != nil {
			t.Fatalf("group %d member fromChunks: %v", gi, err)
		}
		fieldsEqual(t, got, withDate(v, fields))
	}
}

func TestCryptoOptionsValidate(t *testing.T) {
	pub, _ := genKeypair(t)
	var key cryptochunk.Key

	cases := []*CryptoOptions{
		{},
		{PresharedKey: &key, SingleRecipientPub: &pub},
	}
	for i, opts := range cases {
		if err := opts.validate(); !IsCode(err, CodeCryptoOptions) {
			t.Fatalf("case %d: expected CodeCryptoOptions, got %v", i, err)
		}
	}
}
