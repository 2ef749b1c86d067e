package cube

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"
)

func TestCompileDecompileRoundTrip_Frozen(t *testing.T) {
	t.Run("payload hello", func(t *testing.T) {
		b := Builder{
			Type:       TypeFrozen,
			Fields:     []Field{{Type: FieldPAYLOAD, Value: []byte("hello")}},
			Difficulty: 0,
		}
		cc, err := b.Compile(context.Background())
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if len(cc.Blob) != CubeSize {
			t.Fatalf("blob len = %d, want %d", len(cc.Blob), CubeSize)
		}
		wantKey := Hash(cc.Blob)
		if cc.Key != wantKey {
			t.Fatalf("key mismatch: got %x want %x", cc.Key, wantKey)
		}

		fields, err := cc.Fields()
		if err != nil {
			t.Fatalf("decompile: %v", err)
		}
		found := false
		for _, f := range fields {
			if f.Type == FieldPAYLOAD {
				found = true
				if string(f.Value) != "hello" {
					t.Fatalf("payload = %q, want hello", f.Value)
				}
			}
		}
		if !found {
			t.Fatalf("payload field missing after round trip")
		}
	})
}

func TestCompile_FieldStructureErrors(t *testing.T) {
	def := DefForType(TypeFrozen)

	t.Run("missing leading positional", func(t *testing.T) {
		_, err := Compile([]Field{
			{Type: FieldDATE, Value: make([]byte, TimestampSize)},
			{Type: FieldNONCE, Value: make([]byte, NonceSize)},
		}, def)
		if !IsCode(err, CodeFieldStructure) {
			t.Fatalf("expected FieldStructureError, got %v", err)
		}
	})

	t.Run("wrong positional length", func(t *testing.T) {
		_, err := Compile([]Field{
			{Type: FieldTYPE, Value: []byte{0}},
			{Type: FieldDATE, Value: make([]byte, TimestampSize)},
			{Type: FieldNONCE, Value: make([]byte, NonceSize+1)},
		}, def)
		if !IsCode(err, CodeFieldSize) {
			t.Fatalf("expected FieldSizeError, got %v", err)
		}
	})
}

func TestCompile_PayloadOverflow(t *testing.T) {
	def := DefForType(TypeFrozen)
	huge := bytes.Repeat([]byte{'A'}, CubeSize)
	_, err := Compile([]Field{
		{Type: FieldTYPE, Value: []byte{0}},
		{Type: FieldPAYLOAD, Value: huge},
		{Type: FieldDATE, Value: make([]byte, TimestampSize)},
		{Type: FieldNONCE, Value: make([]byte, NonceSize)},
	}, def)
	if !IsCode(err, CodeFieldSize) {
		t.Fatalf("expected FieldSizeError, got %v", err)
	}
}

func TestMergeAdjacentVariable_PaddingInhibitsMerge(t *testing.T) {
	def := DefForType(TypeFrozen)

	t.Run("adjacent same type merges", func(t *testing.T) {
		fields := []Field{
			{Type: FieldPAYLOAD, Value: []byte("foo")},
			{Type: FieldPAYLOAD, Value: []byte("bar")},
		}
		merged := mergeAdjacentVariable(fields, def)
		if len(merged) != 1 || string(merged[0].Value) != "foobar" {
			t.Fatalf("expected merge into foobar, got %#v", merged)
		}
	})

	t.Run("padding between inhibits merge", func(t *testing.T) {
		fields := []Field{
			{Type: FieldPAYLOAD, Value: []byte("foo")},
			{Type: FieldPADDING, Value: nil},
			{Type: FieldPAYLOAD, Value: []byte("bar")},
		}
		merged := mergeAdjacentVariable(fields, def)
		if len(merged) != 3 {
			t.Fatalf("expected 3 fields (no merge), got %#v", merged)
		}
		if string(merged[0].Value) != "foo" || string(merged[2].Value) != "bar" {
			t.Fatalf("unexpected merge result: %#v", merged)
		}
	})
}

func TestMUCSignatureRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	b := Builder{
		Type:       TypeMuc,
		Fields:     []Field{{Type: FieldPAYLOAD, Value: []byte("muc")}},
		PrivateKey: priv,
		Difficulty: 0,
	}
	cc, err := b.Compile(context.Background())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !bytes.Equal(cc.Key[:], pub) {
		t.Fatalf("key should equal embedded public key")
	}
	if err := cc.VerifySignature(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	t.Run("flipped byte before signature invalidates it", func(t *testing.T) {
		mutated := append([]byte(nil), cc.Blob...)
		mutated[10] ^= 0xFF
		if _, err := FromBlob(TypeMuc, mutated, 0); !IsCode(err, CodeSignature) {
			t.Fatalf("expected SignatureError, got %v", err)
		}
	})
}

func TestSolveNonce_MeetsDifficulty(t *testing.T) {
	blob := make([]byte, CubeSize)
	nonce, err := SolveNonce(context.Background(), blob, CubeSize-NonceSize, 4)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	_ = nonce
	if !MeetsDifficulty(Hash(blob), 4) {
		t.Fatalf("solved blob does not meet difficulty")
	}
}

func TestDeriveKey_PICExcludesDateAndNonce(t *testing.T) {
	b1 := Builder{Type: TypePic, Fields: []Field{{Type: FieldPAYLOAD, Value: []byte("x")}}, Difficulty: 0}
	cc1, err := b1.Compile(context.Background())
	if err != nil {
		t.Fatalf("compile 1: %v", err)
	}

	laterDate := uint64(1_900_000_000)
	nonce2 := uint32(7)
	b2 := Builder{
		Type:       TypePic,
		Fields:     []Field{{Type: FieldPAYLOAD, Value: []byte("x")}},
		Date:       &laterDate,
		Nonce:      &nonce2,
		Difficulty: 0,
	}
	cc2, err := b2.Compile(context.Background())
	if err != nil {
		t.Fatalf("compile 2: %v", err)
	}

	if cc1.Key != cc2.Key {
		t.Fatalf("PIC key should be stable across date/nonce re-sculpting: %x != %x", cc1.Key, cc2.Key)
	}
}

func TestRawContentModeRoundTrip(t *testing.T) {
	def := DefForTypeRaw(TypeFrozen)
	payload := bytes.Repeat([]byte{'Z'}, 100)
	fields := []Field{
		{Type: FieldTYPE, Value: []byte{byte(TypeFrozen)}},
		{Type: FieldPAYLOAD, Value: payload},
		{Type: FieldDATE, Value: make([]byte, TimestampSize)},
		{Type: FieldNONCE, Value: make([]byte, NonceSize)},
	}
	blob, err := Compile(fields, def)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	decoded, err := Decompile(blob, def)
	if err != nil {
		t.Fatalf("decompile: %v", err)
	}
	for _, f := range decoded {
		if f.Type == FieldPAYLOAD {
			if !bytes.HasPrefix(f.Value, payload) {
				t.Fatalf("raw payload prefix mismatch")
			}
			return
		}
	}
	t.Fatalf("payload field missing")
}

func TestEncodeDecodeFieldsRoundTrip(t *testing.T) {
	def := DefForType(TypeFrozen)
	fields := []Field{
		{Type: FieldAPPLICATION, Value: []byte("app-data")},
		{Type: FieldPADDING_SINGLEBYTE, Value: []byte{0}},
		{Type: FieldPAYLOAD, Value: bytes.Repeat([]byte{'x'}, 50)},
	}

	raw, err := EncodeFields(fields, def)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFields(raw, def)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(fields) {
		t.Fatalf("field count mismatch: got %d want %d", len(decoded), len(fields))
	}
	for i := range fields {
		if decoded[i].Type != fields[i].Type || !bytes.Equal(decoded[i].Value, fields[i].Value) {
			t.Fatalf("field %d mismatch: got %+v want %+v", i, decoded[i], fields[i])
		}
	}
}

func TestEncodeFieldsEmpty(t *testing.T) {
	def := DefForType(TypeFrozen)
	raw, err := EncodeFields(nil, def)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty encoding, got %d bytes", len(raw))
	}
	decoded, err := DecodeFields(raw, def)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no fields, got %d", len(decoded))
	}
}
