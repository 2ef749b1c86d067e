package cube

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"time"
)

// Builder describes an uncompiled Cube: its type, payload fields, and the
// key material / timestamps needed to compile it (spec §3 "Veritum ...
// An uncompiled message"; this is the per-Cube analog).
//
// Builder is consumed by Compile; it is never mutated by it, and the
// CompiledCube it returns is immutable — fields are copy-on-write at
// construction time and never exposed for in-place mutation afterward
// (spec §9 "Known source issues": this port adopts option (a), strict
// immutability post-compile, rather than a stale-cache-prone mutable
// buffer).
type Builder struct {
	Type Type
	// Fields is the payload field list, excluding positionals — Compile
	// fills in TYPE/NOTIFY/PUBLIC_KEY/DATE/[PMUC_UPDATE_COUNT]/SIGNATURE/NONCE.
	Fields []Field

	Notify      *[NotifyKeySize]byte
	Date        *uint64 // seconds since epoch; default = now
	Nonce       *uint32 // pre-set nonce; default = solved via SolveNonce
	PrivateKey  ed25519.PrivateKey
	UpdateCount uint64 // PMUC only
	Difficulty  int    // hashcash trailing-zero-bit target; 0 in tests
}

// CompiledCube is a frozen, immutable Cube: bytes and key never change
// after construction.
type CompiledCube struct {
	Type  Type
	Blob  []byte
	Key   [HashSize]byte
	Nonce uint32
}

// Compile fills in defaults, signs (for MUC/PMUC), solves proof-of-work,
// and returns the frozen CompiledCube (spec §4.2 "compile()").
func (b Builder) Compile(ctx context.Context) (*CompiledCube, error) {
	if !b.Type.Valid() {
		return nil, newErr(CodeType, "unknown cube type %d", b.Type)
	}
	if b.Type.IsSigned() && len(b.PrivateKey) != ed25519.PrivateKeySize {
		return nil, newErr(CodeType, "%s requires a %d-byte ed25519 private key", b.Type, ed25519.PrivateKeySize)
	}

	def := DefForType(b.Type)
	front := make([]Field, 0, len(def.PositionalFront))
	front = append(front, Field{Type: FieldTYPE, Value: []byte{byte(b.Type)}})
	if b.Type.IsNotify() {
		if b.Notify == nil {
			return nil, newErr(CodeFieldStructure, "%s requires a NOTIFY key", b.Type)
		}
		front = append(front, Field{Type: FieldNOTIFY, Value: append([]byte(nil), b.Notify[:]...)})
	}

	date := uint64(time.Now().Unix())
	if b.Date != nil {
		date = *b.Date
	}
	dateBytes := make([]byte, TimestampSize)
	EncodeTimestamp(dateBytes, date)

	back := make([]Field, 0, len(def.PositionalBack))
	if b.Type.IsSigned() {
		pub := b.PrivateKey.Public().(ed25519.PublicKey)
		back = append(back, Field{Type: FieldPUBLIC_KEY, Value: append([]byte(nil), pub...)})
		back = append(back, Field{Type: FieldDATE, Value: dateBytes})
		if b.Type.IsPMUC() {
			uc := make([]byte, UpdateCountSize)
			binary.BigEndian.PutUint64(uc, b.UpdateCount)
			back = append(back, Field{Type: FieldPMUC_UPDATE_COUNT, Value: uc})
		}
		back = append(back, Field{Type: FieldSIGNATURE, Value: make([]byte, SignatureSize)})
		back = append(back, Field{Type: FieldNONCE, Value: make([]byte, NonceSize)})
	} else {
		back = append(back, Field{Type: FieldDATE, Value: dateBytes})
		back = append(back, Field{Type: FieldNONCE, Value: make([]byte, NonceSize)})
	}

	fields := make([]Field, 0, len(front)+len(b.Fields)+len(back))
	fields = append(fields, front...)
	for _, f := range b.Fields {
		fields = append(fields, f.Copy())
	}
	fields = append(fields, back...)

	blob, err := Compile(fields, def)
	if err != nil {
		return nil, err
	}

	if b.Type.IsSigned() {
		if err := Sign(b.Type, blob, b.PrivateKey); err != nil {
			return nil, err
		}
	}

	offsets := positionalOffsets(def)
	nonceSpan := offsets[FieldNONCE]
	var nonce uint32
	if b.Nonce != nil {
		nonce = *b.Nonce
		binary.BigEndian.PutUint32(blob[nonceSpan.Offset:nonceSpan.Offset+nonceSpan.Length], nonce)
	} else {
		nonce, err = SolveNonce(ctx, blob, nonceSpan.Offset, b.Difficulty)
		if err != nil {
			return nil, err
		}
	}

	key, err := DeriveKey(b.Type, blob)
	if err != nil {
		return nil, err
	}

	return &CompiledCube{Type: b.Type, Blob: blob, Key: key, Nonce: nonce}, nil
}

// FromBlob reconstructs and validates a CompiledCube from an existing
// 1024-byte blob: structural decode, hashcash policy check, and (for
// MUC/PMUC) signature verification (spec §4.3 "add(cube_or_blob)").
func FromBlob(t Type, blob []byte, difficulty int) (*CompiledCube, error) {
	if len(blob) != CubeSize {
		return nil, newErr(CodeBinaryLength, "blob is %d bytes, want %d", len(blob), CubeSize)
	}
	if !t.Valid() {
		return nil, newErr(CodeType, "unknown cube type %d", t)
	}
	def := DefForType(t)
	if _, err := Decompile(blob, def); err != nil {
		return nil, err
	}
	if err := CheckDifficulty(blob, difficulty); err != nil {
		return nil, err
	}
	if t.IsSigned() {
		if err := VerifySignature(t, blob); err != nil {
			return nil, err
		}
	}
	key, err := DeriveKey(t, blob)
	if err != nil {
		return nil, err
	}
	nonceSpan := positionalOffsets(def)[FieldNONCE]
	nonce := binary.BigEndian.Uint32(blob[nonceSpan.Offset : nonceSpan.Offset+nonceSpan.Length])
	return &CompiledCube{Type: t, Blob: append([]byte(nil), blob...), Key: key, Nonce: nonce}, nil
}

// GetKey returns the Cube's key (spec §4.2 "getKey()").
func (c *CompiledCube) GetKey() [HashSize]byte { return c.Key }

// GetHash returns SHA3-256 of the compiled blob (spec §4.2 "getHash()").
func (c *CompiledCube) GetHash() [HashSize]byte { return Hash(c.Blob) }

// VerifySignature re-validates the embedded signature against the
// embedded public key (spec §4.2 "verifySignature()").
func (c *CompiledCube) VerifySignature() error {
	return VerifySignature(c.Type, c.Blob)
}

// Fields decodes and returns the Cube's field list.
func (c *CompiledCube) Fields() ([]Field, error) {
	return Decompile(c.Blob, DefForType(c.Type))
}

// EncodeTimestamp writes the low 40 bits of v as 5 big-endian bytes (§6
// TIMESTAMP_SIZE).
func EncodeTimestamp(dst []byte, v uint64) {
	dst[0] = byte(v >> 32)
	dst[1] = byte(v >> 24)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 8)
	dst[4] = byte(v)
}

// DecodeTimestamp reads 5 big-endian bytes as a uint64.
func DecodeTimestamp(b []byte) uint64 {
	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
}

// DateOf returns the DATE positional's decoded timestamp for cube type t.
func DateOf(t Type, blob []byte) uint64 {
	span := positionalOffsets(DefForType(t))[FieldDATE]
	return DecodeTimestamp(blob[span.Offset : span.Offset+span.Length])
}

// UpdateCountOf returns the PMUC_UPDATE_COUNT positional's value for a
// PMUC/PMUC_NOTIFY cube.
func UpdateCountOf(t Type, blob []byte) uint64 {
	span := positionalOffsets(DefForType(t))[FieldPMUC_UPDATE_COUNT]
	return binary.BigEndian.Uint64(blob[span.Offset : span.Offset+span.Length])
}
