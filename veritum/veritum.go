package veritum

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/veritum-project/cube/continuation"
	"github.com/veritum-project/cube/cryptochunk"
	"github.com/veritum-project/cube/cube"
)

// CryptoOptions selects the recipient scheme a Compile call encrypts a
// Veritum's chunks under (spec §4.5 "Decrypt pipeline" describes the
// mirrored read side). Exactly one field must be set.
type CryptoOptions struct {
	PresharedKey       *cryptochunk.Key
	SingleRecipientPub *[32]byte
	MultiRecipientPubs [][32]byte
}

func (o *CryptoOptions) validate() error {
	n := 0
	if o.PresharedKey != nil {
		n++
	}
	if o.SingleRecipientPub != nil {
		n++
	}
	if len(o.MultiRecipientPubs) > 0 {
		n++
	}
	if n != 1 {
		return newErr(CodeCryptoOptions, "exactly one recipient scheme must be set, got %d", n)
	}
	return nil
}

// Veritum is a compiled multi-chunk message: the ordered Cube chain a
// reader retrieves by following CONTINUED_IN references out of
// Chunks[HeaderChunks] (spec §3 "Veritum"). References point forward
// only, from the head of the first chunk (and, on spillover, of the
// following chunks) to later chunks; no chunk links back.
//
// HeaderChunks counts leading entries of Chunks that carry only
// multi-recipient key-distribution material and no message content —
// produced when a recipient list overflows a single chunk's key-slot
// table (spec §4.6 "a Veritum addressed to more recipients than fit in
// one chunk's slot table spans multiple key-distribution chunks"). It
// is zero for plaintext, pre-shared, single-recipient, and
// single-chunk multi-recipient Verita.
type Veritum struct {
	Type         cube.Type
	Chunks       []*cube.CompiledCube
	HeaderChunks int
}

// nonceAt derives the nonce a chunk steps positions past base uses,
// purely as a function of steps (spec §4.5 nonce chain). Computing it
// this way — rather than threading mutable chain state through
// continuation.Config.TransformChunk — lets every chunk's seal be
// index-pure, independent of continuation.Split's compile order (chunk
// 0 is always compiled last; see DESIGN.md).
func nonceAt(base cryptochunk.Nonce, steps int) cryptochunk.Nonce {
	n := base
	for i := 0; i < steps; i++ {
		n = cryptochunk.NextNonce(n)
	}
	return n
}

// sealedConfig builds a continuation.Config whose chunk budget accounts
// for startVariant's framing overhead at chunk 0 and
// cryptochunk.VariantContinuation's bare overhead for every later
// chunk, and whose TransformChunk TLV-encodes a chunk's fields then
// calls seal to produce the single ENCRYPTED field each compiled chunk
// carries. *sealErr records the first encode/seal failure, since
// continuation.Config.TransformChunk has no error return.
func sealedConfig(def cube.FieldDef, startVariant cryptochunk.Variant, slotCount int, seal func(chunkIndex int, plaintext []byte) []byte, sealErr *error) continuation.Config {
	cfg := continuation.DefaultConfig(def)
	cfg.MaxChunkSize = func(i int) int {
		if i == 0 {
			return cryptochunk.MaxChunkSize(def, startVariant, slotCount)
		}
		return cryptochunk.MaxChunkSize(def, cryptochunk.VariantContinuation, 0)
	}
	cfg.TransformChunk = func(fields []cube.Field, info continuation.ChunkInfo) []cube.Field {
		plaintext, err := cube.EncodeFields(fields, def)
		if err != nil {
			if *sealErr == nil {
				*sealErr = newErr(CodeEncode, "chunk %d: %v", info.ChunkIndex, err)
			}
			return fields
		}
		sealed := seal(info.ChunkIndex, plaintext)
		return []cube.Field{{Type: cube.FieldENCRYPTED, Value: sealed}}
	}
	return cfg
}

// Compile packs fields into the minimum number of typ-typed Cubes via
// continuation.Split, encrypting every chunk's payload under crypto if
// non-nil (spec §4.6 "compile"). A nil crypto produces a plaintext
// Veritum.
func Compile(ctx context.Context, typ cube.Type, fields []cube.Field, tmpl continuation.Template, crypto *CryptoOptions) (*Veritum, error) {
	def := cube.DefForType(typ)

	if crypto == nil {
		chunks, err := continuation.Split(ctx, typ, fields, tmpl, continuation.DefaultConfig(def))
		if err != nil {
			return nil, err
		}
		return &Veritum{Type: typ, Chunks: chunks}, nil
	}
	if err := crypto.validate(); err != nil {
		return nil, err
	}

	switch {
	case crypto.PresharedKey != nil:
		return compilePreShared(ctx, typ, def, fields, tmpl, *crypto.PresharedKey)
	case crypto.SingleRecipientPub != nil:
		return compileSingleRecipient(ctx, typ, def, fields, tmpl, *crypto.SingleRecipientPub)
	default:
		return compileMultiRecipient(ctx, typ, def, fields, tmpl, crypto.MultiRecipientPubs)
	}
}

func compilePreShared(ctx context.Context, typ cube.Type, def cube.FieldDef, fields []cube.Field, tmpl continuation.Template, key cryptochunk.Key) (*Veritum, error) {
	baseNonce, err := cryptochunk.NewSessionNonce()
	if err != nil {
		return nil, err
	}

	var sealErr error
	cfg := sealedConfig(def, cryptochunk.VariantPreShared, 0, func(idx int, plaintext []byte) []byte {
		if idx == 0 {
			return cryptochunk.EncryptPreSharedWithNonce(key, baseNonce, plaintext)
		}
		return cryptochunk.EncryptContinuation(key, nonceAt(baseNonce, idx), plaintext)
	}, &sealErr)

	chunks, err := continuation.Split(ctx, typ, fields, tmpl, cfg)
	if err != nil {
		return nil, err
	}
	if sealErr != nil {
		return nil, sealErr
	}
	return &Veritum{Type: typ, Chunks: chunks}, nil
}

func compileSingleRecipient(ctx context.Context, typ cube.Type, def cube.FieldDef, fields []cube.Field, tmpl continuation.Template, recipientPub [32]byte) (*Veritum, error) {
	ephPub, ephPriv, err := cryptochunk.NewEphemeralKeypair()
	if err != nil {
		return nil, err
	}
	baseNonce, err := cryptochunk.NewSessionNonce()
	if err != nil {
		return nil, err
	}
	key := cryptochunk.SharedKey(recipientPub, ephPriv)

	var sealErr error
	cfg := sealedConfig(def, cryptochunk.VariantSingleRecipient, 0, func(idx int, plaintext []byte) []byte {
		if idx == 0 {
			return cryptochunk.SealSingleRecipientStart(ephPub, ephPriv, recipientPub, baseNonce, plaintext)
		}
		return cryptochunk.EncryptContinuation(key, nonceAt(baseNonce, idx), plaintext)
	}, &sealErr)

	chunks, err := continuation.Split(ctx, typ, fields, tmpl, cfg)
	if err != nil {
		return nil, err
	}
	if sealErr != nil {
		return nil, sealErr
	}
	return &Veritum{Type: typ, Chunks: chunks}, nil
}

func compileMultiRecipient(ctx context.Context, typ cube.Type, def cube.FieldDef, fields []cube.Field, tmpl continuation.Template, pubs [][32]byte) (*Veritum, error) {
	capacity := cryptochunk.SlotCapacity(def)
	if capacity <= 0 {
		return nil, newErr(CodeCryptoOptions, "cube type %s has no room for multi-recipient key slots", typ)
	}

	var payloadKey cryptochunk.Key
	if _, err := io.ReadFull(rand.Reader, payloadKey[:]); err != nil {
		return nil, newErr(CodeCryptoOptions, "payload key: %v", err)
	}
	baseNonce, err := cryptochunk.NewSessionNonce()
	if err != nil {
		return nil, err
	}

	if len(pubs) <= capacity {
		var sealErr error
		cfg := sealedConfig(def, cryptochunk.VariantMultiRecipient, len(pubs), func(idx int, plaintext []byte) []byte {
			if idx == 0 {
				framed, ferr := cryptochunk.EncryptMultiRecipientWithKey(payloadKey, baseNonce, pubs, plaintext)
				if ferr != nil {
					if sealErr == nil {
						sealErr = ferr
					}
					return nil
				}
				return framed
			}
			return cryptochunk.EncryptContinuation(payloadKey, nonceAt(baseNonce, idx), plaintext)
		}, &sealErr)

		chunks, err := continuation.Split(ctx, typ, fields, tmpl, cfg)
		if err != nil {
			return nil, err
		}
		if sealErr != nil {
			return nil, sealErr
		}
		return &Veritum{Type: typ, Chunks: chunks}, nil
	}

	return compileMultiRecipientOverflow(ctx, typ, def, fields, tmpl, pubs, payloadKey, baseNonce, capacity)
}

// compileMultiRecipientOverflow handles a recipient list too large for
// one chunk's key-slot table: one dedicated header chunk per recipient
// group (spec §4.6), each wrapping the same payloadKey/baseNonce so
// every recipient — regardless of which header addresses their slot —
// establishes the identical session, followed by a plain
// VariantContinuation content chain whose nonces start one step past
// the shared base nonce. The spec text describing this case is
// underspecified about exactly how headers repeat or link to content;
// this is the most direct reading consistent with the single-chunk
// case (see DESIGN.md).
func compileMultiRecipientOverflow(ctx context.Context, typ cube.Type, def cube.FieldDef, fields []cube.Field, tmpl continuation.Template, pubs [][32]byte, payloadKey cryptochunk.Key, baseNonce cryptochunk.Nonce, capacity int) (*Veritum, error) {
	groups := cryptochunk.DistributeRecipients(pubs, capacity)

	contentCfg := continuation.DefaultConfig(def)
	contentCfg.MaxChunkSize = func(int) int {
		return cryptochunk.MaxChunkSize(def, cryptochunk.VariantContinuation, 0)
	}
	var sealErr error
	contentCfg.TransformChunk = func(fields []cube.Field, info continuation.ChunkInfo) []cube.Field {
		plaintext, err := cube.EncodeFields(fields, def)
		if err != nil {
			if sealErr == nil {
				sealErr = newErr(CodeEncode, "chunk %d: %v", info.ChunkIndex, err)
			}
			return fields
		}
		sealed := cryptochunk.EncryptContinuation(payloadKey, nonceAt(baseNonce, info.ChunkIndex+1), plaintext)
		return []cube.Field{{Type: cube.FieldENCRYPTED, Value: sealed}}
	}

	contentChunks, err := continuation.Split(ctx, typ, fields, tmpl, contentCfg)
	if err != nil {
		return nil, err
	}
	if sealErr != nil {
		return nil, sealErr
	}

	headers := make([]*cube.CompiledCube, len(groups))
	for gi, group := range groups {
		framed, ferr := cryptochunk.EncryptMultiRecipientWithKey(payloadKey, baseNonce, group, nil)
		if ferr != nil {
			return nil, ferr
		}
		b := cube.Builder{
			Type: typ,
			Fields: []cube.Field{
				cube.NewRelatesTo(cube.RelationshipContinuedIn, contentChunks[0].Key),
				{Type: cube.FieldENCRYPTED, Value: framed},
			},
			PrivateKey:  tmpl.PrivateKey,
			Date:        tmpl.Date,
			UpdateCount: tmpl.UpdateCount,
			Difficulty:  tmpl.Difficulty,
		}
		if typ.IsNotify() {
			b.Notify = tmpl.Notify
		}
		cc, cerr := b.Compile(ctx)
		if cerr != nil {
			return nil, cerr
		}
		headers[gi] = cc
	}

	all := make([]*cube.CompiledCube, 0, len(headers)+len(contentChunks))
	all = append(all, headers...)
	all = append(all, contentChunks...)
	return &Veritum{Type: typ, Chunks: all, HeaderChunks: len(headers)}, nil
}

// DecryptOptions carries the key material FromChunks tries against a
// Veritum's key-distribution header(s) and/or start chunk.
type DecryptOptions struct {
	PresharedKey *cryptochunk.Key
	Recipient    *cryptochunk.Recipient
}

// encryptedValue returns a chunk's ENCRYPTED field value, if it has one.
func encryptedValue(fields []cube.Field) ([]byte, bool) {
	for _, f := range fields {
		if f.Type == cube.FieldENCRYPTED {
			return f.Value, true
		}
	}
	return nil, false
}

// FromChunks recovers a Veritum's plaintext field list given chunks in
// split order, and headerChunks — the number of leading entries that
// are pure key-distribution headers carrying no message content (spec
// §4.6; Veritum.HeaderChunks records this count for a Compile result).
// headerChunks is 0 for plaintext, pre-shared, single-recipient, and
// single-chunk multi-recipient Verita, where chunks[0] is itself both
// the session-start frame and the first content chunk.
//
// Header chunks, when present, are tried in turn until one opens with
// the supplied key material — establishing a cryptochunk.Session — and
// are otherwise discarded. Every content chunk's ENCRYPTED field is
// then decrypted in session order before continuation.RecombineFields
// reassembles the logical field list (spec §4.6 "disassemble"). A
// content chunk with no ENCRYPTED field — a plaintext Veritum's chunks
// — passes through untouched.
//
// Decryption is an untrusted-network operation (spec §7): wrong key
// material, a header no recipient can open, or a broken session chain
// is never reported as an error here. A chunk FromChunks cannot open
// is passed through with its ENCRYPTED field still sealed, so the
// reassembled field list simply lacks the real payload — spec §4.5
// step 4's "recombine will yield an empty Veritum if the payload
// failed to decrypt", exercised by scenario 8.6. Error is reserved for
// caller misuse: an empty or out-of-range chunk list, or a chunk blob
// that fails to decode at all.
func FromChunks(chunks []*cube.CompiledCube, headerChunks int, opts DecryptOptions) ([]cube.Field, error) {
	if len(chunks) == 0 {
		return nil, newErr(CodeEmpty, "no chunks to recombine")
	}
	if headerChunks < 0 || headerChunks >= len(chunks) {
		return nil, newErr(CodeEmpty, "headerChunks %d out of range for %d chunks", headerChunks, len(chunks))
	}

	var sess cryptochunk.Session
	for i := 0; i < headerChunks; i++ {
		fs, err := chunks[i].Fields()
		if err != nil {
			return nil, err
		}
		raw, ok := encryptedValue(fs)
		if !ok {
			continue
		}
		_, next, ok := cryptochunk.DecryptChunk(sess, opts.PresharedKey, opts.Recipient, raw)
		if ok {
			sess = next
			break
		}
	}

	content := chunks[headerChunks:]
	typ := content[0].Type
	def := cube.DefForType(typ)
	perChunk := make([][]cube.Field, len(content))

	for i, c := range content {
		fs, err := c.Fields()
		if err != nil {
			return nil, err
		}
		encIdx := -1
		for j, f := range fs {
			if f.Type == cube.FieldENCRYPTED {
				encIdx = j
				break
			}
		}
		if encIdx == -1 {
			perChunk[i] = fs
			continue
		}

		plaintext, next, ok := cryptochunk.DecryptChunk(sess, opts.PresharedKey, opts.Recipient, fs[encIdx].Value)
		if !ok {
			// Pass the chunk through with its ciphertext intact. The
			// session is broken either way, so later chunks chained
			// off it will fail to open too and pass through the same
			// way, leaving no real payload in the recombined result.
			sess = cryptochunk.Session{}
			perChunk[i] = fs
			continue
		}
		sess = next

		decoded, err := cube.DecodeFields(plaintext, def)
		if err != nil {
			return nil, err
		}

		merged := make([]cube.Field, 0, len(fs)-1+len(decoded))
		merged = append(merged, fs[:encIdx]...)
		merged = append(merged, decoded...)
		merged = append(merged, fs[encIdx+1:]...)
		perChunk[i] = merged
	}

	return continuation.RecombineFields(perChunk, typ, continuation.DefaultConfig(def))
}
