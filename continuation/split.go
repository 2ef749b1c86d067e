package continuation

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/veritum-project/cube/cube"
)

// Template carries the per-Veritum material common to every chunk a
// Split call produces: the signing key (for MUC/PMUC types), the
// notify/date/update-count values fed through MapFieldToChunk, and the
// proof-of-work difficulty each chunk is solved against.
type Template struct {
	Notify      *[cube.NotifyKeySize]byte
	PrivateKey  ed25519.PrivateKey
	Date        *uint64
	UpdateCount uint64
	Difficulty  int
}

// buildMacro filters fields per cfg.Exclude, strips any pre-existing
// CONTINUED_IN relationship (spec §4.4 step 1: "skip pre-existing
// CONTINUED_IN relationships"), and inserts a zero-length PADDING field
// between adjacent surviving fields of the same type so they do not
// spuriously re-merge on recombine.
func buildMacro(fields []cube.Field, def cube.FieldDef, cfg Config) []cube.Field {
	macro := make([]cube.Field, 0, len(fields))
	for _, f := range fields {
		if cfg.Exclude[f.Type] {
			continue
		}
		if _, ok := cube.ContinuedInKey(f); ok {
			continue
		}
		if n := len(macro); n > 0 && macro[n-1].Type == f.Type {
			macro = append(macro, cube.Field{Type: cube.FieldPADDING})
		}
		macro = append(macro, f.Copy())
	}
	return macro
}

// placeAll packs fields into the minimum number of chunks given a
// per-chunk budget function, splitting variable-length fields that
// don't fit whole (spec §4.4 step 4) and rolling over to a new chunk
// when a field can neither fit whole nor be usefully split.
func placeAll(fields []cube.Field, def cube.FieldDef, budgetFn func(int) int, minChunk int) ([][]cube.Field, error) {
	pending := make([]cube.Field, len(fields))
	copy(pending, fields)

	var chunks [][]cube.Field
	chunkIdx := 0
	budget := budgetFn(0)
	used := 0
	var cur []cube.Field

	guard := 0
	maxIterations := (len(fields)+1)*1000 + 1000
	for len(pending) > 0 {
		guard++
		if guard > maxIterations {
			return nil, newErr(CodePlanning, "placement did not terminate after %d steps", guard)
		}
		f := pending[0]
		enc := encodedLength(f, def)
		remaining := budget - used
		_, fixed := isFixedLen(def, f.Type)

		switch {
		case enc <= remaining:
			cur = append(cur, f)
			used += enc
			pending = pending[1:]
		case !fixed && remaining >= minChunk && remaining > 2:
			headerRoom := remaining - 2
			if headerRoom > len(f.Value) {
				headerRoom = len(f.Value)
			}
			frag1 := cube.Field{Type: f.Type, Value: append([]byte(nil), f.Value[:headerRoom]...)}
			cur = append(cur, frag1)
			used += 2 + headerRoom
			if headerRoom < len(f.Value) {
				frag2 := cube.Field{Type: f.Type, Value: append([]byte(nil), f.Value[headerRoom:]...)}
				rest := make([]cube.Field, 0, len(pending))
				rest = append(rest, frag2)
				rest = append(rest, pending[1:]...)
				pending = rest
			} else {
				pending = pending[1:]
			}
		default:
			chunks = append(chunks, cur)
			chunkIdx++
			cur = nil
			budget = budgetFn(chunkIdx)
			used = 0
			if budget <= 0 {
				return nil, newErr(CodePlanning, "chunk %d has no usable budget", chunkIdx)
			}
		}
	}
	chunks = append(chunks, cur)
	return chunks, nil
}

// refEncodedLen is the wire length of a CONTINUED_IN placeholder: a
// fixed-length RELATES_TO field (1-byte header + 33-byte value).
const refEncodedLen = 1 + cube.RelationshipPayloadSize

// refCapacity reports how many CONTINUED_IN placeholders chunk i could
// carry if its entire budget went to references, the upper bound
// distributeRefs packs against.
func refCapacity(cfg Config, i int) int {
	return cfg.MaxChunkSize(i) / refEncodedLen
}

// distributeRefs packs needed references into the smallest leading run
// of chunks 0, 1, 2, … that can hold them, filling each chunk's
// capacity before spilling into the next (spec §4.4 "Later chunks may
// carry additional CONTINUED_IN fields only if a single first-chunk
// cannot hold all references"). The returned slice has one entry per
// chunk that carries any references, in order; reserve[len(reserve):]
// is implicitly zero. chunkCount bounds how many chunks actually exist
// to spill into.
func distributeRefs(needed, chunkCount int, cfg Config) ([]int, error) {
	var reserve []int
	remaining := needed
	for i := 0; remaining > 0; i++ {
		if i >= chunkCount {
			return nil, newErr(CodeOverflow, "%d references do not fit even after spilling across all %d chunks", needed, chunkCount)
		}
		capacity := refCapacity(cfg, i)
		if capacity <= 0 {
			return nil, newErr(CodeOverflow, "chunk %d has no room for a single reference", i)
		}
		take := remaining
		if take > capacity {
			take = capacity
		}
		reserve = append(reserve, take)
		remaining -= take
	}
	return reserve, nil
}

func reserveEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// planRefs finds the fixed point distribution of CONTINUED_IN
// references across chunk 0 and, if its budget alone can't hold them
// all, the head of however many following chunks are needed, so that
// every content chunk is addressable exactly once (spec §4.4 step 3's
// planning loop, restated as a converging simulation rather than the
// source's insert-before-cursor/rewind bookkeeping — see DESIGN.md).
// The returned reserve[i] is the reference count reserved at chunk i's
// head, for i in 0..len(reserve)-1; chunks beyond that carry none.
func planRefs(content []cube.Field, def cube.FieldDef, cfg Config) ([]int, [][]cube.Field, error) {
	var reserve []int
	for iter := 0; iter < 64; iter++ {
		r := reserve
		budgetFn := func(i int) int {
			b := cfg.MaxChunkSize(i)
			if i < len(r) {
				b -= r[i] * refEncodedLen
			}
			return b
		}
		for i, n := range r {
			if n > 0 && budgetFn(i) <= 0 {
				return nil, nil, newErr(CodeOverflow, "reference reservation (%d refs) leaves no room in chunk %d", n, i)
			}
		}
		placed, err := placeAll(content, def, budgetFn, cfg.MinChunk)
		if err != nil {
			return nil, nil, err
		}
		needed := len(placed) - 1
		next, err := distributeRefs(needed, len(placed), cfg)
		if err != nil {
			return nil, nil, err
		}
		if reserveEqual(reserve, next) {
			return reserve, placed, nil
		}
		reserve = next
	}
	return nil, nil, newErr(CodePlanning, "reference distribution did not converge")
}

// isDesignatedChunk reports, for a field type mapped to chunk index
// mappedIdx, whether chunkIdx is the designated carrier and should get
// the real value rather than a zero placeholder (spec §4.4
// map_field_to_chunk: "-1 means copy to every chunk").
func isDesignatedChunk(mappedIdx, chunkIdx int) bool {
	return mappedIdx == -1 || mappedIdx == chunkIdx
}

// buildBuilder assembles the cube.Builder for one chunk: its TLV
// payload fields (after cfg.TransformChunk, if set) plus the
// positional values dictated by cfg.MapFieldToChunk.
func buildBuilder(typ cube.Type, payload []cube.Field, chunkIdx, chunkCount int, tmpl Template, resolvedDate uint64, cfg Config) cube.Builder {
	fields := payload
	if cfg.TransformChunk != nil {
		fields = cfg.TransformChunk(fields, ChunkInfo{ChunkIndex: chunkIdx, ChunkCount: chunkCount})
	}

	b := cube.Builder{
		Type:       typ,
		Fields:     fields,
		PrivateKey: tmpl.PrivateKey,
		Difficulty: tmpl.Difficulty,
	}

	dateIdx, ok := cfg.MapFieldToChunk[cube.FieldDATE]
	if !ok {
		dateIdx = -1
	}
	date := resolvedDate
	if !isDesignatedChunk(dateIdx, chunkIdx) {
		date = 0
	}
	b.Date = &date

	if typ.IsNotify() {
		notifyIdx, ok := cfg.MapFieldToChunk[cube.FieldNOTIFY]
		if !ok {
			notifyIdx = 1
		}
		if isDesignatedChunk(notifyIdx, chunkIdx) && tmpl.Notify != nil {
			b.Notify = tmpl.Notify
		} else {
			var zero [cube.NotifyKeySize]byte
			b.Notify = &zero
		}
	}

	if typ.IsPMUC() {
		ucIdx, ok := cfg.MapFieldToChunk[cube.FieldPMUC_UPDATE_COUNT]
		if !ok {
			ucIdx = 0
		}
		if isDesignatedChunk(ucIdx, chunkIdx) {
			b.UpdateCount = tmpl.UpdateCount
		}
	}

	return b
}

// Split packs fields into the minimum number of typ-typed Cubes, wiring
// multi-chunk output together with CONTINUED_IN references placed at
// the head of chunk 0 and, once its budget is exhausted, spilling into
// the head of however many following chunks are needed (spec §4.4).
// The plain content chunks (those holding no references of their own)
// are compiled first; a reference-bearing chunk can only be finalized
// once every chunk its own references point to already has a key, so
// those are compiled next, in descending index order, with chunk 0 —
// which addresses the rest — always finalized last (spec §5 ordering
// guarantee).
func Split(ctx context.Context, typ cube.Type, fields []cube.Field, tmpl Template, cfg Config) ([]*cube.CompiledCube, error) {
	def := cube.DefForType(typ)

	resolvedDate := uint64(time.Now().Unix())
	if tmpl.Date != nil {
		resolvedDate = *tmpl.Date
	}

	macro := buildMacro(fields, def, cfg)
	reserve, placed, err := planRefs(macro, def, cfg)
	if err != nil {
		return nil, err
	}

	chunkCount := len(placed)
	headerChunks := len(reserve)

	// cumulative[h] is the count of references already assigned to
	// chunks 0..h-1, so chunk h's own batch of targets starts right
	// after them: chunks cumulative[h]+1 .. cumulative[h]+reserve[h].
	cumulative := make([]int, headerChunks+1)
	for h, n := range reserve {
		cumulative[h+1] = cumulative[h] + n
		placeholders := make([]cube.Field, n)
		var zero [cube.HashSize]byte
		for i := range placeholders {
			placeholders[i] = cube.NewRelatesTo(cube.RelationshipContinuedIn, zero)
		}
		placed[h] = append(placeholders, placed[h]...)
	}

	compiled := make([]*cube.CompiledCube, chunkCount)
	for i := headerChunks; i < chunkCount; i++ {
		b := buildBuilder(typ, placed[i], i, chunkCount, tmpl, resolvedDate, cfg)
		cc, err := b.Compile(ctx)
		if err != nil {
			return nil, err
		}
		compiled[i] = cc
	}

	for h := headerChunks - 1; h >= 0; h-- {
		targetStart := cumulative[h] + 1
		for j := 0; j < reserve[h]; j++ {
			placed[h][j] = cube.NewRelatesTo(cube.RelationshipContinuedIn, compiled[targetStart+j].Key)
		}
		b := buildBuilder(typ, placed[h], h, chunkCount, tmpl, resolvedDate, cfg)
		cc, err := b.Compile(ctx)
		if err != nil {
			return nil, err
		}
		compiled[h] = cc
	}

	return compiled, nil
}
