package continuation

import "github.com/veritum-project/cube/cube"

// mappedFieldOrder fixes the iteration order of MapFieldToChunk entries
// so Recombine's output is deterministic (Go map iteration is not).
var mappedFieldOrder = []cube.FieldType{
	cube.FieldDATE,
	cube.FieldNOTIFY,
	cube.FieldPMUC_UPDATE_COUNT,
}

// gatherMapped rebuilds the positional fields withdrawn by
// MapFieldToChunk, reading each from its designated source chunk
// (index -1 restores from chunk 0, per spec §4.4 step 4).
func gatherMapped(perChunk [][]cube.Field, cfg Config) []cube.Field {
	var out []cube.Field
	for _, ft := range mappedFieldOrder {
		idx, ok := cfg.MapFieldToChunk[ft]
		if !ok {
			continue
		}
		src := idx
		if idx == -1 {
			src = 0
		}
		if src < 0 || src >= len(perChunk) {
			continue
		}
		for _, f := range perChunk[src] {
			if f.Type == ft {
				out = append(out, f.Copy())
				break
			}
		}
	}
	return out
}

// Recombine merges a compiled chunk chain back into the logical field
// list it was split from (spec §4.4 "Recombine algorithm"). Chunks
// must be supplied in split order (chunk 0 first).
func Recombine(chunks []*cube.CompiledCube, cfg Config) ([]cube.Field, error) {
	if len(chunks) == 0 {
		return nil, newErr(CodeEmpty, "no chunks to recombine")
	}
	typ := chunks[0].Type

	perChunk := make([][]cube.Field, len(chunks))
	for i, c := range chunks {
		fs, err := c.Fields()
		if err != nil {
			return nil, err
		}
		perChunk[i] = fs
	}

	return RecombineFields(perChunk, typ, cfg)
}

// RecombineFields is Recombine's merge step taken directly from each
// chunk's already-decoded field list, bypassing CompiledCube.Fields().
// An encrypted Veritum's reader needs this split out: it must decrypt
// each chunk's ENCRYPTED field into its own TLV-decoded field list
// before the chunks can be merged, and positional fields (DATE, NOTIFY,
// PMUC_UPDATE_COUNT) which gatherMapped reads stay on the chunk's
// original, never-encrypted field list throughout.
func RecombineFields(perChunk [][]cube.Field, typ cube.Type, cfg Config) ([]cube.Field, error) {
	if len(perChunk) == 0 {
		return nil, newErr(CodeEmpty, "no chunks to recombine")
	}
	def := cube.DefForType(typ)

	mapped := gatherMapped(perChunk, cfg)

	var acc []cube.Field
	for _, fs := range perChunk {
		for _, f := range fs {
			if f.Type == cube.FieldPADDING {
				acc = append(acc, f.Copy())
				continue
			}
			if cfg.Exclude[f.Type] {
				continue
			}
			if _, ok := cube.ContinuedInKey(f); ok {
				continue
			}
			if n := len(acc); n > 0 && acc[n-1].Type == f.Type {
				if _, fixed := isFixedLen(def, f.Type); !fixed {
					acc[n-1].Value = append(acc[n-1].Value, f.Value...)
					continue
				}
			}
			acc = append(acc, f.Copy())
		}
	}

	filtered := acc[:0]
	for _, f := range acc {
		if f.Type == cube.FieldPADDING {
			continue
		}
		filtered = append(filtered, f)
	}

	result := make([]cube.Field, 0, len(mapped)+len(filtered))
	result = append(result, mapped...)
	result = append(result, filtered...)
	return result, nil
}
