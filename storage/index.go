package storage

import "github.com/axaubet/bunql/internal/core"

// Direction is a secondary index's sort direction. THE CORE's index
// scans only ever need ascending order (descending queries reverse
// the same iterator), so this exists mainly for the index catalog's
// self-description.
type Direction int8

const (
	Ascending Direction = iota
	Descending
)

// IndexDescriptor names one secondary index: the dotted field path it
// is keyed on, its sort direction, and whether duplicate values are
// rejected. Compound indexes are out of scope (§11 Non-goals);
// exactly one field path per index.
type IndexDescriptor struct {
	Name      string
	FieldPath string
	Direction Direction
	Unique    bool
}

// EntriesForDocument computes the set of index-key values an index
// contributes for one document, per §6's multikey rule: if the
// resolved field is an array, one entry is produced per distinct
// element (encode-time dedup so a document with repeated array values
// does not create redundant entries); otherwise a single entry for
// the scalar (or Null, if the field is absent — absent and
// JSON-null are indistinguishable at the index layer, matching
// Resolve's own absent-vs-null merge).
func EntriesForDocument(idx IndexDescriptor, doc *core.Doc) []core.Value {
	v, ok := core.Resolve(doc, core.SplitPath(idx.FieldPath))
	if !ok {
		return []core.Value{core.Null()}
	}
	if items, isArr := v.AsArray(); isArr {
		seen := make(map[string]struct{}, len(items))
		out := make([]core.Value, 0, len(items))
		for _, it := range items {
			key := string(EncodeValue(it))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, it)
		}
		if len(out) == 0 {
			return []core.Value{core.Null()}
		}
		return out
	}
	return []core.Value{v}
}
