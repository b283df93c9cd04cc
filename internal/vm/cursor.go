package vm

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
)

// RowSource is the cursor abstraction §4.5 requires: it may walk a
// primary document range, a secondary index range, or (for pipeline
// stages after the first) an in-memory stream produced by an earlier
// stage's Yield. Rewind/Next follow the "fall through on success, the
// caller decides what to do on exhaustion" contract of §4.5; unlike
// the raw opcodes, RowSource just returns a bool since the label logic
// lives in the compiled program (compiler.go), not in the source
// itself.
type RowSource interface {
	Rewind(ctx context.Context) (bool, error)
	Next(ctx context.Context) (bool, error)
	Current() *core.Doc
	CurrentID() core.Value
	Close()
}

// sliceSource replays an in-memory, already-materialized document
// list; used to chain aggregation stages (§4.6, "$match d: ... whose
// cursor is replaced by the previous stage's stream") and for
// $count/$addFields/$unset and $group's $sum accumulation, none of
// which touch storage directly.
type sliceSource struct {
	docs []*core.Doc
	ids  []core.Value
	pos  int
}

func NewSliceSource(docs []*core.Doc, ids []core.Value) RowSource {
	return &sliceSource{docs: docs, ids: ids, pos: -1}
}

func (s *sliceSource) Rewind(context.Context) (bool, error) {
	s.pos = 0
	return s.pos < len(s.docs), nil
}
func (s *sliceSource) Next(context.Context) (bool, error) {
	s.pos++
	return s.pos < len(s.docs), nil
}
func (s *sliceSource) Current() *core.Doc {
	if s.pos < 0 || s.pos >= len(s.docs) {
		return nil
	}
	return s.docs[s.pos]
}
func (s *sliceSource) CurrentID() core.Value {
	if s.ids == nil || s.pos < 0 || s.pos >= len(s.ids) {
		return core.Null()
	}
	return s.ids[s.pos]
}
func (s *sliceSource) Close() {}

// tableSource walks every document of one collection in primary-key
// order, i.e. the byte order of each document's encoded _id.
type tableSource struct {
	engine storage.Engine
	it     storage.Iterator
	doc    *core.Doc
	id     core.Value
}

func NewTableSource(engine storage.Engine, collectionID uint64) RowSource {
	return &tableSource{engine: engine, it: engine.NewIterator(storage.DocPrefix(collectionID))}
}

func (t *tableSource) Rewind(ctx context.Context) (bool, error) { return t.advance() }
func (t *tableSource) Next(ctx context.Context) (bool, error)   { return t.advance() }

func (t *tableSource) advance() (bool, error) {
	if !t.it.Next() {
		return false, nil
	}
	d, err := storage.Unmarshal(t.it.Value())
	if err != nil {
		return false, err
	}
	id, _ := storage.GetID(d)
	t.doc, t.id = d, id
	return true, nil
}

func (t *tableSource) Current() *core.Doc   { return t.doc }
func (t *tableSource) CurrentID() core.Value { return t.id }
func (t *tableSource) Close()                { t.it.Close() }

// indexSource walks a secondary index's entries within a byte-prefix
// range, resolves each entry's doc id to its full document, and
// deduplicates ids seen so far scoped to this single query execution
// (§4.7, "index scans deduplicate by _id using an in-memory seen-set
// scoped to the query execution"). A roaring bitmap of 32-bit FNV-1a
// hashes of each id's canonical encoding approximates membership
// cheaply, falling back to an exact
// map for the (rare) collision case — this is purely a scan-time
// accelerator, never a correctness shortcut, since the fallback map is
// authoritative.
type indexSource struct {
	engine storage.Engine
	it     storage.Iterator
	seen   *roaring.Bitmap
	seenID map[string]struct{}
	doc    *core.Doc
	id     core.Value
}

func NewIndexSource(engine storage.Engine, seekPrefix []byte) RowSource {
	return &indexSource{
		engine: engine,
		it:     engine.NewIterator(seekPrefix),
		seen:   roaring.New(),
		seenID: make(map[string]struct{}),
	}
}

func (x *indexSource) Rewind(ctx context.Context) (bool, error) { return x.advance() }
func (x *indexSource) Next(ctx context.Context) (bool, error)   { return x.advance() }

func (x *indexSource) advance() (bool, error) {
	for x.it.Next() {
		idVal, _, err := storage.DecodeValue(x.it.Value())
		if err != nil {
			return false, err
		}
		enc := storage.EncodeValue(idVal)
		h := fnv32(enc)
		if x.seen.Contains(h) {
			if _, dup := x.seenID[string(enc)]; dup {
				continue
			}
		}
		x.seen.Add(h)
		x.seenID[string(enc)] = struct{}{}

		raw, err := x.engine.Get(storage.DocKey(collectionIDOf(x.it.Key()), idVal))
		if err == storage.ErrKeyNotFound {
			continue // stale entry from a concurrently deleted document
		}
		if err != nil {
			return false, err
		}
		d, err := storage.Unmarshal(raw)
		if err != nil {
			return false, err
		}
		if id, ok := storage.GetID(d); ok {
			idVal = id // the stored _id keeps its original kind; the decoded entry value is always Decimal for numbers
		}
		x.doc, x.id = d, idVal
		return true, nil
	}
	return false, nil
}

func (x *indexSource) Current() *core.Doc   { return x.doc }
func (x *indexSource) CurrentID() core.Value { return x.id }
func (x *indexSource) Close()                { x.it.Close() }

func fnv32(b []byte) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime
	}
	return h
}

// collectionIDOf recovers the collection id encoded at the front of an
// index entry key (tag byte + uvarint collection id) so indexSource
// can build the matching primary-storage key without the caller
// threading the id through separately.
func collectionIDOf(indexKey []byte) uint64 {
	id, _ := storage.DecodeCollectionID(indexKey)
	return id
}

// IndexCatalog is consulted by the filter compiler's planner (§4.4,
// "when the planner ... recognizes a matching index on the outermost
// equality/range predicate"). Kept minimal on purpose: this module
// implements no cost model (§11 Non-goals), only single-index
// recognition.
type IndexCatalog interface {
	IndexOn(fieldPath string) (storage.IndexDescriptor, bool)
}
