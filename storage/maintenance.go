package storage

import (
	"bytes"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
)

// IndexMaintainer keeps a collection's secondary indexes consistent
// with its primary document storage (component H). It is the sole
// writer of "I"-tagged keys; all reads go through the same Engine.
type IndexMaintainer struct {
	CollectionID uint64
	Indexes      []IndexDescriptor
}

// Insert adds one index entry per EntriesForDocument result for every
// descriptor, enforcing uniqueness where required. On a unique
// violation none of the entries already written by this call are
// rolled back by IndexMaintainer itself — callers invoke Insert from
// inside an Engine.Update transaction so the whole write, index
// entries included, aborts atomically.
func (m *IndexMaintainer) Insert(txn Txn, docID core.Value, doc *core.Doc) error {
	for _, idx := range m.Indexes {
		for _, val := range EntriesForDocument(idx, doc) {
			key := IndexKey(m.CollectionID, idx.Name, val, docID)
			if idx.Unique {
				it := txn.NewIterator(IndexValuePrefix(m.CollectionID, idx.Name, val))
				taken := false
				for it.Next() {
					if !bytes.Equal(it.Value(), IndexEntryValue(docID)) {
						taken = true
						break
					}
				}
				it.Close()
				if taken {
					return fmt.Errorf("%w: index %q", core.ErrUniqueIndexViolation, idx.Name)
				}
			}
			if err := txn.Put(key, IndexEntryValue(docID)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes every index entry contributed by doc.
func (m *IndexMaintainer) Delete(txn Txn, docID core.Value, doc *core.Doc) error {
	for _, idx := range m.Indexes {
		for _, val := range EntriesForDocument(idx, doc) {
			key := IndexKey(m.CollectionID, idx.Name, val, docID)
			if err := txn.Delete(key); err != nil && err != ErrKeyNotFound {
				return err
			}
		}
	}
	return nil
}

// Update replaces oldDoc's index entries with newDoc's, diffing per
// index so unchanged values are neither deleted nor rewritten and a
// unique index is only re-checked against values that actually
// changed.
func (m *IndexMaintainer) Update(txn Txn, docID core.Value, oldDoc, newDoc *core.Doc) error {
	for _, idx := range m.Indexes {
		oldVals := EntriesForDocument(idx, oldDoc)
		newVals := EntriesForDocument(idx, newDoc)

		oldSet := make(map[string]core.Value, len(oldVals))
		for _, v := range oldVals {
			oldSet[string(EncodeValue(v))] = v
		}
		newSet := make(map[string]core.Value, len(newVals))
		for _, v := range newVals {
			newSet[string(EncodeValue(v))] = v
		}

		for enc, v := range oldSet {
			if _, keep := newSet[enc]; keep {
				continue
			}
			if err := txn.Delete(IndexKey(m.CollectionID, idx.Name, v, docID)); err != nil && err != ErrKeyNotFound {
				return err
			}
		}
		for enc, v := range newSet {
			if _, kept := oldSet[enc]; kept {
				continue
			}
			key := IndexKey(m.CollectionID, idx.Name, v, docID)
			if idx.Unique {
				it := txn.NewIterator(IndexValuePrefix(m.CollectionID, idx.Name, v))
				taken := false
				for it.Next() {
					if !bytes.Equal(it.Value(), IndexEntryValue(docID)) {
						taken = true
						break
					}
				}
				it.Close()
				if taken {
					return fmt.Errorf("%w: index %q", core.ErrUniqueIndexViolation, idx.Name)
				}
			}
			if err := txn.Put(key, IndexEntryValue(docID)); err != nil {
				return err
			}
		}
	}
	return nil
}
