package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
)

// Key layout tags (§6): a leading byte distinguishes primary document
// storage from secondary index entries so both can share one Engine
// keyspace without colliding.
const (
	tagDoc   byte = 'D'
	tagIndex byte = 'I'
)

func putUvarint(buf []byte, x uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, x)
	return append(buf, tmp[:n]...)
}

// DocPrefix returns the key prefix under which every document of
// collectionID is stored, usable directly as a table-scan iterator
// prefix.
func DocPrefix(collectionID uint64) []byte {
	buf := []byte{tagDoc}
	return putUvarint(buf, collectionID)
}

// DocKey returns the primary-storage key for a single document.
func DocKey(collectionID uint64, id core.Value) []byte {
	buf := DocPrefix(collectionID)
	return append(buf, EncodeValue(id)...)
}

// IndexNamePrefix returns the key prefix covering every entry of one
// named index, usable as a full-index-scan iterator prefix.
func IndexNamePrefix(collectionID uint64, indexName string) []byte {
	buf := []byte{tagIndex}
	buf = putUvarint(buf, collectionID)
	buf = append(buf, lengthPrefixed([]byte(indexName))...)
	return buf
}

// IndexValuePrefix returns the key prefix covering every entry of
// indexName whose canonical key value equals val — an equality seek
// prefix, and also the natural inclusive lower bound for a
// value >= val range scan.
func IndexValuePrefix(collectionID uint64, indexName string, val core.Value) []byte {
	buf := IndexNamePrefix(collectionID, indexName)
	return append(buf, EncodeValue(val)...)
}

// IndexKey returns the full composite key for one index entry:
// kind tag | collection id | index name | canonical value | doc id
// (§6). Multikey entries share the same layout, one per array element.
//
// The doc id is embedded in the key so distinct documents never
// collide on a shared value, but decoding it back out of a raw key
// would require re-parsing every preceding self-delimited field.
// Callers avoid that by also storing the doc id as the Engine record
// value (see IndexEntryValue; DecodeValue reads it back) so an index cursor
// can read it with one call instead of splitting the key.
func IndexKey(collectionID uint64, indexName string, val, docID core.Value) []byte {
	buf := IndexValuePrefix(collectionID, indexName, val)
	return append(buf, EncodeValue(docID)...)
}

// IndexEntryValue is the Engine record value stored alongside an index
// key: the canonical encoding of the doc id it points at.
func IndexEntryValue(docID core.Value) []byte {
	return EncodeValue(docID)
}

// DecodeCollectionID reads the collection id back off the front of
// any key produced by DocPrefix/IndexNamePrefix, so a cursor holding
// only a raw key (e.g. an index entry) can address the matching
// primary-storage keyspace without the caller threading the id
// through separately.
func DecodeCollectionID(key []byte) (uint64, error) {
	if len(key) < 2 {
		return 0, fmt.Errorf("storage: truncated key")
	}
	id, n := binary.Uvarint(key[1:])
	if n <= 0 {
		return 0, fmt.Errorf("storage: bad collection id varint")
	}
	return id, nil
}

// PrefixUpperBound returns the smallest key that sorts strictly after
// every key sharing prefix, by incrementing its last non-0xFF byte
// (dropping any trailing 0xFF bytes first). Returns nil if prefix is
// all 0xFF (no finite upper bound exists; callers should scan to the
// end of the keyspace instead).
func PrefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
