package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
	"github.com/axaubet/bunql/storage/pager"
)

func putDoc(t *testing.T, eng storage.Engine, collID uint64, id int32, fields map[string]core.Value) {
	t.Helper()
	d := mkDoc(fields)
	d.Set("_id", core.Int32(id))
	raw, err := storage.Marshal(d)
	require.NoError(t, err)
	require.NoError(t, eng.Update(func(txn storage.Txn) error {
		return txn.Put(storage.DocKey(collID, core.Int32(id)), raw)
	}))
}

func TestTableSourceWalksEveryDocument(t *testing.T) {
	eng := pager.New()
	putDoc(t, eng, 1, 1, map[string]core.Value{"name": core.String("a")})
	putDoc(t, eng, 1, 2, map[string]core.Value{"name": core.String("b")})
	putDoc(t, eng, 2, 1, map[string]core.Value{"name": core.String("other collection")})

	src := NewTableSource(eng, 1)
	defer src.Close()

	ok, err := src.Rewind(context.Background())
	require.NoError(t, err)

	var names []string
	for ok {
		n, _ := src.Current().Get("name")
		s, _ := n.AsString()
		names = append(names, s)
		ok, err = src.Next(context.Background())
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestIndexSourceDedupesByID(t *testing.T) {
	eng := pager.New()
	putDoc(t, eng, 1, 1, map[string]core.Value{"tags": core.Array([]core.Value{core.String("red"), core.String("blue")})})

	maint := storage.IndexMaintainer{
		CollectionID: 1,
		Indexes:      []storage.IndexDescriptor{{Name: "tags_idx", FieldPath: "tags"}},
	}
	doc, err := storage.Unmarshal(mustGet(t, eng, storage.DocKey(1, core.Int32(1))))
	require.NoError(t, err)
	require.NoError(t, eng.Update(func(txn storage.Txn) error {
		return maint.Insert(txn, core.Int32(1), doc)
	}))

	src := NewIndexSource(eng, storage.IndexNamePrefix(1, "tags_idx"))
	defer src.Close()

	ok, err := src.Rewind(context.Background())
	require.NoError(t, err)
	count := 0
	for ok {
		count++
		idv := src.CurrentID()
		i, _ := idv.AsInt32()
		assert.Equal(t, int32(1), i)
		ok, err = src.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, count, "two index entries (red, blue) resolve to the same document exactly once")
}

func mustGet(t *testing.T, eng storage.Engine, key []byte) []byte {
	t.Helper()
	v, err := eng.Get(key)
	require.NoError(t, err)
	return v
}
