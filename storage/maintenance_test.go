package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
	"github.com/axaubet/bunql/storage/pager"
)

func docWithTags(id int32, tags ...string) *core.Doc {
	d := core.NewDoc()
	d.Set("_id", core.Int32(id))
	items := make([]core.Value, len(tags))
	for i, tg := range tags {
		items[i] = core.String(tg)
	}
	d.Set("tags", core.Array(items))
	return d
}

func TestIndexMaintainerMultikeyInsertAndDelete(t *testing.T) {
	eng := pager.New()
	maint := storage.IndexMaintainer{
		CollectionID: 1,
		Indexes:      []storage.IndexDescriptor{{Name: "tags_idx", FieldPath: "tags"}},
	}

	doc := docWithTags(1, "red", "blue")
	err := eng.Update(func(txn storage.Txn) error {
		return maint.Insert(txn, core.Int32(1), doc)
	})
	require.NoError(t, err)

	it := eng.NewIterator(storage.IndexNamePrefix(1, "tags_idx"))
	count := 0
	for it.Next() {
		count++
	}
	it.Close()
	assert.Equal(t, 2, count, "one index entry per distinct array element")

	err = eng.Update(func(txn storage.Txn) error {
		return maint.Delete(txn, core.Int32(1), doc)
	})
	require.NoError(t, err)

	it = eng.NewIterator(storage.IndexNamePrefix(1, "tags_idx"))
	assert.False(t, it.Next())
	it.Close()
}

func TestIndexMaintainerUniqueViolation(t *testing.T) {
	eng := pager.New()
	maint := storage.IndexMaintainer{
		CollectionID: 1,
		Indexes:      []storage.IndexDescriptor{{Name: "email_idx", FieldPath: "email", Unique: true}},
	}

	mkDoc := func(id int32, email string) *core.Doc {
		d := core.NewDoc()
		d.Set("_id", core.Int32(id))
		d.Set("email", core.String(email))
		return d
	}

	err := eng.Update(func(txn storage.Txn) error {
		return maint.Insert(txn, core.Int32(1), mkDoc(1, "a@example.com"))
	})
	require.NoError(t, err)

	err = eng.Update(func(txn storage.Txn) error {
		return maint.Insert(txn, core.Int32(2), mkDoc(2, "a@example.com"))
	})
	assert.ErrorIs(t, err, core.ErrUniqueIndexViolation)
}

func TestIndexMaintainerUpdateDiffsValues(t *testing.T) {
	eng := pager.New()
	maint := storage.IndexMaintainer{
		CollectionID: 1,
		Indexes:      []storage.IndexDescriptor{{Name: "age_idx", FieldPath: "age"}},
	}

	mkDoc := func(age int32) *core.Doc {
		d := core.NewDoc()
		d.Set("_id", core.Int32(1))
		d.Set("age", core.Int32(age))
		return d
	}

	old := mkDoc(30)
	require.NoError(t, eng.Update(func(txn storage.Txn) error {
		return maint.Insert(txn, core.Int32(1), old)
	}))

	newDoc := mkDoc(31)
	require.NoError(t, eng.Update(func(txn storage.Txn) error {
		return maint.Update(txn, core.Int32(1), old, newDoc)
	}))

	_, err := eng.Get(storage.IndexKey(1, "age_idx", core.Int32(30), core.Int32(1)))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	v, err := eng.Get(storage.IndexKey(1, "age_idx", core.Int32(31), core.Int32(1)))
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}
