package bunql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/rules"
	"github.com/axaubet/bunql/storage"
	"github.com/axaubet/bunql/storage/pager"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(Options{Engine: pager.New()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func docWith(fields map[string]core.Value) *core.Doc {
	d := core.NewDoc()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func TestInsertAndFindByID(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("users")
	require.NoError(t, err)

	id, err := col.Insert(context.Background(), nil, docWith(map[string]core.Value{"name": core.String("ada")}))
	require.NoError(t, err)

	got, err := col.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	n, _ := got.Get("name")
	s, _ := n.AsString()
	assert.Equal(t, "ada", s)
}

func TestFindByIDNotFound(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("users")
	require.NoError(t, err)

	_, err = col.FindByID(context.Background(), nil, core.Int32(999))
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestFindFiltersDocuments(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("people")
	require.NoError(t, err)

	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"name": core.String("a"), "age": core.Int32(20)}))
	require.NoError(t, err)
	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"name": core.String("b"), "age": core.Int32(40)}))
	require.NoError(t, err)

	op := core.NewDoc()
	op.Set("$gt", core.Int32(30))
	filter := core.NewDoc()
	filter.Set("age", core.DocumentValue(op))

	out, err := col.Find(context.Background(), nil, filter)
	require.NoError(t, err)
	require.Len(t, out, 1)
	n, _ := out[0].Get("name")
	s, _ := n.AsString()
	assert.Equal(t, "b", s)
}

func TestUpdateAppliesSetAndInc(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("counters")
	require.NoError(t, err)

	id, err := col.Insert(context.Background(), nil, docWith(map[string]core.Value{"count": core.Int32(1), "label": core.String("old")}))
	require.NoError(t, err)

	setArg := core.NewDoc()
	setArg.Set("label", core.String("new"))
	incArg := core.NewDoc()
	incArg.Set("count", core.Int32(5))
	update := core.NewDoc()
	update.Set("$set", core.DocumentValue(setArg))
	update.Set("$inc", core.DocumentValue(incArg))

	require.NoError(t, col.Update(context.Background(), nil, id, update))

	got, err := col.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	lv, _ := got.Get("label")
	ls, _ := lv.AsString()
	assert.Equal(t, "new", ls)

	cv, _ := got.Get("count")
	cr, _ := cv.AsDecimal()
	f, _ := cr.Float64()
	assert.Equal(t, 6.0, f)
}

func TestUpdateRejectsIDMutation(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("items")
	require.NoError(t, err)

	id, err := col.Insert(context.Background(), nil, docWith(map[string]core.Value{"a": core.Int32(1)}))
	require.NoError(t, err)

	setArg := core.NewDoc()
	setArg.Set("_id", core.Int32(12345))
	update := core.NewDoc()
	update.Set("$set", core.DocumentValue(setArg))

	err = col.Update(context.Background(), nil, id, update)
	assert.ErrorIs(t, err, core.ErrModifyIDForbidden)
}

func TestDeleteRemovesDocument(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("items")
	require.NoError(t, err)

	id, err := col.Insert(context.Background(), nil, docWith(map[string]core.Value{"a": core.Int32(1)}))
	require.NoError(t, err)

	require.NoError(t, col.Delete(context.Background(), nil, id))

	_, err = col.FindByID(context.Background(), nil, id)
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestEnsureIndexBackfillsAndEnforcesUnique(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("accounts")
	require.NoError(t, err)

	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"email": core.String("a@example.com")}))
	require.NoError(t, err)

	require.NoError(t, col.EnsureIndex(context.Background(), storage.IndexDescriptor{
		Name: "email_idx", FieldPath: "email", Unique: true,
	}))

	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"email": core.String("a@example.com")}))
	assert.ErrorIs(t, err, core.ErrUniqueIndexViolation)
}

func TestSchemaValidationRejectsOnInsert(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("typed")
	require.NoError(t, err)

	require.NoError(t, col.SetSchema(`{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}}
	}`))

	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"other": core.Int32(1)}))
	assert.ErrorIs(t, err, core.ErrInvalidField)
}

func TestRuleDeniesReadForNonOwner(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("private")
	require.NoError(t, err)

	require.NoError(t, col.SetRule("read", `resource.data.ownerID == request.auth.uid`))

	id, err := col.Insert(context.Background(), &rules.AuthContext{IsAdmin: true}, docWith(map[string]core.Value{"ownerID": core.String("u1")}))
	require.NoError(t, err)

	owner := &rules.AuthContext{UID: "u1"}
	got, err := col.FindByID(context.Background(), owner, id)
	require.NoError(t, err)
	assert.NotNil(t, got)

	other := &rules.AuthContext{UID: "u2"}
	_, err = col.FindByID(context.Background(), other, id)
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestAggregateMatchAndCount(t *testing.T) {
	db := openTestDB(t)
	col, err := db.Collection("orders")
	require.NoError(t, err)

	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"status": core.String("shipped")}))
	require.NoError(t, err)
	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"status": core.String("pending")}))
	require.NoError(t, err)
	_, err = col.Insert(context.Background(), nil, docWith(map[string]core.Value{"status": core.String("shipped")}))
	require.NoError(t, err)

	matchArg := core.NewDoc()
	matchArg.Set("status", core.String("shipped"))
	matchStage := core.NewDoc()
	matchStage.Set("$match", core.DocumentValue(matchArg))
	countStage := core.NewDoc()
	countStage.Set("$count", core.String("n"))

	out, err := col.Aggregate(context.Background(), nil, []*core.Doc{matchStage, countStage})
	require.NoError(t, err)
	require.Len(t, out, 1)
	v, _ := out[0].Get("n")
	n, _ := v.AsInt64()
	assert.Equal(t, int64(2), n)
}

func TestCollectionIsCachedAcrossCalls(t *testing.T) {
	db := openTestDB(t)
	a, err := db.Collection("same")
	require.NoError(t, err)
	b, err := db.Collection("same")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
