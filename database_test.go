package bunql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage/pager"
)

func TestOpenRequiresEngine(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestCollectionMetadataPersistsAcrossReopen(t *testing.T) {
	eng := pager.New()

	db1, err := Open(Options{Engine: eng})
	require.NoError(t, err)
	col1, err := db1.Collection("people")
	require.NoError(t, err)
	require.NoError(t, col1.SetSchema(`{"type": "object"}`))
	id, err := col1.Insert(context.Background(), nil, docWith(map[string]core.Value{"name": core.String("ada")}))
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(Options{Engine: eng})
	require.NoError(t, err)
	col2, err := db2.Collection("people")
	require.NoError(t, err)

	got, err := col2.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	n, _ := got.Get("name")
	s, _ := n.AsString()
	assert.Equal(t, "ada", s)
}

func TestLogReturnsDiscardLoggerWhenNil(t *testing.T) {
	db, err := Open(Options{Engine: pager.New()})
	require.NoError(t, err)
	assert.NotNil(t, db.log())
}
