package bunql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocScalarsAndNesting(t *testing.T) {
	doc, err := ParseDoc([]byte(`{"name": "ada", "age": 36, "active": true, "nickname": null}`))
	require.NoError(t, err)

	n, _ := doc.Get("name")
	s, _ := n.AsString()
	assert.Equal(t, "ada", s)

	a, _ := doc.Get("age")
	i, _ := a.AsInt64()
	assert.Equal(t, int64(36), i)

	b, _ := doc.Get("active")
	bv, _ := b.AsBool()
	assert.True(t, bv)

	nick, ok := doc.Get("nickname")
	require.True(t, ok)
	assert.True(t, nick.IsNull())
}

func TestParseDocArrayAndSubdocument(t *testing.T) {
	doc, err := ParseDoc([]byte(`{"tags": ["a", "b"], "address": {"city": "nyc"}}`))
	require.NoError(t, err)

	tv, _ := doc.Get("tags")
	items, ok := tv.AsArray()
	require.True(t, ok)
	require.Len(t, items, 2)

	av, _ := doc.Get("address")
	sub, ok := av.AsDocument()
	require.True(t, ok)
	cv, _ := sub.Get("city")
	cs, _ := cv.AsString()
	assert.Equal(t, "nyc", cs)
}

func TestParseDocRejectsNonObject(t *testing.T) {
	_, err := ParseDoc([]byte(`42`))
	assert.Error(t, err)
}

func TestParseDocFloatNumber(t *testing.T) {
	doc, err := ParseDoc([]byte(`{"price": 19.99}`))
	require.NoError(t, err)
	v, _ := doc.Get("price")
	f, ok := v.AsDouble()
	require.True(t, ok)
	assert.InDelta(t, 19.99, f, 0.0001)
}

func TestParseDocArrayOfStages(t *testing.T) {
	docs, err := ParseDocArray([]byte(`[{"$match": {"status": "active"}}, {"$count": "n"}]`))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	_, ok := docs[0].Get("$match")
	assert.True(t, ok)
	cv, ok := docs[1].Get("$count")
	require.True(t, ok)
	s, _ := cv.AsString()
	assert.Equal(t, "n", s)
}
