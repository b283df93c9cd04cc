package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNestedField(t *testing.T) {
	d := NewDoc()
	inner := NewDoc()
	inner.Set("price", Int32(10))
	d.Set("item", DocumentValue(inner))

	v, ok := Resolve(d, SplitPath("item.price"))
	assert.True(t, ok)
	n, _ := v.AsInt32()
	assert.Equal(t, int32(10), n)
}

func TestResolveMissingField(t *testing.T) {
	d := NewDoc()
	_, ok := Resolve(d, SplitPath("missing.field"))
	assert.False(t, ok)
}

func TestResolvePositionalIndex(t *testing.T) {
	d := NewDoc()
	d.Set("items", Array([]Value{Int32(1), Int32(2), Int32(3)}))
	v, ok := Resolve(d, SplitPath("items.1"))
	assert.True(t, ok)
	n, _ := v.AsInt32()
	assert.Equal(t, int32(2), n)
}

func TestResolveProjectsThroughArrayOfDocuments(t *testing.T) {
	d := NewDoc()
	item1 := NewDoc()
	item1.Set("price", Int32(5))
	item2 := NewDoc()
	item2.Set("price", Int32(15))
	d.Set("items", Array([]Value{DocumentValue(item1), DocumentValue(item2)}))

	v, ok := Resolve(d, SplitPath("items.price"))
	assert.True(t, ok)
	items, _ := v.AsArray()
	assert.Len(t, items, 2)
	p0, _ := items[0].AsInt32()
	p1, _ := items[1].AsInt32()
	assert.Equal(t, int32(5), p0)
	assert.Equal(t, int32(15), p1)
}

func TestSplitAtFirstIndex(t *testing.T) {
	prefix, idx, rest, ok := SplitAtFirstIndex(SplitPath("items.0.price"))
	assert.True(t, ok)
	assert.Equal(t, Path{"items"}, prefix)
	assert.Equal(t, 0, idx)
	assert.Equal(t, Path{"price"}, rest)

	_, _, _, ok = SplitAtFirstIndex(SplitPath("a.b.c"))
	assert.False(t, ok)
}
