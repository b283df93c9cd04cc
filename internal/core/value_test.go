package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNumericCrossKind(t *testing.T) {
	assert.Equal(t, Equal, Compare(Int32(5), Int64(5)))
	assert.Equal(t, Equal, Compare(Int64(5), Double(5)))
	assert.Equal(t, Equal, Compare(Double(2.5), Decimal(big.NewRat(5, 2))))
	assert.Equal(t, Less, Compare(Int32(1), Int32(2)))
	assert.Equal(t, Greater, Compare(Double(3.1), Int32(3)))
}

func TestCompareCrossTypeOrder(t *testing.T) {
	assert.Equal(t, Less, Compare(Null(), Int32(0)))
	assert.Equal(t, Less, Compare(Int32(0), String("")))
	assert.Equal(t, Less, Compare(String("z"), DocumentValue(NewDoc())))
	assert.Equal(t, Less, Compare(Array(nil), Bool(false)))
}

func TestCompareRegexIncomparable(t *testing.T) {
	assert.Equal(t, Incomparable, Compare(RegexValue("a", ""), RegexValue("a", "")))
	assert.Equal(t, Incomparable, Compare(RegexValue("a", ""), String("a")))
}

func TestDocCloneIsDeep(t *testing.T) {
	d := NewDoc()
	inner := NewDoc()
	inner.Set("x", Int32(1))
	d.Set("obj", DocumentValue(inner))
	d.Set("arr", Array([]Value{Int32(1), Int32(2)}))

	clone := d.Clone()
	inner.Set("x", Int32(99))

	cv, _ := clone.Get("obj")
	cd, _ := cv.AsDocument()
	x, _ := cd.Get("x")
	xi, _ := x.AsInt32()
	assert.Equal(t, int32(1), xi, "clone must not observe mutation of the original's nested document")
}

func TestDocSetPreservesInsertionOrder(t *testing.T) {
	d := NewDoc()
	d.Set("b", Int32(2))
	d.Set("a", Int32(1))
	d.Set("b", Int32(20)) // overwrite keeps position
	assert.Equal(t, []string{"b", "a"}, d.Keys())
}

func TestDocEqual(t *testing.T) {
	a := NewDoc()
	a.Set("x", Int32(1))
	a.Set("y", String("hi"))
	b := NewDoc()
	b.Set("x", Int64(1))
	b.Set("y", String("hi"))
	assert.True(t, a.Equal(b))

	c := NewDoc()
	c.Set("x", Int32(2))
	c.Set("y", String("hi"))
	assert.False(t, a.Equal(c))
}

func TestObjectIDRoundTrip(t *testing.T) {
	id := NewObjectID()
	parsed, err := ParseObjectID(id.String())
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)
}
