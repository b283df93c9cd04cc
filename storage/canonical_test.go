package storage

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axaubet/bunql/internal/core"
)

func TestEncodeValueOrderMatchesCompare(t *testing.T) {
	values := []core.Value{
		core.Int32(-100), core.Int32(-1), core.Int32(0), core.Int32(1), core.Int32(100),
		core.Double(0.5), core.Decimal(big.NewRat(3, 2)),
	}
	for i := range values {
		for j := range values {
			encI, encJ := EncodeValue(values[i]), EncodeValue(values[j])
			want := core.Compare(values[i], values[j])
			got := bytes.Compare(encI, encJ)
			switch want {
			case core.Less:
				assert.True(t, got < 0, "%v vs %v", values[i], values[j])
			case core.Equal:
				assert.Zero(t, got, "%v vs %v", values[i], values[j])
			case core.Greater:
				assert.True(t, got > 0, "%v vs %v", values[i], values[j])
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := core.NewObjectID()
	cases := []core.Value{
		core.Null(),
		core.Bool(true),
		core.String("hello"),
		core.Int64(42),
		core.ObjectIDValue(id),
		core.Array([]core.Value{core.Int32(1), core.String("a")}),
	}
	for _, v := range cases {
		enc := EncodeValue(v)
		dec, rest, err := DecodeValue(enc)
		assert.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, core.Equal, core.Compare(v, dec))
	}
}

func TestDocKeyOrderingWithinCollection(t *testing.T) {
	a := DocKey(1, core.Int32(1))
	b := DocKey(1, core.Int32(2))
	assert.True(t, bytes.Compare(a, b) < 0)
}

func TestPrefixUpperBound(t *testing.T) {
	up := PrefixUpperBound([]byte{0x01, 0x02})
	assert.Equal(t, []byte{0x01, 0x03}, up)

	assert.Nil(t, PrefixUpperBound([]byte{0xFF, 0xFF}))
}
