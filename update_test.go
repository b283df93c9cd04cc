package bunql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
)

func TestApplyUpdateSetNestedPath(t *testing.T) {
	doc := docWith(map[string]core.Value{"name": core.String("a")})
	args := core.NewDoc()
	args.Set("address.city", core.String("nyc"))
	update := core.NewDoc()
	update.Set("$set", core.DocumentValue(args))

	require.NoError(t, applyUpdate(doc, update))

	v, ok := core.Resolve(doc, core.SplitPath("address.city"))
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "nyc", s)
}

func TestApplyUpdateUnset(t *testing.T) {
	doc := docWith(map[string]core.Value{"a": core.Int32(1), "b": core.Int32(2)})
	args := core.NewDoc()
	args.Set("b", core.Bool(true))
	update := core.NewDoc()
	update.Set("$unset", core.DocumentValue(args))

	require.NoError(t, applyUpdate(doc, update))
	_, ok := doc.Get("b")
	assert.False(t, ok)
	_, ok = doc.Get("a")
	assert.True(t, ok)
}

func TestApplyUpdateIncFromMissingTreatsAsZero(t *testing.T) {
	doc := docWith(map[string]core.Value{})
	args := core.NewDoc()
	args.Set("count", core.Int32(3))
	update := core.NewDoc()
	update.Set("$inc", core.DocumentValue(args))

	require.NoError(t, applyUpdate(doc, update))
	v, _ := doc.Get("count")
	r, _ := v.AsDecimal()
	f, _ := r.Float64()
	assert.Equal(t, 3.0, f)
}

func TestApplyUpdateMulMinMax(t *testing.T) {
	doc := docWith(map[string]core.Value{"n": core.Int32(10)})

	mulArg := core.NewDoc()
	mulArg.Set("n", core.Int32(2))
	mulUpdate := core.NewDoc()
	mulUpdate.Set("$mul", core.DocumentValue(mulArg))
	require.NoError(t, applyUpdate(doc, mulUpdate))
	v, _ := doc.Get("n")
	r, _ := v.AsDecimal()
	f, _ := r.Float64()
	assert.Equal(t, 20.0, f)

	minArg := core.NewDoc()
	minArg.Set("n", core.Int32(5))
	minUpdate := core.NewDoc()
	minUpdate.Set("$min", core.DocumentValue(minArg))
	require.NoError(t, applyUpdate(doc, minUpdate))
	v, _ = doc.Get("n")
	r, _ = v.AsDecimal()
	f, _ = r.Float64()
	assert.Equal(t, 5.0, f)

	maxArg := core.NewDoc()
	maxArg.Set("n", core.Int32(100))
	maxUpdate := core.NewDoc()
	maxUpdate.Set("$max", core.DocumentValue(maxArg))
	require.NoError(t, applyUpdate(doc, maxUpdate))
	v, _ = doc.Get("n")
	r, _ = v.AsDecimal()
	f, _ = r.Float64()
	assert.Equal(t, 100.0, f)
}

func TestApplyUpdateRename(t *testing.T) {
	doc := docWith(map[string]core.Value{"old": core.String("v")})
	args := core.NewDoc()
	args.Set("old", core.String("new"))
	update := core.NewDoc()
	update.Set("$rename", core.DocumentValue(args))

	require.NoError(t, applyUpdate(doc, update))
	_, ok := doc.Get("old")
	assert.False(t, ok)
	v, ok := doc.Get("new")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "v", s)
}

func TestApplyUpdatePushAndPop(t *testing.T) {
	doc := docWith(map[string]core.Value{"tags": core.Array([]core.Value{core.String("a")})})

	pushArg := core.NewDoc()
	pushArg.Set("tags", core.String("b"))
	pushUpdate := core.NewDoc()
	pushUpdate.Set("$push", core.DocumentValue(pushArg))
	require.NoError(t, applyUpdate(doc, pushUpdate))

	v, _ := doc.Get("tags")
	items, _ := v.AsArray()
	require.Len(t, items, 2)

	popArg := core.NewDoc()
	popArg.Set("tags", core.Int32(1))
	popUpdate := core.NewDoc()
	popUpdate.Set("$pop", core.DocumentValue(popArg))
	require.NoError(t, applyUpdate(doc, popUpdate))

	v, _ = doc.Get("tags")
	items, _ = v.AsArray()
	require.Len(t, items, 1)
	s, _ := items[0].AsString()
	assert.Equal(t, "a", s)
}

func TestApplyUpdateRejectsIDField(t *testing.T) {
	doc := docWith(map[string]core.Value{"_id": core.Int32(1)})
	args := core.NewDoc()
	args.Set("_id", core.Int32(2))
	update := core.NewDoc()
	update.Set("$set", core.DocumentValue(args))

	err := applyUpdate(doc, update)
	assert.ErrorIs(t, err, core.ErrModifyIDForbidden)
}

func TestApplyUpdateUnknownOperator(t *testing.T) {
	doc := docWith(map[string]core.Value{})
	args := core.NewDoc()
	args.Set("x", core.Int32(1))
	update := core.NewDoc()
	update.Set("$bogus", core.DocumentValue(args))

	err := applyUpdate(doc, update)
	assert.ErrorIs(t, err, core.ErrUnknownOperator)
}
