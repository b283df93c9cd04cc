package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
)

func mkDoc(fields map[string]core.Value) *core.Doc {
	d := core.NewDoc()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func runScan(t *testing.T, filter *core.Doc, docs []*core.Doc) []*core.Doc {
	t.Helper()
	prog, err := CompileScan(filter)
	require.NoError(t, err)

	ids := make([]core.Value, len(docs))
	for i := range docs {
		ids[i] = core.Int32(int32(i))
	}
	source := NewSliceSource(docs, ids)
	var out []*core.Doc
	ex := NewExec(prog, source, nil, 0, func(doc *core.Doc, _ core.Value) bool {
		out = append(out, doc)
		return true
	})
	require.NoError(t, ex.Run(context.Background()))
	return out
}

func TestCompileScanSimpleEquality(t *testing.T) {
	docs := []*core.Doc{
		mkDoc(map[string]core.Value{"name": core.String("a"), "age": core.Int32(20)}),
		mkDoc(map[string]core.Value{"name": core.String("b"), "age": core.Int32(30)}),
	}
	filter := mkDoc(map[string]core.Value{"name": core.String("b")})
	out := runScan(t, filter, docs)
	require.Len(t, out, 1)
	n, _ := out[0].Get("name")
	s, _ := n.AsString()
	assert.Equal(t, "b", s)
}

func TestCompileScanNestedFieldGreaterThan(t *testing.T) {
	item := core.NewDoc()
	item.Set("price", core.Int32(150))
	d1 := mkDoc(map[string]core.Value{"item": core.DocumentValue(item)})

	item2 := core.NewDoc()
	item2.Set("price", core.Int32(50))
	d2 := mkDoc(map[string]core.Value{"item": core.DocumentValue(item2)})

	filter := core.NewDoc()
	op := core.NewDoc()
	op.Set("$gt", core.Int32(100))
	filter.Set("item.price", core.DocumentValue(op))

	out := runScan(t, filter, []*core.Doc{d1, d2})
	require.Len(t, out, 1)
	v, _ := out[0].Get("item")
	sub, _ := v.AsDocument()
	p, _ := sub.Get("price")
	n, _ := p.AsInt32()
	assert.Equal(t, int32(150), n)
}

func TestCompileScanNotAndOr(t *testing.T) {
	docs := []*core.Doc{
		mkDoc(map[string]core.Value{"status": core.String("active"), "role": core.String("admin")}),
		mkDoc(map[string]core.Value{"status": core.String("inactive"), "role": core.String("admin")}),
		mkDoc(map[string]core.Value{"status": core.String("active"), "role": core.String("guest")}),
	}

	// {$or: [{status: "active"}, {role: "admin"}]}, then separately {status: {$not: "active"}}
	orFilter := core.NewDoc()
	branch1 := mkDoc(map[string]core.Value{"status": core.String("active")})
	branch2 := mkDoc(map[string]core.Value{"role": core.String("admin")})
	orFilter.Set("$or", core.Array([]core.Value{core.DocumentValue(branch1), core.DocumentValue(branch2)}))

	out := runScan(t, orFilter, docs)
	assert.Len(t, out, 3, "every doc matches status=active or role=admin")

	notFilter := core.NewDoc()
	notArg := core.NewDoc()
	notArg.Set("$not", core.String("active"))
	notFilter.Set("status", core.DocumentValue(notArg))
	out = runScan(t, notFilter, docs)
	require.Len(t, out, 1)
	s, _ := out[0].Get("status")
	str, _ := s.AsString()
	assert.Equal(t, "inactive", str)
}

func TestCompileScanAllOperatorOnTags(t *testing.T) {
	d1 := mkDoc(map[string]core.Value{"tags": core.Array([]core.Value{core.String("a"), core.String("b"), core.String("c")})})
	d2 := mkDoc(map[string]core.Value{"tags": core.Array([]core.Value{core.String("a")})})

	filter := core.NewDoc()
	all := core.NewDoc()
	all.Set("$all", core.Array([]core.Value{core.String("a"), core.String("b")}))
	filter.Set("tags", core.DocumentValue(all))

	out := runScan(t, filter, []*core.Doc{d1, d2})
	require.Len(t, out, 1)
}

func TestPointLookupProgramViaCompile(t *testing.T) {
	filter := mkDoc(map[string]core.Value{"_id": core.Int32(7)})
	_, plan, err := Compile(filter, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, PlanPointLookup, plan.Kind)
}
