package agg

import (
	"context"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
	"github.com/axaubet/bunql/storage"
)

// groupStage implements §4.6's $group: _id is required; groups are
// keyed by the canonical serialization of the evaluated _id Value
// (storage.EncodeValue, the same codec the index key layout uses), and
// output order is the insertion order of each key's first occurrence.
type groupStage struct {
	idExpr expr
	fields []groupField
}

type groupField struct {
	name string
	val  core.Value // the raw spec value, reparsed per group by evalAccumField
}

type groupBucket struct {
	id   core.Value
	rows []Row
}

func newGroupStage(spec *core.Doc) (*groupStage, error) {
	idVal, ok := spec.Get("_id")
	if !ok {
		return nil, fmt.Errorf("%w: $group requires _id", core.ErrInvalidField)
	}
	idExpr, err := parseExpr(idVal)
	if err != nil {
		return nil, err
	}
	g := &groupStage{idExpr: idExpr}
	for _, k := range spec.Keys() {
		if k == "_id" {
			continue
		}
		v, _ := spec.Get(k)
		g.fields = append(g.fields, groupField{name: k, val: v})
	}
	return g, nil
}

func (s *groupStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	order := make([]string, 0)
	buckets := make(map[string]*groupBucket)

	for _, r := range rows {
		idVal, err := evalScalar(r.Doc, s.idExpr)
		if err != nil {
			return nil, err
		}
		key := string(storage.EncodeValue(idVal))
		b, ok := buckets[key]
		if !ok {
			b = &groupBucket{id: idVal}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, r)
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		doc := core.NewDoc()
		doc.Set("_id", b.id)
		for _, f := range s.fields {
			v, err := evalAccumField(ctx, f.val, b.rows)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.name, err)
			}
			doc.Set(f.name, v)
		}
		out = append(out, Row{ID: b.id, Doc: doc})
	}
	return out, nil
}

// evalAccumField computes an accumulator field's value over a group's
// member rows. $sum genuinely folds over every row via the VM's
// AccumSum opcode; a bare path or constant, and $abs, have no natural
// cross-row meaning, so (per the decision recorded alongside §4.6 in
// the design notes) they evaluate against the group's first row.
func evalAccumField(ctx context.Context, val core.Value, rows []Row) (core.Value, error) {
	e, err := parseExpr(val)
	if err != nil {
		return core.Null(), err
	}
	if e.kind == exprOp && e.op == "$sum" {
		return sumOverGroup(ctx, e.arg, rows)
	}
	if len(rows) == 0 {
		return core.Null(), nil
	}
	return evalScalar(rows[0].Doc, e)
}

// sumOverGroup accumulates arg (a path string or a constant; §4.6 does
// not define nested operators inside $sum's own argument) over every
// row of the group using the VM's AccumSum opcode, so the "documented
// case of $sum: 1" (a running row count) and "$sum: <path>" (a running
// total) share one execution path.
func sumOverGroup(ctx context.Context, arg core.Value, rows []Row) (core.Value, error) {
	inner, err := parseExpr(arg)
	if err != nil {
		return core.Null(), err
	}
	if inner.kind != exprConst && inner.kind != exprPath {
		return core.Null(), fmt.Errorf("%w: $sum argument must be a path or a constant", core.ErrInvalidField)
	}

	b := vm.NewBuilder()
	loop := b.NewLabel()
	empty := b.NewLabel()
	next := b.NewLabel()

	b.EmitGoto(vm.OpRewind, empty)
	b.Bind(loop)
	if inner.kind == exprConst {
		idx := b.Intern(inner.arg)
		b.EmitPush(idx)
		b.EmitInt(vm.OpAccumSum, 0)
	} else {
		b.EmitStrGoto(vm.OpGetField, inner.path, next)
		b.EmitInt(vm.OpAccumSum, 0)
	}
	b.Bind(next)
	b.EmitGoto(vm.OpNext, empty)
	b.EmitGoto(vm.OpGoto, loop)
	b.Bind(empty)
	b.EmitOp(vm.OpHalt)

	docs, ids := splitRows(rows)
	ex := vm.NewExec(b.Build(), vm.NewSliceSource(docs, ids), nil, 0, nil)
	if err := ex.Run(ctx); err != nil {
		return core.Null(), err
	}
	r := ex.Accum(0)
	return core.Decimal(r), nil
}
