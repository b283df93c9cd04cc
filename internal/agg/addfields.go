package agg

import (
	"context"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
)

// addFieldsStage evaluates each field's expression (the same three
// shapes as $group) against a clone of the input document and sets it,
// per §4.6. It drives the VM's StoreField opcode with OnRow cloning
// the row into a fresh outDoc, so the compiled program only ever needs
// to push each field's value and store it.
type addFieldsStage struct {
	prog *vm.Program
}

func newAddFieldsStage(spec *core.Doc) (*addFieldsStage, error) {
	b := vm.NewBuilder()
	loop := b.NewLabel()
	empty := b.NewLabel()

	b.EmitGoto(vm.OpRewind, empty)
	b.Bind(loop)
	for _, name := range spec.Keys() {
		val, _ := spec.Get(name)
		e, err := parseExpr(val)
		if err != nil {
			return nil, err
		}
		if err := emitExprPush(b, e); err != nil {
			return nil, err
		}
		b.EmitStr(vm.OpStoreField, name)
	}
	b.EmitOp(vm.OpLoadDoc)
	b.EmitOp(vm.OpYield)
	b.EmitGoto(vm.OpNext, empty)
	b.EmitGoto(vm.OpGoto, loop)
	b.Bind(empty)
	b.EmitOp(vm.OpHalt)

	return &addFieldsStage{prog: b.Build()}, nil
}

// emitExprPush compiles e's value-producing code, leaving exactly one
// Value on the stack. $sum degenerates to the identity of its argument
// here (see expr.go's evalScalar doc comment: there is no grouping to
// fold over inside a single row), so only $abs needs an opcode beyond
// the value's own push.
func emitExprPush(b *vm.Builder, e expr) error {
	switch e.kind {
	case exprConst:
		idx := b.Intern(e.arg)
		b.EmitPush(idx)
	case exprPath:
		miss := b.NewLabel()
		cont := b.NewLabel()
		b.EmitStrGoto(vm.OpGetField, e.path, miss)
		b.EmitGoto(vm.OpGoto, cont)
		b.Bind(miss)
		b.EmitPush(b.Intern(core.Null()))
		b.Bind(cont)
	case exprOp:
		inner, err := parseExpr(e.arg)
		if err != nil {
			return err
		}
		if err := emitExprPush(b, inner); err != nil {
			return err
		}
		if e.op == "$abs" {
			b.EmitOp(vm.OpAccumAbs)
		}
	}
	return nil
}

func (s *addFieldsStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	docs, ids := splitRows(rows)
	var out []Row
	ex := vm.NewExec(s.prog, vm.NewSliceSource(docs, ids), nil, 0, func(d *core.Doc, id core.Value) bool {
		out = append(out, Row{ID: id, Doc: d})
		return true
	})
	ex.OnRow = func(cur *core.Doc) *core.Doc { return cur.Clone() }
	if err := ex.Run(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
