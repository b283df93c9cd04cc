package agg

import (
	"context"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
)

// unsetStage removes each named field from a clone of the input
// document, via the VM's DropField opcode (§4.6: "string or array of
// strings; remove each named field").
type unsetStage struct {
	prog *vm.Program
}

func newUnsetStage(val core.Value) (*unsetStage, error) {
	var names []string
	switch val.Kind() {
	case core.KindString:
		s, _ := val.AsString()
		names = []string{s}
	case core.KindArray:
		items, _ := val.AsArray()
		for _, it := range items {
			s, ok := it.AsString()
			if !ok {
				return nil, fmt.Errorf("%w: $unset array elements must be strings", core.ErrInvalidField)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("%w: $unset requires a string or array of strings", core.ErrInvalidField)
	}

	b := vm.NewBuilder()
	loop := b.NewLabel()
	empty := b.NewLabel()

	b.EmitGoto(vm.OpRewind, empty)
	b.Bind(loop)
	for _, name := range names {
		b.EmitStr(vm.OpDropField, name)
	}
	b.EmitOp(vm.OpLoadDoc)
	b.EmitOp(vm.OpYield)
	b.EmitGoto(vm.OpNext, empty)
	b.EmitGoto(vm.OpGoto, loop)
	b.Bind(empty)
	b.EmitOp(vm.OpHalt)

	return &unsetStage{prog: b.Build()}, nil
}

func (s *unsetStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
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
