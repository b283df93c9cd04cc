package agg

import (
	"context"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
)

// countStage consumes the whole input counting rows via the VM's
// IncCounter opcode and emits one document {name: n} (§4.6).
type countStage struct {
	name string
	prog *vm.Program
}

func newCountStage(name string) *countStage {
	b := vm.NewBuilder()
	loop := b.NewLabel()
	empty := b.NewLabel()

	b.EmitGoto(vm.OpRewind, empty)
	b.Bind(loop)
	b.EmitInt(vm.OpIncCounter, 0)
	b.EmitGoto(vm.OpNext, empty)
	b.EmitGoto(vm.OpGoto, loop)
	b.Bind(empty)
	b.EmitOp(vm.OpHalt)

	return &countStage{name: name, prog: b.Build()}
}

func (s *countStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	docs, ids := splitRows(rows)
	ex := vm.NewExec(s.prog, vm.NewSliceSource(docs, ids), nil, 0, nil)
	if err := ex.Run(ctx); err != nil {
		return nil, err
	}
	out := core.NewDoc()
	out.Set(s.name, core.Int64(ex.Counter(0)))
	return []Row{{ID: core.Null(), Doc: out}}, nil
}
