package agg

import (
	"context"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
)

// matchStage compiles filter with vm.CompileScan (the same predicate
// compiler §4.4 uses for Collection.Find) and runs it over a
// vm.SliceSource built from the previous stage's rows, per §4.6's "a
// filter program ... whose cursor is replaced by the previous stage's
// stream".
type matchStage struct {
	prog *vm.Program
}

func newMatchStage(filter *core.Doc) (*matchStage, error) {
	prog, err := vm.CompileScan(filter)
	if err != nil {
		return nil, err
	}
	return &matchStage{prog: prog}, nil
}

func (s *matchStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	docs, ids := splitRows(rows)
	var out []Row
	ex := vm.NewExec(s.prog, vm.NewSliceSource(docs, ids), nil, 0, func(d *core.Doc, id core.Value) bool {
		out = append(out, Row{ID: id, Doc: d})
		return true
	})
	if err := ex.Run(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func splitRows(rows []Row) ([]*core.Doc, []core.Value) {
	docs := make([]*core.Doc, len(rows))
	ids := make([]core.Value, len(rows))
	for i, r := range rows {
		docs[i], ids[i] = r.Doc, r.ID
	}
	return docs, ids
}
