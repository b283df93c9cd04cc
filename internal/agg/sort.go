package agg

import (
	"context"
	"fmt"
	"sort"

	"github.com/axaubet/bunql/internal/core"
)

// sortKeySpec is one (path, direction) pair of a $sort document, kept
// in the document's own key order so multi-field sorts break ties left
// to right the way the spec document was written.
type sortKeySpec struct {
	path string
	dir  int // +1 ascending, -1 descending
}

// sortStage buffers the entire input and orders it by the tuple of
// (value at path, direction) pairs (§4.6). The SortKey opcode exists
// in the VM's aggregation-helper group for bytecode-inventory fidelity
// but a $sort needs every row's key available at once to compare
// pairwise, which the dispatch loop's one-row-at-a-time model does not
// give it; the stage evaluates keys and orders rows directly instead
// (see the OpSortKey comment in internal/vm/exec.go).
type sortStage struct {
	keys []sortKeySpec
}

func newSortStage(spec *core.Doc) (*sortStage, error) {
	var keys []sortKeySpec
	for _, path := range spec.Keys() {
		v, _ := spec.Get(path)
		dir, ok := directionOf(v)
		if !ok {
			return nil, fmt.Errorf("%w: $sort direction must be 1 or -1", core.ErrInvalidField)
		}
		keys = append(keys, sortKeySpec{path: path, dir: dir})
	}
	return &sortStage{keys: keys}, nil
}

func directionOf(v core.Value) (int, bool) {
	if i, ok := v.AsInt32(); ok {
		return signOf(int64(i))
	}
	if i, ok := v.AsInt64(); ok {
		return signOf(i)
	}
	if f, ok := v.AsDouble(); ok {
		return signOf(int64(f))
	}
	return 0, false
}

func signOf(n int64) (int, bool) {
	switch {
	case n > 0:
		return 1, true
	case n < 0:
		return -1, true
	}
	return 0, false
}

func (s *sortStage) Run(ctx context.Context, rows []Row) ([]Row, error) {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range s.keys {
			av, _ := core.Resolve(out[i].Doc, core.SplitPath(k.path))
			bv, _ := core.Resolve(out[j].Doc, core.SplitPath(k.path))
			switch core.Compare(av, bv) {
			case core.Less:
				return k.dir > 0
			case core.Greater:
				return k.dir < 0
			}
		}
		return false // equal on every key: stable sort keeps input order
	})
	return out, nil
}
