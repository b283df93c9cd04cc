package vm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
)

// Exec is the dispatch-loop executor of §4.5. It is a value type
// constructed fresh per query; never share one across goroutines or
// reuse it for a second Run.
type Exec struct {
	Program      *Program
	Source       RowSource // driven by Rewind/Next/IndexNext
	Engine       storage.Engine
	CollectionID uint64
	// Yield receives each output row; returning false drops the
	// stream (§5 cancellation: "the caller may drop the result
	// stream between any two Yields").
	Yield func(doc *core.Doc, id core.Value) bool
	// OnRow, if set, runs whenever Rewind/Next positions a new current
	// row and returns the document that StoreField/DropField/LoadDoc
	// should operate on for that row (outDoc). internal/agg's
	// $addFields/$unset stages set this to return a clone of the row so
	// LoadDoc yields a new document rather than the cursor's original.
	// When nil, LoadDoc pushes the cursor's current document unchanged,
	// matching plain filter/$match scans.
	OnRow func(current *core.Doc) *core.Doc

	stack     []core.Value
	r0        bool
	current   *core.Doc
	currentID core.Value
	outDoc    *core.Doc
	accum     map[int]*big.Rat
	counter   map[int]int64
}

// Accum returns accumulator slot id's running total after Run
// completes (used by $group/$sum).
func (e *Exec) Accum(id int) *big.Rat {
	if r := e.accum[id]; r != nil {
		return r
	}
	return new(big.Rat)
}

// Counter returns counter slot id's final count after Run completes
// (used by $count).
func (e *Exec) Counter(id int) int64 { return e.counter[id] }

func NewExec(prog *Program, source RowSource, engine storage.Engine, collectionID uint64, yield func(*core.Doc, core.Value) bool) *Exec {
	return &Exec{
		Program: prog, Source: source, Engine: engine, CollectionID: collectionID, Yield: yield,
		outDoc: core.NewDoc(), accum: make(map[int]*big.Rat), counter: make(map[int]int64),
	}
}

func (e *Exec) push(v core.Value) { e.stack = append(e.stack, v) }
func (e *Exec) pop() core.Value {
	n := len(e.stack)
	v := e.stack[n-1]
	e.stack = e.stack[:n-1]
	return v
}

// Run drives the dispatch loop to completion: Halt, cursor
// exhaustion routed to Halt by the compiled program, or Yield
// returning false. Blocking only happens inside Source's Rewind/Next
// and Engine.Get, matching §5's suspension-point contract.
func (e *Exec) Run(ctx context.Context) error {
	if e.Source != nil {
		defer e.Source.Close()
	}
	pc := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pc < 0 || pc >= len(e.Program.Instrs) {
			return fmt.Errorf("vm: program counter %d out of range", pc)
		}
		ins := e.Program.Instrs[pc]
		next := pc + 1

		switch ins.Op {
		case OpHalt:
			return nil
		case OpGoto:
			next = ins.Int
		case OpIfTrue:
			if e.r0 {
				next = ins.Int
			}
		case OpIfFalse:
			if !e.r0 {
				next = ins.Int
			}
		case OpLabel:
			// link-only

		case OpRewind:
			ok, err := e.Source.Rewind(ctx)
			if err != nil {
				return err
			}
			if !ok {
				next = ins.Int
				break
			}
			e.current, e.currentID = e.Source.Current(), e.Source.CurrentID()
			if e.OnRow != nil {
				e.outDoc = e.OnRow(e.current)
			}
		case OpNext, OpIndexNext:
			ok, err := e.Source.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				next = ins.Int
				break
			}
			e.current, e.currentID = e.Source.Current(), e.Source.CurrentID()
			if e.OnRow != nil {
				e.outDoc = e.OnRow(e.current)
			}
		case OpSeekPrefix:
			idVal := e.pop()
			doc, err := e.pointLookup(idVal)
			if err != nil {
				return err
			}
			if doc == nil {
				next = ins.Int
				break
			}
			e.current, e.currentID = doc, idVal
		case OpOpenRead, OpOpenIndex:
			// The RowSource matching this program's access Plan is
			// already constructed and handed in via Source; these
			// opcodes exist for bytecode-inventory fidelity and are
			// no-ops at execution time (see compiler.go's plan
			// comment: the same predicate program runs unchanged
			// regardless of access path).
		case OpClose:
			if e.Source != nil {
				e.Source.Close()
			}

		case OpLoadDoc:
			doc := e.current
			if e.OnRow != nil {
				doc = e.outDoc
			}
			e.push(core.DocumentValue(doc))
		case OpYield:
			v := e.pop()
			d, _ := v.AsDocument()
			if e.Yield != nil && !e.Yield(d, e.currentID) {
				return nil
			}

		case OpGetField:
			val, ok := core.Resolve(e.current, core.SplitPath(ins.Str))
			if !ok {
				next = ins.Int
				break
			}
			e.push(val)
		case OpGetArrayElement:
			top := e.pop()
			items, ok := top.AsArray()
			idx := ins.Dir
			if !ok || idx < 0 || idx >= len(items) {
				next = ins.Int
				break
			}
			e.push(items[idx])

		case OpPushValue:
			e.push(e.Program.Pool[ins.Int])

		case OpPop:
			e.pop()
		case OpPop2:
			e.pop()
			e.pop()
		case OpPopN:
			for i := 0; i < ins.Int; i++ {
				e.pop()
			}
		case OpDup:
			e.push(e.stack[len(e.stack)-1])

		case OpEqual:
			q, d := e.pop(), e.pop()
			e.r0 = core.Compare(d, q) == core.Equal
		case OpEqualOrContains:
			q, d := e.pop(), e.pop()
			e.r0 = core.EqualOrContains(d, q)
		case OpArrayEqual:
			q, d := e.pop(), e.pop()
			e.r0 = core.ArrayEqual(d, q)
		case OpGreater:
			q, d := e.pop(), e.pop()
			e.r0 = core.GreaterThan(d, q)
		case OpGreaterEqual:
			q, d := e.pop(), e.pop()
			e.r0 = core.GreaterEqual(d, q)
		case OpLess:
			q, d := e.pop(), e.pop()
			e.r0 = core.LessThan(d, q)
		case OpLessEqual:
			q, d := e.pop(), e.pop()
			e.r0 = core.LessEqual(d, q)
		case OpIn:
			q, d := e.pop(), e.pop()
			list, _ := q.AsArray()
			e.r0 = core.In(d, list)
		case OpNotIn:
			q, d := e.pop(), e.pop()
			list, _ := q.AsArray()
			e.r0 = core.NotIn(d, list)
		case OpAll:
			q, d := e.pop(), e.pop()
			list, _ := q.AsArray()
			e.r0 = core.All(d, list)
		case OpSize:
			q, d := e.pop(), e.pop()
			n := intOf(q)
			e.r0 = core.SizeEquals(d, n)
		case OpRegex:
			q, d := e.pop(), e.pop()
			re, ok := q.AsRegex()
			if !ok {
				return fmt.Errorf("%w: $regex literal must be a regex value", core.ErrTypeMismatch)
			}
			matched, err := core.MatchesRegex(d, re)
			if err != nil {
				return err
			}
			e.r0 = matched

		case OpNegate:
			e.r0 = !e.r0

		case OpIncCounter:
			e.counter[ins.Int]++
		case OpStoreField:
			v := e.pop()
			e.outDoc.Set(ins.Str, v)
		case OpDropField:
			e.outDoc.Delete(ins.Str)
		case OpSortKey:
			// The $sort stage never emits SortKey: it orders the
			// materialized rows directly in Go (it needs every row's
			// key at once to sort, not one row at a time through the
			// dispatch loop); as a dispatch-loop opcode it is a
			// documented no-op placeholder for bytecode-inventory
			// completeness.
		case OpGroupKey:
			// likewise a no-op: the $group stage evaluates group keys
			// directly in Go and never emits GroupKey.
		case OpAccumSum:
			v := e.pop()
			r, ok := numericRatValue(v)
			if !ok {
				return fmt.Errorf("%w: $sum requires a numeric value", core.ErrTypeMismatch)
			}
			cur := e.accum[ins.Int]
			if cur == nil {
				cur = new(big.Rat)
			}
			e.accum[ins.Int] = new(big.Rat).Add(cur, r)
		case OpAccumAbs:
			v := e.pop()
			r, ok := numericRatValue(v)
			if !ok {
				return fmt.Errorf("%w: $abs requires a numeric value", core.ErrTypeMismatch)
			}
			e.push(core.Decimal(new(big.Rat).Abs(r)))

		default:
			return fmt.Errorf("vm: unhandled opcode %s", ins.Op)
		}

		pc = next
	}
}

func (e *Exec) pointLookup(idVal core.Value) (*core.Doc, error) {
	raw, err := e.Engine.Get(storage.DocKey(e.CollectionID, idVal))
	if err == storage.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.Unmarshal(raw)
}

func intOf(v core.Value) int {
	if i, ok := v.AsInt32(); ok {
		return int(i)
	}
	if i, ok := v.AsInt64(); ok {
		return int(i)
	}
	if f, ok := v.AsDouble(); ok {
		return int(f)
	}
	return 0
}

func numericRatValue(v core.Value) (*big.Rat, bool) {
	switch v.Kind() {
	case core.KindInt32:
		i, _ := v.AsInt32()
		return new(big.Rat).SetInt64(int64(i)), true
	case core.KindInt64:
		i, _ := v.AsInt64()
		return new(big.Rat).SetInt64(i), true
	case core.KindDouble:
		f, _ := v.AsDouble()
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil, false
		}
		return r, true
	case core.KindDecimal:
		d, _ := v.AsDecimal()
		return d, true
	}
	return nil, false
}
