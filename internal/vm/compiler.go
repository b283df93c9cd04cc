package vm

import (
	"fmt"
	"strings"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
)

// PlanKind selects which RowSource the query driver hands to Exec.Run
// (§4.4: "all other queries either full-scan ... or use a secondary
// index ... when the planner ... recognizes a matching index on the
// outermost equality/range predicate"). Picking the RowSource is a
// Go-level decision made alongside compilation; the compiled Program
// itself always re-verifies every predicate against the loaded
// document regardless of access path, so an imprecise plan can never
// produce a wrong result, only a slower one.
type PlanKind int

const (
	PlanTableScan PlanKind = iota
	PlanPointLookup
	PlanIndexScan
)

// Plan describes the chosen access path. SeekPrefix is precomputed,
// collection-scoped key-space bytes ready to hand to Engine.NewIterator.
type Plan struct {
	Kind       PlanKind
	IndexName  string
	SeekPrefix []byte
}

var knownOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$all": true, "$size": true, "$regex": true, "$not": true,
}

// Compile turns a filter document into a linear Program plus the
// access Plan the query driver should build a RowSource from (§4.4).
// collectionID and catalog are only consulted for planning; the
// compiled predicate body is identical regardless of the chosen plan.
func Compile(filter *core.Doc, collectionID uint64, catalog IndexCatalog) (*Program, Plan, error) {
	if filter == nil {
		filter = core.NewDoc()
	}

	if plan, prog, ok, err := compilePointLookup(filter, collectionID); err != nil || ok {
		return prog, plan, err
	}

	plan := choosePlan(filter, collectionID, catalog)
	prog, err := CompileScan(filter)
	return prog, plan, err
}

// CompileScan compiles filter to the general Rewind/Next scan-loop
// program, skipping the `_id` point-lookup fast path even if filter
// happens to match its shape. Used directly by the aggregation
// executor's $match stage (internal/agg), whose RowSource is always
// the previous stage's in-memory stream rather than storage, so the
// point-lookup program's storage-bypassing SeekPrefix would be wrong
// there.
func CompileScan(filter *core.Doc) (*Program, error) {
	if filter == nil {
		filter = core.NewDoc()
	}

	b := NewBuilder()
	loop := b.NewLabel()
	notFound := b.NewLabel()
	empty := b.NewLabel()

	b.EmitGoto(OpRewind, empty) // jump to empty when the source starts out empty

	b.Bind(loop)
	if err := compileFilterBody(b, filter, notFound); err != nil {
		return nil, err
	}
	b.EmitOp(OpLoadDoc)
	b.EmitOp(OpYield)

	b.Bind(notFound)
	b.EmitGoto(OpNext, empty) // fall through (more rows) into the Goto below; jump to empty on exhaustion
	b.EmitGoto(OpGoto, loop)

	b.Bind(empty)
	b.EmitOp(OpHalt)

	return b.Build(), nil
}

// compilePointLookup recognizes the single `_id: <literal>` filter
// shape (§4.4) and emits the optimized point-lookup program directly:
// PushValue(_id), SeekPrefix, LoadDoc, Yield, Halt (no loop, no scan).
func compilePointLookup(filter *core.Doc, collectionID uint64) (Plan, *Program, bool, error) {
	if filter.Len() != 1 {
		return Plan{}, nil, false, nil
	}
	keys := filter.Keys()
	if keys[0] != "_id" {
		return Plan{}, nil, false, nil
	}
	v, _ := filter.Get("_id")
	if v.Kind() == core.KindDocument {
		return Plan{}, nil, false, nil // operator document, not a plain literal
	}

	b := NewBuilder()
	miss := b.NewLabel()
	idx := b.Intern(v)
	b.EmitPush(idx)
	b.EmitGoto(OpSeekPrefix, miss) // pops the pushed _id literal, Gets the doc directly; jumps to miss if absent
	b.EmitOp(OpLoadDoc)
	b.EmitOp(OpYield)
	b.Bind(miss)
	b.EmitOp(OpHalt)

	_ = collectionID // collection id is supplied to Exec separately, not baked into the program
	return Plan{Kind: PlanPointLookup}, b.Build(), true, nil
}

// choosePlan recognizes a single top-level field predicate against an
// indexed path, matching either equality or one range operator, per
// §4.4/§11 (no cost model beyond this single-index recognition).
func choosePlan(filter *core.Doc, collectionID uint64, catalog IndexCatalog) Plan {
	if catalog == nil || filter.Len() != 1 {
		return Plan{Kind: PlanTableScan}
	}
	keys := filter.Keys()
	field := keys[0]
	if strings.HasPrefix(field, "$") {
		return Plan{Kind: PlanTableScan}
	}
	idx, ok := catalog.IndexOn(field)
	if !ok {
		return Plan{Kind: PlanTableScan}
	}
	val, _ := filter.Get(field)

	if val.Kind() != core.KindDocument {
		return Plan{Kind: PlanIndexScan, IndexName: idx.Name, SeekPrefix: storage.IndexNamePrefix(collectionID, idx.Name)}
	}
	d, _ := val.AsDocument()
	if d.Len() != 1 {
		return Plan{Kind: PlanTableScan}
	}
	opKey := d.Keys()[0]
	switch opKey {
	case "$eq", "$gt", "$gte", "$lt", "$lte":
		return Plan{Kind: PlanIndexScan, IndexName: idx.Name, SeekPrefix: storage.IndexNamePrefix(collectionID, idx.Name)}
	}
	return Plan{Kind: PlanTableScan}
}

func compileFilterBody(b *Builder, filter *core.Doc, notFound Label) error {
	for _, key := range filter.Keys() {
		val, _ := filter.Get(key)
		switch key {
		case "$and":
			items, ok := val.AsArray()
			if !ok {
				return fmt.Errorf("%w: $and requires an array of sub-filters", core.ErrInvalidField)
			}
			for _, item := range items {
				sub, ok := item.AsDocument()
				if !ok {
					return fmt.Errorf("%w: $and element must be a document", core.ErrInvalidField)
				}
				if err := compileFilterBody(b, sub, notFound); err != nil {
					return err
				}
			}
		case "$or":
			items, ok := val.AsArray()
			if !ok {
				return fmt.Errorf("%w: $or requires an array of sub-filters", core.ErrInvalidField)
			}
			matchLabel := b.NewLabel()
			for _, item := range items {
				sub, ok := item.AsDocument()
				if !ok {
					return fmt.Errorf("%w: $or element must be a document", core.ErrInvalidField)
				}
				innerNotFound := b.NewLabel()
				if err := compileFilterBody(b, sub, innerNotFound); err != nil {
					return err
				}
				b.EmitGoto(OpGoto, matchLabel)
				b.Bind(innerNotFound)
			}
			b.EmitGoto(OpGoto, notFound)
			b.Bind(matchLabel)
		default:
			if strings.HasPrefix(key, "$") {
				return fmt.Errorf("%w: %q", core.ErrUnknownOperator, key)
			}
			if err := compileFieldPredicate(b, key, val, notFound); err != nil {
				return err
			}
		}
	}
	return nil
}

// fieldOp pairs an operator name with its literal argument, after
// normalizing a bare (non-operator-document) value to a single
// implicit $eq-equivalent predicate.
type fieldOp struct {
	name string
	arg  core.Value
	not  bool // true if wrapped in $not
}

func compileFieldPredicate(b *Builder, path string, val core.Value, notFound Label) error {
	ops, err := normalizeFieldOps(val)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	b.EmitStrGoto(OpGetField, path, notFound)

	for _, op := range ops {
		b.EmitOp(OpDup)
		idx := b.Intern(op.arg)
		b.EmitPush(idx)
		predOp, err := predicateOpcode(op.name)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		b.EmitOp(predOp)
		if op.not {
			b.EmitOp(OpNegate)
		}
		b.EmitGoto(OpIfFalse, notFound)
	}
	b.EmitOp(OpPop) // discard the original GetField push
	return nil
}

func predicateOpcode(op string) (Op, error) {
	switch op {
	case "$eq":
		return OpEqualOrContains, nil
	case "$ne":
		return OpEqualOrContains, nil // caller sets fieldOp.not for $ne
	case "$gt":
		return OpGreater, nil
	case "$gte":
		return OpGreaterEqual, nil
	case "$lt":
		return OpLess, nil
	case "$lte":
		return OpLessEqual, nil
	case "$in":
		return OpIn, nil
	case "$nin":
		return OpIn, nil // caller sets fieldOp.not for $nin
	case "$all":
		return OpAll, nil
	case "$size":
		return OpSize, nil
	case "$regex":
		return OpRegex, nil
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownOperator, op)
}

// normalizeFieldOps classifies val per §4.4 rule 3: a non-document
// value (or a document with no operator-named keys) is an implicit
// $eq; a document mixing operator and plain keys is rejected with
// ErrInvalidField; a document keyed entirely by recognized operators
// expands to one fieldOp per key, in document order, with $ne/$nin
// carrying a negated EqualOrContains/In and $not unwrapping its single
// inner operator.
func normalizeFieldOps(val core.Value) ([]fieldOp, error) {
	if val.Kind() != core.KindDocument {
		return []fieldOp{{name: "$eq", arg: val}}, nil
	}
	d, _ := val.AsDocument()
	keys := d.Keys()
	if len(keys) == 0 {
		return []fieldOp{{name: "$eq", arg: val}}, nil
	}

	anyOperator, allOperator := false, true
	for _, k := range keys {
		if strings.HasPrefix(k, "$") {
			anyOperator = true
		} else {
			allOperator = false
		}
	}
	if !anyOperator {
		return []fieldOp{{name: "$eq", arg: val}}, nil
	}
	if !allOperator {
		return nil, fmt.Errorf("%w: mixed operator and plain keys", core.ErrInvalidField)
	}

	var ops []fieldOp
	for _, k := range keys {
		argVal, _ := d.Get(k)
		switch k {
		case "$ne":
			ops = append(ops, fieldOp{name: "$eq", arg: argVal, not: true})
		case "$nin":
			ops = append(ops, fieldOp{name: "$in", arg: argVal, not: true})
		case "$not":
			inner, err := normalizeFieldOps(argVal)
			if err != nil {
				return nil, err
			}
			if len(inner) != 1 {
				return nil, fmt.Errorf("%w: $not must wrap exactly one operator", core.ErrInvalidField)
			}
			in := inner[0]
			in.not = !in.not
			ops = append(ops, in)
		default:
			if !knownOperators[k] {
				return nil, fmt.Errorf("%w: %q", core.ErrUnknownOperator, k)
			}
			ops = append(ops, fieldOp{name: k, arg: argVal})
		}
	}
	return ops, nil
}
